package blockmgr

import "time"

// nowMicros is the manager's default clock, used to timestamp
// entries transitioning into the young state.
func nowMicros() int64 {
	return time.Now().UnixNano() / int64(time.Microsecond)
}
