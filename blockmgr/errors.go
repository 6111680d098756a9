package blockmgr

import "github.com/pkg/errors"

var errInvalidRatios = errors.New("dynamic config: require 0 < gc_low_ratio < gc_high_ratio < 1")

// invariant panics with a wrapped message when cond is false. A
// violation here means the enclosing serializer broke its contract,
// not a recoverable runtime condition.
func invariant(cond bool, msg string, args ...interface{}) {
	if !cond {
		panic(errors.Errorf(msg, args...))
	}
}
