package blockmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEntry(extentIndex int64) *entry {
	return newEntry(extentIndex, Offset(extentIndex*4096), 4, StateYoung)
}

func TestYoungQueueFIFOOrder(t *testing.T) {
	q := newYoungQueue()
	a, b, c := newTestEntry(1), newTestEntry(2), newTestEntry(3)
	q.pushBack(a)
	q.pushBack(b)
	q.pushBack(c)

	require.Equal(t, a, q.popHead())
	require.Equal(t, b, q.popHead())
	require.Equal(t, c, q.popHead())
	require.Nil(t, q.popHead())
}

// TestYoungQueueRemoveAfterPopDoesNotPanic reproduces a pop-then-remove
// sequence that once went stale: popping the head used to reslice the
// backing slice without rebasing the remaining entries' stored
// positions, so a later remove() indexed the wrong slot or panicked.
func TestYoungQueueRemoveAfterPopDoesNotPanic(t *testing.T) {
	q := newYoungQueue()
	a, b := newTestEntry(1), newTestEntry(2)
	q.pushBack(a)
	q.pushBack(b)

	require.Equal(t, a, q.popHead())
	require.NotPanics(t, func() { q.remove(b) })
	require.Equal(t, 0, q.size())
	require.Nil(t, q.head())
}

func TestYoungQueueRemoveFromMiddleTombstonesWithoutDisturbingOrder(t *testing.T) {
	q := newYoungQueue()
	a, b, c := newTestEntry(1), newTestEntry(2), newTestEntry(3)
	q.pushBack(a)
	q.pushBack(b)
	q.pushBack(c)

	q.remove(b)
	require.Equal(t, 2, q.size())
	require.Equal(t, a, q.popHead())
	require.Equal(t, c, q.popHead())
	require.Nil(t, q.popHead())
}

func TestYoungQueueRemoveHeadAdvancesPastTombstone(t *testing.T) {
	q := newYoungQueue()
	a, b := newTestEntry(1), newTestEntry(2)
	q.pushBack(a)
	q.pushBack(b)

	q.remove(a)
	require.Equal(t, b, q.head())
	require.Equal(t, 1, q.size())
}

func TestYoungQueueCompactsLongRunningDeadPrefix(t *testing.T) {
	q := newYoungQueue()
	entries := make([]*entry, 200)
	for i := range entries {
		entries[i] = newTestEntry(int64(i))
		q.pushBack(entries[i])
	}

	// Remove everything but the last 10 in front-to-back order, driving
	// base well past the compaction threshold partway through.
	survivors := entries[190:]
	for _, e := range entries[:190] {
		require.NotPanics(t, func() { q.remove(e) })
	}

	require.Equal(t, len(survivors), q.size())
	for _, e := range survivors {
		require.Equal(t, e, q.popHead())
	}
	require.Nil(t, q.popHead())
}
