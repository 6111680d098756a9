package dbmetrics

import (
	"testing"

	"github.com/armon/go-metrics"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrementAndSnapshot(t *testing.T) {
	sink := metrics.NewInmemSink(1<<20, 1<<20)
	c := New(sink)

	c.IncDataExtents(3)
	c.IncAllocated()
	c.IncAllocated()
	c.IncReclaimed()
	c.IncGCed()
	c.IncBlocksWritten()
	c.SetOldGarbageBlocks(5)
	c.SetOldTotalBlocks(10)

	extents, allocated, reclaimed, gced, written, oldGarbage, oldTotal := c.Snapshot()
	require.Equal(t, int64(3), extents)
	require.Equal(t, int64(2), allocated)
	require.Equal(t, int64(1), reclaimed)
	require.Equal(t, int64(1), gced)
	require.Equal(t, int64(1), written)
	require.Equal(t, int64(5), oldGarbage)
	require.Equal(t, int64(10), oldTotal)
}

func TestCountersToleratesNilSink(t *testing.T) {
	c := New(nil)
	require.NotPanics(t, func() {
		c.IncAllocated()
		c.SetOldGarbageBlocks(1)
	})
}

func TestSetOldGarbageBlocksOverwritesRatherThanAccumulates(t *testing.T) {
	c := New(nil)
	c.SetOldGarbageBlocks(5)
	c.SetOldGarbageBlocks(2)
	_, _, _, _, _, oldGarbage, _ := c.Snapshot()
	require.Equal(t, int64(2), oldGarbage)
}
