package extentmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsLowestFreeOffset(t *testing.T) {
	m := New(4096, 4)
	off, err := m.Allocate()
	require.NoError(t, err)
	require.Equal(t, int64(0), off)

	off, err = m.Allocate()
	require.NoError(t, err)
	require.Equal(t, int64(4096), off)
}

func TestAllocateExhaustion(t *testing.T) {
	m := New(4096, 2)
	_, err := m.Allocate()
	require.NoError(t, err)
	_, err = m.Allocate()
	require.NoError(t, err)
	_, err = m.Allocate()
	require.ErrorIs(t, err, ErrNoFreeExtents)
}

func TestReleaseFreesSlotForReuse(t *testing.T) {
	m := New(4096, 1)
	off, err := m.Allocate()
	require.NoError(t, err)
	m.Release(off)

	off2, err := m.Allocate()
	require.NoError(t, err)
	require.Equal(t, off, off2)
}

func TestReleaseNeverAllocatedPanics(t *testing.T) {
	m := New(4096, 1)
	require.Panics(t, func() { m.Release(0) })
}

func TestHeldFreeExtentsTracksAllocations(t *testing.T) {
	m := New(4096, 3)
	require.Equal(t, 0, m.HeldFreeExtents(), "virgin address space is not a held free extent")

	off, err := m.Allocate()
	require.NoError(t, err)
	require.Equal(t, 0, m.HeldFreeExtents(), "allocating into virgin space doesn't touch the free list")

	m.Release(off)
	require.Equal(t, 1, m.HeldFreeExtents())

	_, err = m.Allocate()
	require.NoError(t, err)
	require.Equal(t, 0, m.HeldFreeExtents(), "reusing the released extent drains the free list again")
}

func TestHeldFreeExtentsIgnoresUnallocatedCapacity(t *testing.T) {
	m := New(4096, 16)
	_, err := m.Allocate()
	require.NoError(t, err)
	require.Equal(t, 0, m.HeldFreeExtents(), "15 never-touched slots are not held free extents")
}
