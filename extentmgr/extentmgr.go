// Package extentmgr is a concrete extent-level allocator playing the
// "extent manager" role the data block manager treats as an external
// collaborator: it owns a fixed address space, divided into
// extent_size slots, and hands out/reclaims whole extents by index.
package extentmgr

import (
	"github.com/pkg/errors"
	"github.com/willf/bitset"
)

// ErrNoFreeExtents is returned by Allocate when every extent slot is
// occupied.
var ErrNoFreeExtents = errors.New("extentmgr: no free extents")

// Manager is a bitset-backed free-extent allocator over a fixed
// address space of extent_size slots. It is not safe for concurrent
// use without external synchronization, matching the single-threaded
// cooperative model the data block manager assumes of its
// collaborators.
//
// Two kinds of "free" are tracked separately: slots below highWater
// have been allocated at least once; held marks which of those have
// since been released and are sitting in the reuse free list. Slots
// at or above highWater are virgin address space that has never been
// handed out, and are not part of the free list at all.
type Manager struct {
	extentSize int64
	held       *bitset.BitSet // bit=1: previously allocated, now released, available for reuse
	highWater  uint           // lowest index never yet allocated
	capacity   uint
}

// New creates a Manager over numExtents slots of extentSize bytes
// each, none of them yet allocated or held.
func New(extentSize int64, numExtents uint) *Manager {
	return &Manager{extentSize: extentSize, held: bitset.New(numExtents), capacity: numExtents}
}

// ExtentSize returns the fixed size of every extent, in bytes.
func (m *Manager) ExtentSize() int64 { return m.extentSize }

// Allocate reuses the lowest-indexed released extent if the free list
// is non-empty, and only grows into virgin address space once it is.
func (m *Manager) Allocate() (int64, error) {
	if idx, ok := m.held.NextSet(0); ok {
		m.held.Clear(idx)
		return int64(idx) * m.extentSize, nil
	}
	if m.highWater >= m.capacity {
		return 0, ErrNoFreeExtents
	}
	idx := m.highWater
	m.highWater++
	return int64(idx) * m.extentSize, nil
}

// Release returns the extent at offset to the free list. Panics if
// the extent was never allocated or is already free, both of which are
// invariant violations by the caller, not recoverable runtime
// conditions.
func (m *Manager) Release(offset int64) {
	idx := uint(offset / m.extentSize)
	if idx >= m.highWater {
		panic(errors.Errorf("extentmgr: release of never-allocated extent at offset %d", offset))
	}
	if m.held.Test(idx) {
		panic(errors.Errorf("extentmgr: release of already-free extent at offset %d", offset))
	}
	m.held.Set(idx)
}

// HeldFreeExtents returns the number of extents sitting in the free
// list awaiting reuse. It feeds the denominator of the garbage-ratio
// calculation, so it deliberately excludes virgin address space that
// has never been allocated: a fresh Manager reports zero.
func (m *Manager) HeldFreeExtents() int {
	return int(m.held.Count())
}

// Capacity returns the total number of extent slots the address space
// was created with.
func (m *Manager) Capacity() uint { return m.capacity }
