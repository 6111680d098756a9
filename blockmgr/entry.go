package blockmgr

import "github.com/willf/bitset"

// State is the lifecycle stage of an extent entry.
type State int

const (
	StateReconstructing State = iota
	StateActive
	StateYoung
	StateOld
	StateInGC
)

func (s State) String() string {
	switch s {
	case StateReconstructing:
		return "reconstructing"
	case StateActive:
		return "active"
	case StateYoung:
		return "young"
	case StateOld:
		return "old"
	case StateInGC:
		return "in_gc"
	default:
		return "unknown"
	}
}

// entry is one record per live extent. Garbage collection back-links
// (pqIndex, young queue membership) are held as plain indices rather
// than intrusive pointers.
type entry struct {
	extentIndex int64
	offset      Offset
	garbage     *bitset.BitSet // length blocksPerExtent; bit=1 means garbage
	state       State
	timestampUs int64

	// pqIndex is this entry's position in the GC priority queue's
	// backing slice, or -1 if the entry is not in the queue. Maintained
	// by the heap.Interface implementation in pq.go.
	pqIndex int

	// youngSeq orders entries within the young queue's backing slice;
	// it is not an index into anything, just a FIFO ticket.
	youngSeq uint64
}

func newEntry(extentIndex int64, offset Offset, blocksPerExtent int, state State) *entry {
	gb := bitset.New(uint(blocksPerExtent))
	for i := uint(0); i < uint(blocksPerExtent); i++ {
		gb.Set(i)
	}
	return &entry{
		extentIndex: extentIndex,
		offset:      offset,
		garbage:     gb,
		state:       state,
		pqIndex:     -1,
	}
}

// garbageCount is the number of bits set to 1 ("garbage" / "never
// written") in the entry's bitset.
func (e *entry) garbageCount() int {
	return int(e.garbage.Count())
}

// isFull reports whether every block slot is garbage.
func (e *entry) isFull(blocksPerExtent int) bool {
	return e.garbageCount() == blocksPerExtent
}

// CompareGarbage orders two entries by garbage count descending
// (largest-garbage-first), breaking ties by ascending extent index so
// ordering is deterministic per run. This is also the priority queue's
// own ordering (pq.go); it is exposed standalone so tests can assert
// on it directly.
func CompareGarbage(a, b *entry) bool {
	ca, cb := a.garbageCount(), b.garbageCount()
	if ca != cb {
		return ca > cb
	}
	return a.extentIndex < b.extentIndex
}
