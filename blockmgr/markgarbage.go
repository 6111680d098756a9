package blockmgr

// MarkGarbage flips the garbage bit for the block at offset. If every
// block in the entry is now garbage and the entry is not active, the
// entry is torn down and its extent released; otherwise, if the
// entry is old, its position in the GC priority queue is refreshed.
//
// The owning serializer must call this only after installing the
// block's new offset in the LBA index: that ordering is what keeps a
// GC read of a live block from ever racing its own invalidation
// invisibly.
func (m *Manager) MarkGarbage(offset Offset) {
	extentIdx := m.static.ExtentIndex(offset)
	blockIdx := m.static.BlockIndex(offset)

	e, ok := m.entries[extentIdx]
	invariant(ok, "blockmgr: MarkGarbage on unknown extent, offset=%d", offset)
	invariant(!e.garbage.Test(uint(blockIdx)), "blockmgr: MarkGarbage on already-garbage block, offset=%d", offset)
	e.garbage.Set(uint(blockIdx))

	if e.state == StateOld {
		m.oldGarbageBlocks++
	}

	if e.isFull(m.static.BlocksPerExtent()) && e.state != StateActive {
		switch e.state {
		case StateReconstructing:
			invariant(false, "blockmgr: MarkGarbage during reconstruct")
		case StateYoung:
			m.young.remove(e)
		case StateOld:
			m.pq.remove(e)
			m.oldTotalBlocks -= m.static.BlocksPerExtent()
			m.oldGarbageBlocks -= m.static.BlocksPerExtent()
		case StateInGC:
			invariant(m.gc.currentEntry == e, "blockmgr: MarkGarbage freed an in_gc entry that wasn't the current GC victim")
			m.gc.currentEntry = nil
		default:
			invariant(false, "blockmgr: MarkGarbage: entry in unreachable state %s", e.state)
		}

		m.metrics.IncReclaimed()
		m.syncGCStatsMetrics()
		delete(m.entries, extentIdx)
		m.extents.Release(e.offset)
		m.metrics.IncDataExtents(-1)
	} else if e.state == StateOld {
		m.pq.update(e)
	}
}
