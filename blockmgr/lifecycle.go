package blockmgr

import "github.com/revolution1/datablock/metablock"

// StartReconstruct begins the startup replay: the manager will learn
// which blocks are live from a sequence of MarkLive calls driven by
// the LBA index.
func (m *Manager) StartReconstruct() {
	invariant(m.state == stateUnstarted, "blockmgr: StartReconstruct called outside state_unstarted")
	m.gc.step = gcStepReconstruct
}

// MarkLive records that the block at offset is live, clearing its
// garbage bit in the (possibly newly created) entry for its extent.
// Called once per live block reported by the LBA index during
// startup replay.
func (m *Manager) MarkLive(offset Offset) {
	invariant(m.gc.step == gcStepReconstruct, "blockmgr: MarkLive called outside gc_reconstruct")

	extentIdx := m.static.ExtentIndex(offset)
	blockIdx := m.static.BlockIndex(offset)

	e, ok := m.entries[extentIdx]
	if !ok {
		extentOffset := Offset(extentIdx * m.static.ExtentSize)
		e = newEntry(extentIdx, extentOffset, m.static.BlocksPerExtent(), StateReconstructing)
		m.entries[extentIdx] = e
		m.reconstructed = append(m.reconstructed, e)
		m.metrics.IncDataExtents(1)
	}

	invariant(e.garbage.Test(uint(blockIdx)), "blockmgr: MarkLive on block already marked live, offset=%d", offset)
	e.garbage.Clear(uint(blockIdx))
}

// EndReconstruct closes out startup replay; the GC state machine is
// now parked in gc_ready.
func (m *Manager) EndReconstruct() {
	invariant(m.state == stateUnstarted, "blockmgr: EndReconstruct called outside state_unstarted")
	m.gc.step = gcStepReady
}

// StartExisting binds the manager to its data file and replays the
// metablock's active-extent table: entries named there are promoted
// reconstructing -> active; anything else reconstruction found live
// blocks in becomes old.
func (m *Manager) StartExisting(file File, last metablock.Block) {
	invariant(m.state == stateUnstarted, "blockmgr: StartExisting called outside state_unstarted")
	m.file = file

	for i := 0; i < m.static.NumActiveDataExtents && i < MaxActiveDataExtents; i++ {
		off := last.ActiveExtents[i]
		if off == metablock.NullOffset {
			m.activeExtents[i] = nil
			continue
		}

		offset := Offset(off)
		extentIdx := m.static.ExtentIndex(offset)
		e, ok := m.entries[extentIdx]
		if !ok {
			e = newEntry(extentIdx, offset, m.static.BlocksPerExtent(), StateReconstructing)
			m.entries[extentIdx] = e
			m.reconstructed = append(m.reconstructed, e)
			m.metrics.IncDataExtents(1)
		}

		invariant(e.state == StateReconstructing, "blockmgr: active-extent slot %d points at entry in state %s", i, e.state)
		e.state = StateActive
		m.removeFromReconstructed(e)

		m.activeExtents[i] = e
		m.blocksInActiveExtent[i] = int(last.BlocksInActiveExtent[i])
	}
	// any remaining slots beyond NumActiveDataExtents stay nil; they
	// are only ever populated again if a prior run used a larger
	// configuration.
	for i := m.static.NumActiveDataExtents; i < MaxActiveDataExtents; i++ {
		if off := last.ActiveExtents[i]; off != metablock.NullOffset {
			offset := Offset(off)
			extentIdx := m.static.ExtentIndex(offset)
			e, ok := m.entries[extentIdx]
			if !ok {
				e = newEntry(extentIdx, offset, m.static.BlocksPerExtent(), StateReconstructing)
				m.entries[extentIdx] = e
				m.reconstructed = append(m.reconstructed, e)
				m.metrics.IncDataExtents(1)
			}
			e.state = StateActive
			m.removeFromReconstructed(e)
			m.activeExtents[i] = e
			m.blocksInActiveExtent[i] = int(last.BlocksInActiveExtent[i])
		}
	}

	// Everything reconstruction found live blocks in, but that isn't
	// one of the active extents, becomes old.
	for _, e := range m.reconstructed {
		invariant(e.state == StateReconstructing, "blockmgr: leftover reconstructed entry in state %s", e.state)
		e.state = StateOld
		m.pq.push(e)
		m.oldTotalBlocks += m.static.BlocksPerExtent()
		m.oldGarbageBlocks += e.garbageCount()
	}
	m.reconstructed = nil
	m.syncGCStatsMetrics()

	m.state = stateReady
	m.gc.step = gcStepReady
}

func (m *Manager) removeFromReconstructed(target *entry) {
	out := m.reconstructed[:0]
	for _, e := range m.reconstructed {
		if e != target {
			out = append(out, e)
		}
	}
	m.reconstructed = out
}

// PrepareMetablock snapshots the active-extent table for the owning
// serializer to persist. Allowed in ready and shutting_down.
func (m *Manager) PrepareMetablock() metablock.Block {
	invariant(m.state == stateReady || m.state == stateShuttingDown,
		"blockmgr: PrepareMetablock called outside ready/shutting_down")

	mb := metablock.Empty()
	for i := 0; i < MaxActiveDataExtents; i++ {
		if e := m.activeExtents[i]; e != nil {
			mb.ActiveExtents[i] = int64(e.offset)
			mb.BlocksInActiveExtent[i] = uint32(m.blocksInActiveExtent[i])
		}
	}
	return mb
}

// Shutdown begins graceful drain. If the GC state machine is
// currently parked at gc_ready, shutdown completes synchronously and
// Shutdown returns true. Otherwise cb is stored and invoked by the GC
// state machine the next time it returns to gc_ready; Shutdown
// returns false.
func (m *Manager) Shutdown(cb func()) bool {
	invariant(m.state == stateReady, "blockmgr: Shutdown called outside state_ready")
	m.state = stateShuttingDown

	if m.gc.step != gcStepReady {
		m.shutdownCallback = cb
		return false
	}
	m.shutdownCallback = nil
	m.actuallyShutdown()
	if cb != nil {
		cb()
	}
	return true
}

func (m *Manager) actuallyShutdown() {
	invariant(m.state == stateShuttingDown, "blockmgr: actuallyShutdown called outside shutting_down")
	m.state = stateShutDown

	invariant(len(m.reconstructed) == 0, "blockmgr: reconstructed entries remain at shutdown")

	for i := 0; i < m.static.NumActiveDataExtents; i++ {
		m.activeExtents[i] = nil
	}
	for e := m.young.popHead(); e != nil; e = m.young.popHead() {
		_ = e
	}
	for !m.pq.empty() {
		m.pq.pop()
	}
}

// DisableGC pauses the GC state machine. If it is currently parked at
// gc_ready or gc_reconstruct, cb is invoked synchronously and
// DisableGC returns true. Otherwise cb is stored and invoked when the
// state machine next reaches gc_ready; DisableGC returns false. The
// callback is always called, eventually.
func (m *Manager) DisableGC(cb func()) bool {
	m.shouldBeStopped = true

	if m.gc.step == gcStepReady || m.gc.step == gcStepReconstruct {
		if cb != nil {
			cb()
		}
		return true
	}
	m.gcDisableCallback = cb
	return false
}

// EnableGC clears the should-be-stopped flag. It does not itself
// re-arm GC; the next allocation that trips WantToStartGCing does.
func (m *Manager) EnableGC() {
	m.shouldBeStopped = false
}
