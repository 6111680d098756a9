package blockmgr

// NewOffset hands out the next block offset to write to, opening a
// fresh active extent if the current slot is empty and deactivating
// it (handing it to the young queue) once it fills.
func (m *Manager) NewOffset() (Offset, error) {
	s := m.nextActiveExtent

	if m.activeExtents[s] == nil {
		off, err := m.extents.Allocate()
		if err != nil {
			return 0, err
		}
		extentIdx := m.static.ExtentIndex(off)
		e := newEntry(extentIdx, off, m.static.BlocksPerExtent(), StateActive)
		m.entries[extentIdx] = e
		m.activeExtents[s] = e
		m.blocksInActiveExtent[s] = 0
		m.metrics.IncAllocated()
		m.metrics.IncDataExtents(1)
	}

	active := m.activeExtents[s]
	invariant(active.state == StateActive, "blockmgr: active slot %d holds entry in state %s", s, active.state)
	invariant(active.garbageCount() > 0, "blockmgr: active slot %d has no room left", s)

	blockIdx := m.blocksInActiveExtent[s]
	invariant(blockIdx < m.static.BlocksPerExtent(), "blockmgr: active slot %d overfull", s)

	offset := active.offset + Offset(int64(blockIdx)*m.static.BlockSize)

	invariant(active.garbage.Test(uint(blockIdx)), "blockmgr: offset %d already allocated", offset)
	active.garbage.Clear(uint(blockIdx))

	m.blocksInActiveExtent[s]++

	if m.blocksInActiveExtent[s] == m.static.BlocksPerExtent() {
		invariant(active.garbageCount() < m.static.BlocksPerExtent(), "blockmgr: extent filled with nothing live")
		active.state = StateYoung
		active.timestampUs = m.clockMicros()
		m.young.pushBack(active)
		m.promoteYoung()
		m.activeExtents[s] = nil
	}

	// Advance to the next slot. Slots at or beyond NumActiveDataExtents
	// are only visited again if they still hold a leftover entry from a
	// run with a larger configuration.
	for {
		m.nextActiveExtent = (m.nextActiveExtent + 1) % MaxActiveDataExtents
		if m.nextActiveExtent < m.static.NumActiveDataExtents || m.activeExtents[m.nextActiveExtent] != nil {
			break
		}
	}

	return offset, nil
}

// promoteYoung pops entries off the front of the young queue and
// pushes them into the GC priority queue while either the queue is
// oversized or its oldest member has aged past the time limit.
// Run after every allocation and every GC write completion.
func (m *Manager) promoteYoung() {
	for m.young.size() > GCYoungExtentMaxSize {
		m.promoteOneYoungEntry()
	}

	now := m.clockMicros()
	for {
		head := m.young.head()
		if head == nil || now-head.timestampUs <= GCYoungExtentTimeLimitMicros {
			break
		}
		m.promoteOneYoungEntry()
	}
}

func (m *Manager) promoteOneYoungEntry() {
	e := m.young.popHead()
	invariant(e != nil, "blockmgr: promoteOneYoungEntry called on empty young queue")
	invariant(e.state == StateYoung, "blockmgr: young-queue entry in state %s", e.state)

	e.state = StateOld
	m.pq.push(e)

	m.oldTotalBlocks += m.static.BlocksPerExtent()
	m.oldGarbageBlocks += e.garbageCount()
	m.syncGCStatsMetrics()
}
