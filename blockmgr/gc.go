package blockmgr

import "github.com/sirupsen/logrus"

// gcStep is the GC state machine's current phase.
type gcStep int

const (
	gcStepReconstruct gcStep = iota
	gcStepReady
	gcStepReadyLockAvailable
	gcStepRead
	gcStepReadLockAvailable
	gcStepWrite
)

func (s gcStep) String() string {
	switch s {
	case gcStepReconstruct:
		return "reconstruct"
	case gcStepReady:
		return "ready"
	case gcStepReadyLockAvailable:
		return "ready_lock_available"
	case gcStepRead:
		return "read"
	case gcStepReadLockAvailable:
		return "read_lock_available"
	case gcStepWrite:
		return "write"
	default:
		return "unknown"
	}
}

// gcState is the GC state machine's mutable working set: which
// extent it is currently rewriting, how many of that extent's reads
// are still outstanding, and the scratch buffers it reads into and
// writes out of.
type gcState struct {
	step         gcStep
	currentEntry *entry
	refcount     int
	scratch      []byte // extent_size bytes, lazily sized to static.ExtentSize
	writes       []GCWrite

	// accountChosen/lastChoseHigh track chooseGCAccount's prior verdict
	// so a flip can be logged as an oscillation.
	accountChosen bool
	lastChoseHigh bool
}

// GarbageRatio is old_garbage_blocks / (old_total_blocks +
// held_free_extents * blocks_per_extent), or 0 when old_total_blocks
// is zero: there being no old extents at all is not the same as
// being entirely garbage.
func (m *Manager) GarbageRatio() float64 {
	if m.oldTotalBlocks == 0 {
		return 0
	}
	denom := m.oldTotalBlocks + m.extents.HeldFreeExtents()*m.static.BlocksPerExtent()
	return float64(m.oldGarbageBlocks) / float64(denom)
}

// shouldKeepGCing ignores any particular entry and judges purely on
// the aggregate garbage ratio.
func (m *Manager) shouldKeepGCing() bool {
	return !m.shouldBeStopped && m.GarbageRatio() > m.dynamic.GCLowRatio
}

// WantToStartGCing reports whether the garbage ratio has crossed the
// high threshold, i.e. whether a caller should invoke StartGC.
func (m *Manager) WantToStartGCing() bool {
	return !m.shouldBeStopped && m.GarbageRatio() > m.dynamic.GCHighRatio
}

// chooseGCAccount returns the high-priority account once the garbage
// ratio has overshot gc_high_ratio by more than 2%, else the nice
// account. Oscillation between the two across successive calls is
// acceptable, but logged: it signals the ratio is hovering right at
// the hysteresis line rather than settling.
func (m *Manager) chooseGCAccount() Account {
	chooseHigh := m.GarbageRatio() > m.dynamic.GCHighRatio*gcIOAccountHysteresis

	if m.gc.accountChosen && chooseHigh != m.gc.lastChoseHigh {
		m.log.WithFields(logrus.Fields{
			"from": accountLabel(m.gc.lastChoseHigh),
			"to":   accountLabel(chooseHigh),
		}).Warn("blockmgr: gc io account oscillation")
	}
	m.gc.accountChosen = true
	m.gc.lastChoseHigh = chooseHigh

	if chooseHigh {
		return m.serializer.HighAccount()
	}
	return m.serializer.NiceAccount()
}

func accountLabel(high bool) string {
	if high {
		return "high"
	}
	return "nice"
}

func (m *Manager) syncGCStatsMetrics() {
	m.metrics.SetOldTotalBlocks(int64(m.oldTotalBlocks))
	m.metrics.SetOldGarbageBlocks(int64(m.oldGarbageBlocks))
}

// StartGC kicks the state machine if it is currently idle at
// gc_ready.
func (m *Manager) StartGC() {
	if m.gc.step == gcStepReady {
		m.runGC()
	}
}

// OnGCWriteDone resumes the state machine after the serializer's
// WriteGCs completes asynchronously.
func (m *Manager) OnGCWriteDone() {
	m.runGC()
}

// enterReady transitions the state machine to gc_ready and fires
// every pending disable/shutdown callback waiting on it, regardless
// of which path led back to ready. A pending shutdown makes it report
// true so callers stop driving the loop instead of looking for
// another GC round to start.
func (m *Manager) enterReady() (shutdown bool) {
	m.gc.step = gcStepReady
	m.log.WithField("gc_step", m.gc.step).Debug("blockmgr: gc idle")

	if m.gcDisableCallback != nil {
		cb := m.gcDisableCallback
		m.gcDisableCallback = nil
		cb()
	}
	if m.state == stateShuttingDown {
		m.actuallyShutdown()
		if m.shutdownCallback != nil {
			cb := m.shutdownCallback
			m.shutdownCallback = nil
			cb()
		}
		return true
	}
	return false
}

// OnLockAvailable resumes the state machine after a requested main-
// mutex acquisition completes asynchronously.
func (m *Manager) OnLockAvailable() {
	invariant(m.gc.step == gcStepReadyLockAvailable || m.gc.step == gcStepReadLockAvailable,
		"blockmgr: OnLockAvailable called in gc step %s", m.gc.step)
	m.runGC()
}

// enterReadLockAvailable starts the transition out of the read phase:
// it moves the step to gc_read_lock_available and requests the main
// mutex. It reports whether the caller should keep driving the state
// machine synchronously (the lock was granted inline) rather than
// suspend until OnLockAvailable resumes it.
func (m *Manager) enterReadLockAvailable() bool {
	m.gc.step = gcStepReadLockAvailable
	m.log.WithField("gc_step", m.gc.step).Debug("blockmgr: gc reads complete, awaiting main mutex")
	return m.serializer.LockMainMutex(m)
}

// releaseGCReadSentinel drops the pin placed on refcount before the
// read batch was issued (see the read-issuing loop in runGC). It
// reports whether every read has now landed and the caller should
// keep driving the machine forward rather than suspend.
func (m *Manager) releaseGCReadSentinel() bool {
	m.gc.refcount--
	if m.gc.refcount > 0 {
		return false
	}
	return m.enterReadLockAvailable()
}

// runGC is the state machine's step function, re-entered after every
// event that might let it make synchronous progress: StartGC,
// OnGCWriteDone, and OnLockAvailable.
func (m *Manager) runGC() {
	for {
		switch m.gc.step {
		case gcStepReady:
			if m.pq.empty() || !m.shouldKeepGCing() {
				return
			}
			m.gc.step = gcStepReadyLockAvailable
			if !m.serializer.LockMainMutex(m) {
				return // resumes later via OnLockAvailable
			}
			// fallthrough to ready_lock_available synchronously

		case gcStepReadyLockAvailable:
			m.serializer.UnlockMainMutex()

			if m.pq.empty() || !m.shouldKeepGCing() {
				m.enterReady()
				return
			}

			m.metrics.IncGCed()

			ratio := m.GarbageRatio()
			victim := m.pq.pop()
			invariant(victim.state == StateOld, "blockmgr: GC victim in state %s, want old", victim.state)
			victim.state = StateInGC
			m.oldGarbageBlocks -= victim.garbageCount()
			m.oldTotalBlocks -= m.static.BlocksPerExtent()
			m.syncGCStatsMetrics()
			m.gc.currentEntry = victim

			if ratio > m.dynamic.GCHighRatio {
				m.log.WithField("garbage_ratio", ratio).Warn("blockmgr: garbage ratio excursion above gc_high_ratio")
			}

			bpe := m.static.BlocksPerExtent()
			if int64(len(m.gc.scratch)) != m.static.ExtentSize {
				m.gc.scratch = make([]byte, m.static.ExtentSize)
			}
			invariant(m.gc.refcount == 0, "blockmgr: GC refcount nonzero entering read phase")
			m.gc.step = gcStepRead
			m.log.WithFields(logrus.Fields{
				"gc_step": m.gc.step,
				"extent":  victim.extentIndex,
				"offset":  int64(victim.offset),
			}).Debug("blockmgr: gc reading victim blocks")

			// refcount is pinned at 1 for the whole loop so a read that
			// completes inline (onGCReadDone fires synchronously, before
			// ReadAsync returns) can never drive it to zero before every
			// read has been issued. The pin is released once below, after
			// the last ReadAsync call returns.
			m.gc.refcount = 1
			issued := 0
			for i := 0; i < bpe; i++ {
				if victim.garbage.Test(uint(i)) {
					continue
				}
				blockOff := victim.offset + Offset(int64(i)*m.static.BlockSize)
				dst := m.gc.scratch[int64(i)*m.static.BlockSize : int64(i+1)*m.static.BlockSize]
				m.gc.refcount++
				issued++
				m.file.ReadAsync(blockOff, m.static.BlockSize, dst, m.chooseGCAccount(), m.onGCReadDone)
			}
			invariant(issued > 0, "blockmgr: GC victim has no live blocks")

			if !m.releaseGCReadSentinel() {
				return // suspend until the remaining reads complete
			}
			continue // every read, synchronous or not, already landed

		case gcStepRead:
			// resumed by onGCReadDone once refcount reaches zero
			return

		case gcStepReadLockAvailable:
			if m.gc.currentEntry == nil {
				// cascaded to free while we were reading
				m.serializer.UnlockMainMutex()
				if m.enterReady() {
					return
				}
				continue
			}

			victim := m.gc.currentEntry
			bpe := m.static.BlocksPerExtent()
			m.gc.writes = m.gc.writes[:0]
			for i := 0; i < bpe; i++ {
				// re-check: a concurrent write may have overtaken us
				if victim.garbage.Test(uint(i)) {
					continue
				}
				block := m.gc.scratch[int64(i)*m.static.BlockSize : int64(i+1)*m.static.BlockSize]
				hdr := GetBlockHeader(block)
				invariant(hdr.BlockID != NullBlockID, "blockmgr: GC rewrite of block with null id")
				m.gc.writes = append(m.gc.writes, GCWrite{BlockID: hdr.BlockID, TransactionID: hdr.TransactionID, Payload: block[BlockHeaderSize:]})
			}

			m.gc.step = gcStepWrite
			m.log.WithFields(logrus.Fields{"gc_step": m.gc.step, "blocks": len(m.gc.writes)}).Debug("blockmgr: gc rewriting live blocks")
			done := m.serializer.WriteGCs(m.gc.writes, m.chooseGCAccount(), m.OnGCWriteDone)
			if !done {
				return // suspend until WriteGCs calls OnGCWriteDone
			}
			// synchronous completion: fall through to write

		case gcStepWrite:
			m.promoteYoung() // prevents GC-treadmill starvation

			invariant(m.gc.currentEntry == nil, "blockmgr: GC victim still has live blocks after rewrite")
			invariant(m.gc.refcount == 0, "blockmgr: GC refcount nonzero after write phase")

			if m.enterReady() {
				return
			}
			continue // might want to start another GC round

		case gcStepReconstruct:
			invariant(false, "blockmgr: runGC invoked during reconstruct")
		}
	}
}

// onGCReadDone is the completion callback for every read issued while
// entering gc_read; each completion decrements refcount, and the last
// one to arrive advances the state machine into gc_read_lock_available.
func (m *Manager) onGCReadDone(err error) {
	if err != nil {
		// I/O errors are not recovered here; they propagate to the
		// serializer the same way a write error would.
		panic(err)
	}
	m.gc.refcount--
	if m.gc.refcount > 0 {
		return
	}
	if m.enterReadLockAvailable() {
		m.runGC()
	}
	// else resumes later via OnLockAvailable
}
