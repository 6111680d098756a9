// Package dbmetrics exposes the data block manager's performance
// counters as an injected collaborator rather than process globals,
// per the manager's design notes ("Global counters... Expose them as
// injected handles so multiple managers coexist in one process and
// tests can assert on them").
package dbmetrics

import (
	"sync/atomic"

	"github.com/armon/go-metrics"
)

// Counters holds the manager's five named event counters, plus
// the two garbage-accounting sums its consistency invariant requires
// to stay in sync with the priority queue. Each is backed by an
// atomic int64 for direct assertions in tests,
// and mirrored into a github.com/armon/go-metrics sink so a process
// embedding the manager can export them the same way it exports
// everything else.
type Counters struct {
	sink metrics.MetricSink

	dataExtents          int64
	dataExtentsAllocated int64
	dataExtentsReclaimed int64
	dataExtentsGCed      int64
	dataBlocksWritten    int64
	oldGarbageBlocks     int64
	oldTotalBlocks       int64
}

// New creates a Counters backed by sink. Pass metrics.NewInmemSink for
// tests and tooling, or a real sink (statsd, prometheus push, ...) in
// production; the manager only ever calls the increment/set methods
// below and never touches the sink directly.
func New(sink metrics.MetricSink) *Counters {
	return &Counters{sink: sink}
}

func (c *Counters) emit(name string, v int64) {
	if c.sink != nil {
		c.sink.SetGauge([]string{name}, float32(v))
	}
}

func (c *Counters) IncDataExtents(delta int64) {
	v := atomic.AddInt64(&c.dataExtents, delta)
	c.emit("data_extents", v)
}

func (c *Counters) IncAllocated() {
	v := atomic.AddInt64(&c.dataExtentsAllocated, 1)
	c.emit("data_extents_allocated", v)
}

func (c *Counters) IncReclaimed() {
	v := atomic.AddInt64(&c.dataExtentsReclaimed, 1)
	c.emit("data_extents_reclaimed", v)
}

func (c *Counters) IncGCed() {
	v := atomic.AddInt64(&c.dataExtentsGCed, 1)
	c.emit("data_extents_gced", v)
}

func (c *Counters) IncBlocksWritten() {
	v := atomic.AddInt64(&c.dataBlocksWritten, 1)
	c.emit("data_blocks_written", v)
}

func (c *Counters) SetOldGarbageBlocks(v int64) {
	atomic.StoreInt64(&c.oldGarbageBlocks, v)
	c.emit("old_garbage_blocks", v)
}

func (c *Counters) SetOldTotalBlocks(v int64) {
	atomic.StoreInt64(&c.oldTotalBlocks, v)
	c.emit("old_total_blocks", v)
}

func (c *Counters) Snapshot() (dataExtents, allocated, reclaimed, gced, blocksWritten, oldGarbage, oldTotal int64) {
	return atomic.LoadInt64(&c.dataExtents),
		atomic.LoadInt64(&c.dataExtentsAllocated),
		atomic.LoadInt64(&c.dataExtentsReclaimed),
		atomic.LoadInt64(&c.dataExtentsGCed),
		atomic.LoadInt64(&c.dataBlocksWritten),
		atomic.LoadInt64(&c.oldGarbageBlocks),
		atomic.LoadInt64(&c.oldTotalBlocks)
}
