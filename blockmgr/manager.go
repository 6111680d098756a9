// Package blockmgr is the data block manager of a log-structured
// on-disk object store: it owns a single data file divided into
// fixed-size extents subdivided into fixed-size blocks, and serves
// three duties for an enclosing serializer: allocate offsets for
// writes, retrieve blocks for reads (optionally amplified by
// read-ahead), and reclaim space by garbage-collecting extents whose
// live-block fraction has fallen below policy thresholds.
package blockmgr

import (
	"github.com/sirupsen/logrus"

	"github.com/revolution1/datablock/dbmetrics"
)

// managerState is the manager's own top-level lifecycle, distinct
// from an individual extent entry's State.
type managerState int

const (
	stateUnstarted managerState = iota
	stateReady
	stateShuttingDown
	stateShutDown
)

// Manager is the data block manager. It is not safe for concurrent
// use: it follows a single-threaded cooperative scheduling model,
// with concurrency expressed entirely through the ordering of I/O
// completion callbacks.
type Manager struct {
	static  StaticConfig
	dynamic DynamicConfig

	extents    ExtentManager
	file       File
	serializer Serializer
	metrics    *dbmetrics.Counters
	log        *logrus.Entry

	// clockMicros is injectable so tests can control young-queue aging
	// deterministically.
	clockMicros func() int64

	state managerState

	entries       map[int64]*entry
	reconstructed []*entry

	activeExtents        [MaxActiveDataExtents]*entry
	blocksInActiveExtent [MaxActiveDataExtents]int
	nextActiveExtent     int

	young *youngQueue
	pq    *gcPriorityQueue

	oldTotalBlocks   int
	oldGarbageBlocks int

	gc gcState

	shouldBeStopped   bool
	gcDisableCallback func()
	shutdownCallback  func()
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithClock overrides the manager's microsecond clock, for
// deterministic tests of young-queue aging: promotion fires on size
// threshold even if no timestamp has expired, and vice versa.
func WithClock(clock func() int64) Option {
	return func(m *Manager) { m.clockMicros = clock }
}

// WithLogger overrides the manager's logger. Defaults to
// logrus.StandardLogger().
func WithLogger(log *logrus.Logger) Option {
	return func(m *Manager) { m.log = log.WithField("component", "blockmgr") }
}

// WithMetrics attaches a counters collaborator. Defaults to a
// no-op-sink Counters so callers that don't care about metrics don't
// have to construct one.
func WithMetrics(m2 *dbmetrics.Counters) Option {
	return func(m *Manager) { m.metrics = m2 }
}

// New creates a Manager in its unstarted state. static must be
// internally consistent (ExtentSize a positive multiple of
// BlockSize, NumActiveDataExtents <= MaxActiveDataExtents); dynamic
// must satisfy DynamicConfig.Validate.
func New(static StaticConfig, dynamic DynamicConfig, extents ExtentManager, file File, opts ...Option) (*Manager, error) {
	invariant(static.ExtentSize > 0 && static.BlockSize > 0 && static.ExtentSize%static.BlockSize == 0,
		"blockmgr: extent_size must be a positive multiple of block_size")
	invariant(static.NumActiveDataExtents > 0 && static.NumActiveDataExtents <= MaxActiveDataExtents,
		"blockmgr: num_active_data_extents out of range")
	if err := dynamic.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		static:      static,
		dynamic:     dynamic,
		extents:     extents,
		file:        file,
		metrics:     dbmetrics.New(nil),
		log:         logrus.StandardLogger().WithField("component", "blockmgr"),
		clockMicros: defaultClockMicros,
		state:       stateUnstarted,
		entries:     make(map[int64]*entry),
		young:       newYoungQueue(),
		pq:          newGCPriorityQueue(),
	}
	m.gc.step = gcStepReconstruct
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// AttachSerializer binds the owning serializer collaborator. Must be
// called before StartExisting. Separated from New because the
// serializer harness in package serializer typically needs a
// reference to the Manager to construct itself, creating the usual
// two-phase wiring dance for a mutually-referential pair.
func (m *Manager) AttachSerializer(s Serializer) {
	m.serializer = s
}

// StaticConfig returns the manager's immutable configuration.
func (m *Manager) StaticConfig() StaticConfig { return m.static }

func defaultClockMicros() int64 {
	return nowMicros()
}
