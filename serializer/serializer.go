// Package serializer is the minimal owning collaborator blockmgr.Manager
// expects: it holds the main mutex, the LBA index, the memory pool, and
// the read-ahead subscriber list, and it is the only caller that ever
// writes lbaindex.Index entries. It wires package blockmgr to the
// concrete ioqueue.File and lbaindex.Index implementations, the same
// way db.go's Open wires its own page cache and file handle together.
//
// blockmgr.Manager is not safe for concurrent use: every call into it
// must come from one goroutine. ioqueue.File's completion callbacks run
// on a per-account worker goroutine instead, so Serializer funnels every
// one of them through a single event queue (events) that the embedder
// drains with Run on whichever goroutine owns the Manager.
package serializer

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/revolution1/datablock/blockmgr"
	"github.com/revolution1/datablock/ioqueue"
	"github.com/revolution1/datablock/lbaindex"
)

// ReadAheadSub receives a copy of every block a read-ahead window
// pulled in that was still live per the LBA index. Ownership of Buf
// passes to the subscriber, which must call Release when done with it.
type ReadAheadSub struct {
	BlockID uint32
	Buf     []byte
	Recency uint64
	Release func()
}

// Serializer wires a blockmgr.Manager to a concrete data file, LBA
// index, and buffer pool, and implements blockmgr.Serializer on their
// behalf.
type Serializer struct {
	mgr *blockmgr.Manager

	file *fileAdapter
	lba  *lbaindex.Index

	pool sync.Pool

	mu mainMutex

	readAheadEnable bool
	subs            []chan ReadAheadSub

	recency uint64 // monotonic, bumped on every GC rewrite's LBA install

	events chan func()

	log *log.Entry
}

// Config bundles the knobs New needs beyond the collaborators
// themselves.
type Config struct {
	BlockSize       int64
	ReadAheadEnable bool
	// EventQueueDepth sizes the buffer between I/O-account goroutines
	// and the Manager-owning goroutine that drains Run. Defaults to 256.
	EventQueueDepth int
}

// New builds a Serializer bound to file and lba, with a buffer pool
// sized to cfg.BlockSize. The returned Serializer must be attached to
// a *blockmgr.Manager with AttachManager (and the manager, in turn,
// with blockmgr.Manager.AttachSerializer) before any operation runs,
// and Run must be draining events on the Manager's goroutine before any
// asynchronous I/O is submitted.
func New(file *ioqueue.File, lba *lbaindex.Index, cfg Config) *Serializer {
	depth := cfg.EventQueueDepth
	if depth <= 0 {
		depth = 256
	}
	s := &Serializer{
		lba:             lba,
		readAheadEnable: cfg.ReadAheadEnable,
		events:          make(chan func(), depth),
		log:             log.StandardLogger().WithField("component", "serializer"),
	}
	s.file = &fileAdapter{f: file, post: s.post}
	s.pool.New = func() interface{} { return make([]byte, cfg.BlockSize) }
	return s
}

// File returns the blockmgr.File adapter wrapping the underlying
// ioqueue.File, for passing to blockmgr.New.
func (s *Serializer) File() blockmgr.File { return s.file }

// AttachManager records the manager this Serializer is the collaborator
// for, so WriteGCs, LockMainMutex and completion callbacks can resume it.
func (s *Serializer) AttachManager(m *blockmgr.Manager) { s.mgr = m }

// Run drains posted completion callbacks until stop is closed. Every
// call into the attached Manager happens from inside this loop; the
// caller must run it on the one goroutine it intends to own the
// Manager, and must not call into the Manager from anywhere else.
func (s *Serializer) Run(stop <-chan struct{}) {
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-stop:
			return
		}
	}
}

func (s *Serializer) post(fn func()) {
	s.events <- fn
}

// SetReadAheadEnable flips whether Read amplifies into a window. Safe
// to change between operations; blockmgr consults it on every Read.
func (s *Serializer) SetReadAheadEnable(enable bool) { s.readAheadEnable = enable }

// ShouldPerformReadAhead implements blockmgr.Serializer.
func (s *Serializer) ShouldPerformReadAhead() bool { return s.readAheadEnable }

// LBAIndex implements blockmgr.Serializer, adapting the concrete
// *lbaindex.Index to blockmgr's own LBAIndex interface.
func (s *Serializer) LBAIndex() blockmgr.LBAIndex { return blockmgr.AdaptLBAIndex(s.lba) }

// NiceAccount implements blockmgr.Serializer.
func (s *Serializer) NiceAccount() blockmgr.Account { return s.file.f.NiceAccount() }

// HighAccount implements blockmgr.Serializer.
func (s *Serializer) HighAccount() blockmgr.Account { return s.file.f.HighAccount() }

// Malloc implements blockmgr.Serializer, handing out a pool-backed
// block-sized buffer.
func (s *Serializer) Malloc() []byte {
	return s.pool.Get().([]byte)
}

// Free implements blockmgr.Serializer, returning buf to the pool.
func (s *Serializer) Free(buf []byte) {
	s.pool.Put(buf)
}

// LockMainMutex implements blockmgr.Serializer.
func (s *Serializer) LockMainMutex(waiter interface{}) bool {
	return s.mu.lock(func() { s.mgr.OnLockAvailable() })
}

// UnlockMainMutex implements blockmgr.Serializer.
func (s *Serializer) UnlockMainMutex() {
	s.mu.unlock()
}

// Subscribe registers a channel to receive read-ahead promotions.
// Calling the returned stop function unregisters it.
func (s *Serializer) Subscribe(ch chan ReadAheadSub) (stop func()) {
	s.subs = append(s.subs, ch)
	return func() {
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// OfferBufToReadAheadCallbacks implements blockmgr.Serializer: it
// offers buf to each subscriber's channel in turn without blocking,
// stopping at the first one that accepts it, so buf has exactly one
// owner. If no subscriber accepts it the caller is told to free it
// itself.
func (s *Serializer) OfferBufToReadAheadCallbacks(blockID uint32, buf []byte, recency uint64) bool {
	if len(s.subs) == 0 {
		return false
	}
	for _, ch := range s.subs {
		sub := ReadAheadSub{BlockID: blockID, Buf: buf, Recency: recency, Release: func() { s.Free(buf) }}
		select {
		case ch <- sub:
			return true
		default:
		}
	}
	return false
}

// WriteGCs implements blockmgr.Serializer. The manager calls this with
// the main mutex already held (acquired via LockMainMutex on the
// caller's behalf before the rewrite batch was built); WriteGCs installs
// every block's new offset while still holding it, drops the mutex, and
// only marks every block's previous offset garbage once every rewrite
// has landed, preserving the guarantee that a GC read of a live block
// never races its own invalidation invisibly.
func (s *Serializer) WriteGCs(batch []blockmgr.GCWrite, account blockmgr.Account, done func()) bool {
	if len(batch) == 0 {
		s.mu.unlock()
		return true
	}
	s.log.WithField("blocks", len(batch)).Debug("serializer: rewriting gc batch")

	oldOffsets := make([]blockmgr.Offset, len(batch))
	for i, w := range batch {
		flagged, ok := s.lba.GetBlockOffset(w.BlockID)
		if !ok {
			panic(errors.Errorf("serializer: WriteGCs rewriting block %d with no LBA entry", w.BlockID))
		}
		oldOffsets[i] = blockmgr.Offset(flagged.Value)
	}

	remaining := len(batch)
	var firstErr error

	for i, w := range batch {
		buf := s.Malloc()
		blockmgr.PutBlockHeader(buf, blockmgr.BlockHeader{BlockID: w.BlockID, TransactionID: w.TransactionID})
		copy(buf[blockmgr.BlockHeaderSize:], w.Payload)

		newOffset, err := s.mgr.Write(buf, w.BlockID, blockmgr.NullTransactionID, account, func(err error) {
			s.Free(buf)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			remaining--
			if remaining > 0 {
				return
			}
			if firstErr != nil {
				panic(firstErr)
			}
			for _, oldOff := range oldOffsets {
				s.mgr.MarkGarbage(oldOff)
			}
			done()
		})
		if err != nil {
			s.Free(buf)
			panic(errors.Wrap(err, "serializer: WriteGCs allocate offset"))
		}

		_ = i
		s.recency++
		s.lba.Put(w.BlockID, int64(newOffset), s.recency)
	}

	s.mu.unlock()
	return false
}
