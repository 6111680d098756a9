package blockmgr

import "sort"

// fakeFile is an in-memory stand-in for the data file collaborator,
// backed by one contiguous growable buffer so a read-ahead window read
// correctly sees every block a prior write landed within it, not just
// whichever offset happens to match exactly. Every call completes
// synchronously (inline, before ReadAsync or WriteAsync returns) so
// tests can assert on state immediately rather than juggling
// goroutines; the manager's own state machine does not care whether a
// completion is synchronous or not.
type fakeFile struct {
	disk []byte

	// deferReads, when set, makes ReadAsync queue its completion instead
	// of firing it inline, so a test can drive the manager mid-read-
	// phase (e.g. calling Shutdown or DisableGC while GC is suspended
	// waiting on outstanding reads) and then release them with fire.
	deferReads bool
	pending    []func()
}

func newFakeFile() *fakeFile {
	return &fakeFile{}
}

func (f *fakeFile) ensure(end int64) {
	if int64(len(f.disk)) >= end {
		return
	}
	grown := make([]byte, end)
	copy(grown, f.disk)
	f.disk = grown
}

// fire runs every deferred completion queued while deferReads was set,
// in submission order, then clears the queue.
func (f *fakeFile) fire() {
	pending := f.pending
	f.pending = nil
	for _, run := range pending {
		run()
	}
}

func (f *fakeFile) ReadAsync(offset Offset, length int64, buf []byte, account Account, cb func(error)) {
	f.ensure(int64(offset) + length)
	copy(buf, f.disk[offset:int64(offset)+length])
	if f.deferReads {
		f.pending = append(f.pending, func() { cb(nil) })
		return
	}
	cb(nil)
}

func (f *fakeFile) WriteAsync(offset Offset, length int64, buf []byte, account Account, cb func(error)) {
	f.ensure(int64(offset) + length)
	copy(f.disk[offset:int64(offset)+length], buf[:length])
	cb(nil)
}

// fakeSerializer is a synchronous stand-in for the owning serializer.
// It implements the full blockmgr.Serializer contract: a main mutex
// that always grants immediately (nothing in these tests contends for
// it from outside the manager itself), an LBA table, a trivial byte-
// slice pool, and a recording read-ahead subscriber list.
type fakeSerializer struct {
	mgr   *Manager
	lba   map[uint32]FlaggedOffset
	rec   map[uint32]uint64
	nextR uint64

	mutexHeld bool

	readAheadEnable bool
	promoted        []uint32 // block ids offered via OfferBufToReadAheadCallbacks
	acceptReadAhead bool
}

func newFakeSerializer() *fakeSerializer {
	return &fakeSerializer{
		lba:             make(map[uint32]FlaggedOffset),
		rec:             make(map[uint32]uint64),
		acceptReadAhead: true,
	}
}

func (s *fakeSerializer) LockMainMutex(waiter interface{}) bool {
	if s.mutexHeld {
		panic("fakeSerializer: LockMainMutex called while already held")
	}
	s.mutexHeld = true
	return true
}

func (s *fakeSerializer) UnlockMainMutex() {
	if !s.mutexHeld {
		panic("fakeSerializer: UnlockMainMutex called while not held")
	}
	s.mutexHeld = false
}

func (s *fakeSerializer) WriteGCs(batch []GCWrite, account Account, done func()) bool {
	oldOffsets := make([]Offset, 0, len(batch))
	for _, w := range batch {
		old, ok := s.lba[w.BlockID]
		if !ok {
			panic("fakeSerializer: WriteGCs rewriting block with no LBA entry")
		}
		oldOffsets = append(oldOffsets, old.Value)
	}

	for _, w := range batch {
		buf := s.Malloc()
		PutBlockHeader(buf, BlockHeader{BlockID: w.BlockID, TransactionID: w.TransactionID})
		copy(buf[BlockHeaderSize:], w.Payload)
		newOffset, err := s.mgr.Write(buf, w.BlockID, NullTransactionID, nil, func(error) {})
		if err != nil {
			panic(err)
		}
		s.nextR++
		s.lba[w.BlockID] = FlaggedOffset{Value: newOffset}
		s.rec[w.BlockID] = s.nextR
	}

	s.UnlockMainMutex()
	for _, old := range oldOffsets {
		s.mgr.MarkGarbage(old)
	}
	return true
}

func (s *fakeSerializer) Malloc() []byte { return make([]byte, s.mgr.static.BlockSize) }
func (s *fakeSerializer) Free(buf []byte) {}

func (s *fakeSerializer) OfferBufToReadAheadCallbacks(blockID uint32, buf []byte, recency uint64) bool {
	if !s.acceptReadAhead {
		return false
	}
	s.promoted = append(s.promoted, blockID)
	return true
}

func (s *fakeSerializer) ShouldPerformReadAhead() bool { return s.readAheadEnable }

func (s *fakeSerializer) LBAIndex() LBAIndex { return s }

func (s *fakeSerializer) GetBlockOffset(blockID uint32) (FlaggedOffset, bool) {
	v, ok := s.lba[blockID]
	return v, ok
}

func (s *fakeSerializer) GetBlockRecency(blockID uint32) uint64 { return s.rec[blockID] }

func (s *fakeSerializer) NiceAccount() Account { return "nice" }
func (s *fakeSerializer) HighAccount() Account { return "high" }

// put installs a live LBA entry for blockID at offset, as if a prior
// write had already landed and been indexed.
func (s *fakeSerializer) put(blockID uint32, offset Offset) {
	s.nextR++
	s.lba[blockID] = FlaggedOffset{Value: offset}
	s.rec[blockID] = s.nextR
}

func sortedUint32(xs []uint32) []uint32 {
	out := append([]uint32{}, xs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
