package blockmgr

// ExtentManager allocates and releases whole extents from the data
// file's address space: a fixed extent_size, a held_free_extents count
// feeding the garbage-ratio denominator, and allocate/release by whole
// extent.
type ExtentManager interface {
	ExtentSize() int64
	Allocate() (Offset, error)
	Release(Offset)
	HeldFreeExtents() int
}

// FlaggedOffset is an offset tagged with a delete bit.
type FlaggedOffset struct {
	Value    Offset
	IsDelete bool
}

// LBAIndex is the read-only (from the manager's point of view)
// logical-block-address table.
type LBAIndex interface {
	GetBlockOffset(blockID uint32) (FlaggedOffset, bool)
	GetBlockRecency(blockID uint32) uint64
}

// Account is an opaque I/O priority handle.
type Account interface{}

// File is the async I/O submission contract the manager writes and
// reads through. Length must be a multiple of BlockSize and offset
// must be aligned to DeviceBlockSize.
type File interface {
	ReadAsync(offset Offset, length int64, buf []byte, account Account, cb func(error))
	WriteAsync(offset Offset, length int64, buf []byte, account Account, cb func(error))
}

// GCWrite is one block of a GC rewrite batch. TransactionID carries
// the block's transaction id forward from the copy being rewritten:
// the manager reads it out of the victim's header before the payload
// is split off, so the rewritten copy's header is a faithful
// continuation rather than a synthesized one.
type GCWrite struct {
	BlockID       uint32
	TransactionID uint64
	Payload       []byte
}

// Serializer is the owning collaborator: it holds the global write
// mutex and the memory pool, and is the only writer of the LBA index.
type Serializer interface {
	// LockMainMutex requests the main mutex. If it can be granted
	// synchronously it returns true; otherwise the manager's
	// OnLockAvailable will be called later.
	LockMainMutex(waiter interface{}) bool
	UnlockMainMutex()

	// WriteGCs installs each rewrite's new offset in the LBA index
	// under the main mutex, releases the mutex, then calls
	// Manager.MarkGarbage for every rewritten block's prior offset.
	// Returns true if it completed synchronously.
	WriteGCs(batch []GCWrite, account Account, done func()) bool

	Malloc() []byte
	Free(buf []byte)

	OfferBufToReadAheadCallbacks(blockID uint32, buf []byte, recency uint64) bool
	ShouldPerformReadAhead() bool

	LBAIndex() LBAIndex

	NiceAccount() Account
	HighAccount() Account
}
