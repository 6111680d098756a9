package blockmgr

// Offset is a block-aligned byte offset into the data file.
type Offset int64

// NullOffset is the sentinel distinguishing "unset" from offset 0.
const NullOffset Offset = -1

// BlockHeaderSize is the width, in bytes, of the header the manager
// reserves immediately in front of every block's payload.
const BlockHeaderSize = 4 + 8 // block_id uint32 + transaction_id uint64

// NullBlockID marks a block slot as not live.
const NullBlockID uint32 = 0

// NullTransactionID tells Write to leave an already-stamped header
// alone (the GC rewrite path passes a buffer whose header it wrote
// itself and only wants the new offset for).
const NullTransactionID uint64 = 0
