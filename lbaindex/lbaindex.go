// Package lbaindex is a concrete logical-block-address table playing
// the "LBA index" role the data block manager treats as an external
// collaborator. The manager only ever reads it; the owning serializer
// is the sole writer, under its main mutex.
package lbaindex

// Entry is the value side of the block_id -> {offset, delete, recency}
// mapping.
type Entry struct {
	Offset   int64
	IsDelete bool
	Recency  uint64
}

// Index is a single-threaded, in-memory LBA table. It is not safe for
// concurrent use without external synchronization, the same
// single-threaded-cooperative discipline the data block manager
// itself assumes.
type Index struct {
	entries map[uint32]Entry
}

// New creates an empty index.
func New() *Index {
	return &Index{entries: make(map[uint32]Entry)}
}

// GetBlockOffset returns the current {offset, delete-flag} for
// blockID, and whether an entry exists at all.
func (idx *Index) GetBlockOffset(blockID uint32) (FlaggedOffset, bool) {
	e, ok := idx.entries[blockID]
	if !ok {
		return FlaggedOffset{}, false
	}
	return FlaggedOffset{Value: e.Offset, IsDelete: e.IsDelete}, true
}

// GetBlockRecency returns the recency timestamp last recorded for
// blockID.
func (idx *Index) GetBlockRecency(blockID uint32) uint64 {
	return idx.entries[blockID].Recency
}

// FlaggedOffset mirrors blockmgr.FlaggedOffset without creating an
// import cycle; blockmgr's own collaborator interface is defined in
// terms of its own type, and serializer adapts between the two.
type FlaggedOffset struct {
	Value    int64
	IsDelete bool
}

// Put installs or overwrites the LBA entry for blockID. Production
// callers are expected to be the owning serializer, under its main
// mutex, immediately before calling Manager.MarkGarbage on the
// block's previous offset: installing the new mapping strictly before
// freeing the old one is what keeps a concurrent read from ever
// landing on a block that has already been invalidated.
func (idx *Index) Put(blockID uint32, offset int64, recency uint64) {
	idx.entries[blockID] = Entry{Offset: offset, Recency: recency}
}

// Delete marks blockID as deleted at the given recency without
// removing its offset record, so a stale read-ahead liveness check
// still finds it and correctly treats it as dead.
func (idx *Index) Delete(blockID uint32, recency uint64) {
	e := idx.entries[blockID]
	e.IsDelete = true
	e.Recency = recency
	idx.entries[blockID] = e
}

// Len reports how many block ids the index currently tracks,
// including deleted ones.
func (idx *Index) Len() int { return len(idx.entries) }
