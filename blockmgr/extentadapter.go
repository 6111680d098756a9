package blockmgr

import "github.com/revolution1/datablock/lbaindex"

// rawExtentManager is the subset of extentmgr.Manager's API the
// adapter below wraps. Declared locally (rather than importing
// extentmgr) because its methods already speak in plain int64, so any
// allocator shaped like this, not just *extentmgr.Manager, can be
// adapted without this package depending on that one.
type rawExtentManager interface {
	ExtentSize() int64
	Allocate() (int64, error)
	Release(offset int64)
	HeldFreeExtents() int
}

// AdaptExtentManager wraps a raw int64-offset allocator (such as
// *extentmgr.Manager) as the ExtentManager collaborator interface,
// which speaks in the manager's own Offset type.
func AdaptExtentManager(raw rawExtentManager) ExtentManager {
	return &extentManagerAdapter{raw: raw}
}

type extentManagerAdapter struct {
	raw rawExtentManager
}

func (a *extentManagerAdapter) ExtentSize() int64 { return a.raw.ExtentSize() }

func (a *extentManagerAdapter) Allocate() (Offset, error) {
	off, err := a.raw.Allocate()
	return Offset(off), err
}

func (a *extentManagerAdapter) Release(offset Offset) {
	a.raw.Release(int64(offset))
}

func (a *extentManagerAdapter) HeldFreeExtents() int {
	return a.raw.HeldFreeExtents()
}

// AdaptLBAIndex wraps *lbaindex.Index as the LBAIndex collaborator
// interface. Unlike the extent manager adapter above, this one
// imports the concrete package directly: lbaindex.FlaggedOffset is a
// defined struct type, so a structurally-identical local interface
// would not be satisfied by *lbaindex.Index's methods.
func AdaptLBAIndex(raw *lbaindex.Index) LBAIndex {
	return &lbaIndexAdapter{raw: raw}
}

type lbaIndexAdapter struct {
	raw *lbaindex.Index
}

func (a *lbaIndexAdapter) GetBlockOffset(blockID uint32) (FlaggedOffset, bool) {
	raw, ok := a.raw.GetBlockOffset(blockID)
	if !ok {
		return FlaggedOffset{}, false
	}
	return FlaggedOffset{Value: Offset(raw.Value), IsDelete: raw.IsDelete}, true
}

func (a *lbaIndexAdapter) GetBlockRecency(blockID uint32) uint64 {
	return a.raw.GetBlockRecency(blockID)
}
