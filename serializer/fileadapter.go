package serializer

import (
	"github.com/revolution1/datablock/blockmgr"
	"github.com/revolution1/datablock/ioqueue"
)

// fileAdapter bridges ioqueue.File's plain int64/*ioqueue.Account
// signature to the blockmgr.File interface's Offset/Account(interface{})
// signature, and posts every completion onto the owning Serializer's
// event queue so it lands back on the Manager's goroutine instead of
// running on whichever account worker goroutine finished the I/O.
type fileAdapter struct {
	f    *ioqueue.File
	post func(func())
}

func (a *fileAdapter) ReadAsync(offset blockmgr.Offset, length int64, buf []byte, account blockmgr.Account, cb func(error)) {
	acc, _ := account.(*ioqueue.Account)
	if acc == nil {
		acc = a.f.NiceAccount()
	}
	a.f.ReadAsync(int64(offset), length, buf, acc, func(err error) {
		a.post(func() { cb(err) })
	})
}

func (a *fileAdapter) WriteAsync(offset blockmgr.Offset, length int64, buf []byte, account blockmgr.Account, cb func(error)) {
	acc, _ := account.(*ioqueue.Account)
	if acc == nil {
		acc = a.f.NiceAccount()
	}
	a.f.WriteAsync(int64(offset), length, buf, acc, func(err error) {
		a.post(func() { cb(err) })
	})
}
