// Package ioqueue is a concrete async file handle playing the "file"
// role the data block manager treats as an external collaborator:
// per-account queueing with completion callbacks, one goroutine per
// priority account (nice, high) so high-priority traffic is never
// stuck behind low-priority traffic on the same lane.
package ioqueue

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// DeviceBlockSize is the alignment required of every submitted
// offset and length, matching typical direct-I/O sector alignment.
const DeviceBlockSize = 4096

var (
	// ErrMisaligned is returned (via the completion callback) when an
	// offset or length does not respect DeviceBlockSize alignment.
	ErrMisaligned = errors.New("ioqueue: offset/length must be DeviceBlockSize-aligned")
)

type job struct {
	run func()
}

// Account is one priority lane: its own goroutine draining its own
// buffered job channel, so high-priority GC traffic is never stuck
// behind nice-priority GC traffic and vice versa.
type Account struct {
	jobs chan job
	done chan struct{}
}

func newAccount(queueDepth int) *Account {
	a := &Account{
		jobs: make(chan job, queueDepth),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Account) loop() {
	for {
		select {
		case j := <-a.jobs:
			j.run()
		case <-a.done:
			return
		}
	}
}

func (a *Account) submit(run func()) {
	a.jobs <- job{run: run}
}

func (a *Account) close() {
	close(a.done)
}

// File wraps an *os.File with two priority accounts. Completion
// callbacks run on the account's goroutine; callers that need the
// single-threaded-cooperative discipline the manager itself requires
// are expected to funnel these callbacks back onto their own event
// loop (see package serializer) rather than act on them directly from
// here.
type File struct {
	f    *os.File
	nice *Account
	high *Account
}

// Open opens path for read/write, creating it if absent, takes an
// exclusive advisory lock on it (waiting indefinitely; OpenTimeout
// bounds the wait), and starts the two priority accounts. The lock is
// released by Close.
func Open(path string, perm os.FileMode, queueDepth int) (*File, error) {
	return OpenTimeout(path, perm, queueDepth, 0)
}

// OpenTimeout is Open with an explicit bound on how long to wait for
// the exclusive lock before giving up.
func OpenTimeout(path string, perm os.FileMode, queueDepth int, lockTimeout time.Duration) (*File, error) {
	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return nil, errors.Wrap(err, "ioqueue: open")
	}
	f := &File{
		f:    osf,
		nice: newAccount(queueDepth),
		high: newAccount(queueDepth),
	}
	if err := waitFlock(f, lockTimeout); err != nil {
		f.nice.close()
		f.high.close()
		_ = osf.Close()
		return nil, err
	}
	return f, nil
}

// NiceAccount returns the low-priority I/O lane.
func (f *File) NiceAccount() *Account { return f.nice }

// HighAccount returns the high-priority I/O lane.
func (f *File) HighAccount() *Account { return f.high }

func alignmentError(offset, length int64) error {
	if offset%DeviceBlockSize != 0 || length%DeviceBlockSize != 0 {
		return ErrMisaligned
	}
	return nil
}

// ReadAsync submits a read of length bytes at offset into buf on the
// given account, invoking cb on that account's goroutine when done.
// The part of the range that lies past the current end of the file
// (allocated but never written) reads back as zeros, not as an error.
func (f *File) ReadAsync(offset, length int64, buf []byte, account *Account, cb func(error)) {
	if err := alignmentError(offset, length); err != nil {
		account.submit(func() { cb(err) })
		return
	}
	account.submit(func() {
		n, err := f.f.ReadAt(buf[:length], offset)
		if err == io.EOF {
			clear(buf[n:length])
			err = nil
		}
		if err != nil {
			err = errors.Wrap(err, "ioqueue: read")
		}
		cb(err)
	})
}

// WriteAsync submits a write of length bytes from buf at offset on
// the given account, invoking cb on that account's goroutine when
// done.
func (f *File) WriteAsync(offset, length int64, buf []byte, account *Account, cb func(error)) {
	if err := alignmentError(offset, length); err != nil {
		account.submit(func() { cb(err) })
		return
	}
	account.submit(func() {
		_, err := f.f.WriteAt(buf[:length], offset)
		if err != nil {
			err = errors.Wrap(err, "ioqueue: write")
		}
		cb(err)
	})
}

// Close stops both accounts, releases the exclusive lock taken by
// Open, and closes the underlying file.
func (f *File) Close() error {
	f.nice.close()
	f.high.close()
	if err := funlock(f); err != nil {
		return errors.Wrap(err, "ioqueue: funlock")
	}
	return f.f.Close()
}

// Sync flushes the underlying file to stable storage.
func (f *File) Sync() error {
	return f.f.Sync()
}
