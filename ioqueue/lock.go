package ioqueue

import (
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// ErrLocked means another process already holds the data file's
// exclusive lock.
var ErrLocked = errors.New("ioqueue: data file is locked by another process")

// flock acquires a non-blocking exclusive advisory lock on f.
func flock(f *File) error {
	err := syscall.Flock(int(f.f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok && (errno == syscall.EWOULDBLOCK || errno == syscall.EAGAIN) {
		return ErrLocked
	}
	return errors.Wrap(err, "ioqueue: flock")
}

// funlock releases the advisory lock taken by flock.
func funlock(f *File) error {
	return syscall.Flock(int(f.f.Fd()), syscall.LOCK_UN)
}

// waitFlock retries flock until it succeeds or timeout elapses (0 means
// wait indefinitely). Two datablockd processes pointed at the same data
// file would otherwise both believe they are the sole writer and
// silently corrupt the extent table between them.
func waitFlock(f *File, timeout time.Duration) error {
	deadline := time.Time{}
	for {
		err := flock(f)
		if !errors.Is(err, ErrLocked) {
			return err
		}
		if deadline.IsZero() {
			deadline = time.Now().Add(timeout)
		} else if timeout > 0 && time.Now().After(deadline) {
			return errors.Wrap(ErrLocked, "ioqueue: timed out waiting for lock")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
