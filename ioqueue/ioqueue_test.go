package ioqueue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(path, 0o600, 4)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, DeviceBlockSize)
	for i := range buf {
		buf[i] = byte(i)
	}

	done := make(chan error, 1)
	f.WriteAsync(0, DeviceBlockSize, buf, f.NiceAccount(), func(err error) { done <- err })
	require.NoError(t, <-done)

	readBuf := make([]byte, DeviceBlockSize)
	f.ReadAsync(0, DeviceBlockSize, readBuf, f.NiceAccount(), func(err error) { done <- err })
	require.NoError(t, <-done)
	require.Equal(t, buf, readBuf)
}

func TestMisalignedOffsetFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(path, 0o600, 4)
	require.NoError(t, err)
	defer f.Close()

	done := make(chan error, 1)
	f.ReadAsync(1, DeviceBlockSize, make([]byte, DeviceBlockSize), f.NiceAccount(), func(err error) { done <- err })
	require.ErrorIs(t, <-done, ErrMisaligned)
}

func TestMisalignedLengthFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(path, 0o600, 4)
	require.NoError(t, err)
	defer f.Close()

	done := make(chan error, 1)
	f.WriteAsync(0, DeviceBlockSize-1, make([]byte, DeviceBlockSize), f.NiceAccount(), func(err error) { done <- err })
	require.ErrorIs(t, <-done, ErrMisaligned)
}

func TestOpenFailsWhenAlreadyLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(path, 0o600, 4)
	require.NoError(t, err)
	defer f.Close()

	_, err = OpenTimeout(path, 0o600, 4, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrLocked)
}

func TestOpenSucceedsAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(path, 0o600, 4)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := Open(path, 0o600, 4)
	require.NoError(t, err)
	require.NoError(t, f2.Close())
}

func TestHighAndNiceAccountsAreIndependentLanes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(path, 0o600, 4)
	require.NoError(t, err)
	defer f.Close()

	require.NotSame(t, f.NiceAccount(), f.HighAccount())
}
