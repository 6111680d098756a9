package metablock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyHasEveryActiveExtentSlotUnused(t *testing.T) {
	b := Empty()
	for i, off := range b.ActiveExtents {
		require.Equal(t, NullOffset, off, "slot %d", i)
	}
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	b := Empty()
	b.ActiveExtents[0] = 16 * 1024 * 1024
	b.BlocksInActiveExtent[0] = 42
	b.ActiveExtents[3] = 3 * 16 * 1024 * 1024
	b.BlocksInActiveExtent[3] = 7

	buf := make([]byte, EncodedSize())
	require.NoError(t, Encode(b, buf))

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestEncodeShortBuffer(t *testing.T) {
	buf := make([]byte, EncodedSize()-1)
	require.ErrorIs(t, Encode(Empty(), buf), ErrShortBuffer)
}

func TestDecodeShortBuffer(t *testing.T) {
	buf := make([]byte, EncodedSize()-1)
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeBadMagic(t *testing.T) {
	buf := make([]byte, EncodedSize())
	require.NoError(t, Encode(Empty(), buf))
	buf[0] ^= 0xFF
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeChecksumMismatch(t *testing.T) {
	buf := make([]byte, EncodedSize())
	require.NoError(t, Encode(Empty(), buf))
	buf[EncodedSize()-1] ^= 0xFF
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrChecksum)
}
