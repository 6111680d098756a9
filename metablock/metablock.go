// Package metablock implements the crash-consistent header handoff
// between the data block manager and its owning serializer: which
// extents are active and how full each one is. Crash-recovery
// metablock parsing itself is an external collaborator's job; this
// package is the manager-contributed half of that contract, the
// on-disk layout the manager hands over and reads back on restart.
package metablock

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
)

// MaxActiveDataExtents mirrors blockmgr.MaxActiveDataExtents. Kept as
// an independent constant so this package has no dependency on
// blockmgr: the metablock format must be decodable before a Manager
// exists to hand it to.
const MaxActiveDataExtents = 16

// NullOffset is this package's own sentinel for "slot unused",
// matching blockmgr.NullOffset's value (-1) so the two convert
// trivially.
const NullOffset int64 = -1

const magic uint32 = 0x444D4244 // "DBMD" little-endian

// encodedSize: magic(4) + checksum(4) + 16*(offset(8)+count(4))
const encodedSize = 4 + 4 + MaxActiveDataExtents*(8+4)

var (
	// ErrBadMagic means the bytes don't look like a metablock at all.
	ErrBadMagic = errors.New("metablock: bad magic")
	// ErrChecksum means the bytes look like a metablock but are
	// corrupt.
	ErrChecksum = errors.New("metablock: checksum mismatch")
	// ErrShortBuffer means the caller's buffer was too small to hold
	// an encoded metablock.
	ErrShortBuffer = errors.New("metablock: buffer too short")
)

// Block carries the active-extent table the manager hands to, and
// receives back from, the owning serializer across restarts.
type Block struct {
	ActiveExtents        [MaxActiveDataExtents]int64
	BlocksInActiveExtent [MaxActiveDataExtents]uint32
}

// Empty returns a Block with every slot unused, the state a brand new
// data file starts from.
func Empty() Block {
	var b Block
	for i := range b.ActiveExtents {
		b.ActiveExtents[i] = NullOffset
	}
	return b
}

// EncodedSize is the fixed number of bytes Encode writes.
func EncodedSize() int { return encodedSize }

// Encode serializes b into buf, which must be at least EncodedSize()
// bytes, prefixed with a magic word and a CRC32 checksum of
// everything that follows it.
func Encode(b Block, buf []byte) error {
	if len(buf) < encodedSize {
		return ErrShortBuffer
	}
	body := buf[8:encodedSize]
	off := 0
	for i := 0; i < MaxActiveDataExtents; i++ {
		binary.LittleEndian.PutUint64(body[off:off+8], uint64(b.ActiveExtents[i]))
		binary.LittleEndian.PutUint32(body[off+8:off+12], b.BlocksInActiveExtent[i])
		off += 12
	}
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(body))
	return nil
}

// Decode parses a Block out of buf, validating the magic word and
// checksum written by Encode.
func Decode(buf []byte) (Block, error) {
	var b Block
	if len(buf) < encodedSize {
		return b, ErrShortBuffer
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return b, ErrBadMagic
	}
	wantSum := binary.LittleEndian.Uint32(buf[4:8])
	body := buf[8:encodedSize]
	if crc32.ChecksumIEEE(body) != wantSum {
		return b, ErrChecksum
	}
	off := 0
	for i := 0; i < MaxActiveDataExtents; i++ {
		b.ActiveExtents[i] = int64(binary.LittleEndian.Uint64(body[off : off+8]))
		b.BlocksInActiveExtent[i] = binary.LittleEndian.Uint32(body[off+8 : off+12])
		off += 12
	}
	return b, nil
}
