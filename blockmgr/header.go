package blockmgr

import "encoding/binary"

// BlockHeader is the small fixed record the manager prepends to every
// block. It is not a checksum and it is not compressed; both are
// explicitly out of scope.
type BlockHeader struct {
	BlockID       uint32
	TransactionID uint64
}

// PutBlockHeader writes h into the first BlockHeaderSize bytes of buf.
func PutBlockHeader(buf []byte, h BlockHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.BlockID)
	binary.LittleEndian.PutUint64(buf[4:12], h.TransactionID)
}

// GetBlockHeader reads a BlockHeader from the first BlockHeaderSize
// bytes of buf.
func GetBlockHeader(buf []byte) BlockHeader {
	return BlockHeader{
		BlockID:       binary.LittleEndian.Uint32(buf[0:4]),
		TransactionID: binary.LittleEndian.Uint64(buf[4:12]),
	}
}
