package blockmgr

// Read retrieves the block at offset into buf (which must be exactly
// BlockSize bytes, header included). If the serializer has read-ahead
// enabled, it amplifies into an extent-aligned window and promotes
// any other live neighbor it finds into the serializer's read-ahead
// subscribers.
func (m *Manager) Read(offset Offset, buf []byte, account Account, cb func(error)) {
	invariant(m.state == stateReady, "blockmgr: Read called outside state_ready")
	invariant(int64(len(buf)) == m.static.BlockSize, "blockmgr: Read buffer must be exactly block_size bytes")

	if !m.serializer.ShouldPerformReadAhead() {
		m.file.ReadAsync(offset, m.static.BlockSize, buf, account, cb)
		return
	}

	m.startReadAhead(offset, buf, account, cb)
}

// readAheadWindow computes the [base, base+size) window a read-ahead
// request pulls in for an access at offset: the extent containing
// offset, divided into chunks of size W, selecting the chunk
// containing offset.
func (m *Manager) readAheadWindow(offset Offset) (base Offset, size int64) {
	extentStart := Offset(m.static.ExtentIndex(offset) * m.static.ExtentSize)
	w := m.static.ExtentSize
	if maxW := int64(MaxReadAheadBlocks) * m.static.BlockSize; maxW < w {
		w = maxW
	}
	chunks := int64(offset-extentStart) / w
	base = extentStart + Offset(chunks*w)
	return base, w
}

func (m *Manager) startReadAhead(offset Offset, bufOut []byte, account Account, cb func(error)) {
	base, size := m.readAheadWindow(offset)
	invariant(base <= offset && offset < base+Offset(size), "blockmgr: read-ahead window does not contain requested offset")
	invariant(int64(offset-base)%m.static.BlockSize == 0, "blockmgr: read-ahead offset misaligned within window")

	scratch := make([]byte, size)
	m.file.ReadAsync(base, size, scratch, account, func(err error) {
		if err != nil {
			cb(err)
			return
		}
		m.finishReadAhead(base, offset, scratch, bufOut)
		cb(nil)
	})
}

func (m *Manager) finishReadAhead(base, requested Offset, scratch, bufOut []byte) {
	blocksInWindow := int64(len(scratch)) / m.static.BlockSize
	for k := int64(0); k < blocksInWindow; k++ {
		blockOffset := base + Offset(k*m.static.BlockSize)
		block := scratch[k*m.static.BlockSize : (k+1)*m.static.BlockSize]

		if blockOffset == requested {
			copy(bufOut, block)
			continue
		}

		m.maybePromoteReadAheadNeighbor(blockOffset, block)
	}
}

// maybePromoteReadAheadNeighbor inspects one neighboring block pulled
// in by read-ahead and, if it is still live at this offset per the
// LBA index, offers a copy to the serializer's read-ahead
// subscribers.
func (m *Manager) maybePromoteReadAheadNeighbor(blockOffset Offset, block []byte) {
	hdr := GetBlockHeader(block)
	if hdr.BlockID == NullBlockID {
		return
	}

	lba := m.serializer.LBAIndex()
	flagged, ok := lba.GetBlockOffset(hdr.BlockID)
	if !ok || flagged.IsDelete || flagged.Value != blockOffset {
		return
	}

	recency := lba.GetBlockRecency(hdr.BlockID)

	buf := m.serializer.Malloc()
	copy(buf, block)
	if !m.serializer.OfferBufToReadAheadCallbacks(hdr.BlockID, buf, recency) {
		m.serializer.Free(buf)
	}
}
