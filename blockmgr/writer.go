package blockmgr

// Write allocates a fresh offset, stamps or verifies the block's
// in-front header, and submits an asynchronous write.
//
// buf must be exactly BlockHeaderSize+payload bytes long: the caller
// reserves the header word in front of its own payload rather than
// the manager reaching backwards past a separately-allocated buffer,
// one allocation with two views over it, instead of pointer
// arithmetic across two.
//
// If txnID is NullTransactionID, buf's header is assumed already
// stamped by a GC rewrite and must already carry blockID; otherwise
// the header is overwritten with {blockID, txnID}.
func (m *Manager) Write(buf []byte, blockID uint32, txnID uint64, account Account, cb func(error)) (Offset, error) {
	invariant(m.state == stateReady || (m.state == stateShuttingDown && m.gc.step == gcStepWrite),
		"blockmgr: Write called outside ready, or outside a GC rewrite during shutdown")
	invariant(int64(len(buf)) == m.static.BlockSize,
		"blockmgr: Write buffer must be exactly block_size bytes (header included)")

	offset, err := m.NewOffset()
	if err != nil {
		return 0, err
	}

	m.metrics.IncBlocksWritten()

	if txnID != NullTransactionID {
		PutBlockHeader(buf, BlockHeader{BlockID: blockID, TransactionID: txnID})
	} else {
		hdr := GetBlockHeader(buf)
		invariant(hdr.BlockID == blockID, "blockmgr: GC rewrite header block_id %d != expected %d", hdr.BlockID, blockID)
	}

	m.file.WriteAsync(offset, m.static.BlockSize, buf, account, cb)
	return offset, nil
}
