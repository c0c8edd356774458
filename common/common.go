// Package common holds the handful of constants and small types shared by
// every layer of the redo log: block geometry, the LSN type, and page/block
// numbering.
package common

const (
	// BlockSize is the size in bytes of one on-disk log block, including
	// its header and trailer.
	BlockSize = 512

	// FileHeaderSize is the size in bytes of the main log file's header,
	// which occupies the first block of ib_logfile0.
	FileHeaderSize = BlockSize

	// CheckpointRecordSize is the size in bytes of one FILE_CHECKPOINT
	// record appended to the main log file.
	CheckpointRecordSize = 19

	// BlockNumberMask keeps block numbers within the 30-bit range the
	// header's flush-bit-tagged uint32 leaves available.
	BlockNumberMask = uint32(1)<<30 - 1

	// FlushBit is the MSB of the block-number header field, set on the
	// first block of a flush write batch.
	FlushBit = uint32(1) << 31
)

// LSN is a Log Sequence Number: a byte offset into the conceptually
// unbounded redo log stream. The zero value means "no LSN"; the first
// assigned LSN is 1.
type LSN uint64

// NoLSN is the sentinel meaning "LSN not yet assigned".
const NoLSN LSN = 0

// Bnum identifies a page in the owning buffer pool's address space. It has
// nothing to do with log block numbering (see block.Number).
type Bnum = uint64
