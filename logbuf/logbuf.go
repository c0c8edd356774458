// Package logbuf implements the in-memory log buffer of spec.md §4.4: a
// doubled region with a two-half switch, holding the LSN cursor, the
// first-unwritten cursor, and per-block framing state. Callers are
// expected to hold the owning log mutex around every method (spec.md §5:
// the buffer is written only by the log-mutex holder or, for the
// inactive half, by the write-lock holder).
package logbuf

import (
	"github.com/ferrodb/redolog/block"
	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/util"
)

// blockPayloadEnd is the offset within a 512-byte block where payload
// data ends and the trailer begins (spec.md §3: "trailer offset").
const blockPayloadEnd = common.BlockSize - block.TrailerSize

// Buffer is the doubled log buffer. Each half is halfSize bytes,
// addressed as a sequence of 512-byte blocks; block headers live inline
// at each block's first 12 bytes, trailers are computed later by the
// writer and are never touched by Append.
type Buffer struct {
	halfSize   uint64
	regions    [2][]byte
	active     int
	bufFree    uint64 // offset within the active half of the first free byte
	bufNextToWrite uint64

	lsn common.LSN // next byte to be assigned (see redolog.Cursors)
}

// New allocates a fresh doubled buffer whose halves are each halfSize
// bytes. halfSize must be a multiple of common.BlockSize.
func New(halfSize uint64, startLSN common.LSN) *Buffer {
	if halfSize%common.BlockSize != 0 {
		panic("logbuf: halfSize must be a multiple of common.BlockSize")
	}
	b := &Buffer{
		halfSize: halfSize,
		lsn:      startLSN,
	}
	b.regions[0] = make([]byte, halfSize)
	b.regions[1] = make([]byte, halfSize)
	return b
}

// HalfSize returns the capacity of one half.
func (b *Buffer) HalfSize() uint64 { return b.halfSize }

// LSN returns the next byte to be assigned.
func (b *Buffer) LSN() common.LSN { return b.lsn }

// BufFree returns the active half's write cursor.
func (b *Buffer) BufFree() uint64 { return b.bufFree }

// BufNextToWrite returns the active half's first byte not yet handed to
// the writer.
func (b *Buffer) BufNextToWrite() uint64 { return b.bufNextToWrite }

// active half convenience accessor.
func (b *Buffer) activeRegion() []byte { return b.regions[b.active] }

func blockHeader(region []byte, blockStart uint64) []byte {
	return region[blockStart : blockStart+block.HeaderSize]
}

// initBlockHeader writes a fresh header for the block starting at
// blockStart, derived from the LSN of its first byte.
func (b *Buffer) initBlockHeader(blockStart uint64, startLSN common.LSN, flush bool, checkpointNo uint64) {
	h := block.Header{
		BlockNumber:       block.Number(startLSN),
		FlushBit:          flush,
		DataLength:        uint16(block.HeaderSize),
		FirstRecGroup:     0,
		CheckpointNoLow32: uint32(checkpointNo),
	}
	block.EncodeHeader(blockHeader(b.activeRegion(), blockStart), h)
}

func (b *Buffer) setDataLength(blockStart uint64, dataLen uint16) {
	hdr := blockHeader(b.activeRegion(), blockStart)
	binPut16(hdr[4:6], dataLen)
}

func binPut16(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

// Append copies data into the active half starting at bufFree, crossing
// block boundaries as needed: each time a block fills, its data length
// is finalized, its checkpoint-number field is stamped with
// checkpointNo, and a fresh header is written for the next block. It
// returns the LSN of the first byte written.
//
// checkpointNo is the caller's current next_checkpoint_no (spec.md
// §4.4); it is stamped into every block header this call fills or
// starts.
func (b *Buffer) Append(data []byte, checkpointNo uint64) common.LSN {
	startLSN := b.lsn
	region := b.activeRegion()

	if b.bufFree == 0 || b.bufFree%common.BlockSize == 0 {
		b.initBlockHeader(b.bufFree, b.lsn, false, checkpointNo)
		b.bufFree += uint64(block.HeaderSize)
		b.lsn += common.LSN(block.HeaderSize)
	}

	for len(data) > 0 {
		blockStart := util.AlignDown(b.bufFree, common.BlockSize)
		offsetInBlock := b.bufFree - blockStart
		spaceLeft := blockPayloadEnd - offsetInBlock
		n := uint64(len(data))
		if n > spaceLeft {
			n = spaceLeft
		}
		copy(region[b.bufFree:b.bufFree+n], data[:n])
		b.bufFree += n
		b.lsn += common.LSN(n)
		data = data[n:]
		b.setDataLength(blockStart, uint16(b.bufFree-blockStart))

		if b.bufFree-blockStart == blockPayloadEnd {
			b.setDataLength(blockStart, uint16(blockPayloadEnd))
			hdr := block.DecodeHeader(blockHeader(region, blockStart))
			hdr.CheckpointNoLow32 = uint32(checkpointNo)
			block.EncodeHeader(blockHeader(region, blockStart), hdr)
			b.bufFree += uint64(block.TrailerSize)
			b.lsn += common.LSN(block.TrailerSize)
			if len(data) > 0 {
				b.initBlockHeader(b.bufFree, b.lsn, false, checkpointNo)
				b.bufFree += uint64(block.HeaderSize)
				b.lsn += common.LSN(block.HeaderSize)
			}
		}
	}
	return startLSN
}

// Close implements spec.md §4.4's log_close: if the current block's
// first_rec_group is still 0, it is set to the block's current data
// length, marking a mini-transaction boundary recovery can anchor on.
func (b *Buffer) Close() {
	if b.bufFree == 0 {
		return
	}
	blockStart := util.AlignDown(b.bufFree-1, common.BlockSize)
	region := b.activeRegion()
	hdr := block.DecodeHeader(blockHeader(region, blockStart))
	if hdr.FirstRecGroup == 0 {
		hdr.FirstRecGroup = uint16(b.bufFree - blockStart)
		block.EncodeHeader(blockHeader(region, blockStart), hdr)
	}
}

// WriteRegion computes the [areaStart, areaEnd) byte range of the
// active half that the writer path should hand to I/O, per spec.md
// §4.5: areaStart is bufNextToWrite rounded down to a block boundary,
// areaEnd is bufFree rounded up to one. It also marks the flush bit on
// the region's first block and stamps the last block's checkpoint
// number.
func (b *Buffer) WriteRegion(checkpointNo uint64) (areaStart, areaEnd uint64, data []byte) {
	region := b.activeRegion()
	areaStart = util.AlignDown(b.bufNextToWrite, common.BlockSize)
	areaEnd = util.AlignUp(b.bufFree, common.BlockSize)
	if areaEnd > areaStart {
		hdr := block.DecodeHeader(blockHeader(region, areaStart))
		hdr.FlushBit = true
		block.EncodeHeader(blockHeader(region, areaStart), hdr)

		lastBlockStart := areaEnd - common.BlockSize
		hdr = block.DecodeHeader(blockHeader(region, lastBlockStart))
		hdr.CheckpointNoLow32 = uint32(checkpointNo)
		block.EncodeHeader(blockHeader(region, lastBlockStart), hdr)
	}
	return areaStart, areaEnd, region[areaStart:areaEnd]
}

// AdvanceNextToWrite records that the writer has taken ownership of
// bytes up to newNextToWrite.
func (b *Buffer) AdvanceNextToWrite(newNextToWrite uint64) {
	b.bufNextToWrite = newNextToWrite
}

// Switch toggles the active half, copying the last partially-filled
// 512-byte block from the old active half to the start of the new one
// so an in-progress block survives the switch, per spec.md §4.4.
func (b *Buffer) Switch() {
	oldRegion := b.activeRegion()
	oldBufFree := b.bufFree
	blockStart := util.AlignDown(oldBufFree, common.BlockSize)
	tail := oldRegion[blockStart:oldBufFree]

	b.active = 1 - b.active
	newRegion := b.activeRegion()
	copy(newRegion[:len(tail)], tail)

	b.bufFree = oldBufFree % common.BlockSize
	b.bufNextToWrite = b.bufFree
}

// Extend replaces both halves with fresh regions of newHalfSize bytes,
// copying the first bufFree bytes of the current active half into the
// new active half at offset 0 (so any in-progress block is preserved),
// per spec.md §4.4's buffer-extension rule. Callers must re-check
// whether extension is still needed after acquiring the log mutex, to
// avoid a duplicate extension race.
func (b *Buffer) Extend(newHalfSize uint64) {
	if newHalfSize%common.BlockSize != 0 {
		panic("logbuf: newHalfSize must be a multiple of common.BlockSize")
	}
	oldRegion := b.activeRegion()
	oldBufFree := b.bufFree

	var newRegions [2][]byte
	newRegions[0] = make([]byte, newHalfSize)
	newRegions[1] = make([]byte, newHalfSize)
	copy(newRegions[0][:oldBufFree], oldRegion[:oldBufFree])

	b.regions = newRegions
	b.halfSize = newHalfSize
	b.active = 0
	b.bufFree = oldBufFree
	b.bufNextToWrite = util.Min(b.bufNextToWrite, oldBufFree)
}

// NewHalfSizeFor computes the page-rounded half size spec.md §4.4
// prescribes when a single mini-transaction's projected size exceeds
// half of the current buffer: round_up(required, pageSize). It does not
// double required; the buffer holds two halves of the returned size.
func NewHalfSizeFor(required, pageSize uint64) uint64 {
	return util.AlignUp(required, pageSize)
}
