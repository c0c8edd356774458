// Package block implements the byte-exact framing of spec.md §4.3 and §6:
// the 512-byte log block (header, payload, CRC-32C trailer), the main
// file's header, and the checkpoint and file-id records appended to it.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/crc32c"
)

// HeaderSize is the size in bytes of a block's header.
const HeaderSize = 12

// TrailerSize is the size in bytes of a block's CRC-32C trailer.
const TrailerSize = 4

// KeyVersionTagSize is the width of the encrypted variant's key-version
// tag, stored immediately before the trailer.
const KeyVersionTagSize = 4

// PlainPayloadSize is the payload capacity of an unencrypted block.
const PlainPayloadSize = common.BlockSize - HeaderSize - TrailerSize

// EncryptedPayloadSize is the payload capacity of an encrypted block,
// reduced by the key-version tag.
const EncryptedPayloadSize = PlainPayloadSize - KeyVersionTagSize

// PayloadSize returns the usable payload capacity of one block, 496 bytes
// normally or 492 when encryption is enabled.
func PayloadSize(encrypted bool) int {
	if encrypted {
		return EncryptedPayloadSize
	}
	return PlainPayloadSize
}

// Header is the decoded form of a block's 12-byte header.
type Header struct {
	// BlockNumber is 1+((lsn>>9) mod 2^30); see Number.
	BlockNumber uint32
	// FlushBit marks the first block of a flush write batch.
	FlushBit bool
	// DataLength is the number of bytes in use counted from the start of
	// the block, header included; a full block has BlockSize-TrailerSize.
	DataLength uint16
	// FirstRecGroup is the byte offset (from the start of the block) of
	// the first record group starting in this block, or 0 if none does.
	FirstRecGroup uint16
	// CheckpointNoLow32 is the low 32 bits of next_checkpoint_no at the
	// time this block was last stamped.
	CheckpointNoLow32 uint32
}

// Number computes the block number containing the byte at lsn, per
// spec.md §4.3: 1 + ((lsn >> 9) mod (1 << 30)).
func Number(lsn common.LSN) uint32 {
	return 1 + uint32((uint64(lsn)>>9)&uint64(common.BlockNumberMask))
}

// EncodeHeader writes h into the first HeaderSize bytes of dst.
func EncodeHeader(dst []byte, h Header) {
	if len(dst) < HeaderSize {
		panic("block: dst too small for header")
	}
	bn := h.BlockNumber & common.BlockNumberMask
	if h.FlushBit {
		bn |= common.FlushBit
	}
	binary.BigEndian.PutUint32(dst[0:4], bn)
	binary.BigEndian.PutUint16(dst[4:6], h.DataLength)
	binary.BigEndian.PutUint16(dst[6:8], h.FirstRecGroup)
	binary.BigEndian.PutUint32(dst[8:12], h.CheckpointNoLow32)
}

// DecodeHeader reads a Header from the first HeaderSize bytes of src.
func DecodeHeader(src []byte) Header {
	if len(src) < HeaderSize {
		panic("block: src too small for header")
	}
	raw := binary.BigEndian.Uint32(src[0:4])
	return Header{
		BlockNumber:       raw &^ common.FlushBit,
		FlushBit:          raw&common.FlushBit != 0,
		DataLength:        binary.BigEndian.Uint16(src[4:6]),
		FirstRecGroup:     binary.BigEndian.Uint16(src[6:8]),
		CheckpointNoLow32: binary.BigEndian.Uint32(src[8:12]),
	}
}

// trailerOffset returns the byte offset of a block's CRC trailer.
func trailerOffset() int {
	return common.BlockSize - TrailerSize
}

// EncodeTrailer computes the CRC-32C of blk[0:trailerOffset] and writes it
// into the last TrailerSize bytes of blk. blk must be BlockSize bytes.
func EncodeTrailer(blk []byte) {
	if len(blk) != common.BlockSize {
		panic("block: blk must be BlockSize bytes")
	}
	off := trailerOffset()
	sum := crc32c.Checksum(blk[:off])
	binary.BigEndian.PutUint32(blk[off:], sum)
}

// VerifyTrailer reports whether blk's trailer matches the CRC-32C of its
// preceding bytes.
func VerifyTrailer(blk []byte) bool {
	if len(blk) != common.BlockSize {
		return false
	}
	off := trailerOffset()
	want := binary.BigEndian.Uint32(blk[off:])
	return crc32c.Verify(blk[:off], want)
}

// FormatTag is the canonical physical record-stream format tag stamped
// into the main file's header (spec.md §4.3, resolving the format open
// question per DESIGN.md).
const FormatTag uint32 = 0x50485953

// creatorFieldSize is the width of the NUL-terminated creator string in
// the file header.
const creatorFieldSize = 32

// fileHeaderFixedSize is the portion of the file header preceding the
// optional crypto parameters.
const fileHeaderFixedSize = 4 + 4 + 8 + creatorFieldSize

// sizeReservedFlagsShift is the number of low bits of the packed file-size
// field that must be zero (512-aligned file size); the reserved flags
// occupy the top 17 bits, from bit 47.
const sizeReservedFlagsShift = 9

// FileHeader is the decoded form of ib_logfile0's first 512-byte block.
type FileHeader struct {
	FormatTag        uint32
	EncryptionKeyVer uint32
	FileSize         uint64
	ReservedFlags    uint32
	Creator          string
}

// EncodeFileHeader writes h into a fresh common.FileHeaderSize-byte block.
func EncodeFileHeader(h FileHeader) []byte {
	if h.FileSize&(1<<sizeReservedFlagsShift-1) != 0 {
		panic("block: file size must be 512-aligned")
	}
	buf := make([]byte, common.FileHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.FormatTag)
	binary.BigEndian.PutUint32(buf[4:8], h.EncryptionKeyVer)
	packed := h.FileSize | uint64(h.ReservedFlags)<<47
	binary.BigEndian.PutUint64(buf[8:16], packed)
	n := copy(buf[16:16+creatorFieldSize-1], h.Creator)
	_ = n // remaining bytes stay zero, which terminates the C string
	return buf
}

// DecodeFileHeader reads a FileHeader from the first fileHeaderFixedSize
// bytes of buf. It returns an error if the format tag is not FormatTag.
func DecodeFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) < fileHeaderFixedSize {
		return FileHeader{}, fmt.Errorf("block: file header too short (%d bytes)", len(buf))
	}
	tag := binary.BigEndian.Uint32(buf[0:4])
	if tag != FormatTag {
		return FileHeader{}, &ErrUnsupportedFormat{Tag: tag}
	}
	packed := binary.BigEndian.Uint64(buf[8:16])
	creatorEnd := 16 + creatorFieldSize
	raw := buf[16:creatorEnd]
	nul := len(raw)
	for i, b := range raw {
		if b == 0 {
			nul = i
			break
		}
	}
	return FileHeader{
		FormatTag:        tag,
		EncryptionKeyVer: binary.BigEndian.Uint32(buf[4:8]),
		FileSize:         packed &^ (uint64(1<<17-1) << 47),
		ReservedFlags:    uint32(packed >> 47),
		Creator:          string(raw[:nul]),
	}, nil
}

// ErrUnsupportedFormat is returned when a file header carries a format
// tag this module does not understand, including the legacy in-file
// checkpoint-slot format spec.md §9 leaves as an open question.
type ErrUnsupportedFormat struct {
	Tag uint32
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("block: unsupported file format tag 0x%08x", e.Tag)
}
