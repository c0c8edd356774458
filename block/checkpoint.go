package block

import (
	"encoding/binary"
	"fmt"

	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/crc32c"
)

// FileCheckpointType is the FILE_CHECKPOINT record's type tag, with the
// low nibble encoding the record's body length (19-1-4=14 bytes between
// the type byte and the trailing CRC).
const FileCheckpointType byte = 0xC0 | 14

// FileIDType is the FILE_ID record's type tag; the low nibble is filled
// in per-record with the encoded body length when it fits in 4 bits.
const FileIDType byte = 0xD0

// seqBitMask is the MSB of the 48-bit packed field in a checkpoint
// record: bit 47 holds the sequence bit.
const seqBitMask = uint64(1) << 47

// offsetMask keeps the packed field's low 47 bits, the data-file offset.
const offsetMask = seqBitMask - 1

// CheckpointRecord is the decoded form of the 19-byte FILE_CHECKPOINT
// record appended to the main log file (spec.md §4.3, §6).
type CheckpointRecord struct {
	LSN         common.LSN
	SequenceBit bool
	Offset      uint64 // 47 bits; the data-file offset of the live region's start
}

// EncodeCheckpointRecord returns the 19-byte wire form of r.
func EncodeCheckpointRecord(r CheckpointRecord) []byte {
	if r.Offset > offsetMask {
		panic("block: checkpoint offset exceeds 47 bits")
	}
	buf := make([]byte, common.CheckpointRecordSize)
	buf[0] = FileCheckpointType
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.LSN))
	packed := r.Offset
	if r.SequenceBit {
		packed |= seqBitMask
	}
	// 48-bit big-endian field into 6 bytes: encode as the low 6 bytes of
	// a uint64, shifted left by 16 bits for binary.BigEndian.PutUint64.
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], packed<<16)
	copy(buf[9:15], tmp[:6])
	sum := crc32c.Checksum(buf[:15])
	binary.BigEndian.PutUint32(buf[15:19], sum)
	return buf
}

// ErrCheckpointCRC is returned by DecodeCheckpointRecord when the
// trailing CRC-32C does not match the record's first 15 bytes.
var ErrCheckpointCRC = fmt.Errorf("block: checkpoint record CRC mismatch")

// ErrCheckpointType is returned by DecodeCheckpointRecord when the type
// byte is not FileCheckpointType.
type ErrCheckpointType struct {
	Got byte
}

func (e *ErrCheckpointType) Error() string {
	return fmt.Sprintf("block: expected FILE_CHECKPOINT type byte, got 0x%02x", e.Got)
}

// DecodeCheckpointRecord parses a 19-byte checkpoint record, validating
// its type byte and CRC.
func DecodeCheckpointRecord(buf []byte) (CheckpointRecord, error) {
	if len(buf) != common.CheckpointRecordSize {
		return CheckpointRecord{}, fmt.Errorf("block: checkpoint record must be %d bytes, got %d", common.CheckpointRecordSize, len(buf))
	}
	if buf[0] != FileCheckpointType {
		return CheckpointRecord{}, &ErrCheckpointType{Got: buf[0]}
	}
	want := binary.BigEndian.Uint32(buf[15:19])
	if !crc32c.Verify(buf[:15], want) {
		return CheckpointRecord{}, ErrCheckpointCRC
	}
	var tmp [8]byte
	copy(tmp[:6], buf[9:15])
	packed := binary.BigEndian.Uint64(tmp[:]) >> 16
	return CheckpointRecord{
		LSN:         common.LSN(binary.BigEndian.Uint64(buf[1:9])),
		SequenceBit: packed&seqBitMask != 0,
		Offset:      packed & offsetMask,
	}, nil
}

// FileIDRecord is the decoded form of a FILE_ID record: a varint
// tablespace id followed by a varint-or-nibble-encoded path length and
// the path bytes (spec.md §6).
type FileIDRecord struct {
	TablespaceID uint64
	Path         string
}

// EncodeFileIDRecord returns the wire form of r: type byte, varint
// tablespace id, the path's length (inline in the low nibble when it
// fits, else a separate varint), path bytes, then a 4-byte CRC-32C over
// everything before it.
func EncodeFileIDRecord(r FileIDRecord) []byte {
	body := make([]byte, 0, 16+len(r.Path))
	body = binary.AppendUvarint(body, r.TablespaceID)
	pathLen := uint64(len(r.Path))
	var typeByte byte
	if pathLen < 0x0F {
		typeByte = FileIDType | byte(pathLen)
	} else {
		typeByte = FileIDType | 0x0F
		body = binary.AppendUvarint(body, pathLen)
	}
	body = append(body, r.Path...)
	rec := make([]byte, 0, 1+len(body)+4)
	rec = append(rec, typeByte)
	rec = append(rec, body...)
	sum := crc32c.Checksum(rec)
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], sum)
	rec = append(rec, sumBuf[:]...)
	return rec
}

// DecodeFileIDRecord parses a FILE_ID record previously produced by
// EncodeFileIDRecord, returning the record and its total length in bytes.
func DecodeFileIDRecord(buf []byte) (FileIDRecord, int, error) {
	if len(buf) < 1+4 {
		return FileIDRecord{}, 0, fmt.Errorf("block: file-id record too short")
	}
	typeByte := buf[0]
	if typeByte&0xF0 != FileIDType {
		return FileIDRecord{}, 0, fmt.Errorf("block: not a FILE_ID record (type 0x%02x)", typeByte)
	}
	lowNibble := typeByte & 0x0F
	rest := buf[1:]
	tsID, n := binary.Uvarint(rest)
	if n <= 0 {
		return FileIDRecord{}, 0, fmt.Errorf("block: malformed tablespace id varint")
	}
	rest = rest[n:]
	var pathLen uint64
	if lowNibble < 0x0F {
		pathLen = uint64(lowNibble)
	} else {
		var n2 int
		pathLen, n2 = binary.Uvarint(rest)
		if n2 <= 0 {
			return FileIDRecord{}, 0, fmt.Errorf("block: malformed path-length varint")
		}
		rest = rest[n2:]
	}
	if uint64(len(rest)) < pathLen+4 {
		return FileIDRecord{}, 0, fmt.Errorf("block: file-id record truncated")
	}
	path := string(rest[:pathLen])
	total := len(buf) - len(rest) + int(pathLen) + 4
	recBytes := buf[:total]
	want := binary.BigEndian.Uint32(recBytes[total-4:])
	if !crc32c.Verify(recBytes[:total-4], want) {
		return FileIDRecord{}, 0, fmt.Errorf("block: file-id record CRC mismatch")
	}
	return FileIDRecord{TablespaceID: tsID, Path: path}, total, nil
}
