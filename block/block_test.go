package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrodb/redolog/common"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		BlockNumber:       12345,
		FlushBit:          true,
		DataLength:        400,
		FirstRecGroup:     32,
		CheckpointNoLow32: 7,
	}
	buf := make([]byte, HeaderSize)
	EncodeHeader(buf, h)
	got := DecodeHeader(buf)
	assert.Equal(t, h, got)
}

func TestHeaderFlushBitDoesNotLeakIntoBlockNumber(t *testing.T) {
	h := Header{BlockNumber: common.BlockNumberMask, FlushBit: true}
	buf := make([]byte, HeaderSize)
	EncodeHeader(buf, h)
	got := DecodeHeader(buf)
	assert.Equal(t, common.BlockNumberMask, got.BlockNumber)
	assert.True(t, got.FlushBit)
}

func TestNumberIncrementsEveryBlock(t *testing.T) {
	n0 := Number(0)
	n1 := Number(common.BlockSize)
	assert.Equal(t, n0+1, n1)
}

func TestTrailerRoundTrip(t *testing.T) {
	blk := make([]byte, common.BlockSize)
	for i := range blk[:common.BlockSize-TrailerSize] {
		blk[i] = byte(i)
	}
	EncodeTrailer(blk)
	assert.True(t, VerifyTrailer(blk))
}

func TestTrailerDetectsCorruption(t *testing.T) {
	blk := make([]byte, common.BlockSize)
	EncodeTrailer(blk)
	blk[0] ^= 0xFF
	assert.False(t, VerifyTrailer(blk))
}

func TestPayloadSize(t *testing.T) {
	assert.Equal(t, PlainPayloadSize, PayloadSize(false))
	assert.Equal(t, EncryptedPayloadSize, PayloadSize(true))
	assert.Equal(t, PlainPayloadSize-KeyVersionTagSize, PayloadSize(true))
}

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{FormatTag: FormatTag, FileSize: 64 * common.BlockSize, Creator: "redolog"}
	buf := EncodeFileHeader(h)
	got, err := DecodeFileHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h.FormatTag, got.FormatTag)
	assert.Equal(t, h.FileSize, got.FileSize)
	assert.Equal(t, h.Creator, got.Creator)
}

func TestFileHeaderRejectsUnknownTag(t *testing.T) {
	buf := EncodeFileHeader(FileHeader{FormatTag: FormatTag, FileSize: common.BlockSize})
	buf[0] = 0xFF
	_, err := DecodeFileHeader(buf)
	require.Error(t, err)
	var uf *ErrUnsupportedFormat
	assert.ErrorAs(t, err, &uf)
}

func TestCheckpointRecordRoundTrip(t *testing.T) {
	r := CheckpointRecord{LSN: 987654321, SequenceBit: true, Offset: 1 << 40}
	buf := EncodeCheckpointRecord(r)
	assert.Len(t, buf, common.CheckpointRecordSize)
	got, err := DecodeCheckpointRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestCheckpointRecordDetectsCorruption(t *testing.T) {
	buf := EncodeCheckpointRecord(CheckpointRecord{LSN: 1, Offset: 0})
	buf[3] ^= 0xFF
	_, err := DecodeCheckpointRecord(buf)
	assert.ErrorIs(t, err, ErrCheckpointCRC)
}

func TestCheckpointRecordRejectsWrongType(t *testing.T) {
	buf := EncodeCheckpointRecord(CheckpointRecord{LSN: 1})
	buf[0] = 0x00
	_, err := DecodeCheckpointRecord(buf)
	require.Error(t, err)
	var typeErr *ErrCheckpointType
	assert.ErrorAs(t, err, &typeErr)
}

func TestFileIDRecordRoundTripShortPath(t *testing.T) {
	r := FileIDRecord{TablespaceID: 42, Path: "t1.ibd"}
	buf := EncodeFileIDRecord(r)
	got, n, err := DecodeFileIDRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, r, got)
}

func TestFileIDRecordRoundTripLongPath(t *testing.T) {
	longPath := ""
	for i := 0; i < 40; i++ {
		longPath += "x"
	}
	r := FileIDRecord{TablespaceID: 9999999, Path: longPath}
	buf := EncodeFileIDRecord(r)
	got, n, err := DecodeFileIDRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, r, got)
}

func TestFileIDRecordDetectsCorruption(t *testing.T) {
	buf := EncodeFileIDRecord(FileIDRecord{TablespaceID: 1, Path: "a.ibd"})
	buf[len(buf)-1] ^= 0xFF
	_, _, err := DecodeFileIDRecord(buf)
	assert.Error(t, err)
}
