// Package circular implements the circular data file of spec.md §4.2:
// opaque byte-span appends into a fixed-size file with wrap-around, each
// append implicitly tagged by a sequence bit that flips on every wrap.
package circular

import (
	"fmt"
	"sync"

	"github.com/ferrodb/redolog/block"
	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/logio"
)

// DataFile is the circular data file (ib_logdata). It owns its own mutex,
// acquired leaf-level per spec.md §5: never held while holding any other
// lock in this module except transiently.
type DataFile struct {
	mu          sync.Mutex
	file        logio.File
	size        uint64
	position    uint64
	sequenceBit bool
}

// New wraps an already-opened backend as a circular data file of the
// given size, starting at initialPosition with the given initial
// sequence bit. Fresh files are opened with initialPosition 0 and
// initialSeqBit true (spec.md §2 item 9: the initial checkpoint
// references offset 0, sequence bit 1); recovery passes the position and
// bit read back from the last durable checkpoint record.
func New(file logio.File, size uint64, initialPosition uint64, initialSeqBit bool) *DataFile {
	return &DataFile{file: file, size: size, position: initialPosition, sequenceBit: initialSeqBit}
}

// Size returns the file's fixed size.
func (d *DataFile) Size() uint64 { return d.size }

// Position reports the circular file's current tail position and
// sequence bit, for a checkpoint record's "live region start" field.
func (d *DataFile) Position() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position, d.sequenceBit
}

// ErrSpanTooLarge is returned by Append when a single span is as large
// as (or larger than) the file, which would destroy the sequence-bit
// contract by wrapping more than once.
type ErrSpanTooLarge struct {
	SpanLen  int
	FileSize uint64
}

func (e *ErrSpanTooLarge) Error() string {
	return fmt.Sprintf("circular: span of %d bytes does not fit strictly within a %d-byte file", e.SpanLen, e.FileSize)
}

// Append writes data at the current position, wrapping and flipping the
// sequence bit if it does not fit before the end of the file, per
// spec.md §4.2's two-case algorithm. It returns the position and
// sequence bit that were in effect when the span started.
func (d *DataFile) Append(data []byte) (startPos uint64, startSeq bool, err error) {
	if uint64(len(data)) >= d.size {
		return 0, false, &ErrSpanTooLarge{SpanLen: len(data), FileSize: d.size}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	startPos, startSeq = d.position, d.sequenceBit

	if d.position+uint64(len(data)) <= d.size {
		if err := d.file.WriteAt(int64(d.position), data); err != nil {
			return startPos, startSeq, err
		}
		d.position += uint64(len(data))
		if d.position == d.size {
			d.position = 0
			d.sequenceBit = !d.sequenceBit
		}
		return startPos, startSeq, nil
	}

	firstLen := d.size - d.position
	if err := d.file.WriteAt(int64(d.position), data[:firstLen]); err != nil {
		return startPos, startSeq, err
	}
	d.position = 0
	d.sequenceBit = !d.sequenceBit
	rest := data[firstLen:]
	if err := d.file.WriteAt(0, rest); err != nil {
		return startPos, startSeq, err
	}
	d.position = uint64(len(rest))
	return startPos, startSeq, nil
}

// Close releases the backing file.
func (d *DataFile) Close() error { return d.file.Close() }

// FlushDataOnly flushes the backing file's data without metadata.
func (d *DataFile) FlushDataOnly() error { return d.file.FlushDataOnly() }

// WritesAreDurable reports whether the backing file's writes already
// reach durable storage.
func (d *DataFile) WritesAreDurable() bool { return d.file.WritesAreDurable() }

// AppendCheckpointDurable writes a 19-byte FILE_CHECKPOINT record to
// mainFile (not to the circular file itself) at byte offset tail,
// referencing this circular file's current position and sequence bit as
// the checkpoint's live-region start, then flushes mainFile unless it is
// already inherently durable. It returns the new main-file tail.
func (d *DataFile) AppendCheckpointDurable(mainFile logio.File, tail uint64, lsn common.LSN) (uint64, error) {
	offset, seq := d.Position()
	rec := block.EncodeCheckpointRecord(block.CheckpointRecord{
		LSN:         lsn,
		SequenceBit: seq,
		Offset:      offset,
	})
	if err := mainFile.WriteAt(int64(tail), rec); err != nil {
		return tail, err
	}
	if !mainFile.WritesAreDurable() {
		if err := mainFile.FlushDataOnly(); err != nil {
			return tail, err
		}
	}
	return tail + uint64(len(rec)), nil
}
