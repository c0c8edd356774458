package redolog

import "fmt"

// ErrOversizeMiniTransaction is returned when a single mini-transaction's
// payload is larger than the log buffer's entire capacity even after
// extension (spec.md §7's OversizeMiniTransaction kind, fatal case).
type ErrOversizeMiniTransaction struct {
	PayloadSize uint64
	HalfSize    uint64
}

func (e *ErrOversizeMiniTransaction) Error() string {
	return fmt.Sprintf("redolog: mini-transaction payload of %d bytes exceeds buffer half-size %d even after extension",
		e.PayloadSize, e.HalfSize)
}

// ErrLegacyFormatUnsupported is returned on recovery when the main file's
// header carries the legacy in-file checkpoint-slot format rather than
// the canonical physical record-stream format (spec.md §9's open
// question, resolved in DESIGN.md: legacy is rejected, never silently
// misread).
type ErrLegacyFormatUnsupported struct {
	Tag uint32
}

func (e *ErrLegacyFormatUnsupported) Error() string {
	return fmt.Sprintf("redolog: legacy redo-log format (tag 0x%08x) is not supported; recreate the log directory", e.Tag)
}

// ErrNoCheckpoint is returned by recovery when the main file contains no
// valid FILE_CHECKPOINT record to resume from.
var ErrNoCheckpoint = fmt.Errorf("redolog: main file has no valid checkpoint record")
