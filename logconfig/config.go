// Package logconfig holds the abstract configuration surface of the redo
// log (spec.md §6) and the pure capacity-threshold derivation of §4.6. It
// has no I/O dependencies so it is trivially unit-testable on its own.
package logconfig

import (
	"fmt"

	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/util"
)

// FlushMethod selects how the durable-file backend reaches durability.
type FlushMethod int

const (
	// FlushBuffered leaves writes in the OS page cache; FlushDataOnly
	// must be called explicitly to reach durability.
	FlushBuffered FlushMethod = iota
	// FlushDSync opens the file with O_DSYNC so every write is durable.
	FlushDSync
	// FlushNoSync is for throwaway/testing setups where durability is
	// not required. logio.OSFile handles it exactly like FlushBuffered:
	// FlushDataOnly still calls fdatasync.
	FlushNoSync
)

// Config is the abstract set of options spec.md §6 names. It is a plain
// struct: loading it from a file or flags is out of scope (spec.md §1
// Non-goals on CLI/config loading).
type Config struct {
	// LogBufferSize is the size in bytes of one half of the in-memory
	// log buffer. Minimum 16*common.BlockSize and 4*PageSize.
	LogBufferSize uint64
	// LogFileSize is the size in bytes of the circular data file.
	// Must be 512-aligned (bottom 9 bits zero).
	LogFileSize uint64
	// LogWriteAheadSize is the alignment granularity used to pad log
	// I/O so a later partial rewrite of that region never requires a
	// device-level read-modify-write.
	LogWriteAheadSize uint64
	// FileFlushMethod selects the durable-file backend's flush policy.
	FileFlushMethod FlushMethod
	// EncryptLog selects the encrypted block framing (492-byte payload
	// instead of 496).
	EncryptLog bool
	// ThreadConcurrency participates in the capacity reservation
	// computed by DeriveCapacity.
	ThreadConcurrency uint64
	// PageSize is the buffer-pool page size, used only to validate
	// LogBufferSize's minimum.
	PageSize uint64
}

// DefaultPageSize matches the common default buffer-pool page size.
const DefaultPageSize = 16 * 1024

// perThreadReserve is the per-thread log-capacity reservation spec.md
// §4.6 folds into `reserved`, as computed by DeriveCapacity.
const perThreadReserve = 4 * common.BlockSize

// extraReserve is the constant slack spec.md §4.6 adds to `reserved`
// independent of thread count.
const extraReserve = 8 * common.BlockSize

// Validate enforces the alignment and minimum-size invariants spec.md §6
// names. It does not compute capacity thresholds; call DeriveCapacity for
// that once Validate has passed.
func (c Config) Validate() error {
	if c.PageSize == 0 {
		return fmt.Errorf("logconfig: PageSize must be set")
	}
	minBuf := util.Max(16*common.BlockSize, 4*c.PageSize)
	if c.LogBufferSize < minBuf {
		return fmt.Errorf("logconfig: LogBufferSize %d below minimum %d", c.LogBufferSize, minBuf)
	}
	if c.LogFileSize%common.BlockSize != 0 {
		return fmt.Errorf("logconfig: LogFileSize %d not %d-aligned", c.LogFileSize, common.BlockSize)
	}
	if c.LogFileSize == 0 {
		return fmt.Errorf("logconfig: LogFileSize must be nonzero")
	}
	return nil
}

// Capacity is spec.md §3's CapacityThresholds entity: the four age
// thresholds derived once from the data-file size and thread concurrency.
type Capacity struct {
	LogCapacity            uint64
	MaxModifiedAgeAsync    uint64
	MaxModifiedAgeSync     uint64
	MaxCheckpointAgeAsync  uint64
	MaxCheckpointAge       uint64
}

// ErrConfigTooSmall is returned by DeriveCapacity when the configured log
// file is too small for the configured thread concurrency (spec.md §7).
type ErrConfigTooSmall struct {
	SmallestCapacity uint64
	Reserved         uint64
}

func (e *ErrConfigTooSmall) Error() string {
	return fmt.Sprintf("logconfig: log file too small: smallest_capacity=%d reserved=%d (reserved must be < smallest_capacity/2)",
		e.SmallestCapacity, e.Reserved)
}

// DeriveCapacity implements the formulas of spec.md §4.6 exactly:
//
//	smallest_capacity = F - F/10
//	reserved = per_thread*(10+concurrency) + extra
//	margin = (smallest_capacity - reserved) * 9/10
func DeriveCapacity(fileSize uint64, threadConcurrency uint64) (Capacity, error) {
	smallestCapacity := fileSize - fileSize/10
	reserved := perThreadReserve*(10+threadConcurrency) + extraReserve
	if reserved >= smallestCapacity/2 {
		return Capacity{}, &ErrConfigTooSmall{SmallestCapacity: smallestCapacity, Reserved: reserved}
	}
	margin := (smallestCapacity - reserved) * 9 / 10
	return Capacity{
		LogCapacity:           smallestCapacity,
		MaxModifiedAgeAsync:   margin - margin/8,
		MaxModifiedAgeSync:    margin - margin/16,
		MaxCheckpointAgeAsync: margin - margin/32,
		MaxCheckpointAge:      margin,
	}, nil
}
