package redolog

import (
	"time"

	"github.com/ferrodb/redolog/common"
)

// checkpointOverrunWarnInterval is the minimum gap between throttled
// CheckpointOverrun warnings (spec.md §7: "≥ 15s between").
const checkpointOverrunWarnInterval = 15 * time.Second

// Preflusher is the buffer pool's dirty-page preflush collaborator,
// named only as an external interface by spec.md §1. A real buffer pool
// implements it; Log works correctly with none configured (nothing to
// flush, so preflush calls trivially succeed).
type Preflusher interface {
	// PreflushSync flushes dirty pages whose modification LSN is below
	// target, blocking until none remain. It returns false if another
	// flush was already in progress and the caller should retry.
	PreflushSync(target common.LSN) bool
	// PreflushAsync requests a background preflush without blocking.
	PreflushAsync()
}

type noopPreflusher struct{}

func (noopPreflusher) PreflushSync(common.LSN) bool { return true }
func (noopPreflusher) PreflushAsync()                {}

// maxLSN is used as MakeCheckpoint's preflush target: "flush everything".
const maxLSN = common.LSN(^uint64(0))

// CheckAge implements spec.md §4.6's triggers, driven off the sticky
// checkFlushOrCheckpoint flag set by ReserveAndWrite. It is meant to be
// called periodically by a background flusher thread as well as
// opportunistically after commit.
func (l *Log) CheckAge() error {
	l.mu.Lock()
	if !l.checkFlushOrCheckpoint {
		l.mu.Unlock()
		return nil
	}
	lsn := l.buf.LSN()
	oldest, ok := l.tracker.OldestModification()
	if !ok {
		oldest = lsn
	}
	age := uint64(lsn - oldest)
	ckptAge := uint64(lsn - l.ckpt.LastCheckpointLSN)
	doCheckpoint := ckptAge > l.capacity.MaxCheckpointAgeAsync
	hardOverrun := ckptAge > l.capacity.MaxCheckpointAge
	if age <= l.capacity.MaxModifiedAgeAsync && ckptAge <= l.capacity.MaxCheckpointAgeAsync {
		l.checkFlushOrCheckpoint = false
	}
	l.mu.Unlock()

	if hardOverrun {
		l.warnCheckpointOverrun()
	}

	if age > l.capacity.MaxModifiedAgeSync {
		advance := age - l.capacity.MaxModifiedAgeSync
		for !l.preflusher().PreflushSync(oldest + common.LSN(advance)) {
			l.mu.Lock()
			l.checkFlushOrCheckpoint = true
			l.mu.Unlock()
		}
	} else if age > l.capacity.MaxModifiedAgeAsync {
		l.preflusher().PreflushAsync()
	}

	if doCheckpoint {
		if _, err := l.Checkpoint(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Log) preflusher() Preflusher {
	if l.preflush == nil {
		return noopPreflusher{}
	}
	return l.preflush
}

// Checkpoint implements spec.md §4.6's log_checkpoint(): it computes the
// checkpoint LSN as the larger of the oldest tracked modification and the
// current LSN (so the current LSN whenever the log has advanced; see
// DESIGN.md), ensures the log is durable up to that LSN, and writes a durable
// checkpoint record. It returns true if a checkpoint now covers the
// computed LSN (whether this call performed the write or another
// concurrent caller already had), false if a concurrent write is still
// in flight and the caller should retry.
func (l *Log) Checkpoint() (bool, error) {
	l.mu.Lock()
	lsn := l.buf.LSN()
	flushLSN := lsn
	if oldest, ok := l.tracker.OldestModification(); ok && oldest > flushLSN {
		flushLSN = oldest
	}
	if flushLSN == l.ckpt.LastCheckpointLSN {
		l.mu.Unlock()
		return true, nil
	}
	l.mu.Unlock()

	if err := l.WriteUpTo(flushLSN, true); err != nil {
		return false, err
	}

	l.mu.Lock()
	success := l.ckpt.LastCheckpointLSN == flushLSN
	if success || l.ckpt.PendingCheckpointWrites > 0 {
		l.mu.Unlock()
		return success, nil
	}
	l.ckpt.NextCheckpointLSN = flushLSN
	l.ckpt.PendingCheckpointWrites++
	mainTail := l.mainTail
	l.mu.Unlock()

	newTail, err := l.data.AppendCheckpointDurable(l.mainFile, mainTail, flushLSN)

	l.mu.Lock()
	l.ckpt.PendingCheckpointWrites--
	if err != nil {
		l.mu.Unlock()
		return false, err
	}
	l.mainTail = newTail
	l.ckpt.LastCheckpointLSN = l.ckpt.NextCheckpointLSN
	l.ckpt.NextCheckpointNo++
	l.mu.Unlock()

	l.bumpFlushes()
	return true, nil
}

// MakeCheckpoint implements spec.md §4.6's log_make_checkpoint(): loop
// preflushing dirty pages until none remain, then loop checkpointing
// until one succeeds. Used at shutdown.
func (l *Log) MakeCheckpoint() error {
	for !l.preflusher().PreflushSync(maxLSN) {
	}
	for {
		done, err := l.Checkpoint()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (l *Log) warnCheckpointOverrun() {
	l.mu.Lock()
	now := time.Now()
	if now.Sub(l.lastCheckpointOverrunWarn) < checkpointOverrunWarnInterval {
		l.mu.Unlock()
		return
	}
	l.lastCheckpointOverrunWarn = now
	lsn := l.buf.LSN()
	lastCkpt := l.ckpt.LastCheckpointLSN
	l.mu.Unlock()
	l.logger.Warnw("redo log checkpoint age exceeds capacity; pacing upstream of the log is broken",
		"lsn", lsn, "last_checkpoint_lsn", lastCkpt, "log_capacity", l.capacity.LogCapacity)
}
