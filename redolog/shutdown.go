package redolog

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Shutdown phases, spec.md §4.7's state machine.
const (
	shutdownNone int32 = iota
	shutdownCleanup
	shutdownFlushPhase
	shutdownLastPhase
)

const (
	quiescencePollInterval    = 100 * time.Millisecond
	quiescenceProgressLogEvery = 60 * time.Second
)

// QuiescenceChecks are the external collaborators spec.md §4.7 requires
// to have quiesced, in order, before the redo log forces its final
// checkpoint. Each is polled until it reports true; a nil check is
// treated as already satisfied, since this module has no view into
// timers, transactions, or the page cleaner on its own.
type QuiescenceChecks struct {
	TimersCancelled          func() bool
	NoActiveTransactions     func() bool
	RollbackThreadExited     func() bool
	EncryptionThreadsExited  func() bool
	PageCleanerIdle          func() bool
	NoPendingBufferPoolIO    func() bool
	// StampShutdownLSN is called once, after the final checkpoint, to
	// stamp the shutdown LSN into every data file's first page. It is
	// the buffer pool's responsibility; a nil func skips this step.
	StampShutdownLSN func(lsn uint64) error
}

func alwaysTrue() bool { return true }

func orAlwaysTrue(f func() bool) func() bool {
	if f == nil {
		return alwaysTrue
	}
	return f
}

// Phase reports the shutdown sequencer's current phase, for
// introspection.
func (l *Log) Phase() int32 {
	return atomic.LoadInt32(&l.shutdownPhase)
}

// Shutdown implements spec.md §4.7: at clean shutdown, quiesce external
// actors in a fixed order, force a final checkpoint at the current LSN,
// and stamp that LSN into data files. fast implements "very fast"
// shutdown: it skips straight to a final log_buffer_flush_to_disk and
// close, leaving recovery to run at next startup.
func (l *Log) Shutdown(ctx context.Context, fast bool, checks QuiescenceChecks) error {
	atomic.StoreInt32(&l.shutdownPhase, shutdownCleanup)

	if fast {
		lsn := l.LSN()
		if err := l.WriteUpTo(lsn, true); err != nil {
			return err
		}
		atomic.StoreInt32(&l.shutdownPhase, shutdownLastPhase)
		return l.closeFiles()
	}

	steps := []struct {
		name string
		fn   func() bool
	}{
		{"background timers cancelled", orAlwaysTrue(checks.TimersCancelled)},
		{"no active non-prepared transactions", orAlwaysTrue(checks.NoActiveTransactions)},
		{"rollback-of-recovered-transactions thread exited", orAlwaysTrue(checks.RollbackThreadExited)},
		{"encryption threads exited", orAlwaysTrue(checks.EncryptionThreadsExited)},
		{"page cleaner idle", orAlwaysTrue(checks.PageCleanerIdle)},
		{"no pending checkpoint writes or log flushes", l.noPendingCheckpointOrFlush},
		{"no pending buffer-pool I/O", orAlwaysTrue(checks.NoPendingBufferPoolIO)},
	}

	for _, step := range steps {
		if err := l.waitQuiescent(ctx, step.name, step.fn); err != nil {
			return err
		}
	}

	atomic.StoreInt32(&l.shutdownPhase, shutdownFlushPhase)

	for {
		if err := l.MakeCheckpoint(); err != nil {
			return err
		}
		cursors := l.Cursors()
		ckpt := l.CheckpointState()
		if cursors.LSN == ckpt.LastCheckpointLSN {
			break
		}
	}

	if err := l.flushDataFile(); err != nil {
		return err
	}

	atomic.StoreInt32(&l.shutdownPhase, shutdownLastPhase)

	if checks.StampShutdownLSN != nil {
		if err := checks.StampShutdownLSN(uint64(l.LSN())); err != nil {
			return err
		}
	}

	return l.closeFiles()
}

func (l *Log) noPendingCheckpointOrFlush() bool {
	ckpt := l.CheckpointState()
	l.flushLock.mu.Lock()
	flushing := l.flushLock.owned
	l.flushLock.mu.Unlock()
	return ckpt.PendingCheckpointWrites == 0 && !flushing
}

// waitQuiescent polls check every quiescencePollInterval via a
// single-goroutine errgroup.Group, so ctx cancellation bounds the wait,
// logging progress every quiescenceProgressLogEvery.
func (l *Log) waitQuiescent(ctx context.Context, name string, check func() bool) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(quiescencePollInterval)
		defer ticker.Stop()
		lastLog := time.Now()
		for {
			if check() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				if now.Sub(lastLog) >= quiescenceProgressLogEvery {
					l.logger.Infow("redo log shutdown waiting on quiescence condition", "condition", name)
					lastLog = now
				}
			}
		}
	})
	return g.Wait()
}

func (l *Log) closeFiles() error {
	if err := l.data.Close(); err != nil {
		return err
	}
	return l.mainFile.Close()
}
