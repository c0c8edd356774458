package redolog

import (
	"fmt"
	"io"
	"time"
)

// Stats holds the named counters of spec.md §7: log_writes, log_waits,
// log_padded, n_log_ios, pending_flushes, flushes.
type Stats struct {
	Writes         uint64
	Waits          uint64
	Padded         uint64
	IOs            uint64
	PendingFlushes uint64
	Flushes        uint64
}

func (l *Log) bumpWrites() {
	l.statsMu.Lock()
	l.stats.Writes++
	l.statsMu.Unlock()
}

func (l *Log) bumpWaits() {
	l.statsMu.Lock()
	l.stats.Waits++
	l.statsMu.Unlock()
}

func (l *Log) bumpPadded(n uint64) {
	l.statsMu.Lock()
	l.stats.Padded += n
	l.statsMu.Unlock()
}

func (l *Log) bumpIOs() {
	l.statsMu.Lock()
	l.stats.IOs++
	l.statsMu.Unlock()
}

func (l *Log) bumpFlushes() {
	l.statsMu.Lock()
	l.stats.Flushes++
	l.statsMu.Unlock()
}

// Stats returns a snapshot of the counters.
func (l *Log) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	s := l.stats
	l.flushLock.mu.Lock()
	if l.flushLock.owned {
		s.PendingFlushes = 1
	}
	l.flushLock.mu.Unlock()
	return s
}

// printoutState tracks what Printf needs to compute the IOs-per-second
// figure since the previous call.
type printoutState struct {
	at  time.Time
	ios uint64
}

// Printf emits the periodic introspection line of spec.md §7: lsn,
// flushed_to_disk_lsn, oldest-modification LSN, last_checkpoint_lsn,
// pending counts, and I/O-per-second since the previous call.
func (l *Log) Printf(w io.Writer) {
	cursors := l.Cursors()
	ckpt := l.CheckpointState()
	oldest, hasOldest := l.tracker.OldestModification()
	stats := l.Stats()

	l.statsMu.Lock()
	now := time.Now()
	var ioPerSec float64
	if !l.lastPrintout.at.IsZero() {
		elapsed := now.Sub(l.lastPrintout.at).Seconds()
		if elapsed > 0 {
			ioPerSec = float64(stats.IOs-l.lastPrintout.ios) / elapsed
		}
	}
	l.lastPrintout = printoutState{at: now, ios: stats.IOs}
	l.statsMu.Unlock()

	oldestStr := "none"
	if hasOldest {
		oldestStr = fmt.Sprintf("%d", oldest)
	}

	fmt.Fprintf(w,
		"Log sequence number %d\nLog flushed up to   %d\nOldest modification  %s\nLast checkpoint at  %d\n"+
			"Pending checkpoint writes: %d  Pending log flushes: %d\n%.2f log i/o's/second\n",
		cursors.LSN, cursors.FlushedToDiskLSN, oldestStr, ckpt.LastCheckpointLSN,
		ckpt.PendingCheckpointWrites, stats.PendingFlushes, ioPerSec,
	)
}
