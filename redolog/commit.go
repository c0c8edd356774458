package redolog

import (
	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/logbuf"
)

// maxBufFreeFraction is the fraction of a buffer half's capacity beyond
// which logClose sets checkFlushOrCheckpoint, giving the writer a chance
// to drain the buffer before it fills (spec.md §4.5 step 3).
const maxBufFreeFraction = 3 // trips at 2/3 full

// ReserveAndWrite implements the mini-transaction commit protocol of
// spec.md §4.5: margin check, copy into the log buffer, close, and
// return the LSN of the first byte this call wrote (the header of a
// newly started block, if the call started one). The exact same payload is
// not also appended directly to the circular data file here (spec.md
// §9's append_mtr_data2 path is left undefined upstream; DESIGN.md
// records the decision that the writer path in writer.go is this
// module's only path to the circular file).
func (l *Log) ReserveAndWrite(payload []byte) (common.LSN, error) {
	startLSN, _, err := l.reserveAndWrite(payload)
	return startLSN, err
}

// reserveAndWrite is ReserveAndWrite that also returns the LSN just past
// the last byte written, framing included.
func (l *Log) reserveAndWrite(payload []byte) (common.LSN, common.LSN, error) {
	if err := l.checkMargin(uint64(len(payload))); err != nil {
		return 0, 0, err
	}

	l.mu.Lock()
	if uint64(len(payload)) > l.buf.HalfSize()/2 {
		newHalf := logbuf.NewHalfSizeFor(uint64(len(payload))*2, l.cfg.PageSize)
		if uint64(len(payload)) > l.buf.HalfSize() || newHalf > l.buf.HalfSize() {
			l.buf.Extend(newHalf)
		}
	}
	if uint64(len(payload)) > l.buf.HalfSize() {
		halfSize := l.buf.HalfSize()
		l.mu.Unlock()
		return 0, 0, &ErrOversizeMiniTransaction{PayloadSize: uint64(len(payload)), HalfSize: halfSize}
	}

	startLSN := l.buf.Append(payload, l.ckpt.NextCheckpointNo)
	l.buf.Close()
	endLSN := l.buf.LSN()
	l.updateCheckFlagLocked()
	l.mu.Unlock()

	return startLSN, endLSN, nil
}

// checkMargin implements spec.md §4.5 step 1: if the projected LSN
// advance would push lsn-last_checkpoint_lsn past log_capacity, trigger
// a checkpoint (and its dirty-page preflush) before the append proceeds.
// A payload that alone exceeds capacity only warns, once, rather than
// deadlocking waiting for a checkpoint that can never catch up.
func (l *Log) checkMargin(payloadSize uint64) error {
	l.mu.Lock()
	lsn := l.buf.LSN()
	lastCkpt := l.ckpt.LastCheckpointLSN
	needsCheckpoint := uint64(lsn-lastCkpt)+payloadSize > l.capacity.LogCapacity
	l.mu.Unlock()

	if !needsCheckpoint {
		return nil
	}
	if payloadSize > l.capacity.LogCapacity {
		l.warnCheckpointOverrun()
		return nil
	}
	_, err := l.Checkpoint()
	return err
}

// updateCheckFlagLocked implements spec.md §4.5 step 3 and §4.6's
// triggers, called with mu held. It sets the sticky
// checkFlushOrCheckpoint flag when buf_free crosses its threshold or
// when the modified-age / checkpoint-age thresholds are crossed; it
// never clears the flag (only CheckAge's background pass does, once
// ages fall back below the async thresholds).
func (l *Log) updateCheckFlagLocked() {
	maxBufFree := l.buf.HalfSize() * (maxBufFreeFraction - 1) / maxBufFreeFraction
	if l.buf.BufFree() > maxBufFree {
		l.checkFlushOrCheckpoint = true
		return
	}
	lsn := l.buf.LSN()
	ckptAge := uint64(lsn - l.ckpt.LastCheckpointLSN)
	if ckptAge > l.capacity.MaxCheckpointAgeAsync {
		l.checkFlushOrCheckpoint = true
		return
	}
	if oldest, ok := l.tracker.OldestModification(); ok {
		age := uint64(lsn - oldest)
		if age > l.capacity.MaxModifiedAgeAsync {
			l.checkFlushOrCheckpoint = true
		}
	}
}

// MiniTransaction is a small builder wrapping ReserveAndWrite and the
// flush-order-mutex callback into the dirty-page tracker, standing in
// for the mtr collaborator spec.md names but places outside core scope.
// It is the one piece of "mtr" the core must drive: margin check, buffer
// copy, and flush-list insertion order.
type MiniTransaction struct {
	log     *Log
	payload []byte
	pages   []common.Bnum
}

// Begin starts a new mini-transaction against l.
func (l *Log) Begin() *MiniTransaction {
	return &MiniTransaction{log: l}
}

// Write appends bytes to the mini-transaction's pending payload and
// records that page was touched, so Commit can insert it into the
// flush-list tracker at the mini-transaction's commit LSN.
func (m *MiniTransaction) Write(page common.Bnum, bytes []byte) {
	m.payload = append(m.payload, bytes...)
	m.pages = append(m.pages, page)
}

// Commit reserves space for the mini-transaction's payload in the log
// buffer and, while holding the flush-order mutex, inserts every
// touched page into the tracker at the resulting LSN range, preserving
// LSN order between the log mutex release and the flush-list insertion
// (spec.md §5).
func (m *MiniTransaction) Commit() (common.LSN, error) {
	startLSN, endLSN, err := m.log.reserveAndWrite(m.payload)
	if err != nil {
		return 0, err
	}

	m.log.flushOrderMu.Lock()
	for _, page := range m.pages {
		m.log.tracker.Insert(page, startLSN, endLSN)
	}
	m.log.flushOrderMu.Unlock()

	return endLSN, nil
}
