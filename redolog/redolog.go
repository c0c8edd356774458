// Package redolog implements the append/commit path, checkpoint engine,
// shutdown sequencer, statistics, and initial file materialization of
// spec.md §4.5-§4.9: the package-level Log handle that owns the log
// buffer, the durable files, and the cursors tying them together.
package redolog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ferrodb/redolog/circular"
	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/flushlist"
	"github.com/ferrodb/redolog/logbuf"
	"github.com/ferrodb/redolog/logconfig"
	"github.com/ferrodb/redolog/logio"
)

// Cursors is spec.md §3's LogCursors entity.
type Cursors struct {
	LSN              common.LSN
	WriteLSN         common.LSN
	FlushedToDiskLSN common.LSN
}

// CheckpointState is spec.md §3's CheckpointState entity.
type CheckpointState struct {
	LastCheckpointLSN       common.LSN
	NextCheckpointLSN       common.LSN
	NextCheckpointNo        uint64
	PendingCheckpointWrites int
}

// Log is the process-scoped redo-log subsystem handle. Per spec.md §9's
// design note, it replaces the original's process-global log_sys: every
// cross-module access goes through its methods, and it is constructed
// explicitly rather than lazily initialized behind a package-level
// variable.
type Log struct {
	// mu is the log mutex: guards buf, the cursors below, ckpt, and
	// checkFlushOrCheckpoint. Never held across an I/O call.
	mu sync.Mutex

	// flushOrderMu is held briefly around flush-list insertion so its
	// order matches LSN order even though mu is released during a
	// mini-transaction's page-touch phase.
	flushOrderMu sync.Mutex

	writeLock *groupCommitLock
	flushLock *groupCommitLock

	buf              *logbuf.Buffer
	writeLSN         common.LSN
	flushedToDiskLSN common.LSN

	ckpt     CheckpointState
	capacity logconfig.Capacity
	cfg      logconfig.Config

	mainFile logio.File
	mainTail uint64
	data     *circular.DataFile

	tracker  flushlist.Tracker
	preflush Preflusher

	// checkFlushOrCheckpoint is sticky: set when a threshold is
	// crossed, cleared only once ages fall back below the async
	// thresholds (spec.md §4.6).
	checkFlushOrCheckpoint bool

	statsMu       sync.Mutex
	stats         Stats
	lastPrintout  printoutState

	lastCheckpointOverrunWarn time.Time

	logger *zap.SugaredLogger

	shutdownPhase int32 // atomic, see shutdown.go
}

// Options bundles the pieces NewLog needs beyond the config: the two
// durable files, the dirty-page tracker, and the logger. Keeping this as
// a struct rather than positional args matches the teacher package's
// practice of constructing its subsystem handle from a handful of
// already-open collaborators.
type Options struct {
	MainFile logio.File
	DataFile logio.File
	Tracker    flushlist.Tracker
	Logger     *zap.SugaredLogger
	Preflusher Preflusher
}

// NewLog constructs a fresh Log over already-open files, with the
// in-memory cursors starting at startLSN (the caller is responsible for
// having derived startLSN and mainTail from a prior checkpoint record
// during recovery; see OpenLog for the directory-based convenience
// wrapper that does this).
func NewLog(cfg logconfig.Config, opts Options, startLSN common.LSN, mainTail uint64, ckpt CheckpointState, dataFileSeqBit bool, dataFilePos uint64) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cap, err := logconfig.DeriveCapacity(cfg.LogFileSize, cfg.ThreadConcurrency)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = flushlist.NewShardedTracker()
	}

	l := &Log{
		writeLock:        newGroupCommitLock(),
		flushLock:        newGroupCommitLock(),
		buf:              logbuf.New(cfg.LogBufferSize, startLSN),
		writeLSN:         startLSN,
		flushedToDiskLSN: startLSN,
		ckpt:             ckpt,
		capacity:         cap,
		cfg:              cfg,
		mainFile:         opts.MainFile,
		mainTail:         mainTail,
		tracker:          tracker,
		preflush:         opts.Preflusher,
		logger:           logger,
	}
	l.data = circular.New(opts.DataFile, cfg.LogFileSize, dataFilePos, dataFileSeqBit)
	return l, nil
}

// LSN returns the next byte to be assigned (spec.md §3's `lsn` cursor).
func (l *Log) LSN() common.LSN {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.LSN()
}

// Cursors returns a snapshot of all three LSN cursors.
func (l *Log) Cursors() Cursors {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Cursors{LSN: l.buf.LSN(), WriteLSN: l.writeLSN, FlushedToDiskLSN: l.flushedToDiskLSN}
}

// CheckpointState returns a snapshot of the checkpoint state.
func (l *Log) CheckpointState() CheckpointState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ckpt
}

// Capacity returns the derived capacity thresholds.
func (l *Log) Capacity() logconfig.Capacity {
	return l.capacity
}

// Tracker returns the dirty-page tracker this log reports checkpoint age
// against.
func (l *Log) Tracker() flushlist.Tracker {
	return l.tracker
}
