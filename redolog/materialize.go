package redolog

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ferrodb/redolog/block"
	"github.com/ferrodb/redolog/common"
	"github.com/ferrodb/redolog/flushlist"
	"github.com/ferrodb/redolog/logconfig"
	"github.com/ferrodb/redolog/logio"
)

// MainFileName and DataFileName are the two files spec.md §6 names,
// always created inside the configured log directory.
const (
	MainFileName = "ib_logfile0"
	DataFileName = "ib_logdata"
)

// mainFileInitialSize is the starting size of ib_logfile0: a header block
// followed by room for a handful of checkpoint/file-id records. This
// module implements only the physical record-stream format, so the file
// grows as records are appended past this starting allocation.
const mainFileInitialSize = 4 * common.BlockSize

// CreateFiles implements spec.md §2 item 9: it creates ib_logfile0 and
// ib_logdata in dir, writes the initial file header, and appends the
// initial FILE_CHECKPOINT record referencing offset 0 with sequence bit
// true.
func CreateFiles(dir string, cfg logconfig.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	mainPath := filepath.Join(dir, MainFileName)
	mainFile, err := logio.OpenOSFile(mainPath, mainFileInitialSize, cfg.FileFlushMethod, false)
	if err != nil {
		return err
	}
	defer mainFile.Close()

	hdr := block.EncodeFileHeader(block.FileHeader{
		FormatTag: block.FormatTag,
		FileSize:  cfg.LogFileSize,
		Creator:   "redolog",
	})
	if err := mainFile.WriteAt(0, hdr); err != nil {
		return err
	}

	dataPath := filepath.Join(dir, DataFileName)
	dataFile, err := logio.OpenOSFile(dataPath, cfg.LogFileSize, cfg.FileFlushMethod, false)
	if err != nil {
		return err
	}
	defer dataFile.Close()

	rec := block.EncodeCheckpointRecord(block.CheckpointRecord{
		LSN:         1,
		SequenceBit: true,
		Offset:      0,
	})
	if err := mainFile.WriteAt(common.FileHeaderSize, rec); err != nil {
		return err
	}
	if !mainFile.WritesAreDurable() {
		if err := mainFile.FlushDataOnly(); err != nil {
			return err
		}
	}
	return nil
}

// OpenLog opens a log directory previously created by CreateFiles,
// recovering the in-memory cursors from the last valid FILE_CHECKPOINT
// record found in ib_logfile0. Full redo-log scanning and page
// application is the external recovery collaborator's job (spec.md §1
// Non-goals); OpenLog only recovers the cursor/checkpoint bookkeeping
// needed to keep appending and checkpointing correctly, matching the
// legacy-format rejection decided for ErrLegacyFormatUnsupported.
func OpenLog(dir string, cfg logconfig.Config, tracker flushlist.Tracker, logger *zap.SugaredLogger) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mainPath := filepath.Join(dir, MainFileName)
	mainFile, err := logio.OpenOSFile(mainPath, mainFileInitialSize, cfg.FileFlushMethod, false)
	if err != nil {
		return nil, err
	}

	hdrBuf := make([]byte, common.FileHeaderSize)
	if err := mainFile.ReadAt(0, hdrBuf); err != nil {
		mainFile.Close()
		return nil, err
	}
	fh, err := block.DecodeFileHeader(hdrBuf)
	if err != nil {
		mainFile.Close()
		if uf, ok := err.(*block.ErrUnsupportedFormat); ok {
			return nil, &ErrLegacyFormatUnsupported{Tag: uf.Tag}
		}
		return nil, err
	}
	_ = fh

	ckpt, tail, err := scanLastCheckpoint(mainFile)
	if err != nil {
		mainFile.Close()
		return nil, err
	}

	dataPath := filepath.Join(dir, DataFileName)
	dataFile, err := logio.OpenOSFile(dataPath, cfg.LogFileSize, cfg.FileFlushMethod, false)
	if err != nil {
		mainFile.Close()
		return nil, err
	}

	state := CheckpointState{LastCheckpointLSN: ckpt.LSN, NextCheckpointLSN: ckpt.LSN}
	return NewLog(cfg, Options{
		MainFile: mainFile,
		DataFile: dataFile,
		Tracker:  tracker,
		Logger:   logger,
	}, ckpt.LSN, tail, state, ckpt.SequenceBit, ckpt.Offset)
}

// scanLastCheckpoint walks ib_logfile0 immediately after the file
// header, decoding every FILE_CHECKPOINT record it can, and returns the
// last valid one plus the file's tail offset (where the next record
// should be appended).
func scanLastCheckpoint(f *logio.OSFile) (block.CheckpointRecord, uint64, error) {
	off := uint64(common.FileHeaderSize)
	var last block.CheckpointRecord
	found := false
	buf := make([]byte, common.CheckpointRecordSize)
	for {
		if err := f.ReadAt(int64(off), buf); err != nil {
			break
		}
		rec, err := block.DecodeCheckpointRecord(buf)
		if err != nil {
			break
		}
		last = rec
		found = true
		off += common.CheckpointRecordSize
	}
	if !found {
		return block.CheckpointRecord{}, 0, ErrNoCheckpoint
	}
	return last, off, nil
}
