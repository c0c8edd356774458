package redolog

import (
	"github.com/ferrodb/redolog/block"
	"github.com/ferrodb/redolog/common"
)

// WriteUpTo implements spec.md §4.5's writer path: the protocol by which
// a caller requiring durability up to LSN target ensures the dual-buffer
// swap and, if flush is true, the durability barrier have both happened.
//
// Lock order matches spec.md §5: flushLock is acquired before writeLock,
// and the log mutex is never held across I/O.
func (l *Log) WriteUpTo(target common.LSN, flush bool) error {
	if flush {
		if !l.flushLock.Acquire(target) {
			return nil
		}
	}

	if l.writeLock.Acquire(target) {
		writeLSN, err := l.swapAndWrite()
		l.writeLock.Release(writeLSN)
		if err != nil {
			if flush {
				l.flushLock.Release(l.flushLock.Value())
			}
			return err
		}
	} else {
		l.bumpWaits()
	}

	if flush {
		if err := l.flushDataFile(); err != nil {
			l.flushLock.Release(l.flushLock.Value())
			return err
		}
		l.mu.Lock()
		if target > l.flushedToDiskLSN {
			l.flushedToDiskLSN = target
		}
		completed := l.flushedToDiskLSN
		l.mu.Unlock()
		l.flushLock.Release(completed)
		l.bumpFlushes()
	}
	return nil
}

// swapAndWrite performs one round of the dual-buffer swap: under the log
// mutex it records the write-target LSN and switches the active half,
// then releases the mutex before doing any I/O (spec.md §5: the log
// mutex is never held across an I/O call).
func (l *Log) swapAndWrite() (common.LSN, error) {
	l.mu.Lock()
	target := l.buf.LSN()
	areaStart, areaEnd, region := l.buf.WriteRegion(l.ckpt.NextCheckpointNo)
	l.buf.Switch()
	l.mu.Unlock()

	if areaEnd <= areaStart {
		return target, nil
	}

	stampTrailers(region)

	if err := l.writeRegionWithPadding(region); err != nil {
		return target, err
	}

	l.mu.Lock()
	if target > l.writeLSN {
		l.writeLSN = target
	}
	if l.data.WritesAreDurable() && target > l.flushedToDiskLSN {
		l.flushedToDiskLSN = target
	}
	l.mu.Unlock()

	l.bumpWrites()
	l.bumpIOs()
	return target, nil
}

// stampTrailers computes and writes the CRC-32C trailer of every
// 512-byte block in region, which at this point holds only headers and
// payload (logbuf.Buffer never touches trailer bytes).
func stampTrailers(region []byte) {
	for off := 0; off+common.BlockSize <= len(region); off += common.BlockSize {
		block.EncodeTrailer(region[off : off+common.BlockSize])
	}
}

// writeRegionWithPadding appends region to the circular data file, then
// pads the file's tail with zero bytes so the next write starts on a
// write-ahead boundary, per spec.md §4.5's write-ahead padding rule.
func (l *Log) writeRegionWithPadding(region []byte) error {
	if _, _, err := l.data.Append(region); err != nil {
		return err
	}
	wa := l.cfg.LogWriteAheadSize
	if wa <= common.BlockSize {
		return nil
	}
	pos, _ := l.data.Position()
	rem := pos % wa
	if rem == 0 {
		return nil
	}
	pad := wa - rem
	if pad >= l.data.Size() {
		return nil
	}
	if _, _, err := l.data.Append(make([]byte, pad)); err != nil {
		return err
	}
	l.bumpPadded(pad)
	return nil
}

// flushDataFile forces the circular data file's backing storage durable,
// unless the backend already guarantees that on every write.
func (l *Log) flushDataFile() error {
	if l.data.WritesAreDurable() {
		return nil
	}
	return l.data.FlushDataOnly()
}
