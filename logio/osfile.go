package logio

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ferrodb/redolog/logconfig"
)

// OSFile is the conventional file-descriptor backend, grounded on the
// pread/pwrite-based disk implementation of the teacher package. Writes
// are durable only if the file was opened with O_DSYNC (FlushMethod
// FlushDSync); otherwise FlushDataOnly must be called to reach
// durability.
type OSFile struct {
	path    string
	fd      int
	durable bool
}

var _ File = (*OSFile)(nil)

// OpenOSFile opens (creating if necessary) path using method to select
// the durability flag, extending the file to size bytes if it is
// shorter; a longer file is not truncated.
func OpenOSFile(path string, size uint64, method logconfig.FlushMethod, readOnly bool) (*OSFile, error) {
	flags := unix.O_CREAT
	if readOnly {
		flags |= unix.O_RDONLY
	} else {
		flags |= unix.O_RDWR
	}
	durable := method == logconfig.FlushDSync
	if durable {
		flags |= unix.O_DSYNC
	}
	fd, err := unix.Open(path, flags, 0644)
	if err != nil {
		if err == unix.ENOSPC {
			return nil, &ErrOutOfSpace{Path: path, Size: size}
		}
		return nil, &FatalIOError{Op: "open", Path: path, Err: err}
	}
	if !readOnly {
		var stat unix.Stat_t
		if err := unix.Fstat(fd, &stat); err != nil {
			unix.Close(fd)
			return nil, &FatalIOError{Op: "fstat", Path: path, Err: err}
		}
		if uint64(stat.Size) < size {
			if err := unix.Ftruncate(fd, int64(size)); err != nil {
				unix.Close(fd)
				if err == unix.ENOSPC {
					return nil, &ErrOutOfSpace{Path: path, Size: size}
				}
				return nil, &FatalIOError{Op: "ftruncate", Path: path, Err: err}
			}
		}
	}
	return &OSFile{path: path, fd: fd, durable: durable}, nil
}

// ReadAt implements File.
func (f *OSFile) ReadAt(off int64, buf []byte) error {
	n, err := unix.Pread(f.fd, buf, off)
	if err != nil {
		return &FatalIOError{Op: "pread", Path: f.path, Err: err}
	}
	if n != len(buf) {
		return &FatalIOError{Op: "pread", Path: f.path, Err: fmt.Errorf("short read: got %d of %d bytes", n, len(buf))}
	}
	return nil
}

// WriteAt implements File.
func (f *OSFile) WriteAt(off int64, buf []byte) error {
	n, err := unix.Pwrite(f.fd, buf, off)
	if err != nil {
		return &FatalIOError{Op: "pwrite", Path: f.path, Err: err}
	}
	if n != len(buf) {
		return &FatalIOError{Op: "pwrite", Path: f.path, Err: fmt.Errorf("short write: wrote %d of %d bytes", n, len(buf))}
	}
	return nil
}

// FlushDataOnly implements File using fdatasync.
func (f *OSFile) FlushDataOnly() error {
	if f.durable {
		return nil
	}
	if err := unix.Fdatasync(f.fd); err != nil {
		return &FatalIOError{Op: "fdatasync", Path: f.path, Err: err}
	}
	return nil
}

// WritesAreDurable implements File.
func (f *OSFile) WritesAreDurable() bool { return f.durable }

// Close implements File.
func (f *OSFile) Close() error {
	if err := unix.Close(f.fd); err != nil {
		return &FatalIOError{Op: "close", Path: f.path, Err: err}
	}
	return nil
}
