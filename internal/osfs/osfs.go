// Package osfs is a small filesystem capability seam.
//
// The block and filesystem backends (pkg/backend), the storage broker
// (pkg/broker) and the direct client view (pkg/clientview) never open files
// through the os package directly; they go through FS so
// tests can substitute a fake without touching a real device or directory
// tree. Grounded on the teacher's internal/fs FS/File/Real split, trimmed to
// the operations the backends actually need and extended with the raw
// OpenFile flags (O_DIRECT, O_SYNC) the whiteboard I/O path requires.
package osfs

import (
	"io"
	"os"
)

// File is an open file descriptor. Satisfied by *os.File.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the OS file descriptor, valid until Close.
	Fd() uintptr
}

// FS is the filesystem capability consumed by pkg/backend, pkg/broker and
// pkg/clientview.
type FS interface {
	// Open opens path for reading.
	Open(path string) (File, error)

	// OpenFile opens path with the given flags/permissions. See os.OpenFile.
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Stat returns file info for path. See os.Stat.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether path exists.
	Exists(path string) (bool, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	// ReadDir lists directory entries, sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// Symlink creates newname as a symbolic link to oldname.
	Symlink(oldname, newname string) error

	// Readlink returns the destination of the symbolic link at name.
	Readlink(name string) (string, error)

	// Remove deletes path.
	Remove(path string) error

	// WriteFileAtomic writes data to path via a temp file + rename so a
	// crash never leaves a partially written file.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
}

// Real implements FS against the real operating system.
type Real struct{}

// NewReal returns a production FS.
func NewReal() Real { return Real{} }

func (Real) Open(path string) (File, error) { return os.Open(path) }

func (Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

func (Real) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

func (Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func (Real) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (Real) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }

func (Real) Symlink(oldname, newname string) error { return os.Symlink(oldname, newname) }

func (Real) Readlink(name string) (string, error) { return os.Readlink(name) }

func (Real) Remove(path string) error { return os.Remove(path) }

func (Real) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

var _ File = (*os.File)(nil)
var _ FS = Real{}
