package osfs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Fake is an in-memory FS for unit tests. It does not simulate O_DIRECT
// alignment requirements; callers that need to exercise alignment failures
// use a real temp directory instead.
type Fake struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	symlinks map[string]string
}

// NewFake returns an empty in-memory filesystem.
func NewFake() *Fake {
	return &Fake{
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"/": true},
		symlinks: make(map[string]string),
	}
}

type fakeFile struct {
	fs       *Fake
	path     string
	buf      *bytes.Buffer
	pos      int64
	writable bool
	data     []byte
}

func (f *fakeFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}

	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)

	return n, nil
}

func (f *fakeFile) Write(p []byte) (int, error) {
	if !f.writable {
		return 0, fmt.Errorf("file %s not opened for writing", f.path)
	}

	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}

	copy(f.data[f.pos:end], p)
	f.pos = end

	f.fs.mu.Lock()
	f.fs.files[f.path] = append([]byte(nil), f.data...)
	f.fs.mu.Unlock()

	return len(p), nil
}

func (f *fakeFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(len(f.data)) + offset
	}

	return f.pos, nil
}

func (f *fakeFile) Close() error { return nil }

func (f *fakeFile) Fd() uintptr { return 0 }

func (fk *Fake) Open(path string) (File, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	data, ok := fk.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	return &fakeFile{fs: fk, path: path, data: append([]byte(nil), data...)}, nil
}

func (fk *Fake) OpenFile(path string, flag int, _ os.FileMode) (File, error) {
	fk.mu.Lock()
	data, ok := fk.files[path]

	if !ok {
		if flag&os.O_CREATE == 0 {
			fk.mu.Unlock()
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
		}

		fk.files[path] = nil
	}

	if flag&os.O_TRUNC != 0 {
		data = nil
		fk.files[path] = nil
	}

	fk.mu.Unlock()

	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0

	f := &fakeFile{fs: fk, path: path, data: append([]byte(nil), data...), writable: writable}
	if flag&os.O_APPEND != 0 {
		f.pos = int64(len(f.data))
	}

	return f, nil
}

func (fk *Fake) Stat(path string) (os.FileInfo, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	if data, ok := fk.files[path]; ok {
		return fakeFileInfo{name: filepath.Base(path), size: int64(len(data))}, nil
	}

	if fk.dirs[path] {
		return fakeFileInfo{name: filepath.Base(path), isDir: true}, nil
	}

	return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
}

func (fk *Fake) Exists(path string) (bool, error) {
	_, err := fk.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func (fk *Fake) MkdirAll(path string, _ os.FileMode) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	for p := path; p != "." && p != "/" && p != ""; p = filepath.Dir(p) {
		fk.dirs[p] = true
	}

	return nil
}

func (fk *Fake) ReadDir(path string) ([]os.DirEntry, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	seen := map[string]bool{}

	var entries []os.DirEntry

	for f := range fk.files {
		if filepath.Dir(f) == path && !seen[f] {
			seen[f] = true
			entries = append(entries, fakeDirEntry{name: filepath.Base(f)})
		}
	}

	for d := range fk.dirs {
		if filepath.Dir(d) == path && !seen[d] {
			seen[d] = true
			entries = append(entries, fakeDirEntry{name: filepath.Base(d), isDir: true})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	return entries, nil
}

func (fk *Fake) Symlink(oldname, newname string) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	fk.symlinks[newname] = oldname

	return nil
}

func (fk *Fake) Readlink(name string) (string, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	target, ok := fk.symlinks[name]
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: name, Err: os.ErrNotExist}
	}

	return target, nil
}

func (fk *Fake) Remove(path string) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	delete(fk.files, path)
	delete(fk.symlinks, path)

	return nil
}

func (fk *Fake) WriteFileAtomic(path string, data []byte, _ os.FileMode) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	fk.files[path] = append([]byte(nil), data...)

	return nil
}

func (fk *Fake) ReadFile(path string) ([]byte, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	data, ok := fk.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	return append([]byte(nil), data...), nil
}

type fakeFileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.isDir }
func (f fakeFileInfo) Sys() any           { return nil }

type fakeDirEntry struct {
	name  string
	isDir bool
}

func (d fakeDirEntry) Name() string { return d.name }
func (d fakeDirEntry) IsDir() bool  { return d.isDir }
func (d fakeDirEntry) Type() os.FileMode {
	if d.isDir {
		return os.ModeDir
	}

	return 0
}
func (d fakeDirEntry) Info() (os.FileInfo, error) {
	return fakeFileInfo{name: d.name, isDir: d.isDir}, nil
}

var _ FS = (*Fake)(nil)
