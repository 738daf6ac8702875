// Package sdcard defines the narrow file interface the IMD image engine
// and the HTTP control surface consume: open/seek/read/write/sync/readdir/
// unlink/rename. A real board backs this with its FAT driver; LocalFS
// backs it with the host filesystem, which is sufficient for this core.
package sdcard

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// File is the subset of *os.File the image engine and HTTP handlers need.
type File interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
	Stat() (fs.FileInfo, error)
}

// FS is the collaborator interface consumed by imd and httpapi.
type FS interface {
	// Open opens name for read/write, creating it if create is set.
	Open(name string, create bool) (File, error)
	ReadDir(dir string) ([]fs.DirEntry, error)
	Remove(name string) error
	Rename(oldName, newName string) error
	Stat(name string) (fs.FileInfo, error)
}

// LocalFS implements FS against a directory on the host filesystem,
// grounded on example/file.go's os.OpenFile/os.MkdirAll/f.Readdir idiom.
type LocalFS struct {
	Root string
}

// NewLocalFS returns a LocalFS rooted at root, creating it if necessary.
func NewLocalFS(root string) (*LocalFS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalFS{Root: root}, nil
}

func (l *LocalFS) path(name string) string {
	return filepath.Join(l.Root, filepath.Clean("/"+name))
}

func (l *LocalFS) Open(name string, create bool) (File, error) {
	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	return os.OpenFile(l.path(name), flag, 0o600)
}

func (l *LocalFS) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(l.path(dir))
}

func (l *LocalFS) Remove(name string) error {
	return os.Remove(l.path(name))
}

func (l *LocalFS) Rename(oldName, newName string) error {
	return os.Rename(l.path(oldName), l.path(newName))
}

func (l *LocalFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(l.path(name))
}
