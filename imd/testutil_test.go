package imd

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/kim1fw/memcard/sdcard"
)

// memFile is an in-memory sdcard.File used by the tests in this package so
// they exercise Parse/SeekTrack/ReadData/WriteData/UncompressSector/
// FormatTrack without touching the host filesystem.
type memFile struct {
	name string
	buf  []byte
	pos  int64
}

func newMemFile(name string, data []byte) *memFile {
	return &memFile{name: name, buf: append([]byte(nil), data...)}
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.buf))
	default:
		return 0, errors.New("memFile: bad whence")
	}
	f.pos = base + offset
	if f.pos < 0 {
		return 0, errors.New("memFile: negative seek")
	}
	return f.pos, nil
}

func (f *memFile) Close() error { return nil }
func (f *memFile) Sync() error  { return nil }

func (f *memFile) Truncate(size int64) error {
	if size <= int64(len(f.buf)) {
		f.buf = f.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, f.buf)
	f.buf = grown
	return nil
}

func (f *memFile) Stat() (fs.FileInfo, error) {
	return memFileInfo{name: f.name, size: int64(len(f.buf))}, nil
}

type memFileInfo struct {
	name string
	size int64
}

func (i memFileInfo) Name() string       { return i.name }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0644 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }

// memFS is an in-memory sdcard.FS for Manager tests.
type memFS struct {
	files map[string][]byte
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte)}
}

func (m *memFS) Open(name string, create bool) (sdcard.File, error) {
	data, ok := m.files[name]
	if !ok {
		if !create {
			return nil, errors.New("memFS: not found")
		}
		m.files[name] = nil
	}
	f := newMemFile(name, data)
	return &trackedMemFile{memFile: f, fs: m, name: name}, nil
}

func (m *memFS) ReadDir(dir string) ([]fs.DirEntry, error) { return nil, nil }

func (m *memFS) Remove(name string) error {
	if _, ok := m.files[name]; !ok {
		return errors.New("memFS: not found")
	}
	delete(m.files, name)
	return nil
}

func (m *memFS) Rename(oldName, newName string) error {
	data, ok := m.files[oldName]
	if !ok {
		return errors.New("memFS: not found")
	}
	m.files[newName] = data
	delete(m.files, oldName)
	return nil
}

func (m *memFS) Stat(name string) (fs.FileInfo, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, errors.New("memFS: not found")
	}
	return memFileInfo{name: name, size: int64(len(data))}, nil
}

// trackedMemFile writes its buffer back into the owning memFS on Close, so
// Manager.Copy/Mount round-trip through the same backing map other Opens see.
type trackedMemFile struct {
	*memFile
	fs   *memFS
	name string
}

func (f *trackedMemFile) Close() error {
	f.fs.files[f.name] = append([]byte(nil), f.buf...)
	return nil
}

func (f *trackedMemFile) Sync() error {
	f.fs.files[f.name] = append([]byte(nil), f.buf...)
	return nil
}

// buildA1Image returns the spec scenario's single-track, single-sector
// image: comment header, one MFM track (cyl=0, head=0, 1 sector, size
// code 2 = 512 bytes), sector map [0], sector type NORMAL, payload of
// 512 0xE5 bytes.
func buildA1Image() []byte {
	var buf bytes.Buffer
	buf.WriteString("IMD 1.18: 01/01/25\r\nx")
	buf.WriteByte(CommentTerminator)

	buf.Write([]byte{ModeMFM500, 0, 0, 1, 2}) // mode, cyl, head, sectors, size
	buf.WriteByte(0)                          // sector map: logical sector 0
	buf.WriteByte(byte(TypeNormal))
	buf.Write(bytes.Repeat([]byte{0xE5}, 512))

	return buf.Bytes()
}

// buildA3Image is buildA1Image with its one sector stored compressed
// (fill byte 0x5A) instead of normal.
func buildA3Image() []byte {
	var buf bytes.Buffer
	buf.WriteString("IMD 1.18: 01/01/25\r\nx")
	buf.WriteByte(CommentTerminator)

	buf.Write([]byte{ModeMFM500, 0, 0, 1, 2})
	buf.WriteByte(0)
	buf.WriteByte(byte(TypeCompressed))
	buf.WriteByte(0x5A)

	return buf.Bytes()
}
