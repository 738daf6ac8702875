package imd

import (
	"errors"
	"io"
	"sync"

	"github.com/kim1fw/memcard/sdcard"
)

// Mount-lifecycle errors, which httpapi maps onto fixed HTTP status codes
// so clients see a stable taxonomy.
var (
	ErrImgName    = errors.New("imd: IMG_NAME")
	ErrImgMounted = errors.New("imd: IMG_MOUNTED")
	ErrDrvMounted = errors.New("imd: DRV_MOUNTED")
	ErrImgInvalid = errors.New("imd: IMG_INVALID")
	ErrNotFound   = errors.New("imd: NOT_FOUND")
)

// Drive is one mounted image slot.
type Drive struct {
	Disk     *Disk
	Name     string
	ReadOnly bool
}

// Manager tracks every drive's mounted image against the backing
// filesystem, enforcing that an image is never open on more than one
// drive and a drive never holds more than one image.
type Manager struct {
	mu     sync.Mutex
	fs     sdcard.FS
	drives map[int]*Drive
}

// NewManager returns a Manager with no drives mounted.
func NewManager(fs sdcard.FS) *Manager {
	return &Manager{fs: fs, drives: make(map[int]*Drive)}
}

func (m *Manager) mountedName(name string) bool {
	for _, d := range m.drives {
		if d != nil && d.Name == name {
			return true
		}
	}
	return false
}

// MountedName reports whether name is currently mounted on any drive, for
// callers (httpapi's file download) that need to refuse an operation
// before even attempting it rather than relying on Copy/Erase/Rename's own
// checks.
func (m *Manager) MountedName(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mountedName(name)
}

// Drives returns a snapshot of every currently mounted drive index to
// Drive mapping, for listing endpoints (httpapi's GET /sd/mnt).
func (m *Manager) Drives() map[int]Drive {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int]Drive, len(m.drives))
	for i, d := range m.drives {
		if d != nil {
			out[i] = *d
		}
	}
	return out
}

// Mount opens name read-only or read-write onto drive.
func (m *Manager) Mount(drive int, name string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return ErrImgName
	}
	if d, ok := m.drives[drive]; ok && d != nil {
		return ErrDrvMounted
	}
	if m.mountedName(name) {
		return ErrImgMounted
	}

	f, err := m.fs.Open(name, false)
	if err != nil {
		return ErrNotFound
	}

	disk, err := Parse(f, name, readOnly)
	if err != nil {
		f.Close()
		return ErrImgInvalid
	}

	m.drives[drive] = &Drive{Disk: disk, Name: name, ReadOnly: readOnly}
	return nil
}

// Unmount closes drive's image and clears its slot.
func (m *Manager) Unmount(drive int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drives[drive]
	if !ok || d == nil {
		return ErrNotFound
	}

	err := d.Disk.Close()
	delete(m.drives, drive)
	return err
}

// Drive returns the disk mounted on drive, if any.
func (m *Manager) Drive(drive int) (*Disk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drives[drive]
	if !ok || d == nil {
		return nil, false
	}
	return d.Disk, true
}

// Copy duplicates src to dst. It refuses if src is mounted anywhere, and
// (unless overwrite) refuses if dst already exists.
func (m *Manager) Copy(src, dst string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mountedName(src) {
		return ErrImgMounted
	}
	if m.mountedName(dst) {
		return ErrImgMounted
	}

	if !overwrite {
		if _, err := m.fs.Stat(dst); err == nil {
			return ErrImgName
		}
	}

	in, err := m.fs.Open(src, false)
	if err != nil {
		return ErrNotFound
	}
	defer in.Close()

	out, err := m.fs.Open(dst, true)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := out.Truncate(0); err != nil {
		return err
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Rename moves src to dst. It refuses if either name is currently mounted.
func (m *Manager) Rename(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mountedName(src) || m.mountedName(dst) {
		return ErrImgMounted
	}
	return m.fs.Rename(src, dst)
}

// Erase deletes name. It refuses if name is currently mounted.
func (m *Manager) Erase(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mountedName(name) {
		return ErrImgMounted
	}
	return m.fs.Remove(name)
}

// New creates a valid IMD file with a flat sector map {0..sectorsPerTrack-1}
// on every cylinder, mode fixed to MFM and head 0, each sector initialised
// to compressed-with-filler (packed) or normal-filled.
func (m *Manager) New(name string, cylinders, sectorsPerTrack int, sizeCode byte, filler byte, packed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return ErrImgName
	}
	if int(sizeCode) >= len(SectorSizes) {
		return ErrImgInvalid
	}
	if _, err := m.fs.Stat(name); err == nil {
		return ErrImgName
	}

	f, err := m.fs.Open(name, true)
	if err != nil {
		return err
	}

	if err := writeNewImage(f, cylinders, sectorsPerTrack, sizeCode, filler, packed); err != nil {
		f.Close()
		m.fs.Remove(name)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeNewImage(f sdcard.File, cylinders, sectorsPerTrack int, sizeCode, filler byte, packed bool) error {
	sectorSize := SectorSizes[sizeCode]

	header := "IMD 1.18: generated by memcard\r\n"
	if _, err := f.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := f.Write([]byte{CommentTerminator}); err != nil {
		return err
	}

	sectorMap := make([]byte, sectorsPerTrack)
	for i := range sectorMap {
		sectorMap[i] = byte(i)
	}

	for cyl := 0; cyl < cylinders; cyl++ {
		desc := []byte{ModeMFM500, byte(cyl), 0, byte(sectorsPerTrack), sizeCode}
		if _, err := f.Write(desc); err != nil {
			return err
		}
		if _, err := f.Write(sectorMap); err != nil {
			return err
		}

		for i := 0; i < sectorsPerTrack; i++ {
			if packed {
				if _, err := f.Write([]byte{byte(TypeCompressed), filler}); err != nil {
					return err
				}
				continue
			}

			if _, err := f.Write([]byte{byte(TypeNormal)}); err != nil {
				return err
			}
			payload := make([]byte, sectorSize)
			for j := range payload {
				payload[j] = filler
			}
			if _, err := f.Write(payload); err != nil {
				return err
			}
		}
	}

	return nil
}
