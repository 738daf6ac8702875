package imd

import "testing"

func newMountedFS(t *testing.T, name string, data []byte) *memFS {
	t.Helper()
	fs := newMemFS()
	fs.files[name] = data
	return fs
}

// TestMountExclusivity checks that an image can't be mounted twice (on the
// same or a different drive) and a drive can't hold two images at once.
func TestMountExclusivity(t *testing.T) {
	fs := newMountedFS(t, "a.imd", buildA1Image())
	fs.files["b.imd"] = buildA1Image()

	m := NewManager(fs)

	if err := m.Mount(0, "a.imd", false); err != nil {
		t.Fatalf("first mount: %v", err)
	}

	if err := m.Mount(1, "a.imd", false); err != ErrImgMounted {
		t.Fatalf("mounting an already-mounted image on another drive: got %v, want ErrImgMounted", err)
	}

	if err := m.Mount(0, "b.imd", false); err != ErrDrvMounted {
		t.Fatalf("mounting a second image on an occupied drive: got %v, want ErrDrvMounted", err)
	}

	if err := m.Unmount(0); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	if err := m.Mount(1, "a.imd", false); err != nil {
		t.Fatalf("remount after unmount: %v", err)
	}
}

func TestMountUnknownImage(t *testing.T) {
	m := NewManager(newMemFS())
	if err := m.Mount(0, "missing.imd", false); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMountInvalidImage(t *testing.T) {
	fs := newMountedFS(t, "garbage.imd", []byte("not an imd file at all"))
	m := NewManager(fs)
	if err := m.Mount(0, "garbage.imd", false); err != ErrImgInvalid {
		t.Fatalf("got %v, want ErrImgInvalid", err)
	}
}

func TestEraseRefusesMounted(t *testing.T) {
	fs := newMountedFS(t, "a.imd", buildA1Image())
	m := NewManager(fs)

	if err := m.Mount(0, "a.imd", false); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := m.Erase("a.imd"); err != ErrImgMounted {
		t.Fatalf("got %v, want ErrImgMounted", err)
	}
}

func TestCopyAndRename(t *testing.T) {
	fs := newMountedFS(t, "a.imd", buildA1Image())
	m := NewManager(fs)

	if err := m.Copy("a.imd", "a-copy.imd", false); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if _, ok := fs.files["a-copy.imd"]; !ok {
		t.Fatalf("copy target not created")
	}

	if err := m.Rename("a-copy.imd", "a-renamed.imd"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := fs.files["a-renamed.imd"]; !ok {
		t.Fatalf("rename target not created")
	}
	if _, ok := fs.files["a-copy.imd"]; ok {
		t.Fatalf("rename source still present")
	}
}

func TestNewImage(t *testing.T) {
	fs := newMemFS()
	m := NewManager(fs)

	if err := m.New("fresh.imd", 2, 4, 2, 0xE5, false); err != nil {
		t.Fatalf("New: %v", err)
	}

	f := newMemFile("fresh.imd", fs.files["fresh.imd"])
	d, err := Parse(f, "fresh.imd", false)
	if err != nil {
		t.Fatalf("Parse(New output): %v", err)
	}
	if d.Cylinders != 2 || d.Heads != 1 {
		t.Fatalf("got cylinders=%d heads=%d, want 2/1", d.Cylinders, d.Heads)
	}

	if err := d.SeekTrack(0, 1); err != nil {
		t.Fatalf("SeekTrack(0,1): %v", err)
	}
	dst := make([]byte, 512)
	res, err := d.ReadData(XferParams{Head: 0, Cyl: 1, FirstSector: 0, SizeCode: 2, EOT: 0, Mode: NormalData, MFM: true}, dst)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if res.BytesTransferred != 512 {
		t.Fatalf("got %d bytes, want 512", res.BytesTransferred)
	}
	for _, b := range dst {
		if b != 0xE5 {
			t.Fatalf("got filler %#x, want 0xE5", b)
		}
	}
}
