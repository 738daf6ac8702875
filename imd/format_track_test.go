package imd

import "testing"

// TestFormatTrackRewritesMapAndFiller builds a 4-sector track, then
// formats it with a reversed logical order and a new filler byte, and
// checks both the in-memory sector map and a re-parsed on-disk sector map
// reflect the change.
func TestFormatTrackRewritesMapAndFiller(t *testing.T) {
	var img []byte
	img = append(img, []byte("IMD 1.18: x\r\n")...)
	img = append(img, CommentTerminator)
	img = append(img, ModeMFM500, 0, 0, 4, 0) // 4 sectors, size code 0 = 128 bytes
	img = append(img, []byte{0, 1, 2, 3}...)
	for i := 0; i < 4; i++ {
		img = append(img, byte(TypeNormal))
		img = append(img, make([]byte, 128)...)
	}

	f := newMemFile("fmt.imd", img)
	d, err := Parse(f, "fmt.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mustSeek(t, d, 0, 0)

	// New logical order: 3,2,1,0, each record (cyl,head,sect,nbytes).
	src := []byte{
		0, 0, 3, 0,
		0, 0, 2, 0,
		0, 0, 1, 0,
		0, 0, 0, 0,
	}

	res, err := d.FormatTrack(FormatParams{Head: 0, Cyl: 0, SizeCode: 0, Sectors: 4, MFM: true, Filler: 0x99}, src)
	if err != nil {
		t.Fatalf("FormatTrack: %v", err)
	}
	if res.SectorNotFound || res.MediaIncompatible || res.WriteProtected {
		t.Fatalf("unexpected error flags: %+v", res)
	}

	idx, ok := d.PhysicalSector(3)
	if !ok || idx != 0 {
		t.Fatalf("PhysicalSector(3) = (%d,%v), want (0,true)", idx, ok)
	}

	// Bytes-per-sector code 0 in a read means DTL caps the transfer, so DTL
	// names the full 128-byte sector.
	dst := make([]byte, 128)
	if _, err := d.ReadData(XferParams{Head: 0, Cyl: 0, FirstSector: 3, SizeCode: 0, EOT: 3, DTL: 128, Mode: NormalData, MFM: true}, dst); err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	for _, b := range dst {
		if b != 0x99 {
			t.Fatalf("got filler %#x, want 0x99", b)
		}
	}

	// Re-parse from scratch to check the sector map was actually persisted.
	f2 := newMemFile("fmt.imd", f.buf)
	d2, err := Parse(f2, "fmt.imd", false)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	mustSeek(t, d2, 0, 0)
	if idx, ok := d2.PhysicalSector(3); !ok || idx != 0 {
		t.Fatalf("re-parsed PhysicalSector(3) = (%d,%v), want (0,true)", idx, ok)
	}
}

// TestFormatTrackRejectsGeometryMismatch checks a format command naming
// the wrong cylinder fails without mutating anything.
func TestFormatTrackRejectsGeometryMismatch(t *testing.T) {
	f := newMemFile("a1.imd", buildA1Image())
	d, err := Parse(f, "a1.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mustSeek(t, d, 0, 0)

	src := []byte{5, 0, 0, 2} // wrong cylinder
	res, err := d.FormatTrack(FormatParams{Head: 0, Cyl: 0, SizeCode: 2, Sectors: 1, MFM: true, Filler: 0x00}, src)
	if err != nil {
		t.Fatalf("FormatTrack: %v", err)
	}
	if !res.SectorNotFound {
		t.Fatalf("expected SectorNotFound for mismatched cyl record")
	}
}
