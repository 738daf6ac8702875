package imd

import "testing"

func mustSeek(t *testing.T, d *Disk, head, cyl byte) {
	t.Helper()
	if err := d.SeekTrack(head, cyl); err != nil {
		t.Fatalf("SeekTrack(%d,%d): %v", head, cyl, err)
	}
}

// TestReadDataA1Scenario reads the A1 disk's only sector and checks it
// delivers 512 bytes of 0xE5.
func TestReadDataA1Scenario(t *testing.T) {
	f := newMemFile("a1.imd", buildA1Image())
	d, err := Parse(f, "a1.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mustSeek(t, d, 0, 0)

	dst := make([]byte, 512)
	res, err := d.ReadData(XferParams{Head: 0, Cyl: 0, FirstSector: 0, SizeCode: 2, EOT: 0, Mode: NormalData, MFM: true}, dst)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if res.SectorNotFound || res.WrongCylinder || res.MediaIncompatible || res.DataError {
		t.Fatalf("unexpected error flags: %+v", res)
	}
	if res.BytesTransferred != 512 {
		t.Fatalf("got BytesTransferred=%d, want 512", res.BytesTransferred)
	}
	for i, b := range dst {
		if b != 0xE5 {
			t.Fatalf("dst[%d] = %#x, want 0xE5", i, b)
		}
	}
}

// TestWriteDataA2Scenario writes 0xAA over the A1 disk's sector and checks
// the re-read matches and the sector type becomes NORMAL.
func TestWriteDataA2Scenario(t *testing.T) {
	f := newMemFile("a1.imd", buildA1Image())
	d, err := Parse(f, "a1.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mustSeek(t, d, 0, 0)

	src := make([]byte, 512)
	for i := range src {
		src[i] = 0xAA
	}

	if _, err := d.WriteData(XferParams{Head: 0, Cyl: 0, FirstSector: 0, SizeCode: 2, EOT: 0, Mode: NormalData, MFM: true}, src); err != nil {
		t.Fatalf("WriteData: %v", err)
	}

	idx, ok := d.PhysicalSector(0)
	if !ok {
		t.Fatalf("sector 0 not found after write")
	}
	if d.cur.sectorInfo[idx].Type != TypeNormal {
		t.Fatalf("got sector type %v, want TypeNormal", d.cur.sectorInfo[idx].Type)
	}

	dst := make([]byte, 512)
	res, err := d.ReadData(XferParams{Head: 0, Cyl: 0, FirstSector: 0, SizeCode: 2, EOT: 0, Mode: NormalData, MFM: true}, dst)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if res.BytesTransferred != 512 {
		t.Fatalf("got BytesTransferred=%d, want 512", res.BytesTransferred)
	}
	for i, b := range dst {
		if b != 0xAA {
			t.Fatalf("dst[%d] = %#x, want 0xAA", i, b)
		}
	}
}

// TestWriteDataA3Scenario writes over a compressed sector and checks the
// file grows by exactly sectorSize-1 bytes, the type becomes NORMAL, and
// the new content reads back correctly (testable uncompress monotonicity).
func TestWriteDataA3Scenario(t *testing.T) {
	img := buildA3Image()
	f := newMemFile("a3.imd", img)
	d, err := Parse(f, "a3.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mustSeek(t, d, 0, 0)

	stat, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	oldSize := stat.Size()

	src := make([]byte, 512)
	for i := range src {
		src[i] = 0x33
	}

	if _, err := d.WriteData(XferParams{Head: 0, Cyl: 0, FirstSector: 0, SizeCode: 2, EOT: 0, Mode: NormalData, MFM: true}, src); err != nil {
		t.Fatalf("WriteData: %v", err)
	}

	stat, err = f.Stat()
	if err != nil {
		t.Fatalf("Stat after write: %v", err)
	}
	if got, want := stat.Size()-oldSize, int64(511); got != want {
		t.Fatalf("file grew by %d bytes, want %d", got, want)
	}

	idx, ok := d.PhysicalSector(0)
	if !ok {
		t.Fatalf("sector 0 not found")
	}
	if d.cur.sectorInfo[idx].Type != TypeNormal {
		t.Fatalf("got sector type %v, want TypeNormal", d.cur.sectorInfo[idx].Type)
	}

	dst := make([]byte, 512)
	if _, err := d.ReadData(XferParams{Head: 0, Cyl: 0, FirstSector: 0, SizeCode: 2, EOT: 0, Mode: NormalData, MFM: true}, dst); err != nil {
		t.Fatalf("re-read: %v", err)
	}
	for i, b := range dst {
		if b != 0x33 {
			t.Fatalf("dst[%d] = %#x, want 0x33", i, b)
		}
	}
}

// TestPhysicalSectorInversion checks PhysicalSector correctly inverts a
// non-trivial sector interleave.
func TestPhysicalSectorInversion(t *testing.T) {
	var imgBuf []byte
	imgBuf = append(imgBuf, []byte("IMD 1.18: x\r\n")...)
	imgBuf = append(imgBuf, CommentTerminator)
	imgBuf = append(imgBuf, ModeMFM500, 0, 0, 4, 0) // 4 sectors, size code 0 = 128 bytes
	sectorMap := []byte{2, 0, 3, 1}                 // interleaved
	imgBuf = append(imgBuf, sectorMap...)
	for i := 0; i < 4; i++ {
		imgBuf = append(imgBuf, byte(TypeNormal))
		imgBuf = append(imgBuf, make([]byte, 128)...)
	}

	f := newMemFile("il.imd", imgBuf)
	d, err := Parse(f, "il.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mustSeek(t, d, 0, 0)

	for logical, wantIdx := range map[byte]int{2: 0, 0: 1, 3: 2, 1: 3} {
		idx, ok := d.PhysicalSector(logical)
		if !ok || idx != wantIdx {
			t.Fatalf("PhysicalSector(%d) = (%d,%v), want (%d,true)", logical, idx, ok, wantIdx)
		}
	}

	if _, ok := d.PhysicalSector(9); ok {
		t.Fatalf("PhysicalSector(9) reported found for a logical id not on the track")
	}
}

// TestReadOnlyWriteRejected checks that WriteData on a read-only disk
// reports WriteProtected.
func TestReadOnlyWriteRejected(t *testing.T) {
	f := newMemFile("a1.imd", buildA1Image())
	d, err := Parse(f, "a1.imd", true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mustSeek(t, d, 0, 0)

	src := make([]byte, 512)
	res, err := d.WriteData(XferParams{Head: 0, Cyl: 0, FirstSector: 0, SizeCode: 2, EOT: 0, Mode: NormalData, MFM: true}, src)
	if err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if !res.WriteProtected {
		t.Fatalf("write to read-only disk did not report WriteProtected")
	}
}
