package imd

import (
	"hash/crc32"
	"testing"
)

func TestChecksumMatchesDirectCRC(t *testing.T) {
	data := buildA1Image()
	f := newMemFile("a1.imd", data)
	d, err := Parse(f, "a1.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got, err := d.Checksum()
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	want := crc32.ChecksumIEEE(data)
	if got != want {
		t.Fatalf("got checksum %#x, want %#x", got, want)
	}
}
