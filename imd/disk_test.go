package imd

import "testing"

// TestParseA1Scenario parses the single-track, single-sector image and
// checks its geometry and that seeking the only track succeeds.
func TestParseA1Scenario(t *testing.T) {
	f := newMemFile("a1.imd", buildA1Image())

	d, err := Parse(f, "a1.imd", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if d.Cylinders != 1 || d.Heads != 1 {
		t.Fatalf("got cylinders=%d heads=%d, want 1/1", d.Cylinders, d.Heads)
	}

	if err := d.SeekTrack(0, 0); err != nil {
		t.Fatalf("SeekTrack(0,0): %v", err)
	}
}

// TestParseRejectsUnavailableSector checks that a track containing a
// TypeUnavailable sector fails to parse.
func TestParseRejectsUnavailableSector(t *testing.T) {
	img := buildA1Image()
	// The sector type byte sits right after the 5-byte header + 1-byte
	// sector map.
	typeOffset := len("IMD 1.18: 01/01/25\r\nx") + 1 + 5 + 1
	img[typeOffset] = byte(TypeUnavailable)

	f := newMemFile("bad.imd", img)
	if _, err := Parse(f, "bad.imd", false); err != ErrUnavailable {
		t.Fatalf("got err=%v, want ErrUnavailable", err)
	}
}

// TestParseRejectsBadSignature checks the signature is validated before
// anything else.
func TestParseRejectsBadSignature(t *testing.T) {
	img := append([]byte("NOPE"), buildA1Image()[4:]...)
	f := newMemFile("bad.imd", img)
	if _, err := Parse(f, "bad.imd", false); err != ErrBadSignature {
		t.Fatalf("got err=%v, want ErrBadSignature", err)
	}
}
