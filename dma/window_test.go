package dma

import (
	"testing"

	"github.com/kim1fw/memcard/cell"
)

// TestDMAAddressValidity exercises the odd-aligned half-bank-boundary rule.
func TestDMAAddressValidity(t *testing.T) {
	evenWindow := NewWindow(0x2000) // 0x2000 % 8KiB == 0 -> even-aligned
	oddWindow := NewWindow(0x1000)  // 0x1000 % 8KiB == 4KiB -> odd-aligned

	if _, err := evenWindow.Addr(0x40); err != nil { // odd bit set, even window
		t.Fatalf("even-aligned window + odd bank: unexpected error: %v", err)
	}

	if _, err := oddWindow.Addr(0x40); err != ErrInvalidAddr { // odd bit set, odd window
		t.Fatalf("odd-aligned window + odd bank: got %v, want ErrInvalidAddr", err)
	}

	if _, err := oddWindow.Addr(0x00); err != nil { // even bank access is always fine
		t.Fatalf("odd-aligned window + even bank: unexpected error: %v", err)
	}
}

func TestWindowReadWrite(t *testing.T) {
	s := cell.NewStore()
	s.RangeOp(0, cell.NumCells, cell.OpSetRAM, 0)
	s.RangeOp(0, cell.NumCells, cell.OpEnable, 0)

	w := NewWindow(0x4000)
	src := []byte{1, 2, 3, 4}

	n, err := w.Write(s, 0x00, src)
	if err != nil || n != 4 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	dst := make([]byte, 4)
	n, err = w.Read(s, 0x00, dst)
	if err != nil || n != 4 {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("roundtrip mismatch at %d: got %d want %d", i, dst[i], src[i])
		}
	}
}

func TestWindowMaxTransferClamps(t *testing.T) {
	s := cell.NewStore()
	s.RangeOp(0, cell.NumCells, cell.OpSetRAM, 0)
	s.RangeOp(0, cell.NumCells, cell.OpEnable, 0)

	w := NewWindow(0x2000)
	// dar=0x3F -> offset 63*64=4032, leaving only 64 bytes in the 4KiB half.
	big := make([]byte, 1024)
	n, err := w.Write(s, 0x3F, big)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 64 {
		t.Fatalf("got n=%d, want 64 (clamped to half-window remainder)", n)
	}
}
