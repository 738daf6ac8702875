// Package dma implements the two fixed DMA windows (SYSTEM and USER) that
// the floppy controller addresses through DAR. Named after usbarmory's
// dma.Region, but without its general first-fit allocator: the controller
// only ever needs two fixed 8 KiB windows, never a pool of variable-sized
// allocations (see DESIGN.md).
package dma

import (
	"errors"

	"github.com/kim1fw/memcard/cell"
)

const (
	// WindowSize is the size, in bytes, of a DMA window.
	WindowSize = 8 * 1024
	// HalfBank is the half-window boundary a computed address must not
	// straddle when the bank is odd-aligned.
	HalfBank = 4 * 1024

	// offsetGranule is the 64-byte granularity of DAR's low 6 bits.
	offsetGranule = 64
)

// ErrInvalidAddr is returned when the computed DMA address would cross the
// half-bank boundary of an odd-aligned window.
var ErrInvalidAddr = errors.New("dma: address crosses half-bank boundary of odd-aligned window")

// Window is a fixed view over the cell store selected by the SYSTEM/USER
// flag bit of DAR.
type Window struct {
	Base uint16
	Size int
}

// NewWindow returns a Window of the fixed size starting at base.
func NewWindow(base uint16) Window {
	return Window{Base: base, Size: WindowSize}
}

// Addr computes the effective DMA address from the window base and the DAR
// byte (bit7 SYSTEM/USER handled by caller's choice of window, bit6 odd
// bank, bits0-5 64-byte-granular offset).
//
// A window is "odd-aligned" when its base does not sit on an 8 KiB
// boundary (Base % 2*HalfBank == HalfBank): it already occupies the upper
// 4 KiB half relative to the wider addressing grid. Selecting the odd bank
// (DAR bit6) on such a window would compute an address in the *next*
// window's territory, which is invalid; Addr reports ErrInvalidAddr in
// that case rather than silently wrapping.
func (w Window) Addr(dar byte) (uint16, error) {
	odd := dar&0x40 != 0
	offset := uint32(dar&0x3F) * offsetGranule

	windowOddAligned := uint32(w.Base)%(2*HalfBank) == HalfBank
	if odd && windowOddAligned {
		return 0, ErrInvalidAddr
	}

	base := uint32(w.Base)
	if odd {
		base += HalfBank
	}

	return uint16(base + offset), nil
}

// MaxTransfer returns the remaining byte count between the effective
// address and the end of the 4 KiB half it falls in (the lower half when
// DAR bit6 is clear, the upper half when it is set), which bounds the
// controller's max DMA transfer size for a command.
func (w Window) MaxTransfer(dar byte) (int, error) {
	addr, err := w.Addr(dar)
	if err != nil {
		return 0, err
	}

	odd := dar&0x40 != 0
	end := uint32(w.Base) + HalfBank
	if odd {
		end = uint32(w.Base) + HalfBank + HalfBank
	}

	return int(end - uint32(addr)), nil
}

// Read copies count bytes from the window's effective address (per dar)
// out of store into dst.
func (w Window) Read(store *cell.Store, dar byte, dst []byte) (int, error) {
	addr, err := w.Addr(dar)
	if err != nil {
		return 0, err
	}

	max, err := w.MaxTransfer(dar)
	if err != nil {
		return 0, err
	}

	n := len(dst)
	if n > max {
		n = max
	}

	for i := 0; i < n; i++ {
		dst[i], _, _ = store.ReadByte(addr + uint16(i))
	}

	return n, nil
}

// Write copies src into the window's effective address (per dar), honoring
// store's per-cell enabled/writeable attributes (a write to a disabled or
// ROM cell inside the window is silently dropped).
func (w Window) Write(store *cell.Store, dar byte, src []byte) (int, error) {
	addr, err := w.Addr(dar)
	if err != nil {
		return 0, err
	}

	max, err := w.MaxTransfer(dar)
	if err != nil {
		return 0, err
	}

	n := len(src)
	if n > max {
		n = max
	}

	for i := 0; i < n; i++ {
		store.WriteByte(addr+uint16(i), src[i])
	}

	return n, nil
}
