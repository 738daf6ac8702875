package fdc

import (
	"github.com/kim1fw/memcard/dma"
)

// darByte returns the host-programmed DAR register's current byte value.
func (c *Controller) darByte() byte {
	word := c.store.ReadCell(c.regs.DAR)
	return byte(word)
}

// activeWindow selects the SYSTEM or USER DMA window per DAR bit 7.
func (c *Controller) activeWindow() dma.Window {
	if c.darByte()&0x80 != 0 {
		return c.UserWindow
	}
	return c.SysWindow
}

// dmaBounds computes the effective DMA address and the max transfer size
// for the currently selected window and DAR. It is the single call site
// that decides a DMA address is invalid: iff the window would straddle
// the half-bank boundary of an odd-aligned bank.
func (c *Controller) dmaBounds() (win dma.Window, max int, err error) {
	win = c.activeWindow()
	dar := c.darByte()

	max, err = win.MaxTransfer(dar)
	if err != nil {
		return win, 0, err
	}
	return win, max, nil
}

// loadFromWindow pulls up to max bytes out of the active DMA window for a
// WRITE-shaped command (WRITE DATA/DEL, FORMAT TRACK), which expects
// host->controller movement (HSR.DMADIR == 0). If DMADIR is set instead,
// the direction gate bypasses the copy and the buffer comes back zeroed
// (spec §4.4: "for a write command, bypass the copy if HSR.DMADIR is set").
func (c *Controller) loadFromWindow(win dma.Window, max int) []byte {
	buf := make([]byte, max)
	if c.hsrCtl&hsrDMADIR != 0 {
		return buf
	}
	win.Read(c.store, c.darByte(), buf)
	return buf
}

// storeToWindow pushes buf into the active DMA window for a READ-shaped
// command (READ DATA/DEL), which expects controller->host movement
// (HSR.DMADIR == 1). If DMADIR is clear instead, the direction gate
// bypasses the copy and host memory is left untouched (spec §4.4: "for a
// read command, bypass if HSR.DMADIR is clear").
func (c *Controller) storeToWindow(win dma.Window, buf []byte) {
	if c.hsrCtl&hsrDMADIR == 0 {
		return
	}
	win.Write(c.store, c.darByte(), buf)
}
