package fdc

import "github.com/kim1fw/memcard/imd"

// ST0 bits: interrupt code in the top two, plus the flags IMD-level
// conditions fold into.
const (
	st0ICNormal   = 0x00
	st0ICAbnormal = 0x40
	st0ICInvalid  = 0x80

	st0SeekEnd  = 0x20
	st0EquipChk = 0x10
	st0NotReady = 0x08
)

// ST1 bits.
const (
	st1EN = 0x80 // end of track
	st1DM = 0x40 // bad DMA address (emulator-specific)
	st1DE = 0x20 // data error
	st1ND = 0x04 // sector not found
	st1NW = 0x02 // not writable
	st1MA = 0x01 // missing address mark / media incompatible
)

// ST2 bits.
const (
	st2CM = 0x40 // control mark (mode mismatch)
	st2DD = 0x20 // data error in data field
	st2WC = 0x10 // wrong cylinder
)

// ST3 bits (SENSE DRIVE STATUS).
const (
	st3WP = 0x40 // write protected
	st3RY = 0x20 // ready
	st3T0 = 0x10 // at track 0
)

// statusFromXfer folds an imd.XferResult into ST0/ST1/ST2. A bad DMA
// address is checked by the caller before the transfer even starts;
// everything else comes from the engine.
func statusFromXfer(res imd.XferResult) (st0, st1, st2 byte) {
	if res.EndOfTrack {
		st1 |= st1EN
	}
	if res.SectorNotFound {
		st1 |= st1ND
	}
	if res.WrongCylinder {
		st2 |= st2WC
	}
	if res.MediaIncompatible {
		st1 |= st1MA
	}
	if res.DataError {
		st1 |= st1DE
		st2 |= st2DD
	}
	if res.ModeMismatch {
		st2 |= st2CM
	}
	if res.WriteProtected {
		st1 |= st1NW
	}

	if st1 != 0 || st2 != 0 {
		st0 = st0ICAbnormal
	}

	return st0, st1, st2
}

// resultCHRN fills the trailing four bytes of a 7-byte result buffer from
// an XferResult's last-touched sector coordinates.
func resultCHRN(res imd.XferResult) (c, h, r, n byte) {
	return res.LastCyl, res.LastHead, res.LastSector, res.LastSizeCode
}
