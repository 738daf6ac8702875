// Package imd implements the IMD disk-image engine: parsing, seeking,
// reading, writing, formatting and in-place "uncompression" of sectors
// inside IMD-format image files, plus the mount/unmount/copy/rename/erase
// lifecycle.
//
// Grounded on other_examples/1d1b6dc2_sergev-fdx__hfe-imd.go.go for the
// on-disk layout idiom (5-byte track header, io.ReadFull byte-exact reads,
// sector flag decoding), restructured from "load the whole image into
// memory" to a seek-based, in-place mutation model: uncompressing a
// sector grows the file and shifts every following byte, and writes land
// through a per-track file-offset map rather than a full rewrite.
package imd

import "errors"

const (
	// Signature is the 4-byte little-endian "IMD " magic at file start.
	Signature = "IMD "
	// CommentTerminator ends the ASCII comment header.
	CommentTerminator = 0x1A

	// trackHeaderSize is the 5-byte imd_data_t (mode, cyl, head, sectors, size).
	trackHeaderSize = 5

	// ModeFM500 and ModeMFM500 are the only two accepted track modes.
	ModeFM500  = 0
	ModeMFM500 = 3

	headCylMapPresent  = 0x80
	headHeadMapPresent = 0x40
	headNumberMask     = 0x3F
)

// SectorSizes maps the 0..6 size code to its byte count.
var SectorSizes = [7]int{128, 256, 512, 1024, 2048, 4096, 8192}

// SectorType is the per-sector type byte.
type SectorType byte

const (
	TypeUnavailable SectorType = iota
	TypeNormal
	TypeCompressed
	TypeNormalDeleted
	TypeCompressedDeleted
	TypeNormalError
	TypeCompressedError
	TypeNormalDeletedError
	TypeCompressedDeletedError
)

// IsCompressed reports whether t stores a single repeating fill byte
// instead of its full payload.
func (t SectorType) IsCompressed() bool {
	switch t {
	case TypeCompressed, TypeCompressedDeleted, TypeCompressedError, TypeCompressedDeletedError:
		return true
	}
	return false
}

// IsDeleted reports whether t carries a deleted address mark.
func (t SectorType) IsDeleted() bool {
	switch t {
	case TypeNormalDeleted, TypeCompressedDeleted, TypeNormalDeletedError, TypeCompressedDeletedError:
		return true
	}
	return false
}

// IsError reports whether t is one of the *_ERROR variants.
func (t SectorType) IsError() bool {
	switch t {
	case TypeNormalError, TypeCompressedError, TypeNormalDeletedError, TypeCompressedDeletedError:
		return true
	}
	return false
}

// errors.New is used throughout the package, matching usbarmory-tamago's
// own error style (imx6/usdhc/cmd.go: errors.New("command inhibit"), ...).
var (
	ErrBadSignature  = errors.New("imd: missing \"IMD \" signature")
	ErrBadMode       = errors.New("imd: inconsistent or unsupported track mode")
	ErrBadSize       = errors.New("imd: sector size code out of range")
	ErrUnavailable   = errors.New("imd: sector type unavailable")
	ErrTruncated     = errors.New("imd: truncated track record")
	ErrReadOnly      = errors.New("imd: disk is read-only")
	ErrSectorNotUsed = errors.New("imd: logical sector not present on track")

	errTrackNotSeeked = errors.New("imd: no current track; call SeekTrack first")
)
