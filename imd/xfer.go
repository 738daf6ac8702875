package imd

import (
	"io"
)

// XferMode distinguishes a normal-data transfer from a deleted-data-mark
// transfer.
type XferMode int

const (
	NormalData XferMode = iota
	DeletedData
)

// XferResult carries every condition imd's read/write operations can
// surface; fdc folds these into the uPD765 ST0/ST1/ST2 result bytes,
// keeping imd itself free of any uPD765-specific bit layout.
type XferResult struct {
	BytesTransferred int

	EndOfTrack        bool // ST1 EN
	SectorNotFound    bool // ST1 ND
	WrongCylinder     bool // ST1 ND | ST2 WC
	MediaIncompatible bool // ST1 MA
	DataError         bool // ST1 DE, ST2 DD
	ModeMismatch      bool // ST2 CM (requested mode != stored type, skip=false)
	WriteProtected    bool // ST1 NW

	LastCyl      byte
	LastHead     byte
	LastSector   byte
	LastSizeCode byte
}

// XferParams is the uPD765 data-command pre-amble's decoded fields,
// independent of DMA addressing which fdc handles via dma.Window.
type XferParams struct {
	Head        byte
	Cyl         byte
	FirstSector byte
	SizeCode    byte // 0 means "use DTL"
	EOT         byte // end-of-track sector id (inclusive)
	DTL         int
	Mode        XferMode
	Skip        bool
	MFM         bool
}

// ReadID returns the CHRN of the current track. If the media is not
// MFM-compatible with mfm, it reports MediaIncompatible.
func (d *Disk) ReadID(mfm bool) (XferResult, error) {
	desc, ok := d.CurrentTrackDescriptor()
	if !ok {
		return XferResult{}, errTrackNotSeeked
	}

	if !d.MFMCompatible(mfm) {
		return XferResult{MediaIncompatible: true}, nil
	}

	var firstLogical byte
	if len(d.cur.sectorMap) > 0 {
		firstLogical = d.cur.sectorMap[0]
	}

	return XferResult{
		LastCyl:      desc.Cylinder,
		LastHead:     desc.HeadNumber(),
		LastSector:   firstLogical,
		LastSizeCode: desc.Size,
	}, nil
}

// readSectorPayload returns the decompressed sectorSize bytes stored for a
// sector, seeking the shared file handle to do so: the file holds 1 byte
// for a compressed sector, size+1 bytes for a normal one.
func (d *Disk) readSectorPayload(info SectorInfo, sectorSize int) ([]byte, error) {
	if _, err := d.file.Seek(info.Offset+1, io.SeekStart); err != nil {
		return nil, err
	}

	if info.Type.IsCompressed() {
		fill := make([]byte, 1)
		if _, err := io.ReadFull(d.file, fill); err != nil {
			return nil, err
		}
		buf := make([]byte, sectorSize)
		for i := range buf {
			buf[i] = fill[0]
		}
		return buf, nil
	}

	buf := make([]byte, sectorSize)
	if _, err := io.ReadFull(d.file, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// transferLen returns the per-sector byte count to move, honoring DTL when
// SizeCode is 0; write mirrors read's DTL handling.
func transferLen(p XferParams, sectorSize int) int {
	if p.SizeCode != 0 {
		return sectorSize
	}
	if p.DTL < sectorSize {
		return p.DTL
	}
	return sectorSize
}

// ReadData delivers sectors for a READ DATA / READ DEL command. dst is the
// DMA destination buffer, already sized to the controller's max DMA
// transfer for this command; sectors are delivered in logical order per
// the sector map, not physical order.
func (d *Disk) ReadData(p XferParams, dst []byte) (XferResult, error) {
	var res XferResult

	desc, ok := d.CurrentTrackDescriptor()
	if !ok {
		return res, errTrackNotSeeked
	}
	res.LastCyl, res.LastHead, res.LastSizeCode = desc.Cylinder, desc.HeadNumber(), desc.Size

	if desc.Cylinder != p.Cyl {
		res.SectorNotFound = true
		res.WrongCylinder = true
		return res, nil
	}

	if !d.MFMCompatible(p.MFM) {
		res.MediaIncompatible = true
		return res, nil
	}

	sectorSize := SectorSizes[desc.Size]
	want := transferLen(p, sectorSize)

	logical := p.FirstSector
	offset := 0

	for {
		res.LastSector = logical

		idx, found := d.cur.physicalIndex(logical)
		if !found {
			res.SectorNotFound = true
			break
		}

		info := d.cur.sectorInfo[idx]

		if info.Type.IsError() {
			res.DataError = true
		}

		wantDeleted := p.Mode == DeletedData
		mismatched := info.Type.IsDeleted() != wantDeleted

		if mismatched && !p.Skip {
			res.ModeMismatch = true
			break
		}

		if !mismatched || p.Skip && !mismatched {
			payload, err := d.readSectorPayload(info, sectorSize)
			if err != nil {
				return res, err
			}

			n := want
			if offset+n > len(dst) {
				n = len(dst) - offset
			}
			if n > 0 {
				copy(dst[offset:offset+n], payload[:n])
				offset += n
			}
		}
		// mismatched && p.Skip: sector is skipped entirely, no copy.

		if logical == p.EOT {
			res.EndOfTrack = true
			break
		}
		if offset >= len(dst) {
			res.EndOfTrack = true
			break
		}

		logical++
	}

	res.BytesTransferred = offset
	return res, nil
}

// WriteData writes sectors for a WRITE DATA / WRITE DEL command. src holds
// exactly the bytes the controller placed in its DMA window for this
// command.
func (d *Disk) WriteData(p XferParams, src []byte) (XferResult, error) {
	var res XferResult

	if d.ReadOnly {
		res.WriteProtected = true
		return res, nil
	}

	desc, ok := d.CurrentTrackDescriptor()
	if !ok {
		return res, errTrackNotSeeked
	}
	res.LastCyl, res.LastHead, res.LastSizeCode = desc.Cylinder, desc.HeadNumber(), desc.Size

	if desc.Cylinder != p.Cyl {
		res.SectorNotFound = true
		res.WrongCylinder = true
		return res, nil
	}

	if !d.MFMCompatible(p.MFM) {
		res.MediaIncompatible = true
		return res, nil
	}

	sectorSize := SectorSizes[desc.Size]
	want := transferLen(p, sectorSize)

	newType := TypeNormal
	if p.Mode == DeletedData {
		newType = TypeNormalDeleted
	}

	logical := p.FirstSector
	offset := 0

	for {
		res.LastSector = logical

		idx, found := d.cur.physicalIndex(logical)
		if !found {
			res.SectorNotFound = true
			break
		}

		info := d.cur.sectorInfo[idx]

		if info.Type.IsCompressed() {
			if err := d.UncompressSector(idx); err != nil {
				return res, err
			}
			info = d.cur.sectorInfo[idx]
		}

		n := want
		if offset+n > len(src) {
			n = len(src) - offset
		}

		payload := make([]byte, sectorSize)
		if n > 0 {
			copy(payload, src[offset:offset+n])
		}

		if _, err := d.file.Seek(info.Offset, io.SeekStart); err != nil {
			return res, err
		}
		if _, err := d.file.Write([]byte{byte(newType)}); err != nil {
			return res, err
		}
		if _, err := d.file.Write(payload); err != nil {
			return res, err
		}
		if err := d.file.Sync(); err != nil {
			return res, err
		}

		d.cur.sectorInfo[idx].Type = newType
		offset += n

		if logical == p.EOT {
			res.EndOfTrack = true
			break
		}
		if offset >= len(src) {
			res.EndOfTrack = true
			break
		}

		logical++
	}

	res.BytesTransferred = offset
	return res, nil
}
