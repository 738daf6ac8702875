package imd

import (
	"errors"
	"io"
)

// FormatParams is the uPD765 FORMAT TRACK pre-amble: the track geometry the
// caller believes is current, which must match the already-parsed track
// exactly.
type FormatParams struct {
	Head     byte
	Cyl      byte
	SizeCode byte
	Sectors  byte
	MFM      bool
	Filler   byte
}

var errFormatTrackSrcShort = errors.New("imd: format track source shorter than 4 bytes per sector")

// FormatTrack rewrites every sector on the current track with a caller-
// supplied logical id and a filler-initialised body, preserving each
// sector's existing compressed/normal storage shape. src holds one 4-byte
// (cyl, head, sect, nbytes) record per sector, pulled from the controller's
// DMA window. Only supported when the track was already parsed with
// identical geometry; any mismatch in cyl/head/size/sector-count fails the
// whole command without touching the file.
func (d *Disk) FormatTrack(p FormatParams, src []byte) (XferResult, error) {
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

	if desc.Cylinder != p.Cyl || desc.HeadNumber() != p.Head || desc.Size != p.SizeCode || desc.Sectors != p.Sectors {
		res.SectorNotFound = true
		return res, nil
	}

	if !d.MFMCompatible(p.MFM) {
		res.MediaIncompatible = true
		return res, nil
	}

	n := int(desc.Sectors)
	if len(src) < n*4 {
		return res, errFormatTrackSrcShort
	}

	for i := 0; i < n; i++ {
		rec := src[i*4 : i*4+4]
		cyl, head, nbytes := rec[0], rec[1], rec[3]

		if cyl != desc.Cylinder || head != desc.HeadNumber() || nbytes != desc.Size {
			res.SectorNotFound = true
			return res, nil
		}
	}

	sectorSize := SectorSizes[desc.Size]
	newSectorMap := make([]byte, n)

	for i := 0; i < n; i++ {
		newSectorMap[i] = src[i*4+2]

		info := d.cur.sectorInfo[i]
		newType := TypeNormal
		if info.Type.IsCompressed() {
			newType = TypeCompressed
		}

		if _, err := d.file.Seek(info.Offset, io.SeekStart); err != nil {
			return res, err
		}
		if _, err := d.file.Write([]byte{byte(newType)}); err != nil {
			return res, err
		}

		if newType == TypeCompressed {
			if _, err := d.file.Write([]byte{p.Filler}); err != nil {
				return res, err
			}
		} else {
			payload := make([]byte, sectorSize)
			for j := range payload {
				payload[j] = p.Filler
			}
			if _, err := d.file.Write(payload); err != nil {
				return res, err
			}
		}

		d.cur.sectorInfo[i].Type = newType
	}

	d.cur.sectorMap = newSectorMap

	if _, err := d.file.Seek(d.cur.fileOffset+trackHeaderSize, io.SeekStart); err != nil {
		return res, err
	}
	if _, err := d.file.Write(newSectorMap); err != nil {
		return res, err
	}
	if err := d.file.Sync(); err != nil {
		return res, err
	}

	res.BytesTransferred = n * 4
	return res, nil
}
