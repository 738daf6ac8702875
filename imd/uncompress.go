package imd

import "io"

// uncompressedType maps a compressed sector type to its normal counterpart,
// preserving the deleted/error bits.
func (t SectorType) uncompressedType() SectorType {
	switch t {
	case TypeCompressed:
		return TypeNormal
	case TypeCompressedDeleted:
		return TypeNormalDeleted
	case TypeCompressedError:
		return TypeNormalError
	case TypeCompressedDeletedError:
		return TypeNormalDeletedError
	}
	return t
}

// uncompressShiftChunk bounds how much of the file is shuffled through
// memory per iteration while growing it in place.
const uncompressShiftChunk = 64 * 1024

// UncompressSector expands a compressed sector (a type byte plus one fill
// byte) into a full sectorSize payload in place, growing the file and
// shifting every later byte forward by sectorSize-1. It is idempotent:
// calling it on an already-uncompressed sector is a no-op, and the file
// only ever grows, never shrinks.
func (d *Disk) UncompressSector(idx int) error {
	info := d.cur.sectorInfo[idx]
	if !info.Type.IsCompressed() {
		return nil
	}

	sectorSize := SectorSizes[d.cur.desc.Size]
	growBy := int64(sectorSize - 1)
	insertAt := info.Offset + 2 // past the type byte and the single fill byte

	stat, err := d.file.Stat()
	if err != nil {
		return err
	}
	oldSize := stat.Size()
	newSize := oldSize + growBy

	if err := d.file.Truncate(newSize); err != nil {
		return err
	}

	buf := make([]byte, uncompressShiftChunk)
	for pos := oldSize; pos > insertAt; {
		n := int64(len(buf))
		if n > pos-insertAt {
			n = pos - insertAt
		}
		readStart := pos - n

		if _, err := d.file.Seek(readStart, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.ReadFull(d.file, buf[:n]); err != nil {
			return err
		}
		if _, err := d.file.Seek(readStart+growBy, io.SeekStart); err != nil {
			return err
		}
		if _, err := d.file.Write(buf[:n]); err != nil {
			return err
		}
		if err := d.file.Sync(); err != nil {
			return err
		}

		pos = readStart
	}

	fillBuf := make([]byte, 1)
	if _, err := d.file.Seek(info.Offset+1, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(d.file, fillBuf); err != nil {
		return err
	}

	payload := make([]byte, sectorSize)
	for i := range payload {
		payload[i] = fillBuf[0]
	}

	newType := info.Type.uncompressedType()
	if _, err := d.file.Seek(info.Offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := d.file.Write([]byte{byte(newType)}); err != nil {
		return err
	}
	if _, err := d.file.Write(payload); err != nil {
		return err
	}
	if err := d.file.Sync(); err != nil {
		return err
	}

	d.cur.sectorInfo[idx].Type = newType
	for i := range d.cur.sectorInfo {
		if i != idx && d.cur.sectorInfo[i].Offset > info.Offset {
			d.cur.sectorInfo[i].Offset += growBy
		}
	}
	for h := range d.trackMap {
		for c := range d.trackMap[h] {
			if off := d.trackMap[h][c]; off > info.Offset {
				d.trackMap[h][c] = off + growBy
			}
		}
	}

	return nil
}
