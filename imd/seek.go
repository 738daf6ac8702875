package imd

import (
	"fmt"
	"io"
)

// SeekTrack makes (head, cyl) the current track, reloading its descriptor,
// sector map and per-sector type/offset table if it isn't already cached
// It is a no-op if the track is already current.
func (d *Disk) SeekTrack(head, cyl byte) error {
	if d.cur.valid && d.cur.head == head && d.cur.cyl == cyl {
		return nil
	}

	if int(head) >= d.Heads || int(cyl) >= d.Cylinders {
		return fmt.Errorf("imd: track %d/%d out of range (heads=%d cyls=%d)", head, cyl, d.Heads, d.Cylinders)
	}

	offset := d.trackMap[head][cyl]
	if offset < 0 {
		return fmt.Errorf("imd: track %d/%d not present", head, cyl)
	}

	if _, err := d.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	desc, err := readTrackHeader(d.file)
	if err != nil {
		return err
	}

	n := int(desc.Sectors)
	sectorMap := make([]byte, n)
	if _, err := io.ReadFull(d.file, sectorMap); err != nil {
		return err
	}

	if desc.HasCylMap() {
		if _, err := io.CopyN(io.Discard, d.file, int64(n)); err != nil {
			return err
		}
	}
	if desc.HasHeadMap() {
		if _, err := io.CopyN(io.Discard, d.file, int64(n)); err != nil {
			return err
		}
	}

	sectorSize := SectorSizes[desc.Size]
	info := make([]SectorInfo, n)
	typeBuf := make([]byte, 1)

	for i := 0; i < n; i++ {
		typeOffset, err := d.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}

		if _, err := io.ReadFull(d.file, typeBuf); err != nil {
			return err
		}

		t := SectorType(typeBuf[0])
		info[i] = SectorInfo{Type: t, Offset: typeOffset}

		dataLen := int64(1)
		if !t.IsCompressed() {
			dataLen = int64(sectorSize)
		}
		if _, err := d.file.Seek(dataLen, io.SeekCurrent); err != nil {
			return err
		}
	}

	d.cur = currentTrack{
		valid:      true,
		head:       head,
		cyl:        cyl,
		desc:       desc,
		sectorMap:  sectorMap,
		sectorInfo: info,
		fileOffset: offset,
	}

	return nil
}

// PhysicalSector returns the physical slot index for a logical sector id
// on the current track — the inverse of the sector map.
func (d *Disk) PhysicalSector(logical byte) (int, bool) {
	return d.cur.physicalIndex(logical)
}

// CurrentTrackDescriptor returns the cached descriptor of the current
// track, for ReadID.
func (d *Disk) CurrentTrackDescriptor() (TrackDescriptor, bool) {
	return d.cur.desc, d.cur.valid
}

// MFMCompatible reports whether the current track's mode matches mfm.
func (d *Disk) MFMCompatible(mfm bool) bool {
	return d.cur.valid && (d.cur.desc.Mode == ModeMFM500) == mfm
}
