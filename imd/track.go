package imd

// TrackDescriptor is the per-physical-track metadata decoded from a
// track's 5-byte imd_data_t header.
type TrackDescriptor struct {
	Mode     byte
	Cylinder byte
	Head     byte // bit7 cyl-map present, bit6 head-map present, bits0-5 head number
	Sectors  byte
	Size     byte // 0..6 -> SectorSizes
}

// HeadNumber returns the physical head number encoded in Head's low bits.
func (t TrackDescriptor) HeadNumber() byte {
	return t.Head & headNumberMask
}

// HasCylMap reports whether a per-sector cylinder map follows the sector map.
func (t TrackDescriptor) HasCylMap() bool {
	return t.Head&headCylMapPresent != 0
}

// HasHeadMap reports whether a per-sector head map follows the sector map.
func (t TrackDescriptor) HasHeadMap() bool {
	return t.Head&headHeadMapPresent != 0
}

// SectorInfo is the per-sector metadata kept for the currently cached track:
// its type and the file offset of its stored data (the type byte's offset
// minus one, logically — Offset points at the type byte itself so rewrite
// in place is a single seek).
type SectorInfo struct {
	Type   SectorType
	Offset int64 // file offset of the sector's type byte
}

// currentTrack is the single cached track: its descriptor, sector map,
// per-sector type/offset table, and the file offset of its header.
type currentTrack struct {
	valid      bool
	head       byte
	cyl        byte
	desc       TrackDescriptor
	sectorMap  []byte
	sectorInfo []SectorInfo
	fileOffset int64 // offset of the track's 5-byte header
}

// physicalIndex returns the physical slot for logical sector id, and
// whether it was found — the inverse of SectorMap.
func (c *currentTrack) physicalIndex(logical byte) (int, bool) {
	for i, id := range c.sectorMap {
		if id == logical {
			return i, true
		}
	}
	return 0, false
}
