package imd

import (
	"errors"
	"io"

	"github.com/kim1fw/memcard/sdcard"
)

// Disk is an open IMD image.
type Disk struct {
	file     sdcard.File
	Name     string // up to 63 chars
	ReadOnly bool

	Cylinders int
	Heads     int
	mode      byte

	// trackMap[head][cyl] is the file offset of that track's 5-byte header,
	// or -1 if the track was never written.
	trackMap [][]int64

	cur currentTrack
}

// Parse walks file once, building the track map and validating the whole
// image: all tracks share mode, every size is <= 6, and no sector type is
// TypeUnavailable. It is total on any legal file.
func Parse(file sdcard.File, name string, readOnly bool) (*Disk, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	if err := skipComment(file); err != nil {
		return nil, err
	}

	d := &Disk{file: file, Name: name, ReadOnly: readOnly}

	maxCyl, maxHead := -1, -1
	modeSet := false

	tracks := make([]struct {
		head, cyl byte
		offset    int64
		desc      TrackDescriptor
	}, 0, 160)

	for {
		offset, err := file.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}

		desc, err := readTrackHeader(file)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if !modeSet {
			d.mode = desc.Mode
			modeSet = true
		} else if desc.Mode != d.mode {
			return nil, ErrBadMode
		}

		if desc.Size > 6 {
			return nil, ErrBadSize
		}

		if err := skipTrackBody(file, desc); err != nil {
			return nil, err
		}

		head := desc.HeadNumber()
		if int(head) > maxHead {
			maxHead = int(head)
		}
		if int(desc.Cylinder) > maxCyl {
			maxCyl = int(desc.Cylinder)
		}

		tracks = append(tracks, struct {
			head, cyl byte
			offset    int64
			desc      TrackDescriptor
		}{head, desc.Cylinder, offset, desc})
	}

	if !modeSet {
		return nil, ErrTruncated
	}
	if d.mode != ModeFM500 && d.mode != ModeMFM500 {
		return nil, ErrBadMode
	}

	d.Cylinders = maxCyl + 1
	d.Heads = maxHead + 1

	d.trackMap = make([][]int64, d.Heads)
	for h := range d.trackMap {
		d.trackMap[h] = make([]int64, d.Cylinders)
		for c := range d.trackMap[h] {
			d.trackMap[h][c] = -1
		}
	}
	for _, t := range tracks {
		d.trackMap[t.head][int(t.cyl)] = t.offset
	}

	return d, nil
}

// skipComment advances file past the signature and ASCII comment, ending
// at the byte after CommentTerminator.
func skipComment(file sdcard.File) error {
	// The first 4 bytes are the "IMD " signature; the comment (including
	// those 4 bytes, conventionally "IMD 1.18: ...") runs until 0x1A.
	sig := make([]byte, 4)
	if _, err := io.ReadFull(file, sig); err != nil {
		return err
	}
	if string(sig) != Signature {
		return ErrBadSignature
	}

	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(file, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return ErrTruncated
			}
			return err
		}
		if buf[0] == CommentTerminator {
			return nil
		}
	}
}

// readTrackHeader reads one 5-byte imd_data_t. It does not look at sector
// types; TypeUnavailable sectors are rejected by the caller's later
// skipTrackBody pass.
func readTrackHeader(file sdcard.File) (TrackDescriptor, error) {
	hdr := make([]byte, trackHeaderSize)
	if _, err := io.ReadFull(file, hdr); err != nil {
		return TrackDescriptor{}, err
	}

	return TrackDescriptor{
		Mode:     hdr[0],
		Cylinder: hdr[1],
		Head:     hdr[2],
		Sectors:  hdr[3],
		Size:     hdr[4],
	}, nil
}

// skipTrackBody advances file past the sector map, optional cyl/head maps,
// and every sector's type+data, validating that no sector type is
// TypeUnavailable (a parse error).
func skipTrackBody(file sdcard.File, desc TrackDescriptor) error {
	n := int(desc.Sectors)

	if _, err := io.CopyN(io.Discard, file, int64(n)); err != nil {
		return err
	}
	if desc.HasCylMap() {
		if _, err := io.CopyN(io.Discard, file, int64(n)); err != nil {
			return err
		}
	}
	if desc.HasHeadMap() {
		if _, err := io.CopyN(io.Discard, file, int64(n)); err != nil {
			return err
		}
	}

	sectorSize := SectorSizes[desc.Size]
	typeBuf := make([]byte, 1)

	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(file, typeBuf); err != nil {
			return err
		}

		t := SectorType(typeBuf[0])
		if t == TypeUnavailable {
			return ErrUnavailable
		}

		dataLen := int64(1)
		if !t.IsCompressed() {
			dataLen = int64(sectorSize)
		}
		if _, err := io.CopyN(io.Discard, file, dataLen); err != nil {
			return err
		}
	}

	return nil
}

// File returns the underlying file handle, for callers that need direct
// access (e.g. the HTTP download handler).
func (d *Disk) File() sdcard.File { return d.file }

// Close closes the underlying file.
func (d *Disk) Close() error { return d.file.Close() }
