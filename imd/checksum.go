package imd

import (
	"hash/crc32"
	"io"
)

// Checksum returns the CRC-32 (IEEE) of the whole backing file, which the
// upload handler (POST /sd/file with verify=1) reports so a caller can
// verify an image's contents without mounting it.
func (d *Disk) Checksum() (uint32, error) {
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, d.file); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
