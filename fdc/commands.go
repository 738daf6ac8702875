package fdc

import (
	"github.com/kim1fw/memcard/imd"
)

// Opcodes, the command table's low 5 bits of the first command byte.
const (
	opSpecify      = 0x03
	opSenseDrive   = 0x04
	opWriteData    = 0x05
	opReadData     = 0x06
	opRecalibrate  = 0x07
	opSenseInt     = 0x08
	opWriteDeleted = 0x09
	opReadID       = 0x0A
	opReadDeleted  = 0x0C
	opFormatTrack  = 0x0D
	opSeek         = 0x0F
)

// Bits of the first command byte outside the opcode.
const (
	flagMT = 0x80 // multi-track
	flagMF = 0x40 // MFM
	flagSK = 0x20 // skip deleted/normal mismatches
)

type commandDef struct {
	name   string
	cmdLen int // total command bytes including the opcode byte
	resLen int
	run    func(c *Controller)
}

// commandTable is a tagged dispatch table in place of the source
// firmware's function-pointer table.
var commandTable = map[byte]*commandDef{
	opSpecify:      {"SPECIFY", 3, 0, runSpecify},
	opSenseDrive:   {"SENSE DRIVE", 2, 1, runSenseDrive},
	opWriteData:    {"WRITE DATA", 9, 7, runWriteData},
	opReadData:     {"READ DATA", 9, 7, runReadData},
	opRecalibrate:  {"RECALIBRATE", 2, 0, runRecalibrate},
	opSenseInt:     {"SENSE INT", 1, 2, runSenseInterrupt},
	opWriteDeleted: {"WRITE DEL", 9, 7, runWriteData},
	opReadID:       {"READ ID", 2, 7, runReadID},
	opReadDeleted:  {"READ DEL", 9, 7, runReadData},
	opFormatTrack:  {"FORMAT TRACK", 6, 7, runFormatTrack},
	opSeek:         {"SEEK", 3, 0, runSeek},
}

// invalidCommand handles any opcode outside commandTable: 1 command byte,
// 1 result byte (0x80, "invalid").
var invalidCommand = commandDef{"INVALID", 1, 1, runInvalid}

func runInvalid(c *Controller) {
	c.res[0] = 0x80
}

func runSpecify(c *Controller) {
	// Timing parameters are meaningless for emulation: no-op.
}

func (c *Controller) drive() *Drive {
	return &c.drives[c.curDrive&(NumDrives-1)]
}

func runSenseDrive(c *Controller) {
	driveHead := c.cmd[1]
	c.curDrive = int(driveHead & 0x03)

	var st3 byte
	st3 |= byte(c.curDrive) & 0x03
	if driveHead&0x04 != 0 {
		st3 |= 0x04 // HD
	}

	if c.drive().Cyl == 0 {
		st3 |= st3T0
	}

	if disk, ok := c.Manager.Drive(c.curDrive); ok {
		st3 |= st3RY
		if disk.ReadOnly {
			st3 |= st3WP
		}
	}

	c.res[0] = st3
}

func runRecalibrate(c *Controller) {
	driveNum := c.cmd[1] & 0x03
	c.curDrive = int(driveNum)
	c.seekTo(0)
}

func runSeek(c *Controller) {
	c.curDrive = int(c.cmd[1] & 0x03)
	c.seekTo(c.cmd[2])
}

// seekTo moves the current drive's heads to cyl, records the 2-byte seek
// result and raises a SEEK interrupt that the next SENSE INTERRUPT STATUS
// clears.
func (c *Controller) seekTo(cyl byte) {
	d := c.drive()
	d.Cyl = cyl

	st0 := byte(c.curDrive) | st0SeekEnd

	if disk, ok := c.Manager.Drive(c.curDrive); ok {
		if err := disk.SeekTrack(0, cyl); err != nil {
			st0 = byte(c.curDrive) | st0ICAbnormal
		}
	} else {
		st0 = byte(c.curDrive) | st0ICAbnormal | st0NotReady
	}

	c.lastSeek = [2]byte{st0, cyl}
	c.raiseInterrupt(IntSeek)
}

func runSenseInterrupt(c *Controller) {
	c.res[0] = c.lastSeek[0]
	c.res[1] = c.lastSeek[1]

	if c.pending == IntSeek {
		c.clearInterrupt()
	}
}

func runReadID(c *Controller) {
	driveHead := c.cmd[1]
	c.curDrive = int(driveHead & 0x03)
	mfm := c.cmd[0]&flagMF != 0

	disk, ok := c.Manager.Drive(c.curDrive)
	if !ok {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal | st0NotReady
		return
	}

	res, err := disk.ReadID(mfm)
	if err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		return
	}

	st0, st1, st2 := statusFromXfer(res)
	c.res[0] = byte(c.curDrive) | st0
	c.res[1] = st1
	c.res[2] = st2
	c.res[3], c.res[4], c.res[5], c.res[6] = resultCHRN(res)
}

// parsePreamble decodes the shared READ/WRITE DATA|DEL pre-amble (spec
// §4.4) and seeks the current drive's image to the requested track.
func (c *Controller) parsePreamble() (disk *imd.Disk, p imd.XferParams, abnormal bool) {
	driveHead := c.cmd[1]
	c.curDrive = int(driveHead & 0x03)
	head := (driveHead >> 2) & 0x01

	p = imd.XferParams{
		Head:        head,
		Cyl:         c.cmd[2],
		FirstSector: c.cmd[4],
		SizeCode:    c.cmd[5],
		EOT:         c.cmd[6],
		DTL:         int(c.cmd[8]),
		Skip:        c.cmd[0]&flagSK != 0,
		MFM:         c.cmd[0]&flagMF != 0,
	}

	disk, ok := c.Manager.Drive(c.curDrive)
	if !ok {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal | st0NotReady
		c.res[3], c.res[4], c.res[5], c.res[6] = p.Cyl, p.Head, p.FirstSector, p.SizeCode
		return nil, p, true
	}

	if err := disk.SeekTrack(head, p.Cyl); err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		c.res[1] = st1ND
		c.res[3], c.res[4], c.res[5], c.res[6] = p.Cyl, p.Head, p.FirstSector, p.SizeCode
		return nil, p, true
	}

	return disk, p, false
}

func runWriteData(c *Controller) {
	disk, p, abnormal := c.parsePreamble()
	if abnormal {
		return
	}
	p.Mode = imd.NormalData
	if c.cmd[0]&0x1F == opWriteDeleted {
		p.Mode = imd.DeletedData
	}

	win, max, err := c.dmaBounds()
	if err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		c.res[1] = st1DM
		c.res[3], c.res[4], c.res[5], c.res[6] = p.Cyl, p.Head, p.FirstSector, p.SizeCode
		return
	}

	src := c.loadFromWindow(win, max)

	res, err := disk.WriteData(p, src)
	if err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		return
	}

	st0, st1, st2 := statusFromXfer(res)
	c.res[0] = byte(c.curDrive) | st0
	c.res[1] = st1
	c.res[2] = st2
	c.res[3], c.res[4], c.res[5], c.res[6] = resultCHRN(res)
}

func runReadData(c *Controller) {
	disk, p, abnormal := c.parsePreamble()
	if abnormal {
		return
	}
	p.Mode = imd.NormalData
	if c.cmd[0]&0x1F == opReadDeleted {
		p.Mode = imd.DeletedData
	}

	win, max, err := c.dmaBounds()
	if err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		c.res[1] = st1DM
		c.res[3], c.res[4], c.res[5], c.res[6] = p.Cyl, p.Head, p.FirstSector, p.SizeCode
		return
	}

	dst := make([]byte, max)
	res, err := disk.ReadData(p, dst)
	if err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		return
	}

	c.storeToWindow(win, dst[:res.BytesTransferred])

	st0, st1, st2 := statusFromXfer(res)
	c.res[0] = byte(c.curDrive) | st0
	c.res[1] = st1
	c.res[2] = st2
	c.res[3], c.res[4], c.res[5], c.res[6] = resultCHRN(res)
}

func runFormatTrack(c *Controller) {
	driveHead := c.cmd[1]
	c.curDrive = int(driveHead & 0x03)
	head := (driveHead >> 2) & 0x01

	p := imd.FormatParams{
		Head:     head,
		SizeCode: c.cmd[2],
		Sectors:  c.cmd[3],
		MFM:      c.cmd[0]&flagMF != 0,
		Filler:   c.cmd[5],
	}

	disk, ok := c.Manager.Drive(c.curDrive)
	if !ok {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal | st0NotReady
		return
	}

	desc, trackOK := disk.CurrentTrackDescriptor()
	if !trackOK {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		return
	}
	p.Cyl = desc.Cylinder

	win, max, err := c.dmaBounds()
	if err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		c.res[1] = st1DM
		return
	}

	src := c.loadFromWindow(win, max)

	res, err := disk.FormatTrack(p, src)
	if err != nil {
		c.res[0] = byte(c.curDrive) | st0ICAbnormal
		return
	}

	st0, st1, st2 := statusFromXfer(res)
	c.res[0] = byte(c.curDrive) | st0
	c.res[1] = st1
	c.res[2] = st2
	c.res[3], c.res[4], c.res[5], c.res[6] = resultCHRN(res)
}
