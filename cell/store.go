package cell

import "sync"

const (
	// bitDisabled marks a cell as floating: it neither drives the bus on
	// read nor accepts a write.
	bitDisabled = 8
	// bitWriteable marks a cell as RAM; clear means ROM.
	bitWriteable = 9

	dataMask = 0x00FF

	// NumCells is the size of the KIM-1 address space.
	NumCells = 1 << 16
)

// RangeOp is one of the bulk attribute operations the HTTP control surface
// and boot-time defaults apply to a contiguous span of cells.
type RangeOp int

const (
	OpFillByte RangeOp = iota
	OpEnable
	OpDisable
	OpSetROM
	OpSetRAM
)

// Store is the single owner of the 64 Ki x 16-bit memory array. Reads are
// lock-free (a stale attribute-bit read for one cycle is tolerable); writes
// that can race with the bus emulator's single-writer discipline are
// serialized by mu.
type Store struct {
	mu    sync.Mutex
	cells [NumCells]uint16

	aliasMu sync.RWMutex
	alias   map[uint16]string
}

// NewStore returns a Store with every cell word zero: enabled (the DISABLED
// bit is clear), read-only (the WRITEABLE bit is clear), data byte 0;
// callers apply CopyDefaultMap to load persisted defaults before first use.
func NewStore() *Store {
	return &Store{
		alias: make(map[uint16]string),
	}
}

// ReadCell returns the full 16-bit word at addr (data byte plus both
// attribute bits), used by the HTTP control surface's raw-range handlers.
func (s *Store) ReadCell(addr uint16) uint16 {
	return s.cells[addr]
}

// ReadByte returns the low data byte, the driven/enabled flag, and the
// writeable flag for addr — the shape the bus emulator's read lane needs.
func (s *Store) ReadByte(addr uint16) (data byte, enabled bool, writeable bool) {
	c := s.cells[addr]
	return byte(c & dataMask), !Get(&c, bitDisabled), Get(&c, bitWriteable)
}

// WriteByte writes only the low data byte of addr, and only if the cell is
// enabled and writeable. It must never touch the attribute bits. It reports
// whether the write was applied.
func (s *Store) WriteByte(addr uint16, data byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cells[addr]
	if Get(&c, bitDisabled) || !Get(&c, bitWriteable) {
		return false
	}

	c = (c &^ dataMask) | uint16(data)
	s.cells[addr] = c

	return true
}

// WriteRaw16 overwrites the full 16-bit cell word, attribute bits and all —
// used by PATCH /ramrom/range, which is allowed to mutate any field of any
// cell.
func (s *Store) WriteRaw16(addr uint16, word uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[addr] = word
}

// SetAttrs sets the enabled/writeable attribute pair of a single cell
// without disturbing its data byte.
func (s *Store) SetAttrs(addr uint16, enabled, writeable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cells[addr]
	SetTo(&c, bitDisabled, !enabled)
	SetTo(&c, bitWriteable, writeable)
	s.cells[addr] = c
}

// Attrs returns the current enabled/writeable pair for addr.
func (s *Store) Attrs(addr uint16) (enabled, writeable bool) {
	c := s.cells[addr]
	return !Get(&c, bitDisabled), Get(&c, bitWriteable)
}

// RangeOp applies op to count cells starting at start (wrapping is not
// permitted; callers must clamp to NumCells). fillByte is only consulted
// for OpFillByte.
func (s *Store) RangeOp(start uint16, count int, op RangeOp, fillByte byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := uint32(start)
	for i := 0; i < count && addr < NumCells; i++ {
		c := s.cells[addr]

		switch op {
		case OpFillByte:
			c = (c &^ dataMask) | uint16(fillByte)
		case OpEnable:
			Clear(&c, bitDisabled)
		case OpDisable:
			Set(&c, bitDisabled)
		case OpSetROM:
			Clear(&c, bitWriteable)
		case OpSetRAM:
			Set(&c, bitWriteable)
		}

		s.cells[addr] = c
		addr++
	}
}

// CopyDefaultMap replaces the entire cell array with a persisted default
// snapshot; also backs PUT /ramrom/restore.
func (s *Store) CopyDefaultMap(source *[NumCells]uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = *source
}

// Snapshot copies the current cell array out, e.g. for persisting a new
// default map.
func (s *Store) Snapshot() [NumCells]uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cells
}
