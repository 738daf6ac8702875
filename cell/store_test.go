package cell

import "testing"

// TestAttributeRoundtrip checks that for any sequence of
// enable/disable/setram/setrom operations, the last one wins.
func TestAttributeRoundtrip(t *testing.T) {
	s := NewStore()

	cases := []struct {
		op              RangeOp
		wantEnabled     bool
		wantWriteable   bool
		keepPreviousOne bool
	}{
		{OpEnable, true, false, false},
		{OpSetRAM, true, true, false},
		{OpDisable, false, true, false},
		{OpSetROM, false, false, false},
		{OpEnable, true, false, false},
	}

	for _, c := range cases {
		s.RangeOp(0x100, 1, c.op, 0)
		enabled, writeable := s.Attrs(0x100)
		if enabled != c.wantEnabled || writeable != c.wantWriteable {
			t.Fatalf("after op %v: got (enabled=%v writeable=%v), want (enabled=%v writeable=%v)",
				c.op, enabled, writeable, c.wantEnabled, c.wantWriteable)
		}
	}
}

// TestWriteMasking checks that a write only lands on an enabled, writeable cell.
func TestWriteMasking(t *testing.T) {
	s := NewStore()

	// Disabled, not writeable: no effect.
	if ok := s.WriteByte(0x200, 0xAA); ok {
		t.Fatalf("write to disabled cell reported success")
	}
	data, _, _ := s.ReadByte(0x200)
	if data != 0 {
		t.Fatalf("disabled cell mutated: got %#x", data)
	}

	// Enabled, ROM: no effect.
	s.SetAttrs(0x200, true, false)
	if ok := s.WriteByte(0x200, 0xAA); ok {
		t.Fatalf("write to ROM cell reported success")
	}
	data, _, _ = s.ReadByte(0x200)
	if data != 0 {
		t.Fatalf("ROM cell mutated: got %#x", data)
	}

	// Enabled, RAM: write lands and a later read observes it.
	s.SetAttrs(0x200, true, true)
	if ok := s.WriteByte(0x200, 0xAA); !ok {
		t.Fatalf("write to enabled RAM cell rejected")
	}
	data, enabled, writeable := s.ReadByte(0x200)
	if data != 0xAA || !enabled || !writeable {
		t.Fatalf("read-after-write mismatch: data=%#x enabled=%v writeable=%v", data, enabled, writeable)
	}
}

func TestRangeOpFill(t *testing.T) {
	s := NewStore()
	s.RangeOp(0x300, 4, OpSetRAM, 0)
	s.RangeOp(0x300, 4, OpEnable, 0)
	s.RangeOp(0x300, 4, OpFillByte, 0x5A)

	for a := uint16(0x300); a < 0x304; a++ {
		data, enabled, writeable := s.ReadByte(a)
		if data != 0x5A || !enabled || !writeable {
			t.Fatalf("cell %#x: got data=%#x enabled=%v writeable=%v", a, data, enabled, writeable)
		}
	}
}

func TestAliasMap(t *testing.T) {
	s := NewStore()
	s.MapAlias(0xFFF0, "HSR")

	label, ok := s.AliasAt(0xFFF0)
	if !ok || label != "HSR" {
		t.Fatalf("got (%q, %v), want (\"HSR\", true)", label, ok)
	}

	if _, ok := s.AliasAt(0xFFF1); ok {
		t.Fatalf("unmapped address reported an alias")
	}
}
