package debuginfo

import (
	"encoding/binary"
	"testing"
)

func TestEmitAbbrevTerminates(t *testing.T) {
	abbrev := EmitAbbrev()
	if len(abbrev) == 0 {
		t.Fatal("expected non-empty abbrev section")
	}
	if abbrev[len(abbrev)-1] != 0 {
		t.Error("abbrev section must end with a null terminator")
	}
}

func TestEmitInfoLengthPrefix(t *testing.T) {
	procs := []ProcInfo{
		{
			Name:     "f",
			CodeSize: 42,
			Params:   []VarInfo{{Name: "x", FrameOffset: 16}},
			Locals:   []VarInfo{{Name: "y", FrameOffset: -16}},
		},
	}
	info, links := EmitInfo("chocopy", procs)
	if len(info) < 4 {
		t.Fatal("info section too short")
	}
	unitLen := binary.LittleEndian.Uint32(info[:4])
	if int(unitLen) != len(info)-4 {
		t.Errorf("unit_length = %d, want %d", unitLen, len(info)-4)
	}
	if len(links) != 1 || links[0].Symbol != "f" {
		t.Errorf("expected one low_pc link to %q, got %v", "f", links)
	}
}

func TestEmitLineMonotonic(t *testing.T) {
	out := EmitLine("f", []LineEntry{{CodeOffset: 0, Line: 1}, {CodeOffset: 10, Line: 2}})
	if len(out) == 0 {
		t.Fatal("expected non-empty line program")
	}
	length := binary.LittleEndian.Uint32(out[:4])
	if int(length) != len(out)-4 {
		t.Errorf("unit_length = %d, want %d", length, len(out)-4)
	}
}
