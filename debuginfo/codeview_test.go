package debuginfo

import (
	"encoding/binary"
	"testing"
)

func TestEmitSymbolsHeader(t *testing.T) {
	out, links := EmitSymbols([]ProcInfo{{Name: "f", CodeSize: 8}})
	if binary.LittleEndian.Uint32(out[:4]) != cvSymbolSection {
		t.Error("expected leading subsection kind cvSymbolSection")
	}
	size := binary.LittleEndian.Uint32(out[4:8])
	if int(size) != len(out)-8 {
		t.Errorf("subsection size = %d, want %d", size, len(out)-8)
	}
	if len(links) != 1 || links[0].Symbol != "f" {
		t.Errorf("expected one address link to %q, got %v", "f", links)
	}
}

func TestEmitLinesHeader(t *testing.T) {
	out := EmitLines("f", []LineEntry{{CodeOffset: 0, Line: 1}})
	if binary.LittleEndian.Uint32(out[:4]) != cvLineSection {
		t.Error("expected leading subsection kind cvLineSection")
	}
}
