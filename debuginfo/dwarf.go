package debuginfo

import (
	"bytes"
	"encoding/binary"
)

// DWARF tag/attribute/form constants used by this emitter. Only the
// small subset needed to describe a procedure, its parameters, and
// its locals is defined; this is not a general DWARF toolkit.
const (
	dwTagCompileUnit = 0x11
	dwTagSubprogram  = 0x2e
	dwTagFormalParam = 0x05
	dwTagVariable    = 0x34

	dwAtName     = 0x03
	dwAtLowPC    = 0x11
	dwAtHighPC   = 0x12
	dwAtLocation = 0x02

	dwFormString = 0x08 // inline NUL-terminated string
	dwFormAddr   = 0x01 // 8-byte address
	dwFormData8  = 0x07 // 8-byte constant
	dwFormBlock1 = 0x0a // 1-byte length-prefixed block
)

// abbrevCode identifies which DIE shape (compile unit, subprogram,
// parameter, or local) an entry uses; .debug_abbrev and .debug_info
// agree on these by position.
const (
	abbrevCompileUnit = 1
	abbrevSubprogram  = 2
	abbrevParam       = 3
	abbrevLocal       = 4
)

// EmitAbbrev writes the .debug_abbrev section: the four DIE shapes
// every compile unit in this compiler ever uses.
func EmitAbbrev() []byte {
	var b bytes.Buffer
	writeAbbrev(&b, abbrevCompileUnit, dwTagCompileUnit, true, []attrSpec{
		{dwAtName, dwFormString},
	})
	writeAbbrev(&b, abbrevSubprogram, dwTagSubprogram, true, []attrSpec{
		{dwAtName, dwFormString},
		{dwAtLowPC, dwFormAddr},
		{dwAtHighPC, dwFormData8},
	})
	writeAbbrev(&b, abbrevParam, dwTagFormalParam, false, []attrSpec{
		{dwAtName, dwFormString},
		{dwAtLocation, dwFormBlock1},
	})
	writeAbbrev(&b, abbrevLocal, dwTagVariable, false, []attrSpec{
		{dwAtName, dwFormString},
		{dwAtLocation, dwFormBlock1},
	})
	b.WriteByte(0) // terminator
	return b.Bytes()
}

type attrSpec struct {
	at, form byte
}

func writeAbbrev(b *bytes.Buffer, code, tag byte, hasChildren bool, attrs []attrSpec) {
	uleb(b, uint64(code))
	uleb(b, uint64(tag))
	if hasChildren {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
	for _, a := range attrs {
		uleb(b, uint64(a.at))
		uleb(b, uint64(a.form))
	}
	uleb(b, 0)
	uleb(b, 0)
}

func uleb(b *bytes.Buffer, v uint64) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b.WriteByte(c)
		if v == 0 {
			return
		}
	}
}

func cstr(b *bytes.Buffer, s string) {
	b.WriteString(s)
	b.WriteByte(0)
}

// frameOffsetBlock encodes a DW_OP_fbreg(offset) location expression,
// the standard way DWARF describes an rbp-relative local.
func frameOffsetBlock(offset int32) []byte {
	var ops bytes.Buffer
	ops.WriteByte(0x91) // DW_OP_fbreg
	sleb(&ops, int64(offset))
	var out bytes.Buffer
	out.WriteByte(byte(ops.Len()))
	out.Write(ops.Bytes())
	return out.Bytes()
}

func sleb(b *bytes.Buffer, v int64) {
	more := true
	for more {
		c := byte(v & 0x7f)
		v >>= 7
		signBitSet := c&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			c |= 0x80
		}
		b.WriteByte(c)
	}
}

// EmitInfo writes the .debug_info section: one compile unit DIE
// containing one subprogram DIE per procedure, each with its
// parameter and local child DIEs. Low-PC/high-PC values are left as
// zero placeholders paired with a Link the caller threads through to
// the object writer, since this package has no notion of final
// addresses — only codegen's Chunk does.
func EmitInfo(unitName string, procs []ProcInfo) ([]byte, []DebugLink) {
	var b bytes.Buffer
	var links []DebugLink

	// unit_length placeholder, patched at the end.
	lenPos := b.Len()
	b.Write(make([]byte, 4))
	binary.Write(&b, binary.LittleEndian, uint16(4)) // DWARF version 4
	binary.Write(&b, binary.LittleEndian, uint32(0)) // abbrev offset
	b.WriteByte(8)                                   // address size

	uleb(&b, abbrevCompileUnit)
	cstr(&b, unitName)

	for _, p := range procs {
		uleb(&b, abbrevSubprogram)
		cstr(&b, p.Name)
		lowPCPos := b.Len()
		links = append(links, DebugLink{Offset: lowPCPos, Symbol: p.Name, Size: 8})
		b.Write(make([]byte, 8))
		binary.Write(&b, binary.LittleEndian, uint64(p.CodeSize))

		for _, param := range p.Params {
			uleb(&b, abbrevParam)
			cstr(&b, param.Name)
			b.Write(frameOffsetBlock(param.FrameOffset))
		}
		for _, local := range p.Locals {
			uleb(&b, abbrevLocal)
			cstr(&b, local.Name)
			b.Write(frameOffsetBlock(local.FrameOffset))
		}
		uleb(&b, 0) // end subprogram children
	}
	uleb(&b, 0) // end compile unit children

	out := b.Bytes()
	binary.LittleEndian.PutUint32(out[lenPos:lenPos+4], uint32(len(out)-4))
	return out, links
}

// DebugLink mirrors codegen.Link's shape for a reference from a debug
// section to a code symbol's eventual address; debuginfo can't import
// codegen (codegen imports debuginfo for ProcInfo), so it keeps its
// own copy of this tiny value type.
type DebugLink struct {
	Offset int
	Symbol string
	Size   int
}

// EmitLine writes a minimal .debug_line program: one DW_LNS_copy per
// recorded line entry after advancing the address and line registers
// by the delta from the previous entry. Real DWARF line programs use
// the special opcode range for density; this compiler emits the
// standard opcodes directly; it is correct, just not byte-optimal.
func EmitLine(procName string, lines []LineEntry) []byte {
	var b bytes.Buffer
	lenPos := b.Len()
	b.Write(make([]byte, 4))
	binary.Write(&b, binary.LittleEndian, uint16(4))

	hdrLenPos := b.Len()
	b.Write(make([]byte, 4))
	hdrStart := b.Len()

	b.WriteByte(1)   // minimum_instruction_length
	b.WriteByte(1)   // default_is_stmt
	b.WriteByte(1)   // line_base (signed, written as raw byte here)
	b.WriteByte(1)   // line_range
	b.WriteByte(13)  // opcode_base
	for i := 0; i < 12; i++ {
		b.WriteByte(0) // standard_opcode_lengths
	}
	b.WriteByte(0) // empty include_directories
	cstr(&b, procName+".cp")
	b.WriteByte(0) // no dir index / mtime / length (simplified)
	b.WriteByte(0)
	b.WriteByte(0)
	b.WriteByte(0) // end file table

	binary.LittleEndian.PutUint32(b.Bytes()[hdrLenPos:hdrLenPos+4], uint32(b.Len()-hdrStart))

	lastAddr, lastLine := 0, 1
	for _, l := range lines {
		addrDelta := l.CodeOffset - lastAddr
		lineDelta := l.Line - lastLine
		if addrDelta > 0 {
			b.WriteByte(0x02) // DW_LNS_advance_pc
			uleb(&b, uint64(addrDelta))
		}
		if lineDelta != 0 {
			b.WriteByte(0x03) // DW_LNS_advance_line
			sleb(&b, int64(lineDelta))
		}
		b.WriteByte(0x01) // DW_LNS_copy
		lastAddr, lastLine = l.CodeOffset, l.Line
	}
	b.WriteByte(0x00) // extended opcode
	uleb(&b, 1)
	b.WriteByte(0x01) // DW_LNE_end_sequence

	out := b.Bytes()
	binary.LittleEndian.PutUint32(out[lenPos:lenPos+4], uint32(len(out)-4))
	return out
}
