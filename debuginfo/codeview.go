package debuginfo

import (
	"bytes"
	"encoding/binary"
)

// CodeView record kinds used by this emitter (values per Microsoft's
// published CodeView 4 symbol format).
const (
	cvSymbolSection = 0xf1
	cvLineSection   = 0xf2

	cvSGProc32 = 0x1110
	cvSLocal   = 0x113e
	cvSEnd     = 0x0006

	cvLfBuildInfo = 0x1603
)

func record(b *bytes.Buffer, kind uint16, body []byte) {
	// Length field covers kind + body and must round to a 4-byte
	// boundary; pad with 0xf3/0xf2/0xf1 filler bytes as the format
	// requires when an odd trailer is produced.
	payload := append([]byte{}, body...)
	for (len(payload)+2)%4 != 0 {
		payload = append(payload, 0xf3)
	}
	binary.Write(b, binary.LittleEndian, uint16(len(payload)+2))
	binary.Write(b, binary.LittleEndian, kind)
	b.Write(payload)
}

func cvString(s string) []byte {
	out := append([]byte(s), 0)
	return out
}

// EmitSymbols writes a `.debug$S` subsection of kind cvSymbolSection
// containing one S_GPROC32 per procedure with nested S_LOCAL records
// for its parameters and locals, matching how link.exe expects a
// CodeView symbol stream to be laid out per object.
func EmitSymbols(procs []ProcInfo) ([]byte, []DebugLink) {
	var body bytes.Buffer
	var links []DebugLink

	binary.Write(&body, binary.LittleEndian, uint32(4)) // CV signature

	for _, p := range procs {
		var sym bytes.Buffer
		binary.Write(&sym, binary.LittleEndian, uint32(0)) // pParent
		binary.Write(&sym, binary.LittleEndian, uint32(0)) // pEnd
		binary.Write(&sym, binary.LittleEndian, uint32(0)) // pNext
		binary.Write(&sym, binary.LittleEndian, uint32(p.CodeSize))
		binary.Write(&sym, binary.LittleEndian, uint32(0)) // debug start
		binary.Write(&sym, binary.LittleEndian, uint32(p.CodeSize))
		binary.Write(&sym, binary.LittleEndian, uint32(0)) // type index
		addrOff := body.Len() + 4 + sym.Len() // +4 for the record's own length+kind header
		binary.Write(&sym, binary.LittleEndian, uint32(0)) // off, patched via link
		binary.Write(&sym, binary.LittleEndian, uint16(0)) // seg, patched via link
		sym.WriteByte(0)                                   // flags
		sym.Write(cvString(p.Name))

		links = append(links, DebugLink{Offset: addrOff, Symbol: p.Name, Size: 4})
		record(&body, cvSGProc32, sym.Bytes())

		for _, param := range p.Params {
			var loc bytes.Buffer
			binary.Write(&loc, binary.LittleEndian, uint32(0)) // type index
			loc.WriteByte(1)                                   // S_LOCAL flags: parameter
			loc.Write(cvString(param.Name))
			record(&body, cvSLocal, loc.Bytes())
		}
		for _, local := range p.Locals {
			var loc bytes.Buffer
			binary.Write(&loc, binary.LittleEndian, uint32(0))
			loc.WriteByte(0)
			loc.Write(cvString(local.Name))
			record(&body, cvSLocal, loc.Bytes())
		}
		record(&body, cvSEnd, nil)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(cvSymbolSection))
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes(), links
}

// EmitLines writes a `.debug$S` line-number subsection (kind
// cvLineSection) for one procedure: a flat list of (code offset,
// source line) pairs, CodeView's equivalent of DWARF's line program
// but without the state-machine encoding.
func EmitLines(procName string, lines []LineEntry) []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(0)) // offset, patched via link by caller
	binary.Write(&body, binary.LittleEndian, uint16(0)) // segment
	binary.Write(&body, binary.LittleEndian, uint16(0)) // flags
	binary.Write(&body, binary.LittleEndian, uint32(0)) // code length, filled by caller

	binary.Write(&body, binary.LittleEndian, uint32(0)) // file id (single source file)
	binary.Write(&body, binary.LittleEndian, uint32(len(lines)))
	binary.Write(&body, binary.LittleEndian, uint32(12+8*len(lines)))

	for _, l := range lines {
		binary.Write(&body, binary.LittleEndian, uint32(l.CodeOffset))
		binary.Write(&body, binary.LittleEndian, uint32(l.Line))
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(cvLineSection))
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}
