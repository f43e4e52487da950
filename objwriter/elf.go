// Package objwriter turns a codegen.CodeSet into an actual object
// file a system linker can consume. Go's standard library only reads
// ELF (debug/elf has no writer side), so WriteELF is hand-rolled
// directly against the ELF64 structures it documents.
package objwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ckitagawa/chocopyc/codegen"
)

const (
	elfClass64   = 2
	elfDataLSB   = 1
	elfVersion   = 1
	elfOSABINone = 0
	etRel        = 1
	emX8664      = 62

	shtNull     = 0
	shtProgBits = 1
	shtSymTab   = 2
	shtStrTab   = 3
	shtRela     = 4
	shtNoBits   = 8

	shfWrite  = 0x1
	shfAlloc  = 0x2
	shfExecInstr = 0x4

	stbLocal  = 0
	stbGlobal = 1
	sttNoType = 0
	sttObject = 1
	sttFunc   = 2

	rX8664_64    = 1  // S + A
	rX8664_PC32  = 2  // S + A - P
)

// WriteELF assembles a relocatable ELF64 object (equivalent to `.o`)
// containing one .text byte range per ChunkProc, one .data range per
// ChunkData, a global symbol per chunk, and a relocation per Link —
// left for `ld`/`cc` to resolve against each other and against libc.
func WriteELF(set *codegen.CodeSet) ([]byte, error) {
	var text, data bytes.Buffer
	type placed struct {
		chunk  *codegen.Chunk
		offset int64
		inText bool
	}
	var chunks []placed

	for _, c := range set.Chunks {
		if c.Kind == codegen.ChunkProc {
			chunks = append(chunks, placed{chunk: c, offset: int64(text.Len()), inText: true})
			text.Write(c.Code)
		}
	}
	for _, c := range set.Chunks {
		if c.Kind == codegen.ChunkData {
			chunks = append(chunks, placed{chunk: c, offset: int64(data.Len()), inText: false})
			data.Write(c.Code)
		}
	}

	strtab := newStrTab()
	var syms []elfSym
	syms = append(syms, elfSym{}) // index 0: undefined, required by the format

	symIndex := map[string]uint32{}
	externs := map[string]bool{}

	for _, p := range chunks {
		sectionIdx := uint16(secText)
		if !p.inText {
			sectionIdx = secData
		}
		typ := sttFunc
		if !p.inText {
			typ = sttObject
		}
		symIndex[p.chunk.Name] = uint32(len(syms))
		syms = append(syms, elfSym{
			name:    strtab.add(p.chunk.Name),
			info:    byte(stbGlobal<<4 | typ),
			shndx:   sectionIdx,
			value:   uint64(p.offset),
			size:    uint64(len(p.chunk.Code)),
		})
	}

	for _, p := range chunks {
		for _, l := range p.chunk.Links {
			if _, ok := symIndex[l.Symbol]; !ok && !externs[l.Symbol] {
				externs[l.Symbol] = true
			}
		}
	}
	for name := range externs {
		symIndex[name] = uint32(len(syms))
		syms = append(syms, elfSym{
			name:  strtab.add(name),
			info:  byte(stbGlobal<<4 | sttNoType),
			shndx: 0, // SHN_UNDEF
		})
	}

	var relaText, relaData bytes.Buffer
	for _, p := range chunks {
		target := &relaText
		if !p.inText {
			target = &relaData
		}
		for _, l := range p.chunk.Links {
			typ := uint32(rX8664_PC32)
			addend := int64(-4)
			if l.Kind == codegen.LinkAbsolute64 {
				typ = rX8664_64
				addend = 0
			}
			writeRela(target, uint64(p.offset+int64(l.Offset)), symIndex[l.Symbol], typ, addend)
		}
	}

	symtabBuf := new(bytes.Buffer)
	for _, s := range syms {
		binary.Write(symtabBuf, binary.LittleEndian, elfSym64{
			NameOff: s.name, Info: s.info, Other: 0, Shndx: s.shndx, Value: s.value, Size: s.size,
		})
	}

	return assemble(text.Bytes(), data.Bytes(), symtabBuf.Bytes(), strtab.bytes(), relaText.Bytes(), relaData.Bytes(), firstGlobalSymIndex(syms))
}

type elfSym struct {
	name  uint32
	info  byte
	shndx uint16
	value uint64
	size  uint64
}

type elfSym64 struct {
	NameOff uint32
	Info    byte
	Other   byte
	Shndx   uint16
	Value   uint64
	Size    uint64
}

func firstGlobalSymIndex(syms []elfSym) uint32 {
	for i, s := range syms {
		if s.info>>4 == stbGlobal {
			return uint32(i)
		}
	}
	return uint32(len(syms))
}

func writeRela(b *bytes.Buffer, offset uint64, sym uint32, typ uint32, addend int64) {
	info := uint64(sym)<<32 | uint64(typ)
	binary.Write(b, binary.LittleEndian, offset)
	binary.Write(b, binary.LittleEndian, info)
	binary.Write(b, binary.LittleEndian, addend)
}

type strTab struct {
	buf    bytes.Buffer
	offset map[string]uint32
}

func newStrTab() *strTab {
	t := &strTab{offset: map[string]uint32{}}
	t.buf.WriteByte(0)
	return t
}

func (t *strTab) add(s string) uint32 {
	if off, ok := t.offset[s]; ok {
		return off
	}
	off := uint32(t.buf.Len())
	t.offset[s] = off
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	return off
}

func (t *strTab) bytes() []byte { return t.buf.Bytes() }

// Section indices in the fixed layout assemble() produces:
// 0 null, 1 .text, 2 .data, 3 .symtab, 4 .strtab, 5 .shstrtab,
// 6 .rela.text, 7 .rela.data.
const (
	secNull = iota
	secText
	secData
	secSymTab
	secStrTab
	secShStrTab
	secRelaText
	secRelaData
	numSections
)

func assemble(text, data, symtab, strtab, relaText, relaData []byte, firstGlobal uint32) ([]byte, error) {
	shstrtab := newStrTab()
	names := [numSections]uint32{}
	for i, n := range []string{"", ".text", ".data", ".symtab", ".strtab", ".shstrtab", ".rela.text", ".rela.data"} {
		names[i] = shstrtab.add(n)
	}

	var out bytes.Buffer
	hdr := elfHeader{
		SectionHdrOff:   0, // patched below
		SectionHdrCount: numSections,
		SectionHdrStrNdx: secShStrTab,
	}
	hdr.Ident[0] = 0x7f
	copy(hdr.Ident[1:4], "ELF")
	hdr.Ident[4] = elfClass64
	hdr.Ident[5] = elfDataLSB
	hdr.Ident[6] = elfVersion
	hdr.Type = etRel
	hdr.Machine = emX8664
	hdr.Version = elfVersion
	hdr.EhSize = 64
	hdr.ShEntSize = 64

	headerSize := int64(64)
	sectionOffsets := make([]int64, numSections)
	cursor := headerSize

	place := func(idx int, content []byte) {
		sectionOffsets[idx] = cursor
		cursor += int64(len(content))
	}
	place(secText, text)
	place(secData, data)
	place(secSymTab, symtab)
	place(secStrTab, strtab)
	place(secShStrTab, shstrtab.bytes())
	place(secRelaText, relaText)
	place(secRelaData, relaData)
	shOff := cursor

	hdr.SectionHdrOff = uint64(shOff)
	binary.Write(&out, binary.LittleEndian, hdr)
	out.Write(text)
	out.Write(data)
	out.Write(symtab)
	out.Write(strtab)
	out.Write(shstrtab.bytes())
	out.Write(relaText)
	out.Write(relaData)

	writeShdr(&out, shEntry{})
	writeShdr(&out, shEntry{Name: names[secText], Type: shtProgBits, Flags: shfAlloc | shfExecInstr, Offset: uint64(sectionOffsets[secText]), Size: uint64(len(text)), Align: 16})
	writeShdr(&out, shEntry{Name: names[secData], Type: shtProgBits, Flags: shfAlloc | shfWrite, Offset: uint64(sectionOffsets[secData]), Size: uint64(len(data)), Align: 8})
	writeShdr(&out, shEntry{Name: names[secSymTab], Type: shtSymTab, Offset: uint64(sectionOffsets[secSymTab]), Size: uint64(len(symtab)), Link: secStrTab, Info: firstGlobal, EntSize: 24, Align: 8})
	writeShdr(&out, shEntry{Name: names[secStrTab], Type: shtStrTab, Offset: uint64(sectionOffsets[secStrTab]), Size: uint64(len(strtab)), Align: 1})
	writeShdr(&out, shEntry{Name: names[secShStrTab], Type: shtStrTab, Offset: uint64(sectionOffsets[secShStrTab]), Size: uint64(len(shstrtab.bytes())), Align: 1})
	writeShdr(&out, shEntry{Name: names[secRelaText], Type: shtRela, Offset: uint64(sectionOffsets[secRelaText]), Size: uint64(len(relaText)), Link: secSymTab, Info: secText, EntSize: 24, Align: 8})
	writeShdr(&out, shEntry{Name: names[secRelaData], Type: shtRela, Offset: uint64(sectionOffsets[secRelaData]), Size: uint64(len(relaData)), Link: secSymTab, Info: secData, EntSize: 24, Align: 8})

	if out.Len() == 0 {
		return nil, fmt.Errorf("objwriter: empty object")
	}
	return out.Bytes(), nil
}

type elfHeader struct {
	Ident            [16]byte
	Type             uint16
	Machine          uint16
	Version          uint32
	Entry            uint64
	ProgramHdrOff    uint64
	SectionHdrOff    uint64
	Flags            uint32
	EhSize           uint16
	ProgramHdrEntSize uint16
	ProgramHdrCount  uint16
	ShEntSize        uint16
	SectionHdrCount  uint16
	SectionHdrStrNdx uint16
}

type shEntry struct {
	Name    uint32
	Type    uint32
	Flags   uint64
	Addr    uint64
	Offset  uint64
	Size    uint64
	Link    uint32
	Info    uint32
	Align   uint64
	EntSize uint64
}

func writeShdr(b *bytes.Buffer, s shEntry) {
	binary.Write(b, binary.LittleEndian, s.Name)
	binary.Write(b, binary.LittleEndian, s.Type)
	binary.Write(b, binary.LittleEndian, s.Flags)
	binary.Write(b, binary.LittleEndian, s.Addr)
	binary.Write(b, binary.LittleEndian, s.Offset)
	binary.Write(b, binary.LittleEndian, s.Size)
	binary.Write(b, binary.LittleEndian, s.Link)
	binary.Write(b, binary.LittleEndian, s.Info)
	binary.Write(b, binary.LittleEndian, s.Align)
	binary.Write(b, binary.LittleEndian, s.EntSize)
}
