package codegen

import (
	"fmt"

	"github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/debuginfo"
)

// Generator threads the pieces genexpr.go and genstmt.go share while
// walking one function body: the instruction stream under
// construction, the frame describing where its locals and parameters
// live, the class layouts every member access and constructor call
// consults, and the handful of cross-chunk counters (label ids,
// string literal symbols) that must stay unique across the whole
// program.
type Generator struct {
	asm      *Asm
	frame    *Frame
	classes  map[string]*ClassLayout
	global   *Frame // level-0 frame holding every global name, shared by all functions
	epilogue *Label  // current function's shared leave/ret point, where its clean-up list runs

	chunks  []*Chunk
	strings map[string]string // literal text -> data symbol name
	labelN  int
	strN    int
	lines   []debuginfo.LineEntry
}

func newGenerator(classes map[string]*ClassLayout, global *Frame) *Generator {
	return &Generator{classes: classes, global: global, strings: map[string]string{}}
}

func (g *Generator) freshLabel() *Label {
	g.labelN++
	return g.asm.NewLabel()
}

// internString assigns (or reuses) a data-section symbol for a string
// literal, emitting its backing chunk the first time it's seen.
func (g *Generator) internString(s string) string {
	if name, ok := g.strings[s]; ok {
		return name
	}
	g.strN++
	name := fmt.Sprintf("$str.%d", g.strN)
	g.strings[s] = name
	g.chunks = append(g.chunks, newDataChunk(name, stringLiteralBytes(s), nil))
	return name
}

// stringLiteralBytes lays out a string literal as a [len:u32][bytes]
// record: a 4-byte length prefix followed by the raw UTF-8 bytes. The
// constant-loading sequence in genexpr.go passes $str.N to $alloc_str,
// which reads the record and copies the bytes into a freshly allocated
// str object.
func stringLiteralBytes(s string) []byte {
	b := []byte(s)
	out := make([]byte, 4+len(b))
	out[0] = byte(len(b))
	out[1] = byte(len(b) >> 8)
	out[2] = byte(len(b) >> 16)
	out[3] = byte(len(b) >> 24)
	copy(out[4:], b)
	return out
}

func (g *Generator) markLine(loc chocopy.Location) {
	g.lines = append(g.lines, debuginfo.LineEntry{CodeOffset: g.asm.Pos(), Line: loc.Start.Row})
}

// recordChunk finalizes the in-progress Asm into a Chunk named name,
// attaching whatever debug line/param/local info has accumulated, and
// resets the generator for the next function.
func (g *Generator) recordChunk(name string, params, locals []debuginfo.VarInfo, declLine int) *Chunk {
	code, links := g.asm.Finish()
	c := newProcChunk(name)
	c.Code = code
	c.Links = links
	c.Debug = &debuginfo.ProcInfo{
		Name:     name,
		DeclLine: declLine,
		CodeSize: len(code),
		Lines:    g.lines,
		Params:   params,
		Locals:   locals,
	}
	g.chunks = append(g.chunks, c)
	g.lines = nil
	return c
}
