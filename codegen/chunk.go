package codegen

import "github.com/ckitagawa/chocopyc/debuginfo"

// ChunkKind distinguishes an executable chunk from a data table; the
// object writer places each in its matching section.
type ChunkKind int

const (
	ChunkProc ChunkKind = iota
	ChunkData
)

// Chunk is one named unit of the generator's output: machine code or
// a static data table, plus the symbolic links that still need
// resolving and, for procedures, the debug-info payload describing
// its source correspondence.
type Chunk struct {
	Name  string
	Kind  ChunkKind
	Code  []byte
	Links []Link
	Debug *debuginfo.ProcInfo // nil for data chunks
}

// CodeSet is the code generator's complete output: every chunk plus
// the sizing and debug metadata the object writer needs for the
// global (BSS-like) section.
type CodeSet struct {
	Chunks     []*Chunk
	GlobalSize int64
	Globals    []debuginfo.GlobalInfo
	Classes    []debuginfo.ClassInfo
}

func newProcChunk(name string) *Chunk {
	return &Chunk{Name: name, Kind: ChunkProc}
}

func newDataChunk(name string, code []byte, links []Link) *Chunk {
	return &Chunk{Name: name, Kind: ChunkData, Code: code, Links: links}
}

// NewDataChunk builds a finished data chunk directly from an already
// assembled byte slice; runtime uses this to hand its hand-assembled
// built-ins and special prototypes to the object writer as ordinary
// Chunks, the same shape Generate produces for user code.
func NewDataChunk(name string, code []byte, links []Link) *Chunk {
	return newDataChunk(name, code, links)
}

// NewProcChunk builds a finished procedure chunk from already
// assembled code and its links, bypassing Generator's incremental
// recordChunk path.
func NewProcChunk(name string, code []byte, links []Link) *Chunk {
	return &Chunk{Name: name, Kind: ChunkProc, Code: code, Links: links}
}
