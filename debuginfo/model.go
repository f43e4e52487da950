// Package debuginfo turns the code generator's per-procedure debug
// payload into DWARF (Linux) or CodeView (Windows) byte streams. No
// writer library for either format showed up anywhere in the
// example pack — the closest hit, a Mach-O/DWARF *reader*, only reads
// — so both encoders are hand-rolled on top of encoding/binary and
// bytes.Buffer, the same way the rest of this compiler avoids pulling
// in an assembler: there's nothing upstream to lean on.
package debuginfo

// LineEntry maps one generated-code offset (relative to the start of
// its procedure chunk) to a source line number.
type LineEntry struct {
	CodeOffset int
	Line       int
}

// VarInfo describes one parameter or local slot: its surface name,
// ChocoPy type string (for display purposes only), and its
// rbp-relative frame offset.
type VarInfo struct {
	Name        string
	Type        string
	FrameOffset int32
}

// ProcInfo is the debug payload attached to one Chunk of kind
// ChunkProc: enough to reconstruct a source-level view of a stack
// frame in a debugger.
type ProcInfo struct {
	Name      string
	DeclLine  int
	CodeSize  int
	Lines     []LineEntry
	Params    []VarInfo
	Locals    []VarInfo
}

// GlobalInfo describes one slot in the global data section.
type GlobalInfo struct {
	Name   string
	Type   string
	Offset int32
}

// ClassInfo describes one user class for debug purposes: its
// attribute layout, mirroring (but not replacing) the prototype the
// code generator actually emits.
type ClassInfo struct {
	Name  string
	Super string
	Attrs []VarInfo
}
