package codegen

import "encoding/binary"

// Reg is an x86-64 general-purpose register number in encoding order
// (RAX=0 .. R15=15); numbers ≥8 require a REX prefix to address.
type Reg int

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10 // carries the static link to a nested function, per the frame convention
	R11
	R12
	R13
	R14
	R15
)

// Cond is an x86 condition code, shared by Jcc and SetCC.
type Cond byte

const (
	CondE  Cond = 0x4
	CondNE Cond = 0x5
	CondL  Cond = 0xC
	CondLE Cond = 0xE
	CondG  Cond = 0xF
	CondGE Cond = 0xD
)

// Asm assembles one chunk's machine code in a single left-to-right
// pass: every instruction picks a fixed-width encoding (imm32,
// disp32, rel32) so its size is known the moment it's appended, and
// forward local jumps are fixed up against Label.pos once bound —
// the same two-pass-by-bookkeeping shape as the teacher's bytecode
// encoder, just applied to real opcodes instead of a private ISA.
type Asm struct {
	code    []byte
	patches []patch
	links   []Link
}

type patch struct {
	at    int // offset of the 4-byte rel32 field
	label *Label
}

// Label marks a position in the instruction stream to be jumped to.
// It may be referenced before it is bound.
type Label struct {
	pos   int
	bound bool
}

func NewAsm() *Asm { return &Asm{} }

func (a *Asm) NewLabel() *Label { return &Label{pos: -1} }

// Bind fixes l to the current write position; every patch already
// recorded against l will be resolved when Finish runs.
func (a *Asm) Bind(l *Label) {
	l.pos = len(a.code)
	l.bound = true
}

func (a *Asm) Pos() int { return len(a.code) }

func (a *Asm) byte(b byte)  { a.code = append(a.code, b) }
func (a *Asm) bytes(b ...byte) { a.code = append(a.code, b...) }

func (a *Asm) imm32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	a.code = append(a.code, buf[:]...)
}

func (a *Asm) imm64(v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	a.code = append(a.code, buf[:]...)
}

// rex builds a REX prefix. wide sets REX.W (64-bit operand); reg/rm
// are the instruction's reg-field and rm-field register numbers,
// whose top bit (≥8) sets REX.R / REX.B respectively.
func rex(wide bool, reg, rm Reg) byte {
	b := byte(0x40)
	if wide {
		b |= 0x08
	}
	if reg >= R8 {
		b |= 0x04
	}
	if rm >= R8 {
		b |= 0x01
	}
	return b
}

func modrmReg(reg, rm Reg) byte {
	return 0xC0 | byte(reg&7)<<3 | byte(rm&7)
}

func modrmMem(reg, base Reg, disp32 bool) byte {
	mod := byte(0x80) // disp32
	if !disp32 {
		mod = 0x40 // disp8
	}
	return mod | byte(reg&7)<<3 | byte(base&7)
}

// emitRR encodes `op reg, rm` (register-direct form) with the given
// opcode byte, honoring REX.W for 64-bit operands.
func (a *Asm) emitRR(opcode byte, wide bool, reg, rm Reg) {
	a.byte(rex(wide, reg, rm))
	a.byte(opcode)
	a.byte(modrmReg(reg, rm))
}

// emitRM encodes `op reg, [base+disp]` using a disp32 displacement.
// RSP or R12 as base gets the SIB byte (0x24) those encodings require.
func (a *Asm) emitRM(opcode byte, wide bool, reg, base Reg, disp int32) {
	a.byte(rex(wide, reg, base))
	a.byte(opcode)
	a.byte(modrmMem(reg, base, true))
	if base&7 == 4 {
		a.byte(0x24) // SIB: no index, base RSP/R12
	}
	a.imm32(disp)
}

// MovRegReg: dst = src (64-bit).
func (a *Asm) MovRegReg(dst, src Reg) { a.emitRR(0x89, true, src, dst) }

// MovRegReg32 is the 32-bit form, used for ChocoPy int values which
// are carried boxed-payload-width in registers.
func (a *Asm) MovRegReg32(dst, src Reg) {
	if src >= R8 || dst >= R8 {
		a.byte(rex(false, src, dst))
	}
	a.byte(0x89)
	a.byte(modrmReg(src, dst))
}

// MovRegImm32 loads a sign-extended 32-bit immediate into a 64-bit
// register: `mov r/m64, imm32` (C7 /0).
func (a *Asm) MovRegImm32(dst Reg, v int32) {
	a.byte(rex(true, 0, dst))
	a.byte(0xC7)
	a.byte(modrmReg(0, dst))
	a.imm32(v)
}

// MovRegImm64 loads a full 64-bit immediate (`mov r64, imm64`, REX.W
// + B8+r), used for the 0x12345678 stack canary and absolute data.
func (a *Asm) MovRegImm64(dst Reg, v int64) {
	a.byte(rex(true, 0, dst))
	a.byte(0xB8 + byte(dst&7))
	a.imm64(v)
}

// MovLoad: dst = [base+disp] (64-bit, e.g. loading a pointer field).
func (a *Asm) MovLoad(dst, base Reg, disp int32) { a.emitRM(0x8B, true, dst, base, disp) }

// MovStore: [base+disp] = src (64-bit).
func (a *Asm) MovStore(base Reg, disp int32, src Reg) { a.emitRM(0x89, true, src, base, disp) }

// MovLoad32/MovStore32 are the 32-bit forms, used for the i32 payload
// cell of a boxed int and for the Size/Tag words of a Prototype.
func (a *Asm) MovLoad32(dst, base Reg, disp int32) { a.emitRM(0x8B, false, dst, base, disp) }
func (a *Asm) MovStore32(base Reg, disp int32, src Reg) { a.emitRM(0x89, false, src, base, disp) }

// Lea: dst = base+disp (address computation, no dereference).
func (a *Asm) Lea(dst, base Reg, disp int32) { a.emitRM(0x8D, true, dst, base, disp) }

func (a *Asm) PushReg(r Reg) {
	if r >= R8 {
		a.byte(0x41)
	}
	a.byte(0x50 + byte(r&7))
}

func (a *Asm) PopReg(r Reg) {
	if r >= R8 {
		a.byte(0x41)
	}
	a.byte(0x58 + byte(r&7))
}

func (a *Asm) AddRegReg(dst, src Reg) { a.emitRR(0x01, true, src, dst) }
func (a *Asm) SubRegReg(dst, src Reg) { a.emitRR(0x29, true, src, dst) }
func (a *Asm) AddRegReg32(dst, src Reg) { a.emitRR32(0x01, src, dst) }
func (a *Asm) SubRegReg32(dst, src Reg) { a.emitRR32(0x29, src, dst) }

func (a *Asm) emitRR32(opcode byte, reg, rm Reg) {
	if reg >= R8 || rm >= R8 {
		a.byte(rex(false, reg, rm))
	}
	a.byte(opcode)
	a.byte(modrmReg(reg, rm))
}

// IMulRegReg32: dst *= src (32-bit signed multiply, 0F AF /r).
func (a *Asm) IMulRegReg32(dst, src Reg) {
	if dst >= R8 || src >= R8 {
		a.byte(rex(false, dst, src))
	}
	a.byte(0x0F)
	a.byte(0xAF)
	a.byte(modrmReg(dst, src))
}

// Cdq sign-extends EAX into EDX:EAX, required before Idiv32.
func (a *Asm) Cdq() { a.byte(0x99) }

// Idiv32 divides EDX:EAX by r, leaving the quotient in EAX and the
// remainder in EDX (F7 /7).
func (a *Asm) Idiv32(r Reg) {
	if r >= R8 {
		a.byte(0x41)
	}
	a.byte(0xF7)
	a.byte(0xC0 | 7<<3 | byte(r&7))
}

// Neg32 negates r in place (F7 /3).
func (a *Asm) Neg32(r Reg) {
	if r >= R8 {
		a.byte(0x41)
	}
	a.byte(0xF7)
	a.byte(0xC0 | 3<<3 | byte(r&7))
}

func (a *Asm) CmpRegReg32(a1, a2 Reg) { a.emitRR32(0x39, a2, a1) }
func (a *Asm) CmpRegReg(a1, a2 Reg)   { a.emitRR(0x39, true, a2, a1) }

// CmpRegImm32 compares a 64-bit register against a sign-extended
// imm32 (81 /7 id) — used for null checks (`cmp rax, 0`).
func (a *Asm) CmpRegImm32(r Reg, v int32) {
	a.byte(rex(true, 0, r))
	a.byte(0x81)
	a.byte(0xC0 | 7<<3 | byte(r&7))
	a.imm32(v)
}

func (a *Asm) TestRegReg(r1, r2 Reg) { a.emitRR(0x85, true, r2, r1) }

// AddRegImm32/SubRegImm32 adjust a 64-bit register by a sign-extended
// immediate (81 /0, 81 /5) — used almost exclusively to walk RSP back
// up after pushing call arguments under the stack-based convention.
func (a *Asm) AddRegImm32(dst Reg, v int32) {
	a.byte(rex(true, 0, dst))
	a.byte(0x81)
	a.byte(0xC0 | byte(dst&7))
	a.imm32(v)
}

func (a *Asm) SubRegImm32(dst Reg, v int32) {
	a.byte(rex(true, 0, dst))
	a.byte(0x81)
	a.byte(0xC0 | 5<<3 | byte(dst&7))
	a.imm32(v)
}

// SetCC sets the low byte of r to 1 or 0 per cond (0F 9x /r), then
// zero-extends it into the full register so the result can feed
// directly into further int/bool arithmetic.
func (a *Asm) SetCC(cond Cond, r Reg) {
	if r >= R8 {
		a.byte(0x41)
	}
	a.byte(0x0F)
	a.byte(0x90 | byte(cond))
	a.byte(0xC0 | byte(r&7))
	a.byte(0x0F)
	a.byte(0xB6)
	a.byte(modrmReg(r, r))
}

func (a *Asm) Nop()   { a.byte(0x90) }
func (a *Asm) Ret()   { a.byte(0xC3) }
func (a *Asm) Leave() { a.byte(0xC9) }

// Jmp emits an unconditional near jump (E9 rel32) to l, which may be
// bound later.
func (a *Asm) Jmp(l *Label) {
	a.byte(0xE9)
	a.reserveRel32(l)
}

// Jcc emits a near conditional jump (0F 8x rel32) to l.
func (a *Asm) Jcc(cond Cond, l *Label) {
	a.byte(0x0F)
	a.byte(0x80 | byte(cond))
	a.reserveRel32(l)
}

func (a *Asm) reserveRel32(l *Label) {
	at := len(a.code)
	a.imm32(0)
	a.patches = append(a.patches, patch{at: at, label: l})
}

// CallReg emits an indirect call through a register (FF /2), used for
// vtable dispatch once the method pointer has been loaded.
func (a *Asm) CallReg(r Reg) {
	if r >= R8 {
		a.byte(0x41)
	}
	a.byte(0xFF)
	a.byte(0xC0 | 2<<3 | byte(r&7))
}

// LinkKind tags how the object/linker should resolve a Link.
type LinkKind int

const (
	LinkCallRel32 LinkKind = iota // E8 rel32, target resolved at link time
	LinkAbsolute64                // 8-byte absolute address, e.g. a data pointer
)

// Link records an unresolved reference to a named symbol — another
// chunk, a prototype table, or a runtime import — left as a zero
// placeholder for the object writer (or a future linker) to patch.
type Link struct {
	Offset int
	Symbol string
	Size   int
	Kind   LinkKind
}

// CallSymbol emits a near call (E8 rel32) to an external symbol,
// recording a Link since the target's address isn't known until link
// time.
func (a *Asm) CallSymbol(name string) {
	a.byte(0xE8)
	off := len(a.code)
	a.imm32(0)
	a.links = append(a.links, Link{Offset: off, Symbol: name, Size: 4, Kind: LinkCallRel32})
}

// LeaSymbol loads the address of an external symbol into dst. Since
// our calling convention never builds position-independent code for
// data references, this reserves an 8-byte absolute slot immediately
// after a `movabs` opcode rather than using RIP-relative addressing.
func (a *Asm) LeaSymbol(dst Reg, name string) {
	a.byte(rex(true, 0, dst))
	a.byte(0xB8 + byte(dst&7))
	off := len(a.code)
	a.imm64(0)
	a.links = append(a.links, Link{Offset: off, Symbol: name, Size: 8, Kind: LinkAbsolute64})
}

// Finish resolves every local-label patch and returns the assembled
// code plus the external links recorded along the way. Every label
// referenced by a patch must be bound by this point.
func (a *Asm) Finish() ([]byte, []Link) {
	for _, p := range a.patches {
		rel := int32(p.label.pos - (p.at + 4))
		binary.LittleEndian.PutUint32(a.code[p.at:p.at+4], uint32(rel))
	}
	return a.code, a.links
}
