package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

// TestEncodingsDecodeCleanly is a self-check: each case's bytes must
// decode with a real x86-64 decoder into exactly the expected number of
// instructions (one per encoder, two for SetCC's setcc+movzx pair),
// consuming exactly the bytes written with no trailing garbage.
func TestEncodingsDecodeCleanly(t *testing.T) {
	cases := []struct {
		name string
		emit func(a *Asm)
	}{
		{"mov reg,reg", func(a *Asm) { a.MovRegReg(RBX, RAX) }},
		{"mov reg,imm32", func(a *Asm) { a.MovRegImm32(RCX, 42) }},
		{"mov reg,imm64", func(a *Asm) { a.MovRegImm64(R9, 0x1122334455) }},
		{"mov load", func(a *Asm) { a.MovLoad(RAX, RBP, 16) }},
		{"mov store", func(a *Asm) { a.MovStore(RBP, -24, RDX) }},
		{"lea", func(a *Asm) { a.Lea(RSI, RDI, 8) }},
		{"push", func(a *Asm) { a.PushReg(R12) }},
		{"pop", func(a *Asm) { a.PopReg(RBX) }},
		{"add reg,reg", func(a *Asm) { a.AddRegReg(RAX, RCX) }},
		{"imul32", func(a *Asm) { a.IMulRegReg32(RAX, RDX) }},
		{"cdq", func(a *Asm) { a.Cdq() }},
		{"idiv32", func(a *Asm) { a.Idiv32(RCX) }},
		{"neg32", func(a *Asm) { a.Neg32(RAX) }},
		{"cmp reg,imm32", func(a *Asm) { a.CmpRegImm32(RAX, 0) }},
		{"setcc", func(a *Asm) { a.SetCC(CondE, RAX) }},
		{"ret", func(a *Asm) { a.Ret() }},
		{"leave", func(a *Asm) { a.Leave() }},
		{"call reg", func(a *Asm) { a.CallReg(RCX) }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := NewAsm()
			c.emit(a)
			code, _ := a.Finish()
			require.NotEmpty(t, code)
			want := 1
			if c.name == "setcc" {
				want = 2 // setcc then movzx, as SetCC's doc describes
			}
			n, off := 0, 0
			for off < len(code) {
				inst, err := x86asm.Decode(code[off:], 64)
				require.NoError(t, err, "decode failed for % x", code)
				off += inst.Len
				n++
			}
			assert.Equal(t, want, n, "unexpected instruction count for % x", code)
			assert.Equal(t, len(code), off, "encoding left trailing bytes for % x", code)
		})
	}
}
