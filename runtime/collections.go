package runtime

import (
	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/ckitagawa/chocopyc/object"
)

// collectionProcs implements $len plus the list/str indexing, storing
// and concatenation built-ins genexpr.go and genstmt.go call into for
// every [] expression, for-loop, and + over sequences.
func collectionProcs() []*codegen.Chunk {
	var chunks []*codegen.Chunk

	// $len(obj) -> length, shared by lists and strings since both use
	// ArrayHeader's length field at the same offset.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RAX, codegen.RBP, 16)
		a.CmpRegImm32(codegen.RAX, 0)
		ok := a.NewLabel()
		a.Jcc(codegen.CondNE, ok)
		a.CallSymbol("$none_op")
		a.Bind(ok)
		a.MovLoad32(codegen.RAX, codegen.RAX, int32(object.ArrayLenOffset))
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$len"))
	}

	// $index_list(list, i) -> element (64-bit slot, caller reinterprets
	// if the element type is primitive).
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad32(codegen.RDX, codegen.RBP, 24)
		boundsCheck(a, codegen.RCX, codegen.RDX)
		a.Lea(codegen.RAX, codegen.RCX, int32(object.ArrayHeaderSize))
		a.MovRegReg32(codegen.RCX, codegen.RDX)
		scaleIndexAndLoad(a, codegen.RAX, codegen.RCX, 8)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$index_list"))
	}

	// $index_str(str, i) -> a freshly allocated one-character str.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad32(codegen.RDX, codegen.RBP, 24)
		boundsCheck(a, codegen.RCX, codegen.RDX)
		a.LeaSymbol(codegen.RAX, object.StrPrototype)
		a.PushReg(codegen.RAX) // prototype arg reused below via $alloc_obj-equivalent inline alloc
		a.MovRegImm32(codegen.RAX, int32(object.ArraySize(1, 1)))
		a.PushReg(codegen.RAX)
		a.CallSymbol("malloc")
		a.AddRegImm32(codegen.RSP, 8)
		a.PopReg(codegen.RDX) // prototype back
		a.MovStore(codegen.RAX, int32(object.ObjectPrototypeOffset), codegen.RDX)
		a.MovRegImm32(codegen.RDX, 1)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RDX)
		a.MovRegImm32(codegen.RDX, 1)
		a.MovStore32(codegen.RAX, int32(object.ArrayLenOffset), codegen.RDX)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad32(codegen.RDX, codegen.RBP, 24)
		a.Lea(codegen.RCX, codegen.RCX, int32(object.ArrayHeaderSize))
		a.AddRegReg32(codegen.RCX, codegen.RDX)
		a.MovLoad32(codegen.RDX, codegen.RCX, 0)
		a.MovStore32(codegen.RAX, int32(object.ArrayHeaderSize), codegen.RDX)
		a.PushReg(codegen.RAX)
		bumpAllocCount(a, 1)
		a.PopReg(codegen.RAX)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$index_str"))
	}

	// $store_list(value, list, i): writes value into list[i], dropping
	// the element being overwritten first when the list holds object
	// pointers rather than raw int/bool/str payload.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RAX, codegen.RBP, 16)   // value
		a.MovLoad(codegen.RCX, codegen.RBP, 24)   // list
		a.MovLoad32(codegen.RDX, codegen.RBP, 32) // i
		boundsCheck(a, codegen.RCX, codegen.RDX)

		a.MovLoad(codegen.RSI, codegen.RCX, int32(object.ObjectPrototypeOffset))
		a.MovLoad32(codegen.RSI, codegen.RSI, int32(object.PrototypeTagOffset))
		a.CmpRegImm32(codegen.RSI, int32(object.TagRefArray))
		plain := a.NewLabel()
		done := a.NewLabel()
		a.Jcc(codegen.CondNE, plain)

		a.Lea(codegen.RDI, codegen.RCX, int32(object.ArrayHeaderSize))
		a.MovRegImm32(codegen.R9, 8)
		a.IMulRegReg32(codegen.RDX, codegen.R9)
		a.AddRegReg(codegen.RDI, codegen.RDX)
		a.MovLoad(codegen.RSI, codegen.RDI, 0) // element being overwritten
		a.PushReg(codegen.RAX)                 // new value, spilled across $drop_obj
		a.PushReg(codegen.RDI)                 // element address, spilled too
		a.PushReg(codegen.RSI)
		a.CallSymbol("$drop_obj")
		a.AddRegImm32(codegen.RSP, 8)
		a.PopReg(codegen.RDI)
		a.PopReg(codegen.RAX)
		a.MovStore(codegen.RDI, 0, codegen.RAX)
		a.Jmp(done)

		a.Bind(plain)
		a.Lea(codegen.RCX, codegen.RCX, int32(object.ArrayHeaderSize))
		storeScaled(a, codegen.RCX, codegen.RDX, codegen.RAX, 8)

		a.Bind(done)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$store_list"))
	}

	// $str_eq(a, b) -> bool: byte-compare two str objects.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad(codegen.RDX, codegen.RBP, 24)
		a.MovLoad32(codegen.RAX, codegen.RCX, int32(object.ArrayLenOffset))
		a.MovLoad32(codegen.RSI, codegen.RDX, int32(object.ArrayLenOffset))
		a.CmpRegReg32(codegen.RAX, codegen.RSI)
		neq := a.NewLabel()
		done := a.NewLabel()
		a.Jcc(codegen.CondNE, neq)
		a.Lea(codegen.RDI, codegen.RCX, int32(object.ArrayHeaderSize))
		a.Lea(codegen.RSI, codegen.RDX, int32(object.ArrayHeaderSize))
		a.PushReg(codegen.RAX)
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("memcmp")
		a.AddRegImm32(codegen.RSP, 16)
		a.PopReg(codegen.RCX)
		a.CmpRegImm32(codegen.RAX, 0)
		a.SetCC(codegen.CondE, codegen.RAX)
		a.Jmp(done)
		a.Bind(neq)
		a.MovRegImm32(codegen.RAX, 0)
		a.Bind(done)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$str_eq"))
	}

	// $concat_str(a, b) -> new str holding a's bytes followed by b's.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad(codegen.RDX, codegen.RBP, 24)
		a.MovLoad32(codegen.RAX, codegen.RCX, int32(object.ArrayLenOffset))
		a.MovLoad32(codegen.RSI, codegen.RDX, int32(object.ArrayLenOffset))
		a.AddRegReg32(codegen.RAX, codegen.RSI)
		// stash lengths and sources across the malloc call
		a.PushReg(codegen.RCX)
		a.PushReg(codegen.RDX)
		a.AddRegImm32(codegen.RAX, int32(object.ArrayHeaderSize))
		a.PushReg(codegen.RAX)
		a.CallSymbol("malloc")
		a.AddRegImm32(codegen.RSP, 8)
		a.PopReg(codegen.RDX)
		a.PopReg(codegen.RCX)
		a.LeaSymbol(codegen.RDI, object.StrPrototype)
		a.MovStore(codegen.RAX, int32(object.ObjectPrototypeOffset), codegen.RDI)
		a.MovRegImm32(codegen.RDI, 1)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RDI)

		a.MovLoad32(codegen.RSI, codegen.RCX, int32(object.ArrayLenOffset))
		a.MovLoad32(codegen.RDI, codegen.RDX, int32(object.ArrayLenOffset))
		a.AddRegReg32(codegen.RSI, codegen.RDI)
		a.MovStore32(codegen.RAX, int32(object.ArrayLenOffset), codegen.RSI)

		a.PushReg(codegen.RAX) // result, preserved across two memcpy calls
		a.Lea(codegen.RDI, codegen.RAX, int32(object.ArrayHeaderSize))
		a.Lea(codegen.RSI, codegen.RCX, int32(object.ArrayHeaderSize))
		a.MovLoad32(codegen.RDX, codegen.RCX, int32(object.ArrayLenOffset))
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("memcpy")
		a.AddRegImm32(codegen.RSP, 24)

		a.MovLoad(codegen.RAX, codegen.RBP, 16) // a again, for its length
		a.MovLoad32(codegen.RDX, codegen.RAX, int32(object.ArrayLenOffset))
		a.MovLoad(codegen.RAX, codegen.RSP, 0) // result, still spilled
		a.Lea(codegen.RDI, codegen.RAX, int32(object.ArrayHeaderSize))
		a.AddRegReg32(codegen.RDI, codegen.RDX)
		a.MovLoad(codegen.RCX, codegen.RBP, 24) // b
		a.Lea(codegen.RSI, codegen.RCX, int32(object.ArrayHeaderSize))
		a.MovLoad32(codegen.RDX, codegen.RCX, int32(object.ArrayLenOffset))
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("memcpy")
		a.AddRegImm32(codegen.RSP, 24)
		a.PopReg(codegen.RAX)
		a.PushReg(codegen.RAX)
		bumpAllocCount(a, 1)
		a.PopReg(codegen.RAX)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$concat_str"))
	}

	// $concat_list(a, b) -> new array holding a's elements then b's.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad(codegen.RDX, codegen.RBP, 24)
		a.MovLoad32(codegen.RAX, codegen.RCX, int32(object.ArrayLenOffset))
		a.MovLoad32(codegen.RSI, codegen.RDX, int32(object.ArrayLenOffset))
		a.AddRegReg32(codegen.RAX, codegen.RSI)
		a.MovRegReg32(codegen.RSI, codegen.RAX) // total count, preserved
		a.PushReg(codegen.RCX)
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RSI)
		a.MovRegImm32(codegen.RDX, 8)
		a.IMulRegReg32(codegen.RAX, codegen.RDX)
		a.AddRegImm32(codegen.RAX, int32(object.ArrayHeaderSize))
		a.PushReg(codegen.RAX)
		a.CallSymbol("malloc")
		a.AddRegImm32(codegen.RSP, 8)
		a.PopReg(codegen.RSI)
		a.PopReg(codegen.RDX)
		a.PopReg(codegen.RCX)
		a.LeaSymbol(codegen.RDI, object.ObjectListPrototype)
		a.MovStore(codegen.RAX, int32(object.ObjectPrototypeOffset), codegen.RDI)
		a.MovRegImm32(codegen.RDI, 1)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RDI)
		a.MovStore32(codegen.RAX, int32(object.ArrayLenOffset), codegen.RSI)

		a.PushReg(codegen.RAX)
		a.Lea(codegen.RDI, codegen.RAX, int32(object.ArrayHeaderSize))
		a.Lea(codegen.RSI, codegen.RCX, int32(object.ArrayHeaderSize))
		a.MovLoad32(codegen.RDX, codegen.RCX, int32(object.ArrayLenOffset))
		a.MovRegImm32(codegen.RAX, 8)
		a.IMulRegReg32(codegen.RDX, codegen.RAX)
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("memcpy")
		a.AddRegImm32(codegen.RSP, 24)

		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad32(codegen.RDX, codegen.RCX, int32(object.ArrayLenOffset))
		a.MovRegImm32(codegen.RAX, 8)
		a.IMulRegReg32(codegen.RDX, codegen.RAX)
		a.MovLoad(codegen.RAX, codegen.RSP, 0)
		a.Lea(codegen.RDI, codegen.RAX, int32(object.ArrayHeaderSize))
		a.AddRegReg(codegen.RDI, codegen.RDX)
		a.MovLoad(codegen.RCX, codegen.RBP, 24)
		a.Lea(codegen.RSI, codegen.RCX, int32(object.ArrayHeaderSize))
		a.MovLoad32(codegen.RDX, codegen.RCX, int32(object.ArrayLenOffset))
		a.MovRegImm32(codegen.RAX, 8)
		a.IMulRegReg32(codegen.RDX, codegen.RAX)
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("memcpy")
		a.AddRegImm32(codegen.RSP, 24)
		a.PopReg(codegen.RAX)
		a.PushReg(codegen.RAX)
		bumpAllocCount(a, 1)
		a.PopReg(codegen.RAX)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$concat_list"))
	}

	return chunks
}

// boundsCheck traps into $out_of_bound unless 0 <= index < len(container).
func boundsCheck(a *codegen.Asm, container, index codegen.Reg) {
	ok := a.NewLabel()
	bad := a.NewLabel()
	a.CmpRegImm32(index, 0)
	a.Jcc(codegen.CondL, bad)
	a.MovLoad32(codegen.R9, container, int32(object.ArrayLenOffset))
	a.CmpRegReg32(index, codegen.R9)
	a.Jcc(codegen.CondL, ok)
	a.Bind(bad)
	a.CallSymbol("$out_of_bound")
	a.Bind(ok)
}

// scaleIndexAndLoad loads the 64-bit slot at base + index*scale into RAX.
func scaleIndexAndLoad(a *codegen.Asm, base, index codegen.Reg, scale int32) {
	a.MovRegImm32(codegen.R9, scale)
	a.IMulRegReg32(index, codegen.R9)
	a.AddRegReg(base, index)
	a.MovLoad(codegen.RAX, base, 0)
}

func storeScaled(a *codegen.Asm, base, index, value codegen.Reg, scale int32) {
	a.MovRegImm32(codegen.R9, scale)
	a.IMulRegReg32(index, codegen.R9)
	a.AddRegReg(base, index)
	a.MovStore(base, 0, value)
}
