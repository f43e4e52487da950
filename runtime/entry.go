package runtime

import "github.com/ckitagawa/chocopyc/codegen"

// processEntry builds the object's actual `main` symbol, the one the C
// runtime startup code calls: it forwards to $chocopy_main, the
// generated program's own entry point, then checks $alloc_count back
// down to zero before returning, catching any value that outlived its
// last owner instead of letting the process exit silently leaky.
func processEntry() []*codegen.Chunk {
	a := codegen.NewAsm()
	a.PushReg(codegen.RBP)
	a.MovRegReg(codegen.RBP, codegen.RSP)
	a.CallSymbol("$chocopy_main")
	a.PushReg(codegen.RAX) // $chocopy_main's return value, preserved across the leak check

	a.LeaSymbol(codegen.RCX, "$alloc_count")
	a.MovLoad(codegen.RCX, codegen.RCX, 0)
	a.CmpRegImm32(codegen.RCX, 0)
	clean := a.NewLabel()
	a.Jcc(codegen.CondE, clean)
	a.LeaSymbol(codegen.RDI, "stderr")
	a.MovLoad(codegen.RDI, codegen.RDI, 0)
	a.LeaSymbol(codegen.RSI, "$msg_leak")
	a.PushReg(codegen.RDI)
	a.PushReg(codegen.RSI)
	a.CallSymbol("fputs")
	a.AddRegImm32(codegen.RSP, 16)
	a.Bind(clean)

	a.PopReg(codegen.RAX)
	a.Leave()
	a.Ret()
	return []*codegen.Chunk{
		finishProc(a, "main"),
		codegen.NewDataChunk("$msg_leak", cstr("--- memory leak detected! ---\n"), nil),
	}
}
