package runtime

import "github.com/ckitagawa/chocopyc/codegen"

// trapProcs implements the runtime error paths: operations that
// ChocoPy defines to abort the program with a specific message rather
// than return a value. Each prints its message to stderr and exits
// with status -1; the message is what tells the trap kinds apart.
func trapProcs() []*codegen.Chunk {
	var chunks []*codegen.Chunk
	chunks = append(chunks, trap("$none_op", "$msg_none_op", -1))
	chunks = append(chunks, trap("$out_of_bound", "$msg_out_of_bound", -1))
	chunks = append(chunks, trap("$div_zero", "$msg_div_zero", -1))
	chunks = append(chunks, trap("$report_broken_stack", "$msg_broken_stack", -1))
	chunks = append(chunks, trap("$refcount_nonzero", "$msg_refcount_nonzero", -1))

	chunks = append(chunks,
		codegen.NewDataChunk("$msg_none_op", cstr("operation on None\n"), nil),
		codegen.NewDataChunk("$msg_out_of_bound", cstr("index out of bounds\n"), nil),
		codegen.NewDataChunk("$msg_div_zero", cstr("division by zero\n"), nil),
		codegen.NewDataChunk("$msg_broken_stack", cstr("broken stack\n"), nil),
		codegen.NewDataChunk("$msg_refcount_nonzero", cstr("free_obj called on object with nonzero refcount\n"), nil),
	)
	return chunks
}

func trap(name, msgSymbol string, code int32) *codegen.Chunk {
	a := codegen.NewAsm()
	a.PushReg(codegen.RBP)
	a.MovRegReg(codegen.RBP, codegen.RSP)
	a.LeaSymbol(codegen.RDI, "stderr")
	a.MovLoad(codegen.RDI, codegen.RDI, 0)
	a.LeaSymbol(codegen.RSI, msgSymbol)
	a.PushReg(codegen.RDI)
	a.PushReg(codegen.RSI)
	a.CallSymbol("fputs")
	a.AddRegImm32(codegen.RSP, 16)
	a.MovRegImm32(codegen.RDI, code)
	a.PushReg(codegen.RDI)
	a.CallSymbol("exit")
	a.AddRegImm32(codegen.RSP, 8)
	a.Leave()
	a.Ret()
	return finishProc(a, name)
}
