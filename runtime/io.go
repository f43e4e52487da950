package runtime

import (
	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/ckitagawa/chocopyc/object"
)

// ioProcs implements print(...) and input() by dispatching on the
// argument's prototype tag and delegating the actual formatting to
// libc.
func ioProcs() []*codegen.Chunk {
	var chunks []*codegen.Chunk

	// $print(obj): branches on obj's prototype tag to call printf with
	// the right format; every format ends in a trailing newline. An
	// object with any other tag prints nothing.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RAX, codegen.RBP, 16)

		isNone := a.NewLabel()
		a.CmpRegImm32(codegen.RAX, 0)
		a.Jcc(codegen.CondE, isNone)

		a.MovLoad(codegen.RCX, codegen.RAX, int32(object.ObjectPrototypeOffset))
		a.MovLoad32(codegen.RDX, codegen.RCX, int32(object.PrototypeTagOffset))

		isBool := a.NewLabel()
		isStr := a.NewLabel()
		isInt := a.NewLabel()
		done := a.NewLabel()

		a.CmpRegImm32(codegen.RDX, int32(object.TagBool))
		a.Jcc(codegen.CondE, isBool)
		a.CmpRegImm32(codegen.RDX, int32(object.TagStr))
		a.Jcc(codegen.CondE, isStr)
		a.CmpRegImm32(codegen.RDX, int32(object.TagInt))
		a.Jcc(codegen.CondE, isInt)

		// Fall through: an unboxed/other object prints nothing useful;
		// the front end only ever hands print() bool/int/str/None.
		a.Jmp(done)

		a.Bind(isInt)
		a.MovLoad32(codegen.RSI, codegen.RAX, int32(object.ObjectHeaderSize))
		a.LeaSymbol(codegen.RDI, "$fmt_int")
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("printf")
		a.AddRegImm32(codegen.RSP, 16)
		a.Jmp(done)

		a.Bind(isBool)
		a.MovLoad32(codegen.RSI, codegen.RAX, int32(object.ObjectHeaderSize))
		a.CmpRegImm32(codegen.RSI, 0)
		printFalse := a.NewLabel()
		a.Jcc(codegen.CondE, printFalse)
		a.LeaSymbol(codegen.RDI, "$str_true")
		pushAndPuts(a)
		a.Jmp(done)
		a.Bind(printFalse)
		a.LeaSymbol(codegen.RDI, "$str_false")
		pushAndPuts(a)
		a.Jmp(done)

		a.Bind(isStr)
		a.MovLoad32(codegen.RSI, codegen.RAX, int32(object.ArrayLenOffset))
		a.Lea(codegen.RDI, codegen.RAX, int32(object.ArrayHeaderSize))
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.LeaSymbol(codegen.RDX, "$fmt_str")
		a.PushReg(codegen.RDX)
		a.CallSymbol("printf")
		a.AddRegImm32(codegen.RSP, 24)
		a.Jmp(done)

		a.Bind(isNone)
		a.LeaSymbol(codegen.RDI, "$str_none")
		pushAndPuts(a)

		a.Bind(done)
		a.MovRegImm32(codegen.RAX, 0)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$print"))
	}

	// $input() -> a new str read from stdin, one line. $input_record
	// holds a [len:u32][bytes...] record in the same shape as a string
	// literal's data chunk, so the result is built with $alloc_str
	// directly rather than duplicating its allocation logic.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.LeaSymbol(codegen.RDI, "$input_record")
		a.AddRegImm32(codegen.RDI, 4) // past the length prefix
		a.MovRegImm32(codegen.RSI, inputBufSize)
		a.LeaSymbol(codegen.RDX, "stdin")
		a.MovLoad(codegen.RDX, codegen.RDX, 0)
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("fgets")
		a.AddRegImm32(codegen.RSP, 24)

		a.LeaSymbol(codegen.RDI, "$input_record")
		a.AddRegImm32(codegen.RDI, 4)
		a.PushReg(codegen.RDI)
		a.CallSymbol("strlen")
		a.AddRegImm32(codegen.RSP, 8)
		a.LeaSymbol(codegen.RCX, "$input_record")
		a.MovStore32(codegen.RCX, 0, codegen.RAX)

		a.LeaSymbol(codegen.RAX, "$input_record")
		a.PushReg(codegen.RAX)
		a.CallSymbol("$alloc_str")
		a.AddRegImm32(codegen.RSP, 8)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$input"))
	}

	chunks = append(chunks,
		codegen.NewDataChunk("$fmt_int", cstr("%d\n"), nil),
		codegen.NewDataChunk("$fmt_str", cstr("%.*s\n"), nil),
		codegen.NewDataChunk("$str_true", cstr("True\n"), nil),
		codegen.NewDataChunk("$str_false", cstr("False\n"), nil),
		codegen.NewDataChunk("$str_none", cstr("None\n"), nil),
		codegen.NewDataChunk("$input_record", make([]byte, 4+inputBufSize), nil),
	)
	return chunks
}

const inputBufSize = 4096

func cstr(s string) []byte { return append([]byte(s), 0) }

func pushAndPuts(a *codegen.Asm) {
	a.PushReg(codegen.RDI)
	a.CallSymbol("printf")
	a.AddRegImm32(codegen.RSP, 8)
}
