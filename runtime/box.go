package runtime

import (
	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/ckitagawa/chocopyc/object"
)

// boxProcs wraps a raw int/bool value into a one-field heap object,
// needed wherever a primitive crosses into a polymorphic "object"
// context (print's argument chief among them; see genexpr.go's
// boxIfPrimitive).
func boxProcs() []*codegen.Chunk {
	return []*codegen.Chunk{
		boxPrimitive("$box_int", object.IntPrototype),
		boxPrimitive("$box_bool", object.BoolPrototype),
	}
}

func boxPrimitive(name, proto string) *codegen.Chunk {
	a := codegen.NewAsm()
	a.PushReg(codegen.RBP)
	a.MovRegReg(codegen.RBP, codegen.RSP)
	a.MovLoad32(codegen.RCX, codegen.RBP, 16)
	a.PushReg(codegen.RCX)
	a.MovRegImm32(codegen.RAX, int32(object.ObjectHeaderSize)+4)
	a.PushReg(codegen.RAX)
	a.CallSymbol("malloc")
	a.AddRegImm32(codegen.RSP, 8)
	a.PopReg(codegen.RCX)
	a.LeaSymbol(codegen.RDX, proto)
	a.MovStore(codegen.RAX, int32(object.ObjectPrototypeOffset), codegen.RDX)
	a.MovRegImm32(codegen.RDX, 1)
	a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RDX)
	a.MovStore32(codegen.RAX, int32(object.ObjectHeaderSize), codegen.RCX)
	a.PushReg(codegen.RAX)
	bumpAllocCount(a, 1)
	a.PopReg(codegen.RAX)
	a.Leave()
	a.Ret()
	return finishProc(a, name)
}
