package codegen

import (
	"fmt"

	"github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/debuginfo"
	"github.com/ckitagawa/chocopyc/object"
)

// stackCanary is the magic value $chocopy_main pushes before running
// any user code and checks again right before returning; a mismatch
// means something underflowed its frame and corrupted the caller's
// stack, so main calls $report_broken_stack instead of returning
// normally.
const stackCanary = int64(0x12345678)

// Generate lowers a fully type-checked program (check.Analyze must
// already have run, so every InferredType and FuncDef.Level is filled
// in) into a complete CodeSet: one chunk per class prototype, one per
// function/method body, and the $chocopy_main entry point that runs
// global initializers followed by the top-level statements.
func Generate(prog *chocopy.Program) *CodeSet {
	classes := BuildClassLayouts(prog)

	globals := map[string]frameSlot{}
	var globalInfo []debuginfo.GlobalInfo
	var globalOff int32
	for _, decl := range prog.Declarations {
		if vd, ok := decl.(*chocopy.VarDef); ok {
			vt := valueTypeOf(vd.Type)
			globals[vd.Name] = frameSlot{kind: slotGlobal, offset: globalOff, valueType: vt, level: 0}
			globalInfo = append(globalInfo, debuginfo.GlobalInfo{Name: vd.Name, Type: vt.String(), Offset: globalOff})
			globalOff += 8
		}
	}
	for _, decl := range prog.Declarations {
		if fd, ok := decl.(*chocopy.FuncDef); ok {
			globals[fd.Name] = frameSlot{kind: slotFunc, level: 1, funcName: fd.Name}
		}
	}
	globalFrame := newFrame(0, nil, globals)
	g := newGenerator(classes, globalFrame)

	for _, decl := range prog.Declarations {
		if vd, ok := decl.(*chocopy.VarDef); ok {
			g.chunks = append(g.chunks, newDataChunk("$global."+vd.Name, make([]byte, 8), nil))
		}
	}

	for name, cls := range classes {
		if name == chocopy.ClassObject {
			continue // never instantiated directly; no proto/ctor/dtor chunk needed
		}
		g.chunks = append(g.chunks, g.genClassPrototype(name, cls))
		g.chunks = append(g.chunks, g.genClassDestructor(name, cls))
		g.chunks = append(g.chunks, g.genClassConstructor(name, cls))
	}

	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *chocopy.FuncDef:
			g.genFuncDef(d, globalFrame, 1, funcSymbol(d.Name, 1))
		case *chocopy.ClassDef:
			cls := classes[d.Name]
			for _, m := range cls.Methods {
				if m.Decl != nil {
					g.genFuncDef(m.Decl, globalFrame, 1, methodSymbol(d.Name, m.Name))
				}
			}
		}
	}

	g.genMainChunk(prog, globalFrame)

	return &CodeSet{
		Chunks:     g.chunks,
		GlobalSize: int64(globalOff),
		Globals:    globalInfo,
		Classes:    classInfoList(classes),
	}
}

func classInfoList(classes map[string]*ClassLayout) []debuginfo.ClassInfo {
	var out []debuginfo.ClassInfo
	for name, cls := range classes {
		if name == chocopy.ClassObject {
			continue
		}
		var attrs []debuginfo.VarInfo
		for _, a := range cls.AttrOrder {
			attrs = append(attrs, debuginfo.VarInfo{Name: a, Type: cls.AttrType[a].String(), FrameOffset: cls.AttrOffset[a]})
		}
		out = append(out, debuginfo.ClassInfo{Name: name, Super: cls.Super, Attrs: attrs})
	}
	return out
}

func methodSymbol(className, methodName string) string {
	return fmt.Sprintf("$method.%s.%s", className, methodName)
}

// genClassPrototype emits a class's read-only Prototype table: the
// object model's header (size, tag, dtor, __init__) followed by one
// vtable slot per user method, each a Link to that method's chunk.
func (g *Generator) genClassPrototype(name string, cls *ClassLayout) *Chunk {
	body := make([]byte, cls.PrototypeSize)
	putI32(body, object.PrototypeSizeOffset, cls.BodySize)
	putI32(body, object.PrototypeTagOffset, int32(object.TagPlain))

	var links []Link
	links = append(links, Link{Offset: object.PrototypeDtorOffset, Symbol: dtorSymbol(name), Size: 8, Kind: LinkAbsolute64})

	for mname, m := range cls.Methods {
		links = append(links, Link{Offset: int(m.Offset), Symbol: methodSymbol(name, mname), Size: 8, Kind: LinkAbsolute64})
	}
	return newDataChunk(protoSymbol(name), body, links)
}

// genClassDestructor emits ClassName.$dtor: drops every non-primitive
// attribute the class declares, inherited ones included since
// AttrOrder already carries the full flattened list, giving back each
// attribute's own reference before $free_obj returns the instance's
// block to the allocator.
func (g *Generator) genClassDestructor(name string, cls *ClassLayout) *Chunk {
	a := NewAsm()
	a.PushReg(RBP)
	a.MovRegReg(RBP, RSP)
	a.MovLoad(R11, RBP, 16) // self, kept live across every $drop_obj call below

	for _, attr := range cls.AttrOrder {
		if isPrimitive(cls.AttrType[attr]) {
			continue
		}
		off := int32(object.ObjectHeaderSize) + cls.AttrOffset[attr]
		a.MovLoad(RCX, R11, off)
		a.PushReg(RCX)
		a.CallSymbol("$drop_obj")
		a.AddRegImm32(RSP, 8)
	}

	a.Leave()
	a.Ret()
	code, links := a.Finish()
	return NewProcChunk(dtorSymbol(name), code, links)
}

// genClassConstructor emits the class's own ClassName chunk: allocate
// the instance, dispatch __init__ through its vtable slot when the
// class (or one of its ancestors) declares one, and return the new
// instance in RAX. classes with no __init__ anywhere in their chain
// (chocopy.ClassObject's seed layout has none) skip the dispatch
// entirely rather than reaching for a synthetic entry that was never
// given a chunk.
func (g *Generator) genClassConstructor(name string, cls *ClassLayout) *Chunk {
	a := NewAsm()
	a.PushReg(RBP)
	a.MovRegReg(RBP, RSP)

	a.LeaSymbol(RAX, protoSymbol(name))
	a.PushReg(RAX)
	a.CallSymbol("$alloc_obj")
	a.AddRegImm32(RSP, 8)
	a.PushReg(RAX) // keep the new instance alive through __init__

	init, hasInit := cls.Methods["__init__"]
	if hasInit {
		nargs := 0
		if init.Decl != nil {
			nargs = len(init.Decl.Params) - 1 // exclude self
		}
		a.PushReg(RAX) // self arg for __init__
		for i := 0; i < nargs; i++ {
			a.MovLoad(RCX, RBP, int32(16+8*i)) // this chunk's own arg i
			a.PushReg(RCX)
		}
		a.MovLoad(RAX, RSP, int32(8*nargs)) // reload self, still on stack under the args
		a.MovLoad(RCX, RAX, int32(object.ObjectPrototypeOffset))
		a.MovLoad(RCX, RCX, init.Offset)
		a.CallReg(RCX)
		a.AddRegImm32(RSP, int32(8*(nargs+1)))
	}

	a.PopReg(RAX)
	a.Leave()
	a.Ret()
	code, links := a.Finish()
	return NewProcChunk(name, code, links)
}

func putI32(b []byte, off int, v int32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// genFuncDef lowers one function or method body into a chunk, first
// generating any functions nested inside it so their chunks exist
// before this one needs to reference them by symbol.
func (g *Generator) genFuncDef(fd *chocopy.FuncDef, parent *Frame, level int, symbol string) {
	fd.Level = level
	frame := newFrame(level, parent, g.global.globals)
	frame.bindParams(fd.Params)
	for _, d := range fd.Decls {
		switch decl := d.(type) {
		case *chocopy.VarDef:
			frame.allocLocal(decl.Name, valueTypeOf(decl.Type))
		case *chocopy.FuncDef:
			frame.bindFunc(decl.Name, level+1)
		}
	}

	for _, d := range fd.Decls {
		if nested, ok := d.(*chocopy.FuncDef); ok {
			g.genFuncDef(nested, frame, level+1, funcSymbol(nested.Name, level+1))
		}
	}

	asm := NewAsm()
	g.asm = asm
	g.frame = frame
	g.lines = nil
	g.epilogue = asm.NewLabel()

	asm.PushReg(RBP)
	asm.MovRegReg(RBP, RSP)
	asm.PushReg(R10)
	if size := -frame.nextLocal - 8; size > 0 {
		asm.SubRegImm32(RSP, size)
	}

	for _, d := range fd.Decls {
		if vd, ok := d.(*chocopy.VarDef); ok {
			slot := frame.slots[vd.Name]
			g.genExpr(literalExpr(vd.Value))
			if isPrimitive(slot.valueType) {
				asm.MovStore32(RBP, slot.offset, RAX)
			} else {
				asm.MovStore(RBP, slot.offset, RAX)
			}
		}
	}

	g.genBlock(fd.Statements)

	asm.MovRegImm32(RAX, 0)
	asm.Jmp(g.epilogue)

	asm.Bind(g.epilogue)
	g.genEpilogueCleanup(frame)
	asm.Leave()
	asm.Ret()

	var params, locals []debuginfo.VarInfo
	for _, p := range fd.Params {
		s := frame.slots[p.Name]
		params = append(params, debuginfo.VarInfo{Name: p.Name, Type: s.valueType.String(), FrameOffset: s.offset})
	}
	for _, d := range fd.Decls {
		if vd, ok := d.(*chocopy.VarDef); ok {
			s := frame.slots[vd.Name]
			locals = append(locals, debuginfo.VarInfo{Name: vd.Name, Type: s.valueType.String(), FrameOffset: s.offset})
		}
	}
	g.recordChunk(symbol, params, locals, fd.Loc.Start.Row)
}

// genEpilogueCleanup drops every non-primitive parameter and local
// this frame owns, preserving whatever is in RAX (the function's
// return value, if any) across each drop call. Safe to do
// unconditionally because genLoadName clones on every non-primitive
// load: by the time a value reaches RAX to be returned, it is an
// independently owned reference, not an alias into the slot this loop
// is about to drop.
func (g *Generator) genEpilogueCleanup(frame *Frame) {
	for _, off := range frame.nonPrimitiveSlots() {
		g.asm.PushReg(RAX)
		g.asm.MovLoad(RCX, RBP, off)
		g.asm.PushReg(RCX)
		g.asm.CallSymbol("$drop_obj")
		g.asm.AddRegImm32(RSP, 8)
		g.asm.PopReg(RAX)
	}
}

// literalExpr wraps a parsed Literal in the Expr it corresponds to, so
// a VarDef's initializer can be run through the ordinary genExpr path.
func literalExpr(lit chocopy.Literal) chocopy.Expr {
	switch l := lit.(type) {
	case *chocopy.NoneLiteral:
		return l
	case *chocopy.BoolLiteral:
		return l
	case *chocopy.IntLiteral:
		return l
	case *chocopy.StringLiteral:
		return l
	}
	return &chocopy.NoneLiteral{}
}

// genMainChunk builds $chocopy_main: canary, global initializers, the
// top-level statements, a best-effort drop of every object-typed
// global, then a canary check before returning 0 to the process
// trampoline.
func (g *Generator) genMainChunk(prog *chocopy.Program, globalFrame *Frame) {
	asm := NewAsm()
	g.asm = asm
	g.frame = newFrame(0, nil, globalFrame.globals)
	g.lines = nil

	asm.PushReg(RBP)
	asm.MovRegReg(RBP, RSP)
	asm.MovRegImm64(RAX, stackCanary)
	asm.PushReg(RAX)

	for _, decl := range prog.Declarations {
		if vd, ok := decl.(*chocopy.VarDef); ok {
			g.genExpr(literalExpr(vd.Value))
			g.genStoreName(vd.Name)
		}
	}

	g.genBlock(prog.Statements)

	for _, decl := range prog.Declarations {
		if vd, ok := decl.(*chocopy.VarDef); ok {
			vt := valueTypeOf(vd.Type)
			if !isPrimitive(vt) {
				g.dropGlobalRaw(vd.Name)
			}
		}
	}

	asm.PopReg(RCX)
	asm.MovRegImm64(RAX, stackCanary)
	asm.CmpRegReg(RCX, RAX)
	ok := g.freshLabel()
	asm.Jcc(CondE, ok)
	asm.CallSymbol("$report_broken_stack")
	asm.Bind(ok)

	asm.MovRegImm32(RAX, 0)
	asm.Leave()
	asm.Ret()

	g.recordChunk("$chocopy_main", nil, nil, prog.Loc.Start.Row)
}

// dropGlobalRaw drops a global's current value directly off its
// $global.<name> slot, bypassing genLoadName's clone: $chocopy_main's
// own exit is the one place that's correct, since there's no second
// owner waiting to read the slot afterward.
func (g *Generator) dropGlobalRaw(name string) {
	g.asm.LeaSymbol(RAX, "$global."+name)
	g.asm.MovLoad(RAX, RAX, 0)
	g.asm.PushReg(RAX)
	g.asm.CallSymbol("$drop_obj")
	g.asm.AddRegImm32(RSP, 8)
}
