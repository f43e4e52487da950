package codegen

import (
	"fmt"

	"github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/object"
)

// genExpr emits code evaluating e, leaving the result in RAX: a raw
// 32-bit int/bool in the low half, or a 64-bit heap pointer (None is
// the null pointer) for every other type.
func (g *Generator) genExpr(e chocopy.Expr) {
	switch n := e.(type) {
	case *chocopy.NoneLiteral:
		g.asm.MovRegImm32(RAX, 0)
	case *chocopy.BoolLiteral:
		v := int32(0)
		if n.Value {
			v = 1
		}
		g.asm.MovRegImm32(RAX, v)
	case *chocopy.IntLiteral:
		g.asm.MovRegImm32(RAX, n.Value)
	case *chocopy.StringLiteral:
		g.genStringLiteral(n.Value)
	case *chocopy.Identifier:
		g.genLoadName(n.Name, *n.InferredType())
	case *chocopy.ListExpr:
		g.genListExpr(n)
	case *chocopy.IndexExpr:
		g.genIndexExpr(n)
	case *chocopy.MemberExpr:
		g.genMemberExpr(n)
	case *chocopy.CallExpr:
		g.genCallExpr(n)
	case *chocopy.MethodCallExpr:
		g.genMethodCallExpr(n)
	case *chocopy.UnaryExpr:
		g.genUnaryExpr(n)
	case *chocopy.BinaryExpr:
		g.genBinaryExpr(n)
	case *chocopy.IfExpr:
		g.genIfExpr(n)
	default:
		panic(fmt.Sprintf("codegen: unhandled expression %T", e))
	}
}

// genStringLiteral materializes a literal by asking the runtime to
// clone the read-only `$str.N` data chunk into a freshly allocated,
// refcounted str object.
func (g *Generator) genStringLiteral(s string) {
	sym := g.internString(s)
	g.asm.LeaSymbol(RAX, sym)
	g.asm.PushReg(RAX)
	g.asm.CallSymbol("$alloc_str")
	g.asm.AddRegImm32(RSP, 8)
}

func (g *Generator) genLoadName(name string, vt chocopy.ValueType) {
	slot, hops, ok := g.frame.lookup(name)
	if !ok {
		panic("codegen: unresolved identifier " + name)
	}
	base := RBP
	if hops > 0 {
		g.asm.loadStaticLink(R11, hops)
		base = R11
	} else if hops < 0 {
		g.asm.LeaSymbol(RAX, "$global."+name)
		if isPrimitive(slot.valueType) {
			g.asm.MovLoad32(RAX, RAX, 0)
		} else {
			g.asm.MovLoad(RAX, RAX, 0)
			g.cloneLoaded()
		}
		return
	}
	if isPrimitive(slot.valueType) {
		g.asm.MovLoad32(RAX, base, slot.offset)
	} else {
		g.asm.MovLoad(RAX, base, slot.offset)
		g.cloneLoaded()
	}
}

// cloneLoaded increments the refcount of the heap pointer just loaded
// into RAX, leaving it there: every non-primitive identifier load
// hands out an independently owned reference rather than an alias
// into the slot it came from, per the clone half of the clone/drop
// discipline.
func (g *Generator) cloneLoaded() {
	g.asm.PushReg(RAX)
	g.asm.CallSymbol("$clone_obj")
	g.asm.AddRegImm32(RSP, 8)
}

// genStoreName is genLoadName's mirror, writing the value currently in
// RAX back into name's slot; used by assignment statements. The
// slot's previous value is dropped first when it held a refcounted
// reference, so reassigning an identifier doesn't leak it.
func (g *Generator) genStoreName(name string) {
	slot, hops, ok := g.frame.lookup(name)
	if !ok {
		panic("codegen: unresolved identifier " + name)
	}
	if hops < 0 {
		g.storeGlobalSlot(name, slot)
		return
	}
	base := RBP
	if hops > 0 {
		g.asm.loadStaticLink(R11, hops)
		base = R11
	}
	g.storeFrameSlot(base, slot)
}

// storeFrameSlot writes RAX into base+slot.offset, dropping whatever
// non-primitive value previously lived there first.
func (g *Generator) storeFrameSlot(base Reg, slot frameSlot) {
	if isPrimitive(slot.valueType) {
		g.asm.MovStore32(base, slot.offset, RAX)
		return
	}
	g.asm.PushReg(RAX)
	g.asm.MovLoad(RCX, base, slot.offset)
	g.asm.PushReg(RCX)
	g.asm.CallSymbol("$drop_obj")
	g.asm.AddRegImm32(RSP, 8)
	g.asm.PopReg(RAX)
	g.asm.MovStore(base, slot.offset, RAX)
}

// storeGlobalSlot is storeFrameSlot's counterpart for globals, which
// are addressed through the $global.<name> symbol rather than a frame
// offset.
func (g *Generator) storeGlobalSlot(name string, slot frameSlot) {
	if isPrimitive(slot.valueType) {
		g.asm.PushReg(RAX)
		g.asm.LeaSymbol(RCX, "$global."+name)
		g.asm.PopReg(RAX)
		g.asm.MovStore32(RCX, 0, RAX)
		return
	}
	g.asm.PushReg(RAX)
	g.asm.LeaSymbol(RCX, "$global."+name)
	g.asm.MovLoad(RDX, RCX, 0)
	g.asm.PushReg(RDX)
	g.asm.CallSymbol("$drop_obj")
	g.asm.AddRegImm32(RSP, 8)
	g.asm.PopReg(RAX)
	g.asm.LeaSymbol(RCX, "$global."+name)
	g.asm.MovStore(RCX, 0, RAX)
}

// genListExpr allocates a fixed-size array object and fills it
// left-to-right, matching the evaluation order spec.md requires for
// element expressions.
func (g *Generator) genListExpr(n *chocopy.ListExpr) {
	elem := n.InferredType().Elem
	proto := listPrototypeFor(*elem)

	g.asm.LeaSymbol(RAX, proto)
	g.asm.PushReg(RAX)
	g.asm.MovRegImm32(RAX, int32(len(n.Elements)))
	g.asm.PushReg(RAX)
	g.asm.CallSymbol("$alloc_array")
	g.asm.AddRegImm32(RSP, 16)
	g.asm.PushReg(RAX) // keep the new array alive across element evaluation

	for i, el := range n.Elements {
		g.genExpr(el)
		g.asm.PopReg(RCX)                                            // array pointer
		g.asm.MovStore(RCX, int32(object.ArrayHeaderSize+8*i), RAX)
		g.asm.PushReg(RCX)
	}
	g.asm.PopReg(RAX)
}

func listPrototypeFor(elem chocopy.ValueType) string {
	switch {
	case elem.Equal(chocopy.ClassType_(chocopy.ClassInt)):
		return object.IntListPrototype
	case elem.Equal(chocopy.ClassType_(chocopy.ClassBool)):
		return object.BoolListPrototype
	default:
		return object.ObjectListPrototype
	}
}

// genIndexExpr emits target[index], with the runtime doing the bounds
// check so one call covers both the list and str cases ($index_list /
// $index_str raise $out_of_bound the same way).
func (g *Generator) genIndexExpr(n *chocopy.IndexExpr) {
	g.genExpr(n.Target)
	g.asm.PushReg(RAX)
	g.genExpr(n.Index)
	g.asm.PushReg(RAX)
	if n.Target.InferredType().ClassName == chocopy.ClassStr {
		g.asm.CallSymbol("$index_str")
	} else {
		g.asm.CallSymbol("$index_list")
	}
	g.asm.AddRegImm32(RSP, 16)
}

// genMemberExpr reads an attribute through a known class layout: the
// static type of Object pins down which ClassLayout to consult, so the
// offset is resolved at compile time rather than through the vtable.
func (g *Generator) genMemberExpr(n *chocopy.MemberExpr) {
	g.genExpr(n.Object)
	g.asm.CmpRegImm32(RAX, 0)
	none := g.freshLabel()
	g.asm.Jcc(CondE, none)

	cls := g.classes[n.Object.InferredType().ClassName]
	off := int32(object.ObjectHeaderSize) + cls.AttrOffset[n.Member]
	if isPrimitive(cls.AttrType[n.Member]) {
		g.asm.MovLoad32(RAX, RAX, off)
	} else {
		g.asm.MovLoad(RAX, RAX, off)
	}
	done := g.freshLabel()
	g.asm.Jmp(done)
	g.asm.Bind(none)
	g.asm.CallSymbol("$none_op")
	g.asm.Bind(done)
}

// genCallExpr dispatches a bare name call: a built-in (print/len/input/
// str/int/bool conversions), a class constructor, or a plain function.
func (g *Generator) genCallExpr(n *chocopy.CallExpr) {
	switch n.Callee {
	case "print":
		g.genExpr(n.Args[0])
		g.boxIfPrimitive(*n.Args[0].InferredType())
		g.asm.PushReg(RAX)
		g.asm.CallSymbol("$print")
		g.asm.AddRegImm32(RSP, 8)
		return
	case "len":
		g.genArgsPushed(n.Args)
		g.asm.CallSymbol("$len")
		g.asm.AddRegImm32(RSP, 8)
		return
	case "input":
		g.asm.CallSymbol("$input")
		return
	}
	if _, ok := g.classes[n.Callee]; ok {
		g.genConstructorCall(n.Callee, n.Args)
		return
	}
	slot, _, ok := g.frame.lookup(n.Callee)
	if !ok || slot.kind != slotFunc {
		panic("codegen: call to unresolved function " + n.Callee)
	}
	g.genArgsPushed(n.Args)
	g.asm.loadStaticLink(R10, staticLinkHops(g.frame.level, slot.level))
	g.asm.CallSymbol(funcSymbol(n.Callee, slot.level))
	if len(n.Args) > 0 {
		g.asm.AddRegImm32(RSP, int32(8*len(n.Args)))
	}
}

// staticLinkHops computes how many enclosing-frame steps separate the
// call site (at callerLevel) from the frame the callee expects as its
// own static link: its defining level's immediate parent.
func staticLinkHops(callerLevel, calleeLevel int) int {
	hops := callerLevel - calleeLevel + 1
	if hops < 0 {
		hops = 0
	}
	return hops
}

func funcSymbol(name string, level int) string {
	return fmt.Sprintf("$func.%s.%d", name, level)
}

// genArgsPushed evaluates args left to right but pushes them in
// reverse, so the first argument ends up nearest the return address —
// i.e. at [rbp+16] in the callee's frame.
func (g *Generator) genArgsPushed(args []chocopy.Expr) {
	// Pushed in source order: arg0 is pushed first, landing deepest
	// (highest address), which is exactly what the callee's
	// [rbp+16], [rbp+24], ... layout expects.
	for _, arg := range args {
		g.genExpr(arg)
		g.asm.PushReg(RAX)
	}
}

// genConstructorCall is a plain call to the class's own constructor
// chunk (see main_stub.go's genClassConstructor): push the args, call
// ClassName, and the chunk returns the new, fully initialized
// instance in RAX.
func (g *Generator) genConstructorCall(className string, args []chocopy.Expr) {
	for _, arg := range args {
		g.genExpr(arg)
		g.asm.PushReg(RAX)
	}
	g.asm.CallSymbol(className)
	if len(args) > 0 {
		g.asm.AddRegImm32(RSP, int32(8*len(args)))
	}
}

func protoSymbol(className string) string { return className + ".$proto" }

func dtorSymbol(className string) string { return className + ".$dtor" }

// boxIfPrimitive wraps a raw int/bool value in RAX into a proper
// refcounted object, needed anywhere a value crosses into a context
// that can't statically tell primitives from pointers — print's
// polymorphic argument chief among them.
func (g *Generator) boxIfPrimitive(vt chocopy.ValueType) {
	switch {
	case vt.ClassName == chocopy.ClassInt:
		g.asm.PushReg(RAX)
		g.asm.CallSymbol("$box_int")
		g.asm.AddRegImm32(RSP, 8)
	case vt.ClassName == chocopy.ClassBool:
		g.asm.PushReg(RAX)
		g.asm.CallSymbol("$box_bool")
		g.asm.AddRegImm32(RSP, 8)
	}
}

// genMethodCallExpr resolves the method through the instance's
// prototype vtable rather than statically, so overriding works.
func (g *Generator) genMethodCallExpr(n *chocopy.MethodCallExpr) {
	g.genExpr(n.Receiver)
	g.asm.PushReg(RAX) // self

	for _, arg := range n.Args {
		g.genExpr(arg)
		g.asm.PushReg(RAX)
	}

	cls := g.classes[n.Receiver.InferredType().ClassName]
	method := cls.Methods[n.Method]
	g.asm.MovLoad(RAX, RSP, int32(8*len(n.Args)))
	g.asm.MovLoad(RCX, RAX, int32(object.ObjectPrototypeOffset))
	g.asm.MovLoad(RCX, RCX, method.Offset)
	g.asm.CallReg(RCX)
	g.asm.AddRegImm32(RSP, int32(8*(len(n.Args)+1)))
}

func (g *Generator) genUnaryExpr(n *chocopy.UnaryExpr) {
	g.genExpr(n.Operand)
	switch n.Op {
	case chocopy.UnaryNeg:
		g.asm.Neg32(RAX)
	case chocopy.UnaryNot:
		g.asm.CmpRegImm32(RAX, 0)
		g.asm.SetCC(CondE, RAX)
	}
}

func (g *Generator) genBinaryExpr(n *chocopy.BinaryExpr) {
	switch n.Op {
	case chocopy.BinAnd:
		g.genShortCircuit(n, CondE)
		return
	case chocopy.BinOr:
		g.genShortCircuit(n, CondNE)
		return
	}

	g.genExpr(n.Left)
	g.asm.PushReg(RAX)
	g.genExpr(n.Right)
	g.asm.MovRegReg32(RCX, RAX)
	g.asm.PopReg(RAX)

	switch n.Op {
	case chocopy.BinAdd:
		g.genAdd(n)
	case chocopy.BinSub:
		g.asm.SubRegReg32(RAX, RCX)
	case chocopy.BinMul:
		g.asm.IMulRegReg32(RAX, RCX)
	case chocopy.BinFloorDiv:
		g.asm.Cdq()
		g.asm.Idiv32(RCX)
	case chocopy.BinMod:
		g.asm.Cdq()
		g.asm.Idiv32(RCX)
		g.asm.MovRegReg32(RAX, RDX)
	case chocopy.BinLt:
		g.asm.CmpRegReg32(RAX, RCX)
		g.asm.SetCC(CondL, RAX)
	case chocopy.BinLe:
		g.asm.CmpRegReg32(RAX, RCX)
		g.asm.SetCC(CondLE, RAX)
	case chocopy.BinGt:
		g.asm.CmpRegReg32(RAX, RCX)
		g.asm.SetCC(CondG, RAX)
	case chocopy.BinGe:
		g.asm.CmpRegReg32(RAX, RCX)
		g.asm.SetCC(CondGE, RAX)
	case chocopy.BinEq, chocopy.BinNe:
		g.genEquals(n, n.Op == chocopy.BinNe)
	case chocopy.BinIs:
		g.asm.CmpRegReg(RAX, RCX)
		g.asm.SetCC(CondE, RAX)
	}
}

// genAdd distinguishes int+int (32-bit add) from str+str and list+list
// (both runtime concatenation calls) using the statically inferred
// type, which check.Analyze has already pinned down.
func (g *Generator) genAdd(n *chocopy.BinaryExpr) {
	t := n.Left.InferredType()
	switch {
	case t.ClassName == chocopy.ClassInt:
		g.asm.AddRegReg32(RAX, RCX)
	case t.ClassName == chocopy.ClassStr:
		g.asm.PushReg(RCX)
		g.asm.PushReg(RAX)
		g.asm.CallSymbol("$concat_str")
		g.asm.AddRegImm32(RSP, 16)
	default:
		g.asm.PushReg(RCX)
		g.asm.PushReg(RAX)
		g.asm.CallSymbol("$concat_list")
		g.asm.AddRegImm32(RSP, 16)
	}
}

func (g *Generator) genEquals(n *chocopy.BinaryExpr, negate bool) {
	t := n.Left.InferredType()
	if t.ClassName == chocopy.ClassStr {
		g.asm.PushReg(RCX)
		g.asm.PushReg(RAX)
		g.asm.CallSymbol("$str_eq")
		g.asm.AddRegImm32(RSP, 16)
	} else {
		g.asm.CmpRegReg32(RAX, RCX)
		g.asm.SetCC(CondE, RAX)
	}
	if negate {
		g.asm.CmpRegImm32(RAX, 0)
		g.asm.SetCC(CondE, RAX)
	}
}

// genShortCircuit implements and/or without evaluating the right
// operand unless needed: skipCond is the comparison against the left
// value (already 0 or 1) that short-circuits past the right operand.
func (g *Generator) genShortCircuit(n *chocopy.BinaryExpr, skipCond Cond) {
	g.genExpr(n.Left)
	skip := g.freshLabel()
	g.asm.CmpRegImm32(RAX, 0)
	g.asm.Jcc(skipCond, skip)
	g.genExpr(n.Right)
	g.asm.Bind(skip)
}

func (g *Generator) genIfExpr(n *chocopy.IfExpr) {
	elseL := g.freshLabel()
	done := g.freshLabel()
	g.genExpr(n.Cond)
	g.asm.CmpRegImm32(RAX, 0)
	g.asm.Jcc(CondE, elseL)
	g.genExpr(n.Then)
	g.asm.Jmp(done)
	g.asm.Bind(elseL)
	g.genExpr(n.Else)
	g.asm.Bind(done)
}
