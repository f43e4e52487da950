package codegen

import (
	"github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/object"
)

// genStmt emits one statement. Control-flow statements recurse into
// genBlock for their bodies; genBlock itself holds no extra state,
// each statement being independently re-entrant over the shared Asm.
func (g *Generator) genStmt(s chocopy.Stmt) {
	switch n := s.(type) {
	case *chocopy.ExprStmt:
		g.markLine(n.Loc)
		g.genExpr(n.Expr)
	case *chocopy.AssignStmt:
		g.markLine(n.Loc)
		g.genAssignStmt(n)
	case *chocopy.IfStmt:
		g.markLine(n.Loc)
		g.genIfStmt(n)
	case *chocopy.WhileStmt:
		g.markLine(n.Loc)
		g.genWhileStmt(n)
	case *chocopy.ForStmt:
		g.markLine(n.Loc)
		g.genForStmt(n)
	case *chocopy.ReturnStmt:
		g.markLine(n.Loc)
		g.genReturnStmt(n)
	}
}

func (g *Generator) genBlock(stmts []chocopy.Stmt) {
	for _, s := range stmts {
		g.genStmt(s)
	}
}

// genAssignStmt evaluates the right-hand side once and stores it into
// every target, matching ChocoPy's left-to-right multi-target
// semantics; a target's previous value is dropped before it is
// overwritten when the target holds a refcounted reference.
func (g *Generator) genAssignStmt(n *chocopy.AssignStmt) {
	g.genExpr(n.Value)
	if len(n.Targets) > 1 {
		g.asm.PushReg(RAX)
		for i, t := range n.Targets {
			if i > 0 {
				g.asm.PopReg(RAX)
				if i < len(n.Targets)-1 {
					g.asm.PushReg(RAX)
				}
			}
			g.genStore(t)
		}
		return
	}
	g.genStore(n.Targets[0])
}

func (g *Generator) genStore(target chocopy.Expr) {
	switch t := target.(type) {
	case *chocopy.Identifier:
		g.genStoreName(t.Name)
	case *chocopy.MemberExpr:
		g.genStoreMember(t)
	case *chocopy.IndexExpr:
		g.genStoreIndex(t)
	}
}

// genStoreMember stores RAX into target.Object.Member, spilling the
// value across evaluation of the object expression since both must be
// live at the store.
func (g *Generator) genStoreMember(t *chocopy.MemberExpr) {
	g.asm.PushReg(RAX)
	g.genExpr(t.Object)
	g.asm.MovRegReg(RCX, RAX)
	g.asm.PopReg(RAX)

	cls := g.classes[t.Object.InferredType().ClassName]
	off := int32(object.ObjectHeaderSize) + cls.AttrOffset[t.Member]
	if isPrimitive(cls.AttrType[t.Member]) {
		g.asm.MovStore32(RCX, off, RAX)
		return
	}
	g.asm.PushReg(RAX)
	g.asm.PushReg(RCX)
	g.asm.MovLoad(RDX, RCX, off)
	g.asm.PushReg(RDX)
	g.asm.CallSymbol("$drop_obj")
	g.asm.AddRegImm32(RSP, 8)
	g.asm.PopReg(RCX)
	g.asm.PopReg(RAX)
	g.asm.MovStore(RCX, off, RAX)
}

func (g *Generator) genStoreIndex(t *chocopy.IndexExpr) {
	g.asm.PushReg(RAX) // value
	g.genExpr(t.Target)
	g.asm.PushReg(RAX)
	g.genExpr(t.Index)
	g.asm.PushReg(RAX)
	g.asm.CallSymbol("$store_list")
	g.asm.AddRegImm32(RSP, 24)
}

func (g *Generator) genIfStmt(n *chocopy.IfStmt) {
	elseL := g.freshLabel()
	done := g.freshLabel()
	g.genExpr(n.Cond)
	g.asm.CmpRegImm32(RAX, 0)
	g.asm.Jcc(CondE, elseL)
	g.genBlock(n.Then)
	g.asm.Jmp(done)
	g.asm.Bind(elseL)
	g.genBlock(n.Else)
	g.asm.Bind(done)
}

func (g *Generator) genWhileStmt(n *chocopy.WhileStmt) {
	top := g.freshLabel()
	done := g.freshLabel()
	g.asm.Bind(top)
	g.genExpr(n.Cond)
	g.asm.CmpRegImm32(RAX, 0)
	g.asm.Jcc(CondE, done)
	g.genBlock(n.Body)
	g.asm.Jmp(top)
	g.asm.Bind(done)
}

// genForStmt lowers `for x in iterable:` into an index-driven loop
// over the already-evaluated iterable, reusing $index_list / $index_str
// and $len the same way an explicit indexing expression would.
func (g *Generator) genForStmt(n *chocopy.ForStmt) {
	g.genExpr(n.Iterable)
	iterSlot := g.frame.allocLocal(forIterTemp(n), *n.Iterable.InferredType())
	g.asm.MovStore(RBP, iterSlot.offset, RAX)

	idxSlot := g.frame.allocLocal(forIdxTemp(n), chocopy.ClassType_(chocopy.ClassInt))
	g.asm.MovRegImm32(RAX, 0)
	g.asm.MovStore32(RBP, idxSlot.offset, RAX)

	top := g.freshLabel()
	done := g.freshLabel()
	g.asm.Bind(top)
	g.asm.MovLoad(RAX, RBP, iterSlot.offset)
	g.asm.PushReg(RAX)
	g.asm.CallSymbol("$len")
	g.asm.AddRegImm32(RSP, 8)
	g.asm.MovLoad32(RCX, RBP, idxSlot.offset)
	g.asm.CmpRegReg32(RCX, RAX)
	g.asm.Jcc(CondGE, done)

	g.asm.MovLoad(RAX, RBP, iterSlot.offset)
	g.asm.PushReg(RAX)
	g.asm.MovLoad32(RAX, RBP, idxSlot.offset)
	g.asm.PushReg(RAX)
	if n.Iterable.InferredType().ClassName == chocopy.ClassStr {
		g.asm.CallSymbol("$index_str")
	} else {
		g.asm.CallSymbol("$index_list")
		// $index_list hands back the array's own slot value, not a
		// fresh reference; clone it before binding it to the loop
		// variable so genStoreName's drop-before-store on the next
		// iteration doesn't decrement a reference it never incremented.
		if elem := n.Iterable.InferredType().Elem; elem != nil && !isPrimitive(*elem) {
			g.cloneLoaded()
		}
	}
	g.asm.AddRegImm32(RSP, 16)
	g.genStoreName(n.Var)

	g.genBlock(n.Body)

	g.asm.MovLoad32(RAX, RBP, idxSlot.offset)
	g.asm.MovRegImm32(RCX, 1)
	g.asm.AddRegReg32(RAX, RCX)
	g.asm.MovStore32(RBP, idxSlot.offset, RAX)
	g.asm.Jmp(top)
	g.asm.Bind(done)
}

func forIterTemp(n *chocopy.ForStmt) string { return "$for.iter." + n.Var }
func forIdxTemp(n *chocopy.ForStmt) string  { return "$for.idx." + n.Var }

// genReturnStmt evaluates the return value, if any, then jumps to the
// function's shared epilogue rather than leaving/returning directly,
// so the clean-up list still runs no matter which return statement
// exits the function.
func (g *Generator) genReturnStmt(n *chocopy.ReturnStmt) {
	if n.Value != nil {
		g.genExpr(n.Value)
	} else {
		g.asm.MovRegImm32(RAX, 0)
	}
	g.asm.Jmp(g.epilogue)
}
