package check

import "github.com/ckitagawa/chocopyc"

// builtinNames seeds the global identifier table so a top-level
// declaration cannot shadow one of ChocoPy's three built-in functions
// or its three primitive class names.
var builtinNames = map[string]bool{
	"str": true, "bool": true, "int": true,
	"print": true, "input": true, "len": true,
}

type analyzer struct {
	classes *ClassEnv
	errs    []chocopy.CompilerError
}

func (a *analyzer) error(loc chocopy.Location, msg string) {
	a.errs = append(a.errs, chocopy.CompilerError{Loc: loc, Message: msg})
}

// Analyze runs the three-pass semantic check over prog: class/global
// symbol collection, global variable typing, then full expression
// type inference over every function and method body plus the
// top-level statement list. It returns the accumulated errors; prog's
// expression nodes are annotated with their inferred types in place.
func Analyze(prog *chocopy.Program) []chocopy.CompilerError {
	a := &analyzer{classes: NewClassEnv()}

	idSet := map[string]bool{}
	for k := range builtinNames {
		idSet[k] = true
	}

	// Pass A: global identifier collisions and class construction.
	for _, decl := range prog.Declarations {
		name, loc := declNameLoc(decl)
		if idSet[name] {
			a.error(loc, errorDup(name))
		}
		idSet[name] = true
		if cd, ok := decl.(*chocopy.ClassDef); ok {
			a.errs = append(a.errs, a.classes.AddClass(cd, idSet)...)
		}
	}
	a.classes.CompleteBasicTypes()

	// Pass B: validate type annotations and collect the module's
	// global-scope symbol table (functions and variables alike).
	globals := map[string]Slot{
		"print": {Kind: SlotFunc, Func: chocopy.FuncType{Params: []chocopy.ValueType{typeObject}, Return: typeNone}},
		"input": {Kind: SlotFunc, Func: chocopy.FuncType{Return: typeStr}},
		"len":   {Kind: SlotFunc, Func: chocopy.FuncType{Params: []chocopy.ValueType{typeObject}, Return: typeInt}},
	}
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *chocopy.VarDef:
			vt := valueTypeFromAnnotation(d.Type)
			a.checkTypeAnnotation(d.Type)
			a.checkVarDefValue(d)
			globals[d.Name] = Slot{Kind: SlotLocal, Type: vt}
		case *chocopy.FuncDef:
			globals[d.Name] = Slot{Kind: SlotFunc, Func: a.funcTypeOf(d)}
		case *chocopy.ClassDef:
			for _, item := range d.Decls {
				if v, ok := item.(*chocopy.VarDef); ok {
					a.checkTypeAnnotation(v.Type)
					a.checkVarDefValue(v)
				}
			}
			// A class name is callable as its own default
			// constructor: zero user-visible arguments, returning an
			// instance of the class.
			globals[d.Name] = Slot{Kind: SlotFunc, Func: chocopy.FuncType{Return: chocopy.ClassType_(d.Name)}}
		}
	}

	// Pass C: full-body analysis.
	env := NewLocalEnv(globals)
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *chocopy.FuncDef:
			a.analyzeFuncDef(d, env, 1)
		case *chocopy.ClassDef:
			for _, item := range d.Decls {
				if f, ok := item.(*chocopy.FuncDef); ok {
					a.analyzeFuncDef(f, env, 1)
				}
			}
		}
	}
	a.analyzeStmts(prog.Statements, env, nil)

	return a.errs
}

func declNameLoc(decl chocopy.Declaration) (string, chocopy.Location) {
	switch d := decl.(type) {
	case *chocopy.ClassDef:
		return d.Name, d.NameLoc
	case *chocopy.FuncDef:
		return d.Name, d.NameLoc
	case *chocopy.VarDef:
		return d.Name, d.NameLoc
	case *chocopy.GlobalDecl:
		return d.Name, d.Loc
	case *chocopy.NonLocalDecl:
		return d.Name, d.Loc
	}
	return "", chocopy.Location{}
}

func (a *analyzer) funcTypeOf(f *chocopy.FuncDef) chocopy.FuncType {
	params := make([]chocopy.ValueType, len(f.Params))
	for i, p := range f.Params {
		params[i] = valueTypeFromAnnotation(p.Type)
	}
	ret := typeNone
	if f.Return != nil {
		ret = valueTypeFromAnnotation(f.Return)
	}
	return chocopy.FuncType{Params: params, Return: ret}
}

// checkTypeAnnotation validates that every class name reachable from
// t (unwrapping list nesting) refers to a known class.
func (a *analyzer) checkTypeAnnotation(t chocopy.TypeAnnotation) {
	switch n := t.(type) {
	case *chocopy.ClassType:
		if !a.classes.Contains(n.Name) {
			a.error(n.Loc, errorInvalidType(n.Name))
		}
	case *chocopy.ListType:
		a.checkTypeAnnotation(n.Elem)
	}
}

// checkVarDefValue reports a VarDef whose literal initializer is not
// compatible with its declared type.
func (a *analyzer) checkVarDefValue(d *chocopy.VarDef) {
	got := a.analyzeExpr(d.Value, nil, nil)
	want := valueTypeFromAnnotation(d.Type)
	if !a.classes.IsCompatible(got, want) {
		a.error(d.Value.Location(), errorAssign(want, got))
	}
}

// analyzeFuncDef validates a function or method's own declarations
// (parameter/local collisions, shadowing, global/nonlocal validity),
// builds its frame, recurses into nested functions, and finally
// type-checks its statement body against its declared return type.
// level is the lexical nesting depth recorded onto the node for
// codegen's static-link threading.
func (a *analyzer) analyzeFuncDef(f *chocopy.FuncDef, env *LocalEnv, level int) {
	f.Level = level

	seen := map[string]bool{}
	for _, p := range f.Params {
		a.checkTypeAnnotation(p.Type)
		if a.classes.Contains(p.Name) {
			a.error(p.Loc, errorShadow(p.Name))
		}
		if seen[p.Name] {
			a.error(p.Loc, errorDup(p.Name))
		}
		seen[p.Name] = true
	}
	if f.Return != nil {
		a.checkTypeAnnotation(f.Return)
	}

	globalSet := env.frames[0]
	frame := map[string]Slot{}
	for _, p := range f.Params {
		frame[p.Name] = Slot{Kind: SlotLocal, Type: valueTypeFromAnnotation(p.Type)}
	}
	for _, decl := range f.Decls {
		name, loc := declNameLoc(decl)
		if seen[name] {
			a.error(loc, errorDup(name))
		}
		seen[name] = true

		switch d := decl.(type) {
		case *chocopy.VarDef:
			a.checkTypeAnnotation(d.Type)
			a.checkVarDefValue(d)
			if a.classes.Contains(d.Name) {
				a.error(d.NameLoc, errorShadow(d.Name))
			}
			frame[d.Name] = Slot{Kind: SlotLocal, Type: valueTypeFromAnnotation(d.Type)}
		case *chocopy.FuncDef:
			if a.classes.Contains(d.Name) {
				a.error(d.NameLoc, errorShadow(d.Name))
			}
			frame[d.Name] = Slot{Kind: SlotFunc, Func: a.funcTypeOf(d)}
		case *chocopy.NonLocalDecl:
			found := false
			for i := len(env.frames) - 1; i >= 1; i-- {
				if s, ok := env.frames[i][d.Name]; ok && s.Kind != SlotNonLocal {
					found = s.Kind == SlotLocal
					break
				}
			}
			if !found {
				a.error(d.Loc, errorNonLocal(d.Name))
			}
			frame[d.Name] = Slot{Kind: SlotNonLocal}
		case *chocopy.GlobalDecl:
			if _, ok := globalSet[d.Name]; !ok {
				a.error(d.Loc, errorGlobal(d.Name))
			}
			frame[d.Name] = Slot{Kind: SlotGlobal}
		}
	}

	env.Push(frame)
	for _, decl := range f.Decls {
		if nested, ok := decl.(*chocopy.FuncDef); ok {
			a.analyzeFuncDef(nested, env, level+1)
		}
	}
	ret := typeNone
	if f.Return != nil {
		ret = valueTypeFromAnnotation(f.Return)
	}
	a.analyzeStmts(f.Statements, env, &ret)
	if !a.classes.IsCompatible(typeNone, ret) && !allPathsReturn(f.Statements) {
		a.error(f.NameLoc, errorReturn(f.Name))
	}
	env.Pop()
}

// allPathsReturn reports whether every control-flow path through
// stmts ends in a return statement. Loop bodies never guarantee
// execution, so while/for statements are never considered
// return-covering regardless of their body.
func allPathsReturn(stmts []chocopy.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *chocopy.ReturnStmt:
		return true
	case *chocopy.IfStmt:
		return allPathsReturn(s.Then) && allPathsReturn(s.Else)
	default:
		return false
	}
}

func (a *analyzer) analyzeStmts(stmts []chocopy.Stmt, env *LocalEnv, ret *chocopy.ValueType) {
	for _, s := range stmts {
		a.analyzeStmt(s, env, ret)
	}
}

func (a *analyzer) analyzeStmt(s chocopy.Stmt, env *LocalEnv, ret *chocopy.ValueType) {
	switch n := s.(type) {
	case *chocopy.ExprStmt:
		a.analyzeExpr(n.Expr, env, ret)

	case *chocopy.AssignStmt:
		right := a.analyzeExpr(n.Value, env, ret)
		for _, target := range n.Targets {
			left := a.analyzeExpr(target, env, ret)
			errored := false
			switch t := target.(type) {
			case *chocopy.Identifier:
				if _, assignable, found := env.Get(t.Name); found && !assignable {
					a.error(t.Loc, errorNonLocalAssign(t.Name))
					errored = true
				}
			case *chocopy.IndexExpr:
				if lt := t.Target.InferredType(); lt != nil && lt.Equal(typeStr) {
					a.error(t.Loc, errorStrIndexAssign())
					errored = true
				}
			}
			if !errored && !a.classes.IsCompatible(right, left) {
				a.error(n.Loc, errorAssign(left, right))
			}
		}
		if len(n.Targets) > 1 && right.Equal(typeNoneList) {
			a.error(n.Loc, errorMultiAssign())
		}

	case *chocopy.IfStmt:
		cond := a.analyzeExpr(n.Cond, env, ret)
		if !cond.Equal(typeBool) {
			a.error(n.Loc, errorCondition(cond))
		}
		a.analyzeStmts(n.Then, env, ret)
		a.analyzeStmts(n.Else, env, ret)

	case *chocopy.WhileStmt:
		cond := a.analyzeExpr(n.Cond, env, ret)
		if !cond.Equal(typeBool) {
			a.error(n.Loc, errorCondition(cond))
		}
		a.analyzeStmts(n.Body, env, ret)

	case *chocopy.ForStmt:
		iterable := a.analyzeExpr(n.Iterable, env, ret)
		var elem chocopy.ValueType
		ok := true
		switch {
		case iterable.Equal(typeStr):
			elem = typeStr
		case iterable.IsList():
			elem = *iterable.Elem
		default:
			a.error(n.Loc, errorIterable(iterable))
			ok = false
		}
		if ok {
			slot, assignable, found := env.Get(n.Var)
			if !found || slot.Kind == SlotFunc {
				a.error(n.Loc, errorVariable(n.Var))
			} else if a.classes.IsCompatible(elem, slot.Type) {
				n.ElemType = elem
				if !assignable {
					a.error(n.VarLoc, errorNonLocalAssign(n.Var))
				}
			} else {
				a.error(n.Loc, errorAssign(slot.Type, elem))
			}
		}
		a.analyzeStmts(n.Body, env, ret)

	case *chocopy.ReturnStmt:
		if ret == nil {
			a.error(n.Loc, errorTopReturn())
			return
		}
		var got chocopy.ValueType
		if n.Value != nil {
			got = a.analyzeExpr(n.Value, env, ret)
		} else {
			got = typeNone
		}
		if !a.classes.IsCompatible(got, *ret) {
			if n.Value != nil {
				a.error(n.Loc, errorAssign(*ret, got))
			} else {
				a.error(n.Loc, errorNoneReturn(*ret))
			}
		}
	}
}

// analyzeExpr type-checks e, annotates its inferred type, and returns
// that type so callers can fold it into enclosing expressions without
// a second dereference through InferredType.
func (a *analyzer) analyzeExpr(e chocopy.Expr, env *LocalEnv, ret *chocopy.ValueType) chocopy.ValueType {
	t := a.inferExpr(e, env, ret)
	e.SetInferredType(t)
	return t
}

func (a *analyzer) inferExpr(e chocopy.Expr, env *LocalEnv, ret *chocopy.ValueType) chocopy.ValueType {
	switch n := e.(type) {
	case *chocopy.NoneLiteral:
		return typeNone
	case *chocopy.BoolLiteral:
		return typeBool
	case *chocopy.IntLiteral:
		return typeInt
	case *chocopy.StringLiteral:
		return typeStr

	case *chocopy.Identifier:
		slot, _, found := env.Get(n.Name)
		if !found || slot.Kind == SlotFunc {
			a.error(n.Loc, errorVariable(n.Name))
			return typeObject
		}
		return slot.Type

	case *chocopy.ListExpr:
		if len(n.Elements) == 0 {
			return typeEmpty
		}
		elem := a.analyzeExpr(n.Elements[0], env, ret)
		for _, el := range n.Elements[1:] {
			elem = a.classes.Join(elem, a.analyzeExpr(el, env, ret))
		}
		return chocopy.ListType_(elem)

	case *chocopy.IndexExpr:
		left := a.analyzeExpr(n.Target, env, ret)
		var elem chocopy.ValueType
		switch {
		case left.IsList():
			elem = *left.Elem
		case left.Equal(typeStr):
			elem = typeStr
		default:
			a.error(n.Loc, errorIndexLeft(left))
			elem = typeObject
		}
		index := a.analyzeExpr(n.Index, env, ret)
		if !index.Equal(typeInt) {
			a.error(n.Loc, errorIndexRight(index))
		}
		return elem

	case *chocopy.MemberExpr:
		class := a.analyzeExpr(n.Object, env, ret)
		if class.IsList() {
			a.error(n.Loc, errorMember(class))
			return typeObject
		}
		ci, ok := a.classes.Get(class.ClassName)
		if !ok {
			a.error(n.Loc, errorMember(class))
			return typeObject
		}
		item, ok := ci.Items[n.Member]
		if !ok {
			a.error(n.Loc, errorAttribute(n.Member, class.ClassName))
			return typeObject
		}
		switch it := item.(type) {
		case AttrItem:
			return it.Type
		default:
			a.error(n.Loc, errorAttribute(n.Member, class.ClassName))
			return typeObject
		}

	case *chocopy.CallExpr:
		args := make([]chocopy.ValueType, len(n.Args))
		for i, arg := range n.Args {
			args[i] = a.analyzeExpr(arg, env, ret)
		}
		slot, _, found := env.Get(n.Callee)
		if !found || slot.Kind != SlotFunc {
			a.error(n.Loc, errorFunction(n.Callee))
			return typeObject
		}
		ft := slot.Func
		if len(ft.Params) != len(args) {
			a.error(n.Loc, errorCallCount(len(ft.Params), len(args)))
		} else {
			for i, arg := range args {
				if !a.classes.IsCompatible(arg, ft.Params[i]) {
					a.error(n.Loc, errorCallType(i, ft.Params[i], arg))
					break
				}
			}
		}
		return ft.Return

	case *chocopy.MethodCallExpr:
		args := make([]chocopy.ValueType, len(n.Args))
		for i, arg := range n.Args {
			args[i] = a.analyzeExpr(arg, env, ret)
		}
		class := a.analyzeExpr(n.Receiver, env, ret)
		if class.IsList() {
			a.error(n.Loc, errorMember(class))
			return typeObject
		}
		ci, ok := a.classes.Get(class.ClassName)
		if !ok {
			a.error(n.Loc, errorMember(class))
			return typeObject
		}
		item, ok := ci.Items[n.Method]
		fi, isFunc := item.(FuncItem)
		if !ok || !isFunc {
			a.error(n.Loc, errorMethod(n.Method, class.ClassName))
			return typeObject
		}
		if len(fi.Type.Params)-1 != len(args) {
			a.error(n.Loc, errorCallCount(len(fi.Type.Params)-1, len(args)))
		} else {
			for i, arg := range args {
				if !a.classes.IsCompatible(arg, fi.Type.Params[i+1]) {
					a.error(n.Loc, errorCallType(i, fi.Type.Params[i+1], arg))
					break
				}
			}
		}
		return fi.Type.Return

	case *chocopy.UnaryExpr:
		operand := a.analyzeExpr(n.Operand, env, ret)
		switch n.Op {
		case chocopy.UnaryNeg:
			if !operand.Equal(typeInt) {
				a.error(n.Loc, errorUnary("-", operand))
			}
			return typeInt
		default:
			if !operand.Equal(typeBool) {
				a.error(n.Loc, errorUnary("not", operand))
			}
			return typeBool
		}

	case *chocopy.BinaryExpr:
		return a.analyzeBinary(n, env, ret)

	case *chocopy.IfExpr:
		cond := a.analyzeExpr(n.Cond, env, ret)
		if !cond.Equal(typeBool) {
			a.error(n.Loc, errorCondition(cond))
		}
		then := a.analyzeExpr(n.Then, env, ret)
		els := a.analyzeExpr(n.Else, env, ret)
		return a.classes.Join(then, els)
	}
	return typeObject
}

var binaryOpSymbols = map[chocopy.BinaryOp]string{
	chocopy.BinAdd: "+", chocopy.BinSub: "-", chocopy.BinMul: "*",
	chocopy.BinFloorDiv: "//", chocopy.BinMod: "%",
	chocopy.BinLt: "<", chocopy.BinLe: "<=", chocopy.BinGt: ">", chocopy.BinGe: ">=",
	chocopy.BinEq: "==", chocopy.BinNe: "!=", chocopy.BinIs: "is",
	chocopy.BinAnd: "and", chocopy.BinOr: "or",
}

func (a *analyzer) analyzeBinary(n *chocopy.BinaryExpr, env *LocalEnv, ret *chocopy.ValueType) chocopy.ValueType {
	left := a.analyzeExpr(n.Left, env, ret)
	right := a.analyzeExpr(n.Right, env, ret)

	var result chocopy.ValueType
	bad := false

	switch n.Op {
	case chocopy.BinSub, chocopy.BinMul, chocopy.BinFloorDiv, chocopy.BinMod:
		bad = !left.Equal(typeInt) || !right.Equal(typeInt)
		result = typeInt
	case chocopy.BinAnd, chocopy.BinOr:
		bad = !left.Equal(typeBool) || !right.Equal(typeBool)
		result = typeBool
	case chocopy.BinLt, chocopy.BinLe, chocopy.BinGt, chocopy.BinGe:
		bad = !left.Equal(typeInt) || !right.Equal(typeInt)
		result = typeBool
	case chocopy.BinIs:
		bad = isBasic(left) || isBasic(right)
		result = typeBool
	case chocopy.BinAdd:
		switch {
		case left.Equal(typeInt) || right.Equal(typeInt):
			bad = !left.Equal(right)
			result = typeInt
		case left.Equal(typeStr):
			if !left.Equal(right) {
				bad = true
				result = typeObject
			} else {
				result = typeStr
			}
		case left.IsList() && right.IsList():
			result = chocopy.ListType_(a.classes.Join(*left.Elem, *right.Elem))
		default:
			bad = true
			result = typeObject
		}
	case chocopy.BinEq, chocopy.BinNe:
		if !left.Equal(typeInt) && !left.Equal(typeStr) && !left.Equal(typeBool) {
			bad = true
		} else if !left.Equal(right) {
			bad = true
		}
		result = typeBool
	default:
		result = typeObject
	}

	if bad {
		a.error(n.Loc, errorBinary(binaryOpSymbols[n.Op], left, right))
	}
	return result
}
