package chocopy

import (
	"encoding/json"
	"fmt"
)

// locArray renders a Location as spec.md §6's 4-element
// [sr, sc, er, ec] array.
func locArray(l Location) [4]int {
	return [4]int{l.Start.Row, l.Start.Col, l.End.Row, l.End.Col}
}

// orderedJSON is the generic shape every AST-JSON object has: a kind tag
// plus a location array, with the rest of the fields appended by each
// node's MarshalJSON via an ordered map. encoding/json on a plain map
// would sort keys alphabetically and break byte-stability (spec.md
// §8's round-trip property), so each node builds an explicit
// field-ordered buffer instead of relying on struct-tag reflection —
// the same reason the teacher's tree_printer.go walks the visitor
// instead of using a generic marshaler.
type orderedJSON struct {
	fields []string
	values []json.RawMessage
}

func newOrderedJSON(kind string, loc Location) *orderedJSON {
	o := &orderedJSON{}
	o.add("kind", kind)
	o.add("location", locArray(loc))
	return o
}

func (o *orderedJSON) add(name string, v any) *orderedJSON {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte("null")
	}
	o.fields = append(o.fields, name)
	o.values = append(o.values, raw)
	return o
}

func (o *orderedJSON) addNode(name string, n Node) *orderedJSON {
	if n == nil {
		return o.add(name, nil)
	}
	raw, err := json.Marshal(n)
	if err != nil {
		raw = []byte("null")
	}
	o.fields = append(o.fields, name)
	o.values = append(o.values, raw)
	return o
}

func (o *orderedJSON) addNodes(name string, ns any) *orderedJSON {
	return o.add(name, ns)
}

func (o *orderedJSON) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, name := range o.fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, _ := json.Marshal(name)
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, o.values[i]...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func typeString(t *ValueType) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func (n *Program) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("Program", n.Loc).
		addNodes("declarations", n.Declarations).
		addNodes("statements", n.Statements).
		addNodes("errors", errorsJSON(n.Errors)).
		MarshalJSON()
}

func errorsJSON(errs []CompilerError) []json.RawMessage {
	out := make([]json.RawMessage, len(errs))
	for i, e := range errs {
		out[i], _ = newOrderedJSON("CompilerError", e.Loc).
			add("message", e.Message).
			add("syntax", e.Syntax).
			MarshalJSON()
	}
	return out
}

func (n *ClassDef) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("ClassDef", n.Loc).
		add("className", n.Name).
		add("superClass", n.Super).
		addNodes("declarations", n.Decls).
		MarshalJSON()
}

func (n *FuncDef) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("FuncDef", n.Loc).
		add("name", n.Name).
		addNodes("params", n.Params).
		addNode("returnType", n.Return).
		addNodes("declarations", n.Decls).
		addNodes("statements", n.Statements).
		MarshalJSON()
}

func (p Param) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("TypedVar", p.Loc).
		add("identifier", p.Name).
		addNode("type", p.Type).
		MarshalJSON()
}

func (n *VarDef) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("VarDef", n.Loc).
		add("name", n.Name).
		addNode("type", n.Type).
		addNode("value", n.Value).
		MarshalJSON()
}

func (n *GlobalDecl) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("GlobalDecl", n.Loc).add("variable", n.Name).MarshalJSON()
}

func (n *NonLocalDecl) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("NonLocalDecl", n.Loc).add("variable", n.Name).MarshalJSON()
}

func (n *ExprStmt) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("ExprStmt", n.Loc).addNode("expr", n.Expr).MarshalJSON()
}

func (n *AssignStmt) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("AssignStmt", n.Loc).
		addNodes("targets", n.Targets).
		addNode("value", n.Value).
		MarshalJSON()
}

func (n *IfStmt) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("IfStmt", n.Loc).
		addNode("condition", n.Cond).
		addNodes("thenBody", n.Then).
		addNodes("elseBody", n.Else).
		MarshalJSON()
}

func (n *WhileStmt) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("WhileStmt", n.Loc).
		addNode("condition", n.Cond).
		addNodes("body", n.Body).
		MarshalJSON()
}

func (n *ForStmt) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("ForStmt", n.Loc).
		add("identifier", n.Var).
		addNode("iterable", n.Iterable).
		addNodes("body", n.Body).
		MarshalJSON()
}

func (n *ReturnStmt) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("ReturnStmt", n.Loc).addNode("value", n.Value).MarshalJSON()
}

func (n *NoneLiteral) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("NoneLiteral", n.Loc).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *BoolLiteral) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("BooleanLiteral", n.Loc).
		add("value", n.Value).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *IntLiteral) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("IntegerLiteral", n.Loc).
		add("value", n.Value).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *StringLiteral) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("StringLiteral", n.Loc).
		add("value", n.Value).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *Identifier) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("Identifier", n.Loc).
		add("name", n.Name).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *ListExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("ListExpr", n.Loc).
		addNodes("elements", n.Elements).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *IndexExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("IndexExpr", n.Loc).
		addNode("list", n.Target).
		addNode("index", n.Index).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *MemberExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("MemberExpr", n.Loc).
		addNode("object", n.Object).
		add("member", n.Member).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *CallExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("CallExpr", n.Loc).
		add("function", n.Callee).
		addNodes("args", n.Args).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *MethodCallExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("MethodCallExpr", n.Loc).
		addNode("receiver", n.Receiver).
		add("method", n.Method).
		addNodes("args", n.Args).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

var unaryOpNames = map[UnaryOp]string{UnaryNeg: "-", UnaryNot: "not"}

func (n *UnaryExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("UnaryExpr", n.Loc).
		add("operator", unaryOpNames[n.Op]).
		addNode("operand", n.Operand).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

var binaryOpNames = map[BinaryOp]string{
	BinAdd: "+", BinSub: "-", BinMul: "*", BinFloorDiv: "//", BinMod: "%",
	BinLt: "<", BinLe: "<=", BinGt: ">", BinGe: ">=", BinEq: "==", BinNe: "!=",
	BinIs: "is", BinAnd: "and", BinOr: "or",
}

func (n *BinaryExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("BinaryExpr", n.Loc).
		add("operator", binaryOpNames[n.Op]).
		addNode("left", n.Left).
		addNode("right", n.Right).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *IfExpr) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("IfExpr", n.Loc).
		addNode("condition", n.Cond).
		addNode("thenExpr", n.Then).
		addNode("elseExpr", n.Else).
		add("inferredType", typeString(n.InferredType())).
		MarshalJSON()
}

func (n *ClassType) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("ClassType", n.Loc).add("className", n.Name).MarshalJSON()
}

func (n *ListType) MarshalJSON() ([]byte, error) {
	return newOrderedJSON("ListType", n.Loc).addNode("elementType", n.Elem).MarshalJSON()
}

// GoString implements fmt.GoStringer for quick debugging (not used by the
// golden AST format, only by error messages/logging).
func (v ValueType) GoString() string { return fmt.Sprintf("ValueType(%s)", v.String()) }
