package chocopy

// Node is implemented by every AST node. Visiting mirrors the
// teacher's AstNodeVisitor: one VisitXNode method per concrete type,
// dispatched through Accept rather than a type switch at every call
// site.
type Node interface {
	Location() Location
	Accept(Visitor) error
}

// Visitor is implemented by passes that walk the whole tree: the
// semantic analyzer and the code generator are both Visitors.
type Visitor interface {
	VisitProgram(*Program) error

	VisitClassDef(*ClassDef) error
	VisitFuncDef(*FuncDef) error
	VisitVarDef(*VarDef) error
	VisitGlobalDecl(*GlobalDecl) error
	VisitNonLocalDecl(*NonLocalDecl) error

	VisitExprStmt(*ExprStmt) error
	VisitAssignStmt(*AssignStmt) error
	VisitIfStmt(*IfStmt) error
	VisitWhileStmt(*WhileStmt) error
	VisitForStmt(*ForStmt) error
	VisitReturnStmt(*ReturnStmt) error

	VisitNoneLiteral(*NoneLiteral) error
	VisitBoolLiteral(*BoolLiteral) error
	VisitIntLiteral(*IntLiteral) error
	VisitStringLiteral(*StringLiteral) error
	VisitIdentifier(*Identifier) error
	VisitListExpr(*ListExpr) error
	VisitIndexExpr(*IndexExpr) error
	VisitMemberExpr(*MemberExpr) error
	VisitCallExpr(*CallExpr) error
	VisitMethodCallExpr(*MethodCallExpr) error
	VisitUnaryExpr(*UnaryExpr) error
	VisitBinaryExpr(*BinaryExpr) error
	VisitIfExpr(*IfExpr) error

	VisitClassType(*ClassType) error
	VisitListType(*ListType) error
}

// ValueType is the semantic type lattice element attached to typed
// expressions and declarations: either a class name or a list-of
// another ValueType. Of the six special names below, check.Analyze
// reports a class def named int, bool or str as a duplicate
// declaration, and <None>/<Empty> cannot be written as identifiers; a
// class def named object is not rejected.
type ValueType struct {
	ClassName string     // "" when Elem != nil
	Elem      *ValueType // non-nil for a list type
}

const (
	ClassObject = "object"
	ClassInt    = "int"
	ClassBool   = "bool"
	ClassStr    = "str"
	ClassNone   = "<None>"
	ClassEmpty  = "<Empty>"
)

func ClassType_(name string) ValueType { return ValueType{ClassName: name} }
func ListType_(elem ValueType) ValueType {
	e := elem
	return ValueType{Elem: &e}
}

func (v ValueType) IsList() bool { return v.Elem != nil }

func (v ValueType) String() string {
	if v.IsList() {
		return "[" + v.Elem.String() + "]"
	}
	return v.ClassName
}

func (v ValueType) Equal(o ValueType) bool {
	if v.IsList() != o.IsList() {
		return false
	}
	if v.IsList() {
		return v.Elem.Equal(*o.Elem)
	}
	return v.ClassName == o.ClassName
}

// FuncType is the checker's representation of a callable: ordered
// parameter types plus a return type. For methods, Params[0] is
// always the enclosing class's ValueType.
type FuncType struct {
	Params []ValueType
	Return ValueType
}

// TypeAnnotation is the surface syntax for a declared type.
type TypeAnnotation interface {
	Node
	typeAnnotation()
}

type ClassType struct {
	Name string
	Loc  Location
}

func (n *ClassType) Location() Location      { return n.Loc }
func (n *ClassType) Accept(v Visitor) error  { return v.VisitClassType(n) }
func (*ClassType) typeAnnotation()           {}

type ListType struct {
	Elem TypeAnnotation
	Loc  Location
}

func (n *ListType) Location() Location     { return n.Loc }
func (n *ListType) Accept(v Visitor) error { return v.VisitListType(n) }
func (*ListType) typeAnnotation()          {}

// CompilerError is the data-not-exception representation of spec.md
// §6/§7's diagnostics: both syntax and semantic errors attach one of
// these to the narrowest responsible node and to Program.Errors, in
// source order.
type CompilerError struct {
	Loc     Location
	Message string
	Syntax  bool
}

// Declaration is the sum type for top-level/class-body declarations.
type Declaration interface {
	Node
	declaration()
}

// Program is the AST root: declarations and top-level statements,
// plus every recoverable error collected along the way.
type Program struct {
	Declarations []Declaration
	Statements   []Stmt
	Errors       []CompilerError
	Loc          Location
}

func (n *Program) Location() Location     { return n.Loc }
func (n *Program) Accept(v Visitor) error { return v.VisitProgram(n) }

// ---- Declarations ----

type ClassDef struct {
	Name       string
	Super      string
	Decls      []Declaration // VarDef and FuncDef only
	Loc        Location
	NameLoc    Location
	SuperLoc   Location
}

func (n *ClassDef) Location() Location     { return n.Loc }
func (n *ClassDef) Accept(v Visitor) error { return v.VisitClassDef(n) }
func (*ClassDef) declaration()             {}

type Param struct {
	Name string
	Type TypeAnnotation
	Loc  Location
}

type FuncDef struct {
	Name       string
	Params     []Param
	Return     TypeAnnotation // nil means <None>
	Decls      []Declaration  // nested VarDef/FuncDef/GlobalDecl/NonLocalDecl
	Statements []Stmt
	Loc        Location
	NameLoc    Location

	// filled by check.Analyze: the lexical nesting level, used by
	// codegen for static-link threading. A function or method declared
	// at module level gets level 1 and each enclosing function adds one;
	// level 0 is the global frame and is never assigned to a FuncDef.
	Level int
}

func (n *FuncDef) Location() Location     { return n.Loc }
func (n *FuncDef) Accept(v Visitor) error { return v.VisitFuncDef(n) }
func (*FuncDef) declaration()             {}

type Literal interface {
	Expr
	literal()
}

type VarDef struct {
	Name    string
	Type    TypeAnnotation
	Value   Literal
	Loc     Location
	NameLoc Location
}

func (n *VarDef) Location() Location     { return n.Loc }
func (n *VarDef) Accept(v Visitor) error { return v.VisitVarDef(n) }
func (*VarDef) declaration()             {}

type GlobalDecl struct {
	Name string
	Loc  Location
}

func (n *GlobalDecl) Location() Location     { return n.Loc }
func (n *GlobalDecl) Accept(v Visitor) error { return v.VisitGlobalDecl(n) }
func (*GlobalDecl) declaration()             {}

type NonLocalDecl struct {
	Name string
	Loc  Location
}

func (n *NonLocalDecl) Location() Location     { return n.Loc }
func (n *NonLocalDecl) Accept(v Visitor) error { return v.VisitNonLocalDecl(n) }
func (*NonLocalDecl) declaration()             {}

// ---- Statements ----

type Stmt interface {
	Node
	stmt()
}

type ExprStmt struct {
	Expr Expr
	Loc  Location
}

func (n *ExprStmt) Location() Location     { return n.Loc }
func (n *ExprStmt) Accept(v Visitor) error { return v.VisitExprStmt(n) }
func (*ExprStmt) stmt()                    {}

type AssignStmt struct {
	Targets []Expr // Identifier, IndexExpr, or MemberExpr
	Value   Expr
	Loc     Location
}

func (n *AssignStmt) Location() Location     { return n.Loc }
func (n *AssignStmt) Accept(v Visitor) error { return v.VisitAssignStmt(n) }
func (*AssignStmt) stmt()                    {}

type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // may itself be a single IfStmt wrapped for elif chains
	Loc  Location
}

func (n *IfStmt) Location() Location     { return n.Loc }
func (n *IfStmt) Accept(v Visitor) error { return v.VisitIfStmt(n) }
func (*IfStmt) stmt()                    {}

type WhileStmt struct {
	Cond Expr
	Body []Stmt
	Loc  Location
}

func (n *WhileStmt) Location() Location     { return n.Loc }
func (n *WhileStmt) Accept(v Visitor) error { return v.VisitWhileStmt(n) }
func (*WhileStmt) stmt()                    {}

type ForStmt struct {
	Var      string
	VarLoc   Location
	Iterable Expr
	Body     []Stmt
	Loc      Location

	// filled by check.Analyze: the element ValueType of Iterable (str
	// for a string, the element type for a list).
	ElemType ValueType
}

func (n *ForStmt) Location() Location     { return n.Loc }
func (n *ForStmt) Accept(v Visitor) error { return v.VisitForStmt(n) }
func (*ForStmt) stmt()                    {}

type ReturnStmt struct {
	Value Expr // nil for a bare `return`
	Loc   Location
}

func (n *ReturnStmt) Location() Location     { return n.Loc }
func (n *ReturnStmt) Accept(v Visitor) error { return v.VisitReturnStmt(n) }
func (*ReturnStmt) stmt()                    {}

// ---- Expressions ----

type Expr interface {
	Node
	expr()
	// InferredType returns the type check.Analyze assigned, or nil
	// before analysis has run.
	InferredType() *ValueType
	SetInferredType(ValueType)
}

type exprBase struct {
	inferred *ValueType
}

func (e *exprBase) InferredType() *ValueType     { return e.inferred }
func (e *exprBase) SetInferredType(t ValueType)  { e.inferred = &t }
func (*exprBase) expr()                          {}

type NoneLiteral struct {
	exprBase
	Loc Location
}

func (n *NoneLiteral) Location() Location     { return n.Loc }
func (n *NoneLiteral) Accept(v Visitor) error { return v.VisitNoneLiteral(n) }
func (*NoneLiteral) literal()                 {}

type BoolLiteral struct {
	exprBase
	Value bool
	Loc   Location
}

func (n *BoolLiteral) Location() Location     { return n.Loc }
func (n *BoolLiteral) Accept(v Visitor) error { return v.VisitBoolLiteral(n) }
func (*BoolLiteral) literal()                 {}

type IntLiteral struct {
	exprBase
	Value int32
	Loc   Location
}

func (n *IntLiteral) Location() Location     { return n.Loc }
func (n *IntLiteral) Accept(v Visitor) error { return v.VisitIntLiteral(n) }
func (*IntLiteral) literal()                 {}

type StringLiteral struct {
	exprBase
	Value string
	Loc   Location
}

func (n *StringLiteral) Location() Location     { return n.Loc }
func (n *StringLiteral) Accept(v Visitor) error { return v.VisitStringLiteral(n) }
func (*StringLiteral) literal()                 {}

type Identifier struct {
	exprBase
	Name string
	Loc  Location
}

func (n *Identifier) Location() Location     { return n.Loc }
func (n *Identifier) Accept(v Visitor) error { return v.VisitIdentifier(n) }

type ListExpr struct {
	exprBase
	Elements []Expr
	Loc      Location
}

func (n *ListExpr) Location() Location     { return n.Loc }
func (n *ListExpr) Accept(v Visitor) error { return v.VisitListExpr(n) }

type IndexExpr struct {
	exprBase
	Target Expr
	Index  Expr
	Loc    Location
}

func (n *IndexExpr) Location() Location     { return n.Loc }
func (n *IndexExpr) Accept(v Visitor) error { return v.VisitIndexExpr(n) }

type MemberExpr struct {
	exprBase
	Object Expr
	Member string
	Loc    Location
}

func (n *MemberExpr) Location() Location     { return n.Loc }
func (n *MemberExpr) Accept(v Visitor) error { return v.VisitMemberExpr(n) }

type CallExpr struct {
	exprBase
	Callee string
	Args   []Expr
	Loc    Location
}

func (n *CallExpr) Location() Location     { return n.Loc }
func (n *CallExpr) Accept(v Visitor) error { return v.VisitCallExpr(n) }

type MethodCallExpr struct {
	exprBase
	Receiver Expr
	Method   string
	Args     []Expr
	Loc      Location
}

func (n *MethodCallExpr) Location() Location     { return n.Loc }
func (n *MethodCallExpr) Accept(v Visitor) error { return v.VisitMethodCallExpr(n) }

type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

type UnaryExpr struct {
	exprBase
	Op      UnaryOp
	Operand Expr
	Loc     Location
}

func (n *UnaryExpr) Location() Location     { return n.Loc }
func (n *UnaryExpr) Accept(v Visitor) error { return v.VisitUnaryExpr(n) }

type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinFloorDiv
	BinMod
	BinLt
	BinLe
	BinGt
	BinGe
	BinEq
	BinNe
	BinIs
	BinAnd
	BinOr
)

type BinaryExpr struct {
	exprBase
	Op          BinaryOp
	Left, Right Expr
	Loc         Location
}

func (n *BinaryExpr) Location() Location     { return n.Loc }
func (n *BinaryExpr) Accept(v Visitor) error { return v.VisitBinaryExpr(n) }

type IfExpr struct {
	exprBase
	Cond, Then, Else Expr
	Loc              Location
}

func (n *IfExpr) Location() Location     { return n.Loc }
func (n *IfExpr) Accept(v Visitor) error { return v.VisitIfExpr(n) }
