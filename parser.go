package chocopy

import "fmt"

// Parser is a hand-written recursive-descent parser with one token of
// push-back on top of the Lexer's own one-token peek, matching
// spec.md §4.2's contract. It never returns a Go error: syntax
// problems are recorded as CompilerErrors and recovered from so the
// whole file is always walked to EOF.
type Parser struct {
	lex        *Lexer
	pushedBack *Token
	errors     []CompilerError
	prevEnd    Position
}

func NewParser(src string) *Parser {
	return &Parser{lex: NewLexer(src)}
}

// Parse consumes the whole token stream and returns a best-effort
// Program with every recoverable error attached, in source order.
func (p *Parser) Parse() *Program {
	start := p.peek().Loc.Start
	decls, stmts := p.parseTopLevel()
	end := p.prevEnd
	return &Program{
		Declarations: decls,
		Statements:   stmts,
		Errors:       p.errors,
		Loc:          Location{Start: start, End: end},
	}
}

// ---- token plumbing ----

func (p *Parser) next() Token {
	var t Token
	if p.pushedBack != nil {
		t = *p.pushedBack
		p.pushedBack = nil
	} else {
		t = p.lex.Next()
	}
	p.prevEnd = t.Loc.End
	return t
}

func (p *Parser) peek() Token {
	if p.pushedBack != nil {
		return *p.pushedBack
	}
	return p.lex.Peek()
}

func (p *Parser) pushBack(t Token) {
	cp := t
	p.pushedBack = &cp
}

func (p *Parser) at(kind TokenKind) bool { return p.peek().Kind == kind }

// expect consumes the next token if it matches kind, else records a
// syntax error at its location and returns the zero Token with ok=false.
func (p *Parser) expect(kind TokenKind) (Token, bool) {
	t := p.peek()
	if t.Kind != kind {
		p.syntaxErrorf(t.Loc, "expected %s, got %s", tokenKindNames[kind], t.String())
		return Token{}, false
	}
	return p.next(), true
}

func (p *Parser) syntaxErrorf(loc Location, format string, args ...any) {
	p.errors = append(p.errors, CompilerError{Loc: loc, Message: fmt.Sprintf(format, args...), Syntax: true})
}

func (p *Parser) semanticErrorf(loc Location, format string, args ...any) {
	p.errors = append(p.errors, CompilerError{Loc: loc, Message: fmt.Sprintf(format, args...), Syntax: false})
}

// recover skips to the next NEWLINE (consuming balanced INDENT/DEDENT
// blocks along the way), per spec.md §4.2's error-recovery contract.
func (p *Parser) recover() {
	depth := 0
	for {
		t := p.next()
		switch t.Kind {
		case INDENT:
			depth++
		case DEDENT:
			if depth > 0 {
				depth--
			}
		case NEWLINE:
			if depth == 0 {
				return
			}
		case EOF:
			p.pushBack(t)
			return
		}
	}
}

// ---- top level ----

func (p *Parser) parseTopLevel() ([]Declaration, []Stmt) {
	var decls []Declaration
	for p.atDeclStart() {
		if d := p.parseDeclaration(); d != nil {
			decls = append(decls, d)
		}
	}
	var stmts []Stmt
	for !p.at(EOF) {
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return decls, stmts
}

// atDeclStart reports whether the parser is positioned at a
// class_def, func_def, or var_def (distinguished from a plain
// assignment/expr statement by one token of lookahead past the
// identifier).
func (p *Parser) atDeclStart() bool {
	switch p.peek().Kind {
	case KwClass, KwDef:
		return true
	case IDENTIFIER:
		id := p.next()
		isVarDef := p.at(OpColon)
		p.pushBack(id)
		return isVarDef
	}
	return false
}

func (p *Parser) parseDeclaration() Declaration {
	switch p.peek().Kind {
	case KwClass:
		return p.parseClassDef()
	case KwDef:
		return p.parseFuncDef()
	case IDENTIFIER:
		name := p.next()
		return p.parseVarDef(name)
	}
	return nil
}

func (p *Parser) parseClassDef() *ClassDef {
	start, _ := p.expect(KwClass)
	nameTok, ok := p.expect(IDENTIFIER)
	if !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(OpLParen); !ok {
		p.recover()
		return nil
	}
	superTok, ok := p.expect(IDENTIFIER)
	if !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(OpRParen); !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(OpColon); !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(NEWLINE); !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(INDENT); !ok {
		p.recover()
		return nil
	}
	var decls []Declaration
	for !p.at(DEDENT) && !p.at(EOF) {
		switch p.peek().Kind {
		case KwDef:
			if d := p.parseFuncDef(); d != nil {
				decls = append(decls, d)
			}
		case IDENTIFIER:
			name := p.next()
			if d := p.parseVarDef(name); d != nil {
				decls = append(decls, d)
			}
		case KwPass:
			p.next()
			p.expect(NEWLINE)
		default:
			p.syntaxErrorf(p.peek().Loc, "unexpected token in class body: %s", p.peek().String())
			p.recover()
		}
	}
	end := p.peek().Loc.End
	p.expect(DEDENT)
	return &ClassDef{
		Name:     nameTok.StrValue,
		Super:    superTok.StrValue,
		Decls:    decls,
		Loc:      Location{Start: start.Loc.Start, End: end},
		NameLoc:  nameTok.Loc,
		SuperLoc: superTok.Loc,
	}
}

func (p *Parser) parseFuncDef() *FuncDef {
	start, _ := p.expect(KwDef)
	nameTok, ok := p.expect(IDENTIFIER)
	if !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(OpLParen); !ok {
		p.recover()
		return nil
	}
	var params []Param
	if !p.at(OpRParen) {
		for {
			pname, ok := p.expect(IDENTIFIER)
			if !ok {
				break
			}
			if _, ok := p.expect(OpColon); !ok {
				break
			}
			ptype := p.parseTypeAnnotation()
			params = append(params, Param{Name: pname.StrValue, Type: ptype, Loc: pname.Loc.merge(typeLoc(ptype))})
			if !p.at(OpComma) {
				break
			}
			p.next()
		}
	}
	if _, ok := p.expect(OpRParen); !ok {
		p.recover()
		return nil
	}
	var ret TypeAnnotation
	if p.at(OpArrow) {
		p.next()
		ret = p.parseTypeAnnotation()
	}
	if _, ok := p.expect(OpColon); !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(NEWLINE); !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(INDENT); !ok {
		p.recover()
		return nil
	}
	var decls []Declaration
	for p.atDeclStart() || p.at(KwGlobal) || p.at(KwNonlocal) {
		switch p.peek().Kind {
		case KwGlobal:
			decls = append(decls, p.parseGlobalDecl())
		case KwNonlocal:
			decls = append(decls, p.parseNonLocalDecl())
		default:
			if d := p.parseDeclaration(); d != nil {
				decls = append(decls, d)
			}
		}
	}
	var stmts []Stmt
	for !p.at(DEDENT) && !p.at(EOF) {
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		}
	}
	end := p.peek().Loc.End
	p.expect(DEDENT)
	return &FuncDef{
		Name:       nameTok.StrValue,
		Params:     params,
		Return:     ret,
		Decls:      decls,
		Statements: stmts,
		Loc:        Location{Start: start.Loc.Start, End: end},
		NameLoc:    nameTok.Loc,
	}
}

func (p *Parser) parseGlobalDecl() *GlobalDecl {
	start, _ := p.expect(KwGlobal)
	name, ok := p.expect(IDENTIFIER)
	end := name.Loc.End
	p.expect(NEWLINE)
	if !ok {
		return nil
	}
	return &GlobalDecl{Name: name.StrValue, Loc: Location{Start: start.Loc.Start, End: end}}
}

func (p *Parser) parseNonLocalDecl() *NonLocalDecl {
	start, _ := p.expect(KwNonlocal)
	name, ok := p.expect(IDENTIFIER)
	end := name.Loc.End
	p.expect(NEWLINE)
	if !ok {
		return nil
	}
	return &NonLocalDecl{Name: name.StrValue, Loc: Location{Start: start.Loc.Start, End: end}}
}

func (p *Parser) parseVarDef(name Token) *VarDef {
	if _, ok := p.expect(OpColon); !ok {
		p.recover()
		return nil
	}
	typ := p.parseTypeAnnotation()
	if _, ok := p.expect(OpAssign); !ok {
		p.recover()
		return nil
	}
	lit := p.parseLiteral()
	end := p.peek().Loc.End
	p.expect(NEWLINE)
	if lit == nil {
		p.recover()
		return nil
	}
	return &VarDef{
		Name:    name.StrValue,
		Type:    typ,
		Value:   lit,
		Loc:     Location{Start: name.Loc.Start, End: end},
		NameLoc: name.Loc,
	}
}

func (p *Parser) parseTypeAnnotation() TypeAnnotation {
	t := p.peek()
	switch t.Kind {
	case IDENTIFIER:
		p.next()
		return &ClassType{Name: t.StrValue, Loc: t.Loc}
	case IDSTRING:
		p.next()
		return &ClassType{Name: t.StrValue, Loc: t.Loc}
	case OpLBracket:
		p.next()
		elem := p.parseTypeAnnotation()
		end, _ := p.expect(OpRBracket)
		loc := t.Loc.merge(end.Loc)
		return &ListType{Elem: elem, Loc: loc}
	default:
		p.syntaxErrorf(t.Loc, "expected a type, got %s", t.String())
		return &ClassType{Name: ClassObject, Loc: t.Loc}
	}
}

func typeLoc(t TypeAnnotation) Location {
	if t == nil {
		return Location{}
	}
	return t.Location()
}

// parseLiteral parses the restricted literal grammar allowed as a
// VarDef's initializer: None, True, False, an integer, or a string.
func (p *Parser) parseLiteral() Literal {
	t := p.next()
	switch t.Kind {
	case KwNone:
		return &NoneLiteral{Loc: t.Loc}
	case KwTrue:
		return &BoolLiteral{Value: true, Loc: t.Loc}
	case KwFalse:
		return &BoolLiteral{Value: false, Loc: t.Loc}
	case NUMBER:
		return &IntLiteral{Value: t.IntValue, Loc: t.Loc}
	case BADNUMBER:
		p.syntaxErrorf(t.Loc, "integer literal out of range")
		return &IntLiteral{Value: 0, Loc: t.Loc}
	case STRING, IDSTRING:
		return &StringLiteral{Value: t.StrValue, Loc: t.Loc}
	default:
		p.syntaxErrorf(t.Loc, "expected a literal, got %s", t.String())
		return nil
	}
}

// ---- statements ----

func (p *Parser) parseStmt() Stmt {
	switch p.peek().Kind {
	case KwIf:
		return p.parseIfStmt()
	case KwWhile:
		return p.parseWhileStmt()
	case KwFor:
		return p.parseForStmt()
	case KwPass:
		p.next()
		p.expect(NEWLINE)
		return nil
	case KwReturn:
		return p.parseReturnStmt()
	case EOF:
		return nil
	default:
		return p.parseSimpleStmt()
	}
}

func (p *Parser) parseBlock() []Stmt {
	if _, ok := p.expect(NEWLINE); !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(INDENT); !ok {
		p.recover()
		return nil
	}
	var stmts []Stmt
	for !p.at(DEDENT) && !p.at(EOF) {
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.expect(DEDENT)
	return stmts
}

func (p *Parser) parseIfStmt() Stmt {
	start, _ := p.expect(KwIf)
	cond := p.parseExpr()
	if _, ok := p.expect(OpColon); !ok {
		p.recover()
		return nil
	}
	then := p.parseBlock()
	var elseBody []Stmt
	switch p.peek().Kind {
	case KwElif:
		elseBody = []Stmt{p.parseElif()}
	case KwElse:
		p.next()
		if _, ok := p.expect(OpColon); ok {
			elseBody = p.parseBlock()
		}
	}
	return &IfStmt{Cond: cond, Then: then, Else: elseBody, Loc: start.Loc.merge(p.lastLoc(then, elseBody))}
}

// parseElif parses `elif cond: block (elif|else)?` by recursively
// desugaring it into a nested IfStmt, matching the teacher's grammar
// style of folding repetition into recursive single productions.
func (p *Parser) parseElif() Stmt {
	start, _ := p.expect(KwElif)
	cond := p.parseExpr()
	if _, ok := p.expect(OpColon); !ok {
		p.recover()
		return nil
	}
	then := p.parseBlock()
	var elseBody []Stmt
	switch p.peek().Kind {
	case KwElif:
		elseBody = []Stmt{p.parseElif()}
	case KwElse:
		p.next()
		if _, ok := p.expect(OpColon); ok {
			elseBody = p.parseBlock()
		}
	}
	return &IfStmt{Cond: cond, Then: then, Else: elseBody, Loc: start.Loc.merge(p.lastLoc(then, elseBody))}
}

func (p *Parser) lastLoc(a, b []Stmt) Location {
	if len(b) > 0 {
		return b[len(b)-1].Location()
	}
	if len(a) > 0 {
		return a[len(a)-1].Location()
	}
	return p.peek().Loc
}

func (p *Parser) parseWhileStmt() Stmt {
	start, _ := p.expect(KwWhile)
	cond := p.parseExpr()
	if _, ok := p.expect(OpColon); !ok {
		p.recover()
		return nil
	}
	body := p.parseBlock()
	return &WhileStmt{Cond: cond, Body: body, Loc: start.Loc.merge(p.lastLoc(body, nil))}
}

func (p *Parser) parseForStmt() Stmt {
	start, _ := p.expect(KwFor)
	nameTok, ok := p.expect(IDENTIFIER)
	if !ok {
		p.recover()
		return nil
	}
	if _, ok := p.expect(KwIn); !ok {
		p.recover()
		return nil
	}
	iter := p.parseExpr()
	if _, ok := p.expect(OpColon); !ok {
		p.recover()
		return nil
	}
	body := p.parseBlock()
	return &ForStmt{
		Var: nameTok.StrValue, VarLoc: nameTok.Loc, Iterable: iter, Body: body,
		Loc: start.Loc.merge(p.lastLoc(body, nil)),
	}
}

func (p *Parser) parseReturnStmt() Stmt {
	start, _ := p.expect(KwReturn)
	var value Expr
	if !p.at(NEWLINE) {
		value = p.parseExpr()
	}
	end := p.peek().Loc.End
	p.expect(NEWLINE)
	return &ReturnStmt{Value: value, Loc: Location{Start: start.Loc.Start, End: end}}
}

// parseSimpleStmt parses an ExprStmt or the comma-free assignment
// chain `e1 = e2 = ... = ev` per spec.md §4.2.
func (p *Parser) parseSimpleStmt() Stmt {
	first := p.parseExpr()
	if first == nil {
		p.recover()
		return nil
	}
	if !p.at(OpAssign) {
		end := p.peek().Loc.End
		p.expect(NEWLINE)
		return &ExprStmt{Expr: first, Loc: Location{Start: first.Location().Start, End: end}}
	}
	targets := []Expr{first}
	for p.at(OpAssign) {
		p.next()
		e := p.parseExpr()
		if e == nil {
			p.recover()
			return nil
		}
		targets = append(targets, e)
	}
	value := targets[len(targets)-1]
	targets = targets[:len(targets)-1]
	for _, t := range targets {
		if !isAssignable(t) {
			p.semanticErrorf(t.Location(), "assignment target is not assignable")
		}
	}
	end := p.peek().Loc.End
	p.expect(NEWLINE)
	return &AssignStmt{Targets: targets, Value: value, Loc: Location{Start: first.Location().Start, End: end}}
}

func isAssignable(e Expr) bool {
	switch e.(type) {
	case *Identifier, *IndexExpr, *MemberExpr:
		return true
	default:
		return false
	}
}

// ---- expressions: precedence ladder, lowest first ----

func (p *Parser) parseExpr() Expr { return p.parseTernary() }

func (p *Parser) parseTernary() Expr {
	then := p.parseOr()
	if then == nil || !p.at(KwIf) {
		return then
	}
	p.next()
	cond := p.parseOr()
	if _, ok := p.expect(KwElse); !ok {
		return nil
	}
	elseExpr := p.parseTernary() // right-associative
	return &IfExpr{Cond: cond, Then: then, Else: elseExpr, Loc: then.Location().merge(elseLoc(elseExpr))}
}

func elseLoc(e Expr) Location {
	if e == nil {
		return Location{}
	}
	return e.Location()
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for left != nil && p.at(KwOr) {
		p.next()
		right := p.parseAnd()
		left = &BinaryExpr{Op: BinOr, Left: left, Right: right, Loc: left.Location().merge(elseLoc(right))}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseNot()
	for left != nil && p.at(KwAnd) {
		p.next()
		right := p.parseNot()
		left = &BinaryExpr{Op: BinAnd, Left: left, Right: right, Loc: left.Location().merge(elseLoc(right))}
	}
	return left
}

func (p *Parser) parseNot() Expr {
	if p.at(KwNot) {
		t := p.next()
		operand := p.parseNot()
		return &UnaryExpr{Op: UnaryNot, Operand: operand, Loc: t.Loc.merge(elseLoc(operand))}
	}
	return p.parseCompare()
}

var compareOps = map[TokenKind]BinaryOp{
	OpEq: BinEq, OpNe: BinNe, OpLt: BinLt, OpGt: BinGt, OpLe: BinLe, OpGe: BinGe, KwIs: BinIs,
}

func (p *Parser) parseCompare() Expr {
	left := p.parseAddSub()
	if left == nil {
		return nil
	}
	if op, ok := compareOps[p.peek().Kind]; ok {
		p.next()
		right := p.parseAddSub()
		return &BinaryExpr{Op: op, Left: left, Right: right, Loc: left.Location().merge(elseLoc(right))}
	}
	return left
}

func (p *Parser) parseAddSub() Expr {
	left := p.parseMulDiv()
	for left != nil {
		var op BinaryOp
		switch p.peek().Kind {
		case OpPlus:
			op = BinAdd
		case OpMinus:
			op = BinSub
		default:
			return left
		}
		p.next()
		right := p.parseMulDiv()
		left = &BinaryExpr{Op: op, Left: left, Right: right, Loc: left.Location().merge(elseLoc(right))}
	}
	return left
}

func (p *Parser) parseMulDiv() Expr {
	left := p.parseUnary()
	for left != nil {
		var op BinaryOp
		switch p.peek().Kind {
		case OpStar:
			op = BinMul
		case OpDSlash:
			op = BinFloorDiv
		case OpPercent:
			op = BinMod
		default:
			return left
		}
		p.next()
		right := p.parseUnary()
		left = &BinaryExpr{Op: op, Left: left, Right: right, Loc: left.Location().merge(elseLoc(right))}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.at(OpMinus) {
		t := p.next()
		operand := p.parseUnary()
		return &UnaryExpr{Op: UnaryNeg, Operand: operand, Loc: t.Loc.merge(elseLoc(operand))}
	}
	return p.parsePostfix()
}

// parsePostfix handles repeated `(args)`, `[expr]`, `.id` applied
// left-to-right, rewriting a call applied to a bare identifier into a
// CallExpr and a call applied to a member into a MethodCallExpr per
// spec.md §4.2; any other callee is a syntax error at that position.
func (p *Parser) parsePostfix() Expr {
	e := p.parsePrimary()
	for e != nil {
		switch p.peek().Kind {
		case OpLParen:
			e = p.parseCallOn(e)
		case OpLBracket:
			p.next()
			idx := p.parseExpr()
			end, _ := p.expect(OpRBracket)
			e = &IndexExpr{Target: e, Index: idx, Loc: e.Location().merge(end.Loc)}
		case OpDot:
			p.next()
			m, ok := p.expect(IDENTIFIER)
			if !ok {
				return e
			}
			e = &MemberExpr{Object: e, Member: m.StrValue, Loc: e.Location().merge(m.Loc)}
		default:
			return e
		}
	}
	return e
}

func (p *Parser) parseCallOn(callee Expr) Expr {
	p.expect(OpLParen)
	var args []Expr
	if !p.at(OpRParen) {
		for {
			a := p.parseExpr()
			if a != nil {
				args = append(args, a)
			}
			if !p.at(OpComma) {
				break
			}
			p.next()
		}
	}
	end, _ := p.expect(OpRParen)
	loc := callee.Location().merge(end.Loc)
	switch c := callee.(type) {
	case *Identifier:
		return &CallExpr{Callee: c.Name, Args: args, Loc: loc}
	case *MemberExpr:
		return &MethodCallExpr{Receiver: c.Object, Method: c.Member, Args: args, Loc: loc}
	default:
		p.syntaxErrorf(callee.Location(), "expression is not callable")
		return callee
	}
}

func (p *Parser) parsePrimary() Expr {
	t := p.peek()
	switch t.Kind {
	case KwNone:
		p.next()
		return &NoneLiteral{Loc: t.Loc}
	case KwTrue:
		p.next()
		return &BoolLiteral{Value: true, Loc: t.Loc}
	case KwFalse:
		p.next()
		return &BoolLiteral{Value: false, Loc: t.Loc}
	case NUMBER:
		p.next()
		return &IntLiteral{Value: t.IntValue, Loc: t.Loc}
	case BADNUMBER:
		p.next()
		p.syntaxErrorf(t.Loc, "integer literal out of range")
		return &IntLiteral{Value: 0, Loc: t.Loc}
	case STRING, IDSTRING:
		p.next()
		return &StringLiteral{Value: t.StrValue, Loc: t.Loc}
	case IDENTIFIER:
		p.next()
		return &Identifier{Name: t.StrValue, Loc: t.Loc}
	case OpLParen:
		p.next()
		inner := p.parseExpr()
		p.expect(OpRParen)
		return inner
	case OpLBracket:
		p.next()
		var elems []Expr
		if !p.at(OpRBracket) {
			for {
				e := p.parseExpr()
				if e != nil {
					elems = append(elems, e)
				}
				if !p.at(OpComma) {
					break
				}
				p.next()
			}
		}
		end, _ := p.expect(OpRBracket)
		return &ListExpr{Elements: elems, Loc: t.Loc.merge(end.Loc)}
	default:
		p.syntaxErrorf(t.Loc, "unexpected token %s", t.String())
		return nil
	}
}
