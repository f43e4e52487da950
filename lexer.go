package chocopy

import "strings"

// Lexer is a pull-based tokenizer: the parser calls Next/Peek and
// never sees the underlying character stream. This achieves the
// "peek-one-token" contract spec.md asks for without the
// generator/channel plumbing the reference implementation used
// internally; a plain struct field holds the lookahead token.
type Lexer struct {
	src []rune
	pos int // index into src of the next unread rune

	row, col int // position of src[pos]

	indents    []int
	pendingDed int // extra DEDENTs still owed from the last indentation change

	lookahead    *Token
	atEOF        bool
	emittedFinal bool
}

// NewLexer normalizes line endings and appends a synthetic trailing
// newline if the source doesn't already end with one, per spec.md
// §4.1's character preprocessor.
func NewLexer(src string) *Lexer {
	norm := normalizeNewlines(src)
	if len(norm) == 0 || norm[len(norm)-1] != '\n' {
		norm += "\n"
	}
	return &Lexer{
		src:     []rune(norm),
		row:     1,
		col:     1,
		indents: []int{0},
	}
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	if l.lookahead == nil {
		t := l.scan()
		l.lookahead = &t
	}
	return *l.lookahead
}

// Next consumes and returns the next token.
func (l *Lexer) Next() Token {
	if l.lookahead != nil {
		t := *l.lookahead
		l.lookahead = nil
		return t
	}
	return l.scan()
}

func (l *Lexer) here() Position { return Position{Row: l.row, Col: l.col} }

func (l *Lexer) peekByte() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(n int) rune {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() rune {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.row++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) tok(kind TokenKind, start Position) Token {
	return Token{Kind: kind, Loc: Location{Start: start, End: l.here()}}
}

// scan produces the next token, handling indentation at the start of
// each logical line before falling through to scanLineBody.
func (l *Lexer) scan() Token {
	if l.atEOF {
		return l.scanEOFTail()
	}
	if l.pendingDed > 0 {
		l.pendingDed--
		start := l.here()
		return l.tok(DEDENT, start)
	}
	if l.col == 1 {
		if t, ok := l.scanIndentation(); ok {
			return t
		}
	}
	return l.scanLineBody()
}

// scanIndentation measures leading whitespace at the start of a
// logical line, skipping comment-only/blank lines (indentation is not
// compared for those), and returns an INDENT/DEDENT/BADENT token if
// one is due. ok is false when the line has real content at the
// current indentation level and scanning should fall through to
// scanLineBody.
func (l *Lexer) scanIndentation() (Token, bool) {
	for {
		start := l.here()
		indent := 0
		for {
			switch l.peekByte() {
			case ' ':
				l.advance()
				indent++
			case '\t':
				l.advance()
				indent += 8 - indent%8
			default:
				goto measured
			}
		}
	measured:
		switch l.peekByte() {
		case '\n':
			l.advance()
			continue
		case '#':
			for l.peekByte() != '\n' && l.peekByte() != 0 {
				l.advance()
			}
			continue
		case 0:
			l.atEOF = true
			l.emittedFinal = true
			return Token{}, false
		}

		top := l.indents[len(l.indents)-1]
		switch {
		case indent == top:
			return Token{}, false
		case indent > top:
			l.indents = append(l.indents, indent)
			return l.tok(INDENT, start), true
		default:
			// pop until an equal level is found, or stop at the
			// first level already below indent (overshoot, no
			// match possible since the stack is monotonic).
			n := len(l.indents)
			i := n - 1
			for i > 0 && l.indents[i] > indent {
				i--
			}
			if l.indents[i] == indent {
				pops := n - 1 - i
				l.indents = l.indents[:i+1]
				l.pendingDed = pops - 1
				return l.tok(DEDENT, start), true
			}
			// no equal level exists: emit a single BADENT and do
			// not pop further.
			return l.tok(BADENT, start), true
		}
	}
}

func (l *Lexer) scanLineBody() Token {
	for l.peekByte() == ' ' || l.peekByte() == '\t' {
		l.advance()
	}
	if l.peekByte() == '#' {
		for l.peekByte() != '\n' && l.peekByte() != 0 {
			l.advance()
		}
	}
	start := l.here()
	c := l.peekByte()
	switch {
	case c == '\n':
		l.advance()
		return l.tok(NEWLINE, start)
	case c == 0:
		l.atEOF = true
		return l.scanEOFTail()
	case c == '"':
		return l.scanString(start)
	case isDigit(c):
		return l.scanNumber(start)
	case isIdentStart(c):
		return l.scanIdentifier(start)
	default:
		if tok, ok := l.scanOperator(start); ok {
			return tok
		}
		l.advance()
		return Token{Kind: UNRECOGNIZED, StrValue: string(c), Loc: Location{Start: start, End: l.here()}}
	}
}

func (l *Lexer) scanNumber(start Position) Token {
	var digits []rune
	for isDigit(l.peekByte()) {
		digits = append(digits, l.advance())
	}
	var value int64
	overflow := false
	for _, d := range digits {
		value = value*10 + int64(d-'0')
		if value > 1<<31-1 {
			overflow = true
		}
	}
	if overflow {
		return Token{Kind: BADNUMBER, Loc: Location{Start: start, End: l.here()}}
	}
	return Token{Kind: NUMBER, IntValue: int32(value), Loc: Location{Start: start, End: l.here()}}
}

func (l *Lexer) scanIdentifier(start Position) Token {
	var b strings.Builder
	for isIdentCont(l.peekByte()) {
		b.WriteRune(l.advance())
	}
	name := b.String()
	if kind, ok := keywords[name]; ok {
		return Token{Kind: kind, Loc: Location{Start: start, End: l.here()}}
	}
	return Token{Kind: IDENTIFIER, StrValue: name, Loc: Location{Start: start, End: l.here()}}
}

// scanString implements spec.md §4.1's string-literal rules: ASCII
// printable body, escapes \n \t \\ \", any other escape terminates
// the literal as UNRECOGNIZED. IdString classification applies to a
// decoded body matching the identifier pattern and not starting with
// a digit.
func (l *Lexer) scanString(start Position) Token {
	l.advance() // opening quote
	var b strings.Builder
	for {
		c := l.peekByte()
		switch {
		case c == '"':
			l.advance()
			return l.finishString(b.String(), start)
		case c == '\\':
			l.advance()
			esc := l.peekByte()
			switch esc {
			case 'n':
				l.advance()
				b.WriteByte('\n')
			case 't':
				l.advance()
				b.WriteByte('\t')
			case '\\':
				l.advance()
				b.WriteByte('\\')
			case '"':
				l.advance()
				b.WriteByte('"')
			default:
				return Token{Kind: UNRECOGNIZED, StrValue: "\\" + string(esc), Loc: Location{Start: start, End: l.here()}}
			}
		case c >= 0x20 && c <= 0x7E:
			b.WriteRune(l.advance())
		default:
			return Token{Kind: UNRECOGNIZED, StrValue: string(c), Loc: Location{Start: start, End: l.here()}}
		}
	}
}

func (l *Lexer) finishString(value string, start Position) Token {
	loc := Location{Start: start, End: l.here()}
	if isIdentLike(value) {
		return Token{Kind: IDSTRING, StrValue: value, Loc: loc}
	}
	return Token{Kind: STRING, StrValue: value, Loc: loc}
}

func isIdentLike(s string) bool {
	if s == "" || isDigit(rune(s[0])) {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !isIdentStart(r) {
				return false
			}
			continue
		}
		if !isIdentCont(r) {
			return false
		}
	}
	return true
}

// scanOperator greedily matches the first char against operatorTable,
// then tries the second char; a zero-byte entry means "accept the
// single-char variant" per spec.md §4.1.
func (l *Lexer) scanOperator(start Position) (Token, bool) {
	first := l.peekByte()
	if first > 0x7F {
		return Token{}, false
	}
	level, ok := operatorTable[byte(first)]
	if !ok {
		return Token{}, false
	}
	second := l.peekByteAt(1)
	if second <= 0x7F {
		if kind, ok := level[byte(second)]; ok {
			l.advance()
			l.advance()
			return l.tok(kind, start), true
		}
	}
	if kind, ok := level[0]; ok {
		l.advance()
		return l.tok(kind, start), true
	}
	return Token{}, false
}

// scanEOFTail emits the final NEWLINE for the unterminated last line,
// then one DEDENT per remaining indentation level, then EOF. The
// column of each DEDENT in this tail increments by one per step,
// reproducing the reference compiler's behavior verbatim (spec.md §9
// Open Question).
func (l *Lexer) scanEOFTail() Token {
	if !l.emittedFinal {
		l.emittedFinal = true
		start := l.here()
		return l.tok(NEWLINE, start)
	}
	if len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		start := l.here()
		l.col++
		return Token{Kind: DEDENT, Loc: Location{Start: start, End: l.here()}}
	}
	return l.tok(EOF, l.here())
}

func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool { return r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') }
func isIdentCont(r rune) bool  { return isIdentStart(r) || isDigit(r) }
