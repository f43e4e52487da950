package chocopy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func kinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	l := NewLexer(src)
	var ks []TokenKind
	for {
		tok := l.Next()
		ks = append(ks, tok.Kind)
		if tok.Kind == EOF {
			return ks
		}
	}
}

func TestLexerIndentDedentBalance(t *testing.T) {
	src := "if True:\n    x = 1\n    if False:\n        y = 2\nz = 3\n"
	ks := kinds(t, src)

	depth := 0
	for _, k := range ks {
		switch k {
		case INDENT:
			depth++
		case DEDENT:
			depth--
		}
	}
	assert.Equal(t, 0, depth, "every INDENT must be matched by a DEDENT by EOF")
	assert.Equal(t, EOF, ks[len(ks)-1])
}

func TestLexerBadentOnMismatchedDedent(t *testing.T) {
	src := "if True:\n   x = 1\n  y = 2\n"
	ks := kinds(t, src)
	assert.Contains(t, ks, BADENT)
}

func TestLexerOperators(t *testing.T) {
	src := "a <= b != c -> d\n"
	l := NewLexer(src)
	var got []TokenKind
	for {
		tok := l.Next()
		if tok.Kind == NEWLINE {
			break
		}
		got = append(got, tok.Kind)
	}
	assert.Equal(t, []TokenKind{IDENTIFIER, OpLe, IDENTIFIER, OpNe, IDENTIFIER, OpArrow, IDENTIFIER}, got)
}

func TestLexerStringEscapesAndIdStringClassification(t *testing.T) {
	l := NewLexer(`"hello\nworld"` + "\n" + `"plainident"` + "\n")
	tok := l.Next()
	assert.Equal(t, STRING, tok.Kind)
	assert.Equal(t, "hello\nworld", tok.StrValue)

	tok = l.Next()
	assert.Equal(t, NEWLINE, tok.Kind)

	tok = l.Next()
	assert.Equal(t, IDSTRING, tok.Kind)
	assert.Equal(t, "plainident", tok.StrValue)
}

func TestLexerUnrecognizedEscape(t *testing.T) {
	l := NewLexer(`"bad\qescape"` + "\n")
	tok := l.Next()
	assert.Equal(t, UNRECOGNIZED, tok.Kind)
}

func TestLexerNumberOverflow(t *testing.T) {
	l := NewLexer("99999999999\n")
	tok := l.Next()
	assert.Equal(t, BADNUMBER, tok.Kind)
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	l := NewLexer("x = 1\n")
	first := l.Peek()
	second := l.Peek()
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, IDENTIFIER, l.Next().Kind)
}

func TestLexerNormalizesLineEndings(t *testing.T) {
	crlf := kinds(t, "x = 1\r\ny = 2\r\n")
	lf := kinds(t, "x = 1\ny = 2\n")
	assert.Equal(t, lf, crlf)
}

func TestLexerMissingTrailingNewlineIsSynthesized(t *testing.T) {
	withNewline := kinds(t, "x = 1\n")
	without := kinds(t, "x = 1")
	assert.Equal(t, withNewline, without)
}
