package chocopy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVarDefAndExprStmt(t *testing.T) {
	prog := NewParser("x : int = 1\nprint(x)\n").Parse()
	require.Empty(t, prog.Errors)
	require.Len(t, prog.Declarations, 1)

	vd, ok := prog.Declarations[0].(*VarDef)
	require.True(t, ok)
	assert.Equal(t, "x", vd.Name)
	assert.Equal(t, int32(1), vd.Value.(*IntLiteral).Value)

	require.Len(t, prog.Statements, 1)
	es, ok := prog.Statements[0].(*ExprStmt)
	require.True(t, ok)
	call, ok := es.Expr.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "print", call.Callee)
}

func TestParseClassWithInheritanceAndMethod(t *testing.T) {
	src := "class Animal(object):\n" +
		"    name : str = \"\"\n" +
		"    def speak(self: \"Animal\") -> str:\n" +
		"        return self.name\n"
	prog := NewParser(src).Parse()
	require.Empty(t, prog.Errors)
	require.Len(t, prog.Declarations, 1)

	cd, ok := prog.Declarations[0].(*ClassDef)
	require.True(t, ok)
	assert.Equal(t, "Animal", cd.Name)
	assert.Equal(t, "object", cd.Super)
	require.Len(t, cd.Decls, 2)

	fd, ok := cd.Decls[1].(*FuncDef)
	require.True(t, ok)
	assert.Equal(t, "speak", fd.Name)
	assert.Len(t, fd.Params, 1)
}

func TestParseIfElifElseChain(t *testing.T) {
	src := "if x == 1:\n    y = 1\nelif x == 2:\n    y = 2\nelse:\n    y = 3\n"
	prog := NewParser(src).Parse()
	require.Empty(t, prog.Errors)
	require.Len(t, prog.Statements, 1)

	top, ok := prog.Statements[0].(*IfStmt)
	require.True(t, ok)
	require.Len(t, top.Else, 1)
	elif, ok := top.Else[0].(*IfStmt)
	require.True(t, ok)
	require.Len(t, elif.Else, 1)
}

func TestParseOperatorPrecedence(t *testing.T) {
	prog := NewParser("x = 1 + 2 * 3\n").Parse()
	require.Empty(t, prog.Errors)
	assign := prog.Statements[0].(*AssignStmt)
	add, ok := assign.Value.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, BinAdd, add.Op)
	mul, ok := add.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, BinMul, mul.Op)
}

func TestParseForAndWhileLoops(t *testing.T) {
	src := "for i in [1, 2, 3]:\n    print(i)\nwhile True:\n    pass\n"
	prog := NewParser(src).Parse()
	require.Empty(t, prog.Errors)
	require.Len(t, prog.Statements, 2)
	_, ok := prog.Statements[0].(*ForStmt)
	assert.True(t, ok)
	_, ok = prog.Statements[1].(*WhileStmt)
	assert.True(t, ok)
}

func TestParseSyntaxErrorIsRecoverable(t *testing.T) {
	prog := NewParser("x = \ny = 2\n").Parse()
	assert.NotEmpty(t, prog.Errors)
}

func TestProgramMarshalJSONRoundTripsNodeKinds(t *testing.T) {
	prog := NewParser("x : int = 1\nif x == 1:\n    print(x)\n").Parse()
	require.Empty(t, prog.Errors)

	data, err := prog.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"Program"`)
	assert.Contains(t, string(data), `"kind":"VarDef"`)
	assert.Contains(t, string(data), `"kind":"IfStmt"`)
}
