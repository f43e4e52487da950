package check_test

import (
	"testing"

	chocopy "github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/check"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, src string) *chocopy.Program {
	t.Helper()
	prog := chocopy.NewParser(src).Parse()
	require.Empty(t, prog.Errors, "source must parse cleanly before analysis")
	errs := check.Analyze(prog)
	prog.Errors = append(prog.Errors, errs...)
	return prog
}

func TestAnalyzeAcceptsWellTypedProgram(t *testing.T) {
	src := "x : int = 1\ny : int = 0\ny = x + 2\nprint(y)\n"
	prog := analyze(t, src)
	assert.Empty(t, prog.Errors)
}

func TestAnalyzeRejectsTypeMismatchOnAssignment(t *testing.T) {
	src := "x : int = \"nope\"\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "Expected type")
}

func TestAnalyzeRejectsDuplicateGlobal(t *testing.T) {
	src := "x : int = 1\nx : int = 2\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "Duplicate declaration")
}

func TestAnalyzeInheritanceAllowsSubtypeAssignment(t *testing.T) {
	src := "class Animal(object):\n" +
		"    pass\n" +
		"class Dog(Animal):\n" +
		"    pass\n" +
		"a : Animal = None\n" +
		"a = Dog()\n"
	prog := analyze(t, src)
	assert.Empty(t, prog.Errors)
}

func TestAnalyzeRejectsSuperNotDefined(t *testing.T) {
	src := "class Dog(Ghost):\n    pass\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "Super-class not defined")
}

func TestAnalyzeRejectsExtendingSpecialClass(t *testing.T) {
	src := "class MyInt(int):\n    pass\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "Cannot extend special class")
}

func TestAnalyzeRejectsMethodOverrideTypeMismatch(t *testing.T) {
	src := "class Animal(object):\n" +
		"    def speak(self: \"Animal\") -> int:\n" +
		"        return 1\n" +
		"class Dog(Animal):\n" +
		"    def speak(self: \"Dog\") -> str:\n" +
		"        return \"woof\"\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "overridden with different type signature")
}

func TestAnalyzeRejectsAttributeRedefinitionAcrossInheritance(t *testing.T) {
	src := "class Animal(object):\n" +
		"    name : str = \"\"\n" +
		"class Dog(Animal):\n" +
		"    name : int = 0\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "Cannot re-define attribute")
}

func TestAnalyzeRejectsBadFirstSelfParam(t *testing.T) {
	src := "class Animal(object):\n" +
		"    def speak(x: int) -> int:\n" +
		"        return x\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "must be of the enclosing class")
}

func TestAnalyzeAnnotatesExpressionTypes(t *testing.T) {
	src := "x : int = 0\nx = 1 + 2\n"
	prog := analyze(t, src)
	require.Empty(t, prog.Errors)
	assign := prog.Statements[0].(*chocopy.AssignStmt)
	sum := assign.Value.InferredType()
	require.NotNil(t, sum)
	assert.Equal(t, chocopy.ClassInt, sum.ClassName)
}

func TestAnalyzeNestedFunctionNonlocalAssignment(t *testing.T) {
	src := "def outer() -> int:\n" +
		"    x : int = 1\n" +
		"    def inner() -> object:\n" +
		"        nonlocal x\n" +
		"        x = 2\n" +
		"    inner()\n" +
		"    return x\n"
	prog := analyze(t, src)
	assert.Empty(t, prog.Errors)
}

func TestAnalyzeRejectsAssignToUndeclaredNonlocal(t *testing.T) {
	src := "def outer() -> int:\n" +
		"    def inner() -> object:\n" +
		"        nonlocal x\n" +
		"        x = 2\n" +
		"    return 1\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "Not a nonlocal variable")
}

func TestAnalyzeRejectsMissingReturnOnSomePath(t *testing.T) {
	src := "def f(x: int) -> int:\n" +
		"    if x > 0:\n" +
		"        return 1\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "must have a return statement")
}

func TestAnalyzeForLoopOverStringElementType(t *testing.T) {
	src := "s : str = \"abc\"\n" +
		"c : str = \"\"\n" +
		"for c in s:\n" +
		"    print(c)\n"
	prog := analyze(t, src)
	require.Empty(t, prog.Errors)
	forStmt := prog.Statements[0].(*chocopy.ForStmt)
	assert.Equal(t, chocopy.ClassStr, forStmt.ElemType.ClassName)
}

func TestAnalyzeRejectsIterationOverNonIterable(t *testing.T) {
	src := "for c in 1:\n    pass\n"
	prog := analyze(t, src)
	require.NotEmpty(t, prog.Errors)
	assert.Contains(t, prog.Errors[0].Message, "Cannot iterate over")
}
