// Package check implements the semantic analyzer: name resolution,
// scope checking, and the ChocoPy type lattice. It runs in three
// passes over a parsed chocopy.Program and annotates every typed
// expression node in place, the same contract codegen relies on.
package check

import (
	"fmt"

	"github.com/ckitagawa/chocopyc"
)

func errorDup(name string) string {
	return fmt.Sprintf("Duplicate declaration of identifier in same scope: %s", name)
}

func errorSuperUndef(name string) string {
	return fmt.Sprintf("Super-class not defined: %s", name)
}

func errorSuperNotClass(name string) string {
	return fmt.Sprintf("Super-class must be a class: %s", name)
}

func errorSuperSpecial(name string) string {
	return fmt.Sprintf("Cannot extend special class: %s", name)
}

func errorMethodSelf(name string) string {
	return fmt.Sprintf("First parameter of the following method must be of the enclosing class: %s", name)
}

func errorMethodOverride(name string) string {
	return fmt.Sprintf("Method overridden with different type signature: %s", name)
}

func errorAttributeRedefine(name string) string {
	return fmt.Sprintf("Cannot re-define attribute: %s", name)
}

func errorInvalidType(name string) string {
	return fmt.Sprintf("Invalid type annotation; there is no class named: %s", name)
}

func errorShadow(name string) string {
	return fmt.Sprintf("Cannot shadow class name: %s", name)
}

func errorNonLocal(name string) string {
	return fmt.Sprintf("Not a nonlocal variable: %s", name)
}

func errorGlobal(name string) string {
	return fmt.Sprintf("Not a global variable: %s", name)
}

func errorReturn(name string) string {
	return fmt.Sprintf("All paths in this function/method must have a return statement: %s", name)
}

func errorVariable(name string) string {
	return fmt.Sprintf("Not a variable: %s", name)
}

func errorAssign(left, right chocopy.ValueType) string {
	return fmt.Sprintf("Expected type `%s`; got type `%s`", left.String(), right.String())
}

func errorNonLocalAssign(name string) string {
	return fmt.Sprintf("Cannot assign to variable that is not explicitly declared in this scope: %s", name)
}

func errorUnary(operator string, operand chocopy.ValueType) string {
	return fmt.Sprintf("Cannot apply operator `%s` on type `%s`", operator, operand.String())
}

func errorBinary(operator string, left, right chocopy.ValueType) string {
	return fmt.Sprintf("Cannot apply operator `%s` on types `%s` and `%s`", operator, left.String(), right.String())
}

func errorCondition(condition chocopy.ValueType) string {
	return fmt.Sprintf("Condition expression cannot be of type `%s`", condition.String())
}

func errorMember(t chocopy.ValueType) string {
	return fmt.Sprintf("Cannot access member of non-class type `%s`", t.String())
}

func errorCallCount(expected, got int) string {
	return fmt.Sprintf("Expected %d arguments; got %d", expected, got)
}

func errorCallType(position int, expected, got chocopy.ValueType) string {
	return fmt.Sprintf("Expected type `%s`; got type `%s` in parameter %d", expected.String(), got.String(), position)
}

func errorIndexLeft(left chocopy.ValueType) string {
	return fmt.Sprintf("Cannot index into type `%s`", left.String())
}

func errorIndexRight(index chocopy.ValueType) string {
	return fmt.Sprintf("Index is of non-integer type `%s`", index.String())
}

func errorAttribute(name, className string) string {
	return fmt.Sprintf("There is no attribute named `%s` in class `%s`", name, className)
}

func errorFunction(name string) string {
	return fmt.Sprintf("Not a function or class: %s", name)
}

func errorMethod(methodName, className string) string {
	return fmt.Sprintf("There is no method named `%s` in class `%s`", methodName, className)
}

func errorNoneReturn(expected chocopy.ValueType) string {
	return fmt.Sprintf("Expected type `%s`; got `None`", expected.String())
}

func errorIterable(iterable chocopy.ValueType) string {
	return fmt.Sprintf("Cannot iterate over value of type `%s`", iterable.String())
}

func errorMultiAssign() string {
	return "Right-hand side of multiple assignment may not be [<None>]"
}

func errorTopReturn() string {
	return "Return statement cannot appear at the top level"
}

func errorStrIndexAssign() string {
	return "`str` is not a list type"
}
