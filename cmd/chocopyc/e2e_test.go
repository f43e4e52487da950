package main

import (
	"testing"

	chocopy "github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/check"
	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/ckitagawa/chocopyc/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compileOK runs the full front-to-back pipeline short of object
// emission and fails the test if the program didn't type-check clean.
func compileOK(t *testing.T, src string) *codegen.CodeSet {
	t.Helper()
	prog := chocopy.NewParser(src).Parse()
	errs := check.Analyze(prog)
	prog.Errors = append(prog.Errors, errs...)
	require.Empty(t, prog.Errors, "unexpected compiler errors for: %s", src)
	set := codegen.Generate(prog)
	set.Chunks = append(set.Chunks, runtime.Chunks()...)
	return set
}

// chunkNames collects every chunk name in set, for assertions about
// which runtime helpers a program's codegen actually reaches for.
func chunkNames(set *codegen.CodeSet) []string {
	var out []string
	for _, c := range set.Chunks {
		out = append(out, c.Name)
	}
	return out
}

// callsSymbol reports whether any chunk in set contains a call-style
// link targeting sym -- used to confirm a runtime fault path (e.g.
// $none_op) is actually wired into the emitted code rather than just
// present in the runtime package.
func callsSymbol(set *codegen.CodeSet, sym string) bool {
	for _, c := range set.Chunks {
		for _, l := range c.Links {
			if l.Symbol == sym {
				return true
			}
		}
	}
	return false
}

// TestEndToEndScenarios walks the eight numbered programs from
// spec.md §8 at the level this pipeline can actually check without an
// assembler/linker in the loop: the program type-checks (or doesn't,
// for the deliberately bad ones) and the code generator reaches the
// expected chunks.
func TestEndToEndScenarios(t *testing.T) {
	t.Run("1 arithmetic precedence", func(t *testing.T) {
		set := compileOK(t, "print(1 + 2 * 3)\n")
		assert.Contains(t, chunkNames(set), "$chocopy_main")
	})

	t.Run("2 reassignment", func(t *testing.T) {
		set := compileOK(t, "x:int = 0\nx = 5\nprint(x)\n")
		assert.Contains(t, chunkNames(set), "$chocopy_main")
	})

	t.Run("3 list iteration", func(t *testing.T) {
		src := "a:[int] = None\nv:int = 0\na = [1, 2, 3]\nfor v in a:\n    print(v)\n"
		set := compileOK(t, src)
		assert.Contains(t, chunkNames(set), "$chocopy_main")
	})

	t.Run("4 string concatenation", func(t *testing.T) {
		set := compileOK(t, "s:str = \"ab\"\nprint(s + \"cd\")\n")
		assert.Contains(t, chunkNames(set), "$chocopy_main")
	})

	t.Run("5 class with method", func(t *testing.T) {
		src := "class A(object):\n" +
			"    x:int = 0\n" +
			"    def f(self:\"A\") -> int:\n" +
			"        return self.x\n" +
			"o:A = None\n" +
			"o = A()\n" +
			"o.x = 42\n" +
			"print(o.f())\n"
		set := compileOK(t, src)
		names := chunkNames(set)
		assert.Contains(t, names, "A")
		assert.Contains(t, names, "A.$dtor")
		assert.Contains(t, names, "A.$proto")
	})

	t.Run("6 input roundtrip", func(t *testing.T) {
		set := compileOK(t, "print(input())\n")
		assert.True(t, callsSymbol(set, "$input") || callsSymbol(set, "input"),
			"expected a call to the input built-in")
	})

	t.Run("7 type error reported with location", func(t *testing.T) {
		prog := chocopy.NewParser("x:int = True\n").Parse()
		errs := check.Analyze(prog)
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[0].Message, "Expected type")
		assert.Equal(t, 1, errs[0].Loc.Start.Row)
	})

	t.Run("8 none receiver reaches none_op", func(t *testing.T) {
		src := "a:[int] = None\nprint(len(a))\n"
		set := compileOK(t, src)
		assert.True(t, callsSymbol(set, "$none_op"),
			"indexing/calling through a possibly-None receiver must wire in the none_op trap")
	})
}
