package main

import (
	"os"
	"strings"
	"testing"

	chocopy "github.com/ckitagawa/chocopyc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintErrorsIncludesCaret(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(dir, "out-*.txt")
	require.NoError(t, err)
	defer f.Close()

	src := "x = 1\ny : int = \"oops\"\n"
	errs := []chocopy.CompilerError{
		{Loc: chocopy.Location{Start: chocopy.Position{Row: 2, Col: 11}}, Message: "Expected type `int`"},
	}
	printErrors(f, "test.py", src, errs)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "2, 11: ")
	assert.Contains(t, out, "Expected type `int`")
	assert.True(t, strings.Contains(out, "^"))
}
