package objwriter

import (
	"errors"

	"github.com/ckitagawa/chocopyc/codegen"
)

// ErrNotImplemented is returned by WriteCOFF: the Windows object
// format needs its own section/symbol/relocation encoding distinct
// from ELF's, and nothing in the reference pack exercises it, so it
// stays a documented gap rather than a half-finished guess.
var ErrNotImplemented = errors.New("objwriter: COFF object writer not implemented")

// WriteCOFF would assemble a Windows COFF .obj from set, the
// CodeView-emitting counterpart to WriteELF. Left unimplemented: see
// ErrNotImplemented.
func WriteCOFF(set *codegen.CodeSet) ([]byte, error) {
	return nil, ErrNotImplemented
}
