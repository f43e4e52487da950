package runtime

import (
	"testing"

	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksHaveUniqueNames(t *testing.T) {
	chunks := Chunks()
	require.NotEmpty(t, chunks)
	seen := map[string]bool{}
	for _, c := range chunks {
		assert.Falsef(t, seen[c.Name], "duplicate chunk name %q", c.Name)
		seen[c.Name] = true
	}
}

func TestChunksIncludeCoreBuiltins(t *testing.T) {
	chunks := Chunks()
	names := map[string]bool{}
	for _, c := range chunks {
		names[c.Name] = true
	}
	for _, want := range []string{
		"$alloc_obj", "$alloc_array", "$alloc_str", "$clone_obj", "$drop_obj",
		"$free_obj", "$default_dtor", "$alloc_count",
		"$len", "$index_list", "$index_str", "$store_list", "$str_eq",
		"$concat_str", "$concat_list", "$print", "$input",
		"$none_op", "$out_of_bound", "$div_zero", "$report_broken_stack",
		"$refcount_nonzero", "$box_int", "$box_bool", "main",
	} {
		assert.Truef(t, names[want], "expected a chunk named %q", want)
	}
}

func TestProcChunksAreNonEmpty(t *testing.T) {
	for _, c := range Chunks() {
		if c.Kind == codegen.ChunkProc {
			assert.NotEmpty(t, c.Code, c.Name)
		}
	}
}
