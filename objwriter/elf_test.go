package objwriter

import (
	"testing"

	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/stretchr/testify/require"
)

func TestWriteELFHasMagicAndSections(t *testing.T) {
	set := &codegen.CodeSet{
		Chunks: []*codegen.Chunk{
			codegen.NewProcChunk("f", []byte{0xC3}, []codegen.Link{
				{Offset: 0, Symbol: "malloc", Size: 4, Kind: codegen.LinkCallRel32},
			}),
			codegen.NewDataChunk("d", []byte{1, 2, 3, 4}, nil),
		},
	}
	out, err := WriteELF(set)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), 64)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, out[:4])
	require.Equal(t, byte(2), out[4]) // ELFCLASS64
}

func TestWriteCOFFIsExplicitlyUnimplemented(t *testing.T) {
	_, err := WriteCOFF(&codegen.CodeSet{})
	require.ErrorIs(t, err, ErrNotImplemented)
}
