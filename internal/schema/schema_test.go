package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputHandle(t *testing.T) {
	def := &NodeDefinition{
		Handles: Handles{
			Inputs: []Handle{
				{ID: "structure", Kind: HandleTarget, DataType: "pdb_file"},
				{ID: "sequence", Kind: HandleTarget, DataType: "sequence"},
			},
			Outputs: []Handle{{ID: "structure", Kind: HandleSource, DataType: "pdb_file"}},
		},
	}

	h, ok := def.InputHandle("sequence")
	require.True(t, ok)
	assert.Equal(t, "sequence", h.DataType)

	// Output handles are not reachable through InputHandle.
	_, ok = def.InputHandle("missing")
	assert.False(t, ok)
}
