package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipecanvas/internal/schema"
)

func TestLoadBuiltins(t *testing.T) {
	r := NewWithBuiltins()

	for _, nodeType := range []string{
		"input_node", "rfdiffusion", "proteinmpnn", "esmfold",
		"api_node", "code_node", "log_node", "file_check_node",
	} {
		def, err := r.Load(nodeType)
		require.NoError(t, err, nodeType)
		assert.Equal(t, nodeType, def.Metadata.Type)
	}
}

func TestLoadUnknownType(t *testing.T) {
	r := NewWithBuiltins()

	_, err := r.Load("does_not_exist")
	var notFound *DefinitionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "does_not_exist", notFound.Type)
}

func TestLoadIsStable(t *testing.T) {
	r := NewWithBuiltins()

	first, err := r.Load("rfdiffusion")
	require.NoError(t, err)
	second, err := r.Load("rfdiffusion")
	require.NoError(t, err)
	assert.Same(t, first, second, "repeated lookups must return the same definition")
}

func TestRegisterOverride(t *testing.T) {
	r := NewWithBuiltins()

	original, err := r.Load("esmfold")
	require.NoError(t, err)

	replacement := &schema.NodeDefinition{
		Metadata:  schema.Metadata{Type: "esmfold", Label: "ESMFold v2"},
		Execution: schema.Execution{Type: schema.ExecAPICall, Endpoint: "/v2/esmfold"},
	}
	r.Register(replacement)

	loaded, err := r.Load("esmfold")
	require.NoError(t, err)
	assert.NotSame(t, original, loaded)
	assert.Equal(t, "ESMFold v2", loaded.Metadata.Label)
}

func TestTypes(t *testing.T) {
	r := New()
	r.Register(&schema.NodeDefinition{Metadata: schema.Metadata{Type: "zeta"}})
	r.Register(&schema.NodeDefinition{Metadata: schema.Metadata{Type: "alpha"}})

	assert.Equal(t, []string{"alpha", "zeta"}, r.Types())
}

func TestBuiltinContracts(t *testing.T) {
	r := NewWithBuiltins()

	t.Run("api_node tolerates unwired inputs", func(t *testing.T) {
		def, err := r.Load("api_node")
		require.NoError(t, err)
		assert.True(t, def.InputOptional)
	})

	t.Run("design nodes require a structure", func(t *testing.T) {
		def, err := r.Load("rfdiffusion")
		require.NoError(t, err)
		h, ok := def.InputHandle("structure")
		require.True(t, ok)
		assert.Equal(t, "pdb_file", h.DataType)
		assert.False(t, def.InputOptional)
	})
}
