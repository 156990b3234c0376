package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipecanvas/internal/registry"
	"github.com/vk/pipecanvas/internal/schema"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "boltz.hcl", `
node "boltz" {
  metadata {
    label       = "Boltz"
    icon        = "atom"
    color       = "#0ea5e9"
    description = "Complex structure prediction."
  }

  field "sequence" {
    type     = "textarea"
    required = true
    label    = "Sequence"
  }

  field "num_samples" {
    type    = "number"
    default = 5
    label   = "Samples"
    min     = 1
    max     = 25
  }

  field "mode" {
    type    = "select"
    default = "fast"
    options = ["fast", "accurate"]
  }

  input "sequence" {
    data_type = "sequence"
  }

  output "structure" {
    data_type = "pdb_file"
  }

  execution {
    type     = "api_call"
    endpoint = "/api/boltz/run"
    method   = "POST"
    payload = {
      sequence    = "{{input.sequence}}"
      num_samples = "{{config.num_samples}}"
    }
  }

  default_config = {
    num_samples = 5
    mode        = "fast"
  }
}
`)

	reg := registry.New()
	require.NoError(t, LoadDir(context.Background(), dir, reg))

	def, err := reg.Load("boltz")
	require.NoError(t, err)

	assert.Equal(t, "Boltz", def.Metadata.Label)
	assert.Equal(t, "boltz", def.Metadata.Type)

	require.Contains(t, def.Schema, "sequence")
	assert.True(t, def.Schema["sequence"].Required)

	samples := def.Schema["num_samples"]
	require.NotNil(t, samples)
	assert.Equal(t, float64(5), samples.Default)
	require.NotNil(t, samples.Min)
	assert.Equal(t, float64(1), *samples.Min)

	assert.Equal(t, []string{"fast", "accurate"}, def.Schema["mode"].Options)

	require.Len(t, def.Handles.Inputs, 1)
	assert.Equal(t, schema.HandleTarget, def.Handles.Inputs[0].Kind)
	assert.Equal(t, "sequence", def.Handles.Inputs[0].DataType)
	require.Len(t, def.Handles.Outputs, 1)
	assert.Equal(t, "pdb_file", def.Handles.Outputs[0].DataType)

	assert.Equal(t, schema.ExecAPICall, def.Execution.Type)
	assert.Equal(t, "/api/boltz/run", def.Execution.Endpoint)
	assert.Equal(t, "{{input.sequence}}", def.Execution.Payload["sequence"])

	assert.Equal(t, map[string]any{"num_samples": float64(5), "mode": "fast"}, def.DefaultConfig)
}

func TestLoadDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "log.hcl", `
node "log_node" {
  metadata {
    label = "Audit Log"
  }
  execution {
    type    = "log"
    message = "{{config.message}}"
  }
  input_optional = true
}
`)

	reg := registry.NewWithBuiltins()
	require.NoError(t, LoadDir(context.Background(), dir, reg))

	def, err := reg.Load("log_node")
	require.NoError(t, err)
	assert.Equal(t, "Audit Log", def.Metadata.Label)
	assert.True(t, def.InputOptional)
}

func TestLoadDirRejectsUnknownExecutionType(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad.hcl", `
node "bad" {
  execution {
    type = "teleport"
  }
}
`)

	err := LoadDir(context.Background(), dir, registry.New())
	assert.ErrorContains(t, err, "unknown execution type")
}

func TestLoadDirRejectsMissingExecution(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad.hcl", `
node "bad" {
  metadata {
    label = "No execution"
  }
}
`)

	err := LoadDir(context.Background(), dir, registry.New())
	assert.ErrorContains(t, err, "missing execution block")
}

func TestLoadDirParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "broken.hcl", `node "x" {`)

	err := LoadDir(context.Background(), dir, registry.New())
	assert.Error(t, err)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "absent"), registry.New())
	assert.Error(t, err)
}

func TestLoadDirIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "notes.txt", "not a manifest")

	reg := registry.New()
	require.NoError(t, LoadDir(context.Background(), dir, reg))
	assert.Empty(t, reg.Types())
}
