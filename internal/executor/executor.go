// Package executor performs the side-effecting action a node's execution
// descriptor declares (an HTTP call, a file-presence check, a log line, or
// a sandboxed expression) and returns a normalized {data, request,
// response} envelope. It never writes node status or result_metadata; that
// is the engine's job.
package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vk/pipecanvas/internal/ctxlog"
	"github.com/vk/pipecanvas/internal/expr"
	"github.com/vk/pipecanvas/internal/model"
	"github.com/vk/pipecanvas/internal/registry"
	"github.com/vk/pipecanvas/internal/schema"
	"github.com/vk/pipecanvas/internal/template"
)

// Transform lets the embedding application rewrite a node's envelope before
// it is recorded, keyed by node type.
type Transform func(nodeType string, env *model.Envelope) *model.Envelope

// Context carries everything one node execution needs beyond the node
// itself.
type Context struct {
	Pipeline *model.Pipeline
	Registry *registry.Registry

	// Client handles relative/internal endpoints. HTTP handles absolute
	// external URLs; nil means http.DefaultClient.
	Client APIClient
	HTTP   *http.Client

	SessionID string

	// Endpoints overrides api_call endpoints by node type. An absolute URL
	// in the node's own config wins over both this map and the descriptor.
	Endpoints map[string]string

	Transform Transform
}

func (ec *Context) httpClient() *http.Client {
	if ec.HTTP != nil {
		return ec.HTTP
	}
	return http.DefaultClient
}

// Execute runs one node. On failure the returned error is one of the typed
// taxonomy errors; HTTP failures still carry the full request/response.
func Execute(ctx context.Context, node *model.PipelineNode, ec *Context) (*model.Envelope, error) {
	logger := ctxlog.FromContext(ctx).With("node", node.ID, "type", node.Type)

	def, err := ec.Registry.Load(node.Type)
	if err != nil {
		return nil, err
	}
	node = withDefaults(def, node)

	inputData, err := resolveInputs(def, node, ec.Pipeline)
	if err != nil {
		return nil, err
	}
	logger.Debug("Resolved node inputs.", "handles", len(inputData))

	var env *model.Envelope
	switch def.Execution.Type {
	case schema.ExecAPICall:
		env, err = runAPICall(ctx, def, node, inputData, ec)
	case schema.ExecFileCheck:
		env, err = runFileCheck(node)
	case schema.ExecLog:
		env, err = runLog(ctx, def, node, inputData)
	case schema.ExecCode:
		env, err = runCode(def, node, inputData)
	default:
		err = &InvalidConfigurationError{
			NodeID: node.ID,
			Reason: fmt.Sprintf("unknown execution type %q", def.Execution.Type),
		}
	}
	if err != nil {
		return nil, err
	}

	if ec.Transform != nil {
		env = ec.Transform(node.Type, env)
	}
	return env, nil
}

// withDefaults overlays the definition's defaults under the node's own
// config so {{config.*}} templates see declared defaults for unset fields.
// The returned node is a shallow copy; the stored document keeps only what
// the canvas actually wrote.
func withDefaults(def *schema.NodeDefinition, node *model.PipelineNode) *model.PipelineNode {
	defaults := make(map[string]any, len(def.Schema)+len(def.DefaultConfig))
	for name, field := range def.Schema {
		if field.Default != nil {
			defaults[name] = field.Default
		}
	}
	for name, v := range def.DefaultConfig {
		defaults[name] = v
	}
	if len(defaults) == 0 {
		return node
	}

	merged := make(map[string]any, len(defaults)+len(node.Config))
	for name, v := range defaults {
		merged[name] = v
	}
	for name, v := range node.Config {
		merged[name] = v
	}

	clone := *node
	clone.Config = merged
	return &clone
}

// resolveInputs walks each declared input handle back along its incoming
// edge and extracts a value from the upstream node, then enforces the
// required-handle contract: a handle with a non-empty data type must have a
// value unless the node type is input-optional.
func resolveInputs(def *schema.NodeDefinition, node *model.PipelineNode, p *model.Pipeline) (map[string]any, error) {
	inputData := make(map[string]any, len(def.Handles.Inputs))
	for _, h := range def.Handles.Inputs {
		edge, ok := p.IncomingEdge(node.ID, h.ID)
		if !ok {
			continue
		}
		upstream := p.Node(edge.Source)
		if upstream == nil {
			continue
		}
		if v := extractOutput(upstream, h.DataType); v != nil {
			inputData[h.ID] = v
		}
	}

	if !def.InputOptional {
		for _, h := range def.Handles.Inputs {
			if h.DataType == "" {
				continue
			}
			if _, ok := inputData[h.ID]; !ok {
				return nil, &template.MissingInputError{NodeID: node.ID, Handle: h.ID}
			}
		}
	}
	return inputData, nil
}

// runFileCheck validates that the node names a file and returns its
// normalized metadata. A missing filename is a synchronous validation
// error, not a network one.
func runFileCheck(node *model.PipelineNode) (*model.Envelope, error) {
	filename := configString(node, "filename")
	if filename == "" {
		return nil, &InvalidConfigurationError{
			NodeID: node.ID,
			Field:  "filename",
			Reason: "a filename is required",
		}
	}

	filePath := configString(node, "file_path")
	if filePath == "" {
		filePath = filename
	}

	return &model.Envelope{
		Data: map[string]any{
			"filename":  filename,
			"file_path": filePath,
			"validated": true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// runLog resolves the message template and passes through. Purely
// informational.
func runLog(ctx context.Context, def *schema.NodeDefinition, node *model.PipelineNode, inputData map[string]any) (*model.Envelope, error) {
	messageTmpl := def.Execution.Message
	if messageTmpl == "" {
		messageTmpl = "{{config.message}}"
	}
	message, err := template.ResolveString(messageTmpl, node, inputData)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("📋 "+message, "node", node.ID)

	return &model.Envelope{
		Data: map[string]any{
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// runCode evaluates the node's expression in the sandbox. A failing
// expression surfaces as an ExecutionError on this node only.
func runCode(def *schema.NodeDefinition, node *model.PipelineNode, inputData map[string]any) (*model.Envelope, error) {
	code := configString(node, "code")
	if code == "" {
		code = def.Execution.Code
	}
	if strings.TrimSpace(code) == "" {
		return &model.Envelope{Data: defaultCodeResult()}, nil
	}

	nodeMeta := map[string]any{
		"id":     node.ID,
		"type":   node.Type,
		"label":  node.Label,
		"status": string(node.Status),
	}

	result, err := expr.Eval(code, inputData, node.Config, nodeMeta)
	if err != nil {
		return nil, &ExecutionError{NodeID: node.ID, Err: err}
	}

	switch out := result.(type) {
	case nil:
		return &model.Envelope{Data: defaultCodeResult()}, nil
	case map[string]any:
		return &model.Envelope{Data: out}, nil
	default:
		return &model.Envelope{Data: map[string]any{"value": out}}, nil
	}
}

func defaultCodeResult() map[string]any {
	return map[string]any{
		"executed":  true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// configString reads a config field coerced to a string; absent fields and
// non-scalar values yield "".
func configString(node *model.PipelineNode, field string) string {
	switch v := node.ConfigValue(field).(type) {
	case string:
		return v
	case nil:
		return ""
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}
