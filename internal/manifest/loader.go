// Package manifest loads node-type definitions from HCL manifest files.
// Manifests extend or override the builtin catalog; a definitions directory
// is how an installation teaches the canvas about new services without
// recompiling.
package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/pipecanvas/internal/ctxlog"
	"github.com/vk/pipecanvas/internal/expr"
	"github.com/vk/pipecanvas/internal/fsutil"
	"github.com/vk/pipecanvas/internal/registry"
	"github.com/vk/pipecanvas/internal/schema"
)

// fileRoot decodes the top level of one manifest file.
type fileRoot struct {
	Nodes []*nodeBlock `hcl:"node,block"`
}

type nodeBlock struct {
	Type          string          `hcl:"type,label"`
	Metadata      *metadataBlock  `hcl:"metadata,block"`
	Fields        []*fieldBlock   `hcl:"field,block"`
	Inputs        []*handleBlock  `hcl:"input,block"`
	Outputs       []*handleBlock  `hcl:"output,block"`
	Execution     *executionBlock `hcl:"execution,block"`
	DefaultConfig hcl.Expression  `hcl:"default_config,optional"`
	InputOptional bool            `hcl:"input_optional,optional"`
}

type metadataBlock struct {
	Label       string `hcl:"label,optional"`
	Icon        string `hcl:"icon,optional"`
	Color       string `hcl:"color,optional"`
	Description string `hcl:"description,optional"`
}

type fieldBlock struct {
	Name     string         `hcl:"name,label"`
	Type     string         `hcl:"type"`
	Required bool           `hcl:"required,optional"`
	Label    string         `hcl:"label,optional"`
	Default  hcl.Expression `hcl:"default,optional"`
	Min      *float64       `hcl:"min,optional"`
	Max      *float64       `hcl:"max,optional"`
	Options  []string       `hcl:"options,optional"`
}

type handleBlock struct {
	ID       string `hcl:"id,label"`
	DataType string `hcl:"data_type,optional"`
}

type executionBlock struct {
	Type        string            `hcl:"type"`
	Endpoint    string            `hcl:"endpoint,optional"`
	Method      string            `hcl:"method,optional"`
	QueryParams map[string]string `hcl:"query_params,optional"`
	Headers     map[string]string `hcl:"headers,optional"`
	Payload     hcl.Expression    `hcl:"payload,optional"`
	Message     string            `hcl:"message,optional"`
	Code        string            `hcl:"code,optional"`
}

// LoadDir discovers every .hcl manifest under dir and registers the node
// definitions it declares.
func LoadDir(ctx context.Context, dir string, reg *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(dir, ".hcl")
	if err != nil {
		return fmt.Errorf("discover manifests in %s: %w", dir, err)
	}
	logger.Debug("Discovered manifest files.", "count", len(files))

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return fmt.Errorf("parse manifest %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return fmt.Errorf("decode manifest %s: %w", file, diags)
		}

		for _, block := range root.Nodes {
			def, err := translate(block)
			if err != nil {
				return fmt.Errorf("manifest %s: node %q: %w", file, block.Type, err)
			}
			reg.Register(def)
			logger.Debug("Registered node definition from manifest.", "type", def.Metadata.Type, "file", file)
		}
	}
	return nil
}

// translate converts a decoded manifest block into the runtime definition.
func translate(block *nodeBlock) (*schema.NodeDefinition, error) {
	def := &schema.NodeDefinition{
		Metadata:      schema.Metadata{Type: block.Type},
		InputOptional: block.InputOptional,
	}
	if block.Metadata != nil {
		def.Metadata.Label = block.Metadata.Label
		def.Metadata.Icon = block.Metadata.Icon
		def.Metadata.Color = block.Metadata.Color
		def.Metadata.Description = block.Metadata.Description
	}

	if len(block.Fields) > 0 {
		def.Schema = make(map[string]*schema.Field, len(block.Fields))
		for _, fb := range block.Fields {
			field := &schema.Field{
				Type:     fb.Type,
				Required: fb.Required,
				Label:    fb.Label,
				Min:      fb.Min,
				Max:      fb.Max,
				Options:  fb.Options,
			}
			value, err := staticValue(fb.Default)
			if err != nil {
				return nil, fmt.Errorf("field %q default: %w", fb.Name, err)
			}
			field.Default = value
			def.Schema[fb.Name] = field
		}
	}

	for _, hb := range block.Inputs {
		def.Handles.Inputs = append(def.Handles.Inputs, schema.Handle{
			ID: hb.ID, Kind: schema.HandleTarget, DataType: hb.DataType,
		})
	}
	for _, hb := range block.Outputs {
		def.Handles.Outputs = append(def.Handles.Outputs, schema.Handle{
			ID: hb.ID, Kind: schema.HandleSource, DataType: hb.DataType,
		})
	}

	if block.Execution == nil {
		return nil, fmt.Errorf("missing execution block")
	}
	execType := schema.ExecutionType(block.Execution.Type)
	switch execType {
	case schema.ExecAPICall, schema.ExecFileCheck, schema.ExecLog, schema.ExecCode:
	default:
		return nil, fmt.Errorf("unknown execution type %q", block.Execution.Type)
	}
	def.Execution = schema.Execution{
		Type:        execType,
		Endpoint:    block.Execution.Endpoint,
		Method:      block.Execution.Method,
		QueryParams: block.Execution.QueryParams,
		Headers:     block.Execution.Headers,
		Message:     block.Execution.Message,
		Code:        block.Execution.Code,
	}

	payload, err := staticValue(block.Execution.Payload)
	if err != nil {
		return nil, fmt.Errorf("execution payload: %w", err)
	}
	if payload != nil {
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("execution payload must be an object")
		}
		def.Execution.Payload = obj
	}

	defaults, err := staticValue(block.DefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("default_config: %w", err)
	}
	if defaults != nil {
		obj, ok := defaults.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("default_config must be an object")
		}
		def.DefaultConfig = obj
	}

	return def, nil
}

// staticValue evaluates a manifest expression with no variables in scope
// (manifest values are data, not expressions over runtime state) and
// converts it to plain Go values.
func staticValue(expression hcl.Expression) (any, error) {
	if expression == nil {
		return nil, nil
	}
	val, diags := expression.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate: %s", diags.Error())
	}
	if val.IsNull() {
		return nil, nil
	}
	return expr.FromCty(val)
}
