package registry

import "github.com/vk/pipecanvas/internal/schema"

// builtinDefinitions is the node catalog the engine ships with. Manifest
// files loaded at startup may override or extend it.
func builtinDefinitions() []*schema.NodeDefinition {
	return []*schema.NodeDefinition{
		inputNode(),
		rfdiffusionNode(),
		proteinMPNNNode(),
		esmfoldNode(),
		apiNode(),
		codeNode(),
		logNode(),
		fileCheckNode(),
	}
}

// inputNode provides a target structure to the rest of the pipeline. Its
// execution only validates that the file is named; the payload downstream
// nodes consume is assembled from its config.
func inputNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "input_node",
			Label:       "Structure Input",
			Icon:        "file-input",
			Color:       "#64748b",
			Description: "Provides a target PDB structure for downstream design steps.",
		},
		Schema: map[string]*schema.Field{
			"filename":    {Type: "string", Required: true, Label: "Filename"},
			"file_path":   {Type: "string", Label: "File path"},
			"description": {Type: "textarea", Label: "Description"},
		},
		Handles: schema.Handles{
			Outputs: []schema.Handle{{ID: "structure", Kind: schema.HandleSource, DataType: "pdb_file"}},
		},
		Execution: schema.Execution{Type: schema.ExecFileCheck},
	}
}

func rfdiffusionNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "rfdiffusion",
			Label:       "RFdiffusion",
			Icon:        "shapes",
			Color:       "#8b5cf6",
			Description: "Backbone structure design around a target structure.",
		},
		Schema: map[string]*schema.Field{
			"contigs":     {Type: "string", Required: true, Label: "Contigs"},
			"num_designs": {Type: "number", Default: 1, Label: "Designs", Min: f(1), Max: f(64)},
		},
		Handles: schema.Handles{
			Inputs:  []schema.Handle{{ID: "structure", Kind: schema.HandleTarget, DataType: "pdb_file"}},
			Outputs: []schema.Handle{{ID: "structure", Kind: schema.HandleSource, DataType: "pdb_file"}},
		},
		Execution: schema.Execution{
			Type:     schema.ExecAPICall,
			Endpoint: "/api/rfdiffusion/run",
			Method:   "POST",
			Payload: map[string]any{
				"pdb_file":    "{{input.structure}}",
				"contigs":     "{{config.contigs}}",
				"num_designs": "{{config.num_designs}}",
			},
		},
		DefaultConfig: map[string]any{"num_designs": 1},
	}
}

func proteinMPNNNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "proteinmpnn",
			Label:       "ProteinMPNN",
			Icon:        "dna",
			Color:       "#06b6d4",
			Description: "Sequence design for a given backbone structure.",
		},
		Schema: map[string]*schema.Field{
			"num_sequences": {Type: "number", Default: 8, Label: "Sequences", Min: f(1), Max: f(256)},
			"temperature":   {Type: "number", Default: 0.1, Label: "Sampling temperature", Min: f(0), Max: f(1)},
		},
		Handles: schema.Handles{
			Inputs:  []schema.Handle{{ID: "structure", Kind: schema.HandleTarget, DataType: "pdb_file"}},
			Outputs: []schema.Handle{{ID: "sequence", Kind: schema.HandleSource, DataType: "sequence"}},
		},
		Execution: schema.Execution{
			Type:     schema.ExecAPICall,
			Endpoint: "/api/proteinmpnn/run",
			Method:   "POST",
			Payload: map[string]any{
				"pdb_file":      "{{input.structure}}",
				"num_sequences": "{{config.num_sequences}}",
				"temperature":   "{{config.temperature}}",
			},
		},
		DefaultConfig: map[string]any{"num_sequences": 8, "temperature": 0.1},
	}
}

func esmfoldNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "esmfold",
			Label:       "ESMFold",
			Icon:        "fold-vertical",
			Color:       "#10b981",
			Description: "Structure prediction for a designed sequence.",
		},
		Handles: schema.Handles{
			Inputs:  []schema.Handle{{ID: "sequence", Kind: schema.HandleTarget, DataType: "sequence"}},
			Outputs: []schema.Handle{{ID: "structure", Kind: schema.HandleSource, DataType: "pdb_file"}},
		},
		Execution: schema.Execution{
			Type:     schema.ExecAPICall,
			Endpoint: "/api/esmfold/run",
			Method:   "POST",
			Payload: map[string]any{
				"sequence": "{{input.sequence}}",
			},
		},
	}
}

// apiNode is the raw HTTP node. It tolerates an unwired input and exposes
// the full method/auth/body surface through its config.
func apiNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "api_node",
			Label:       "HTTP Request",
			Icon:        "globe",
			Color:       "#f59e0b",
			Description: "Calls an arbitrary HTTP endpoint.",
		},
		Schema: map[string]*schema.Field{
			"url":               {Type: "string", Required: true, Label: "URL"},
			"method":            {Type: "select", Default: "GET", Label: "Method", Options: []string{"GET", "POST", "PUT", "PATCH", "DELETE"}},
			"auth_type":         {Type: "select", Default: "none", Label: "Authentication", Options: []string{"none", "basic", "bearer", "custom"}},
			"username":          {Type: "string", Label: "Username"},
			"password":          {Type: "string", Label: "Password"},
			"token":             {Type: "string", Label: "Bearer token"},
			"header_name":       {Type: "string", Label: "Header name"},
			"header_value":      {Type: "string", Label: "Header value"},
			"custom_headers":    {Type: "json", Label: "Extra headers (JSON)"},
			"query_params":      {Type: "json", Label: "Query parameters (JSON)"},
			"body_specify":      {Type: "select", Default: "none", Label: "Body", Options: []string{"none", "json", "expression", "raw"}},
			"body_json":         {Type: "textarea", Label: "JSON body"},
			"body_expression":   {Type: "string", Label: "Body expression"},
			"body_raw":          {Type: "textarea", Label: "Raw body"},
			"body_content_type": {Type: "select", Default: "json", Label: "Content type", Options: []string{"json", "text", "xml"}},
		},
		Handles: schema.Handles{
			Inputs:  []schema.Handle{{ID: "input", Kind: schema.HandleTarget, DataType: ""}},
			Outputs: []schema.Handle{{ID: "output", Kind: schema.HandleSource, DataType: "any"}},
		},
		Execution: schema.Execution{
			Type:     schema.ExecAPICall,
			Endpoint: "{{config.url}}",
			Method:   "{{config.method}}",
		},
		DefaultConfig: map[string]any{"method": "GET", "auth_type": "none", "body_specify": "none"},
		InputOptional: true,
	}
}

func codeNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "code_node",
			Label:       "Code",
			Icon:        "code",
			Color:       "#ec4899",
			Description: "Evaluates a sandboxed expression over the node's input and config.",
		},
		Schema: map[string]*schema.Field{
			"code": {Type: "textarea", Required: true, Label: "Expression"},
		},
		Handles: schema.Handles{
			Inputs:  []schema.Handle{{ID: "input", Kind: schema.HandleTarget, DataType: "any"}},
			Outputs: []schema.Handle{{ID: "output", Kind: schema.HandleSource, DataType: "any"}},
		},
		Execution:     schema.Execution{Type: schema.ExecCode},
		InputOptional: true,
	}
}

func logNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "log_node",
			Label:       "Log",
			Icon:        "terminal",
			Color:       "#737373",
			Description: "Records a message and passes through. Always succeeds.",
		},
		Schema: map[string]*schema.Field{
			"message": {Type: "string", Default: "checkpoint", Label: "Message"},
		},
		Handles: schema.Handles{
			Inputs:  []schema.Handle{{ID: "input", Kind: schema.HandleTarget, DataType: ""}},
			Outputs: []schema.Handle{{ID: "message", Kind: schema.HandleSource, DataType: "message"}},
		},
		Execution: schema.Execution{
			Type:    schema.ExecLog,
			Message: "{{config.message}}",
		},
		DefaultConfig: map[string]any{"message": "checkpoint"},
		InputOptional: true,
	}
}

func fileCheckNode() *schema.NodeDefinition {
	return &schema.NodeDefinition{
		Metadata: schema.Metadata{
			Type:        "file_check_node",
			Label:       "File Check",
			Icon:        "file-check",
			Color:       "#84cc16",
			Description: "Validates that an artifact filename is configured.",
		},
		Schema: map[string]*schema.Field{
			"filename": {Type: "string", Required: true, Label: "Filename"},
		},
		Handles: schema.Handles{
			Inputs:  []schema.Handle{{ID: "input", Kind: schema.HandleTarget, DataType: ""}},
			Outputs: []schema.Handle{{ID: "file", Kind: schema.HandleSource, DataType: "pdb_file"}},
		},
		Execution:     schema.Execution{Type: schema.ExecFileCheck},
		InputOptional: true,
	}
}

func f(v float64) *float64 { return &v }
