// Package schema defines the node-definition model: the declarative contract
// a node type publishes about its ports, its configuration form, and how the
// executor should run it. Definitions are registered in Go or loaded from
// HCL manifests; the live graph never embeds them.
package schema

// Metadata describes a node type for the canvas palette.
type Metadata struct {
	Type        string
	Label       string
	Icon        string
	Color       string
	Description string
}

// Field describes one configuration field of a node type. Type is the form
// widget/value kind ("string", "number", "boolean", "select", "textarea",
// "json").
type Field struct {
	Type     string
	Required bool
	Default  any
	Label    string
	Min      *float64
	Max      *float64
	Options  []string
}

// HandleKind distinguishes input ports from output ports.
type HandleKind string

const (
	HandleTarget HandleKind = "target" // input
	HandleSource HandleKind = "source" // output
)

// Handle is a named port with a data-type tag ("pdb_file", "sequence",
// "message", "any", ...). An input handle with a non-empty DataType is
// required unless the definition is input-optional.
type Handle struct {
	ID       string
	Kind     HandleKind
	DataType string
}

// Handles groups a definition's ports.
type Handles struct {
	Inputs  []Handle
	Outputs []Handle
}

// ExecutionType selects the executor dispatch for a node type.
type ExecutionType string

const (
	ExecAPICall   ExecutionType = "api_call"
	ExecFileCheck ExecutionType = "file_check"
	ExecLog       ExecutionType = "log"
	ExecCode      ExecutionType = "code_execution"
)

// Execution is the declarative execution descriptor. String fields may
// contain {{...}} templates resolved per run against the node's inputs and
// configuration.
type Execution struct {
	Type        ExecutionType
	Endpoint    string
	Method      string
	QueryParams map[string]string
	Headers     map[string]string

	// Payload is a legacy fixed request body, used when the node's config
	// does not specify one.
	Payload map[string]any

	Message string
	Code    string
}

// NodeDefinition is the full declarative contract for one node type.
type NodeDefinition struct {
	Metadata      Metadata
	Schema        map[string]*Field
	Handles       Handles
	Execution     Execution
	DefaultConfig map[string]any

	// InputOptional marks node types that tolerate unwired input handles,
	// such as the raw HTTP node.
	InputOptional bool
}

// InputHandle returns the input handle with the given id, if declared.
func (d *NodeDefinition) InputHandle(id string) (Handle, bool) {
	for _, h := range d.Handles.Inputs {
		if h.ID == id {
			return h, true
		}
	}
	return Handle{}, false
}
