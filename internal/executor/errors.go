package executor

import (
	"fmt"

	"github.com/vk/pipecanvas/internal/model"
)

// InvalidConfigurationError reports a node whose configuration cannot be
// executed at all, for example an api_call with no resolvable endpoint.
// It is raised before any network traffic.
type InvalidConfigurationError struct {
	NodeID string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("node %q: invalid configuration for %q: %s", e.NodeID, e.Field, e.Reason)
	}
	return fmt.Sprintf("node %q: invalid configuration: %s", e.NodeID, e.Reason)
}

// MalformedBodyError reports a JSON request body that failed to parse even
// after template placeholders were auto-quoted.
type MalformedBodyError struct {
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("node %q: request body is not valid JSON: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *MalformedBodyError) Unwrap() error { return e.Err }

// HttpError reports a non-2xx response. It carries the full request and
// response so the canvas can render forensics on failure, not just a
// message.
type HttpError struct {
	NodeID   string
	Status   int
	Request  *model.Request
	Response *model.Response
}

// Error implements the error interface.
func (e *HttpError) Error() string {
	text := ""
	if e.Response != nil {
		text = e.Response.StatusText
	}
	return fmt.Sprintf("node %q: request failed with status %d %s", e.NodeID, e.Status, text)
}

// NetworkError reports a request for which no response was received.
type NetworkError struct {
	NodeID  string
	URL     string
	Request *model.Request
	Err     error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("node %q: request to %s failed: %v", e.NodeID, e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// ExecutionError reports a code-node expression that failed to parse or
// evaluate. The sandbox guarantees the failure stays inside the node.
type ExecutionError struct {
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %q: code execution failed: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying evaluation error.
func (e *ExecutionError) Unwrap() error { return e.Err }
