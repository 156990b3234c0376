// Package events streams node and session transitions to canvas clients
// over WebSocket. The engine talks to an Emitter; the Hub is the concrete
// fan-out, and Nop is what library embedders get by default.
package events

import (
	"time"

	"github.com/vk/pipecanvas/internal/model"
)

// Event is the wire format of one transition.
type Event struct {
	Kind       string    `json:"kind"` // "node" or "session"
	PipelineID string    `json:"pipelineId"`
	NodeID     string    `json:"nodeId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Emitter receives engine transitions. Implementations must not block: the
// run loop calls these inline between state changes.
type Emitter interface {
	NodeTransition(pipelineID string, nodeID string, status model.NodeStatus, errMsg string)
	SessionTransition(session *model.ExecutionSession)
}

// Nop is the default emitter. It drops everything.
type Nop struct{}

// NodeTransition implements Emitter.
func (Nop) NodeTransition(string, string, model.NodeStatus, string) {}

// SessionTransition implements Emitter.
func (Nop) SessionTransition(*model.ExecutionSession) {}
