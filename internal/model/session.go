package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of one execution session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionStopped   SessionStatus = "stopped"
)

// ExecutionSession records one timed run of a pipeline: which nodes were
// touched, in what order, and with what outcome. Sessions live only for the
// current process; persistence is a collaborator concern.
type ExecutionSession struct {
	ID          string               `json:"id"`
	PipelineID  string               `json:"pipelineId"`
	StartedAt   time.Time            `json:"startedAt"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
	Status      SessionStatus        `json:"status"`
	Log         []*ExecutionLogEntry `json:"log"`
}

// ExecutionLogEntry is the per-node record inside a session.
type ExecutionLogEntry struct {
	NodeID      string     `json:"nodeId"`
	Status      NodeStatus `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// DurationMS is CompletedAt − StartedAt in milliseconds.
	DurationMS int64 `json:"duration,omitempty"`

	Request  *Request       `json:"request,omitempty"`
	Response *Response      `json:"response,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// NewSession starts a session clock for the given pipeline.
func NewSession(pipelineID string) *ExecutionSession {
	return &ExecutionSession{
		ID:         uuid.NewString(),
		PipelineID: pipelineID,
		StartedAt:  time.Now().UTC(),
		Status:     SessionRunning,
	}
}

// Begin appends a running log entry for the node and returns it.
func (s *ExecutionSession) Begin(nodeID string) *ExecutionLogEntry {
	entry := &ExecutionLogEntry{
		NodeID:    nodeID,
		Status:    NodeRunning,
		StartedAt: time.Now().UTC(),
	}
	s.Log = append(s.Log, entry)
	return entry
}

// Complete stamps the entry with a terminal status and its duration.
func (e *ExecutionLogEntry) Complete(status NodeStatus) {
	now := time.Now().UTC()
	e.Status = status
	e.CompletedAt = &now
	e.DurationMS = now.Sub(e.StartedAt).Milliseconds()
}

// Finish stamps the session with its terminal status.
func (s *ExecutionSession) Finish(status SessionStatus) {
	now := time.Now().UTC()
	s.Status = status
	s.CompletedAt = &now
}

// Entry returns the most recent log entry for the node, or nil.
func (s *ExecutionSession) Entry(nodeID string) *ExecutionLogEntry {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].NodeID == nodeID {
			return s.Log[i]
		}
	}
	return nil
}
