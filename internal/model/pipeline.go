// Package model defines the pipeline document: the graph of typed nodes and
// edges the canvas edits and the engine executes. The engine treats a
// Pipeline as a mutable shared document, updating node status and results in
// place as the run advances.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PipelineStatus is the lifecycle state of a whole pipeline document.
type PipelineStatus string

const (
	PipelineDraft     PipelineStatus = "draft"
	PipelineRunning   PipelineStatus = "running"
	PipelineCompleted PipelineStatus = "completed"
	PipelineFailed    PipelineStatus = "failed"
)

// NodeStatus is the execution state of a single node.
type NodeStatus string

const (
	NodeIdle    NodeStatus = "idle"
	NodePending NodeStatus = "pending"
	NodeRunning NodeStatus = "running"
	NodeSuccess NodeStatus = "success"
	NodeError   NodeStatus = "error"
)

// Terminal reports whether s is a terminal per-run state.
func (s NodeStatus) Terminal() bool {
	return s == NodeSuccess || s == NodeError
}

// Position is canvas layout metadata. It has no bearing on execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PipelineNode is a single typed step in the pipeline.
type PipelineNode struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
	Status NodeStatus     `json:"status"`

	// Error holds the failure message from the last run, if any.
	Error string `json:"error,omitempty"`

	// ResultMetadata is the free-form output payload of the last successful
	// execution. Downstream nodes resolve their inputs from it.
	ResultMetadata map[string]any `json:"result_metadata,omitempty"`

	Position *Position `json:"position,omitempty"`
}

// ConfigValue returns the named config field, or nil when absent.
func (n *PipelineNode) ConfigValue(field string) any {
	if n.Config == nil {
		return nil
	}
	return n.Config[field]
}

// Edge is a directed dependency: Target consumes an output of Source.
// SourceHandle/TargetHandle name the ports the canvas wired; identity for
// deduplication purposes is the (Source, Target, TargetHandle) tuple.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Pipeline is a named, versioned graph document.
type Pipeline struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Nodes     []*PipelineNode `json:"nodes"`
	Edges     []Edge          `json:"edges"`
	Status    PipelineStatus  `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewPipeline returns an empty draft pipeline with a fresh id.
func NewPipeline(name string) *Pipeline {
	now := time.Now().UTC()
	return &Pipeline{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    PipelineDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Node returns the node with the given id, or nil.
func (p *Pipeline) Node(id string) *PipelineNode {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// IncomingEdge returns the edge feeding the given input handle of the target
// node. An edge that names the handle explicitly wins; otherwise the first
// incoming edge with no handle annotation is used.
func (p *Pipeline) IncomingEdge(targetID, handleID string) (Edge, bool) {
	for _, e := range p.Edges {
		if e.Target == targetID && e.TargetHandle == handleID {
			return e, true
		}
	}
	for _, e := range p.Edges {
		if e.Target == targetID && e.TargetHandle == "" {
			return e, true
		}
	}
	return Edge{}, false
}

// Validate checks the document's structural invariants: every edge endpoint
// must reference an existing node.
func (p *Pipeline) Validate() error {
	ids := make(map[string]struct{}, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ID == "" {
			return fmt.Errorf("pipeline %q: node with empty id", p.ID)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("pipeline %q: duplicate node id %q", p.ID, n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, e := range p.Edges {
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("pipeline %q: edge references unknown source node %q", p.ID, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("pipeline %q: edge references unknown target node %q", p.ID, e.Target)
		}
	}
	return nil
}

// Normalize deduplicates parallel edges in place, keeping the first
// occurrence of each (source, target, targetHandle) tuple. Edge order is
// otherwise preserved.
func (p *Pipeline) Normalize() {
	seen := make(map[Edge]struct{}, len(p.Edges))
	kept := p.Edges[:0]
	for _, e := range p.Edges {
		key := Edge{Source: e.Source, Target: e.Target, TargetHandle: e.TargetHandle}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, e)
	}
	p.Edges = kept
}

// Touch bumps the document's UpdatedAt timestamp.
func (p *Pipeline) Touch() {
	p.UpdatedAt = time.Now().UTC()
}
