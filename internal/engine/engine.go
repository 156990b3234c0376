// Package engine walks a pipeline in topological order and executes each
// node, tracking per-node and per-session state as it goes. The walk is
// sequential and cooperative: node N never starts before all of N's
// predecessors have reached a terminal status, and a stop request takes
// effect between nodes.
//
// A node's failure is recorded on the node and in the session log; it never
// escapes the run loop. Whether the walk continues past a failure is the
// caller's policy (Options.HaltOnError), not the engine's.
package engine

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/vk/pipecanvas/internal/ctxlog"
	"github.com/vk/pipecanvas/internal/dag"
	"github.com/vk/pipecanvas/internal/events"
	"github.com/vk/pipecanvas/internal/executor"
	"github.com/vk/pipecanvas/internal/model"
	"github.com/vk/pipecanvas/internal/registry"
)

// Options configures a Runner.
type Options struct {
	// HaltOnError stops advancing after the first node failure. The CLI
	// sets it unless -continue-on-error is given.
	HaltOnError bool

	// Emitter receives node/session transitions. Nil means no events.
	Emitter events.Emitter

	// Client handles relative/internal endpoints; HTTP handles absolute
	// external URLs (nil means http.DefaultClient).
	Client executor.APIClient
	HTTP   *http.Client

	// Endpoints overrides api_call endpoints by node type.
	Endpoints map[string]string

	// Transform optionally rewrites envelopes before they are recorded.
	Transform executor.Transform
}

// Runner executes pipelines against one definition registry.
type Runner struct {
	registry *registry.Registry
	opts     Options
	emitter  events.Emitter
	history  *History
	stopped  atomic.Bool
}

// New creates a Runner. HaltOnError defaults are the caller's to set; a nil
// emitter is replaced with the no-op one.
func New(reg *registry.Registry, opts Options) *Runner {
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Runner{
		registry: reg,
		opts:     opts,
		emitter:  emitter,
		history:  NewHistory(historyCap),
	}
}

// History returns the runner's bounded session history.
func (r *Runner) History() *History {
	return r.history
}

// Stop requests cooperative cancellation of the current run. The node in
// flight finishes (or fails); no further node starts.
func (r *Runner) Stop() {
	r.stopped.Store(true)
}

// Run executes the pipeline once, mutating the document in place. It
// returns an error only for pre-run failures (a structurally invalid
// document or a cycle); individual node failures are recorded, not raised.
func (r *Runner) Run(ctx context.Context, p *model.Pipeline) (*model.ExecutionSession, error) {
	logger := ctxlog.FromContext(ctx).With("pipeline", p.ID)

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	order, err := dag.Sort(p.Nodes, p.Edges)
	if err != nil {
		return nil, err
	}
	logger.Debug("Execution order computed.", "nodes", len(order))

	r.stopped.Store(false)
	session := model.NewSession(p.ID)
	r.history.Add(session)

	p.Status = model.PipelineRunning
	p.Touch()
	r.emitter.SessionTransition(session)

	// A fresh run re-arms every node except those already succeeded; the
	// success carry-over is the idempotent re-run contract.
	for _, n := range p.Nodes {
		if n.Status != model.NodeSuccess {
			n.Status = model.NodePending
			n.Error = ""
		}
	}

	execCtx := &executor.Context{
		Pipeline:  p,
		Registry:  r.registry,
		Client:    r.opts.Client,
		HTTP:      r.opts.HTTP,
		SessionID: session.ID,
		Endpoints: r.opts.Endpoints,
		Transform: r.opts.Transform,
	}

	logger.Info("🚀 Starting pipeline run", "session", session.ID)

	anyFailed := false
	interrupted := false
	for _, id := range order {
		if ctx.Err() != nil || r.stopped.Load() {
			interrupted = true
			break
		}

		node := p.Node(id)
		if node.Status == model.NodeSuccess {
			logger.Debug("Skipping node already in success state.", "node", id)
			continue
		}

		failed := r.runNode(ctx, node, session, execCtx)
		p.Touch()
		if failed {
			anyFailed = true
			if r.opts.HaltOnError {
				logger.Warn("Halting run after node failure.", "node", id)
				break
			}
		}
	}

	switch {
	case interrupted:
		// Node statuses are deliberately left as-is on a stop.
		session.Finish(model.SessionStopped)
		logger.Info("⏹️ Run stopped", "session", session.ID)
	case anyFailed:
		session.Finish(model.SessionFailed)
		p.Status = model.PipelineFailed
		logger.Warn("🏁 Run finished with failures", "session", session.ID)
	default:
		session.Finish(model.SessionCompleted)
		p.Status = model.PipelineCompleted
		logger.Info("🏁 Run completed", "session", session.ID)
	}
	p.Touch()
	r.emitter.SessionTransition(session)

	return session, nil
}

// runNode drives one node through running → success|error, recording the
// outcome on the node and in the session log. Returns true on failure.
func (r *Runner) runNode(ctx context.Context, node *model.PipelineNode, session *model.ExecutionSession, execCtx *executor.Context) bool {
	logger := ctxlog.FromContext(ctx).With("node", node.ID, "type", node.Type)

	node.Status = model.NodeRunning
	r.emitter.NodeTransition(execCtx.Pipeline.ID, node.ID, node.Status, "")
	entry := session.Begin(node.ID)

	logger.Info("▶️ Executing node")
	env, err := executor.Execute(ctx, node, execCtx)
	if err != nil {
		node.Status = model.NodeError
		node.Error = err.Error()
		entry.Error = err.Error()
		attachForensics(entry, err)
		entry.Complete(model.NodeError)
		r.emitter.NodeTransition(execCtx.Pipeline.ID, node.ID, node.Status, node.Error)
		logger.Error("❌ Node failed", "error", err)
		return true
	}

	node.Status = model.NodeSuccess
	node.Error = ""
	node.ResultMetadata = env.Data
	entry.Output = env.Data
	entry.Request = env.Request
	entry.Response = env.Response
	entry.Complete(model.NodeSuccess)
	r.emitter.NodeTransition(execCtx.Pipeline.ID, node.ID, node.Status, "")
	logger.Info("✅ Node succeeded", "duration_ms", entry.DurationMS)
	return false
}

// attachForensics copies request/response context off typed transport
// errors so a failed node is as inspectable as a succeeded one.
func attachForensics(entry *model.ExecutionLogEntry, err error) {
	var httpErr *executor.HttpError
	if errors.As(err, &httpErr) {
		entry.Request = httpErr.Request
		entry.Response = httpErr.Response
		return
	}
	var netErr *executor.NetworkError
	if errors.As(err, &netErr) {
		entry.Request = netErr.Request
	}
}
