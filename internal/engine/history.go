package engine

import (
	"sync"

	"github.com/vk/pipecanvas/internal/model"
)

// historyCap bounds the retained session history.
const historyCap = 50

// History is a bounded, most-recent-first record of execution sessions,
// kept for audit and debugging after runs end. It is in-memory only.
type History struct {
	mu       sync.RWMutex
	capacity int
	sessions []*model.ExecutionSession
}

// NewHistory creates a History bounded to the given capacity.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Add prepends a session, evicting the oldest once over capacity.
func (h *History) Add(session *model.ExecutionSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append([]*model.ExecutionSession{session}, h.sessions...)
	if len(h.sessions) > h.capacity {
		h.sessions = h.sessions[:h.capacity]
	}
}

// Sessions returns the retained sessions, newest first.
func (h *History) Sessions() []*model.ExecutionSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*model.ExecutionSession, len(h.sessions))
	copy(out, h.sessions)
	return out
}

// Latest returns the most recent session, or nil.
func (h *History) Latest() *model.ExecutionSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.sessions) == 0 {
		return nil
	}
	return h.sessions[0]
}
