package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/pipecanvas/internal/ctxlog"
	"github.com/vk/pipecanvas/internal/model"
)

const (
	writeWait = 10 * time.Second

	// clientBuffer bounds each client's send queue; a client that cannot
	// keep up is dropped rather than stalling the run loop.
	clientBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The canvas may be served from a different origin than the engine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans engine transitions out to connected WebSocket clients.
type Hub struct {
	ctx context.Context

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub. The context is used for logging only.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		ctx:     ctx,
		clients: make(map[*client]struct{}),
	}
}

// ServeWS upgrades an HTTP request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(h.ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed.", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Debug("Event stream client connected.", "remote_addr", r.RemoteAddr)

	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client's send queue onto the socket.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.drop(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump exists to notice disconnects; inbound messages are ignored.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		ctxlog.FromContext(h.ctx).Error("Failed to encode event.", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client: disconnect rather than block the engine.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// NodeTransition implements Emitter.
func (h *Hub) NodeTransition(pipelineID, nodeID string, status model.NodeStatus, errMsg string) {
	h.broadcast(Event{
		Kind:       "node",
		PipelineID: pipelineID,
		NodeID:     nodeID,
		Status:     string(status),
		Error:      errMsg,
		Timestamp:  time.Now().UTC(),
	})
}

// SessionTransition implements Emitter.
func (h *Hub) SessionTransition(session *model.ExecutionSession) {
	h.broadcast(Event{
		Kind:       "session",
		PipelineID: session.PipelineID,
		SessionID:  session.ID,
		Status:     string(session.Status),
		Timestamp:  time.Now().UTC(),
	})
}
