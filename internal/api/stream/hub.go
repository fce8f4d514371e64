package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketscanner/internal/coordinator"
	"marketscanner/internal/metrics"
	"marketscanner/pkg/logger"
)

const (
	EventWorkflowCompleted = "workflow.completed"

	writeWait  = 5 * time.Second
	bufferSize = 256
)

// Event is one websocket frame
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type subscriber struct {
	// workflow filters events; empty receives everything
	workflow string
}

type queued struct {
	workflow string
	event    Event
}

// Hub fans finished workflow results out to websocket subscribers
type Hub struct {
	upgrader  websocket.Upgrader
	broadcast chan queued
	log       *logger.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*subscriber
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeWait,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		broadcast: make(chan queued, bufferSize),
		log:       log.With("component", "stream_hub"),
		clients:   make(map[*websocket.Conn]*subscriber),
	}
}

var _ coordinator.Broadcaster = (*Hub)(nil)

// Broadcast queues a result without blocking; a full queue drops it
func (h *Hub) Broadcast(result *coordinator.WorkflowResult) {
	select {
	case h.broadcast <- queued{workflow: result.Workflow, event: Event{Type: EventWorkflowCompleted, Payload: result}}:
	default:
		h.log.Warnw("Stream queue full, dropping result", "workflow", result.Workflow, "id", result.ID)
	}
}

// Run delivers queued events until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case q := <-h.broadcast:
			data, err := json.Marshal(q.event)
			if err != nil {
				h.log.Errorw("Failed to encode stream event", "type", q.event.Type, "error", err)
				continue
			}
			h.deliver(q.workflow, data)
		}
	}
}

// deliver writes to every matching client and drops the ones that fail.
// Only Run calls it, so writes never race.
func (h *Hub) deliver(workflow string, data []byte) {
	var failed []*websocket.Conn

	h.mu.RLock()
	for conn, sub := range h.clients {
		if sub.workflow != "" && sub.workflow != workflow {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range failed {
		h.unregister(conn)
	}
}

// ServeHTTP upgrades the request and streams results until the client
// goes away. ?workflow=<name> restricts the stream to one workflow.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("Websocket upgrade failed", "error", err)
		return
	}

	// the hijacked connection keeps the HTTP server's deadlines
	_ = conn.SetReadDeadline(time.Time{})

	h.register(conn, &subscriber{workflow: r.URL.Query().Get("workflow")})
	defer h.unregister(conn)

	// reads only detect the close; clients never send anything meaningful
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(conn *websocket.Conn, sub *subscriber) {
	h.mu.Lock()
	h.clients[conn] = sub
	n := len(h.clients)
	h.mu.Unlock()

	metrics.StreamSubscribers.Set(float64(n))
	h.log.Debugw("Stream subscriber connected", "workflow", sub.workflow, "subscribers", n)
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		_ = conn.Close()
		metrics.StreamSubscribers.Set(float64(n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]*subscriber)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	metrics.StreamSubscribers.Set(0)
}
