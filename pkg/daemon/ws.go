package daemon

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// connQueueSize bounds how many undelivered events a slow WS subscriber
// may accumulate before it is dropped (spec.md §4.7 "a bounded
// per-connection queue is used to drop slow consumers without blocking
// the worker").
const connQueueSize = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsConn struct {
	id     string
	conn   *websocket.Conn
	outbox chan NodeEvent
}

// Hub is the broadcast bus behind /ws: every NodeEvent the worker
// commits is fanned out to every connected subscriber.
type Hub struct {
	logger *log.Logger

	mu    sync.RWMutex
	conns map[string]*wsConn
}

// NewHub returns an empty Hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{logger: logger, conns: make(map[string]*wsConn)}
}

// Broadcast fans ev out to every connected subscriber, dropping (and
// closing) any connection whose outbox is already full rather than
// blocking the caller — which is always the worker goroutine.
func (h *Hub) Broadcast(ev NodeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		select {
		case c.outbox <- ev:
		default:
			h.logger.Printf("ws: dropping slow subscriber %s", c.id)
			go h.remove(c.id)
		}
	}
}

// ServeWS upgrades r to a WebSocket connection and registers it with the
// hub until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &wsConn{id: uuid.NewString(), conn: raw, outbox: make(chan NodeEvent, connQueueSize)}
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards inbound traffic but is required so the client's
// close frame and pings are acknowledged; it exits (and triggers
// cleanup) when the connection drops.
func (h *Hub) readPump(c *wsConn) {
	defer h.remove(c.id)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsConn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-c.outbox:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// ConnectionCount reports the number of live WS subscribers, surfaced on
// GET /status.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every subscriber, used during graceful shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		close(c.outbox)
		c.conn.Close()
		delete(h.conns, id)
	}
}
