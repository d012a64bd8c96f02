// Package realtime streams work queue snapshots to browser clients over websockets.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// TasksMessage is the payload pushed to subscribers on every queue change.
type TasksMessage struct {
	Type  string                   `json:"type"`
	Tasks []workqueue.TaskSnapshot `json:"tasks"`
}

// Hub fans queue snapshots out to connected clients.
// Publish never blocks: a client whose buffer is full misses that update.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	ownerID string
	viewAll bool
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.Named("realtime"),
	}
}

// Publish sends the snapshot to every client, filtered to what each client may see.
// It is registered as a queue update callback and runs with the queue lock held.
func (h *Hub) Publish(snapshots []workqueue.TaskSnapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		payload, err := encode(visibleTasks(snapshots, c.ownerID, c.viewAll))
		if err != nil {
			h.logger.Error("Failed to encode task snapshot", zap.Error(err))
			return
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Debug("Dropping task update for slow client", zap.String("owner_id", c.ownerID))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("Client registered", zap.String("owner_id", c.ownerID))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("Client unregistered", zap.String("owner_id", c.ownerID))
}

// visibleTasks keeps the tasks owned by ownerID unless viewAll is set.
func visibleTasks(snapshots []workqueue.TaskSnapshot, ownerID string, viewAll bool) []workqueue.TaskSnapshot {
	if viewAll {
		return snapshots
	}
	out := make([]workqueue.TaskSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Resource.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out
}

func encode(tasks []workqueue.TaskSnapshot) ([]byte, error) {
	if tasks == nil {
		tasks = []workqueue.TaskSnapshot{}
	}
	return json.Marshal(TasksMessage{Type: "tasks", Tasks: tasks})
}

// readPump discards client messages and keeps the read deadline fresh on pongs.
// It returns when the connection closes.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("Websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

// writePump writes queued payloads and pings until send is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
