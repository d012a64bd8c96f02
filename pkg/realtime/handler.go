package realtime

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// TaskSource lists the current tasks. *workqueue.Queue satisfies it.
type TaskSource interface {
	GetTasks() []workqueue.TaskSnapshot
}

// TasksHandler serves task snapshots over HTTP and websocket.
type TasksHandler struct {
	tasks    TaskSource
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewTasksHandler creates a tasks handler. checkOrigin may be nil to apply
// gorilla's same-origin check.
func NewTasksHandler(tasks TaskSource, hub *Hub, checkOrigin func(*http.Request) bool, logger *zap.Logger) *TasksHandler {
	return &TasksHandler{
		tasks: tasks,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.Named("tasks-handler"),
	}
}

// RegisterRoutes registers the tasks handler's routes on the given mux.
// The websocket route authenticates without a database scope so a long-lived
// connection does not pin a pool connection.
func (h *TasksHandler) RegisterRoutes(mux *http.ServeMux, g handlers.Guards) {
	mux.HandleFunc("GET /api/tasks", g.Auth.RequireAuth(h.List))
	mux.HandleFunc("GET /api/tasks/ws", g.Auth.RequireAuth(h.Stream))
}

// List handles GET /api/tasks
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, viewAll := viewer(r)
	tasks := visibleTasks(h.tasks.GetTasks(), ownerID, viewAll)
	if err := handlers.WriteJSON(w, http.StatusOK, handlers.ApiResponse{
		Success: true,
		Data:    handlers.ListResponse{Items: tasks, Total: len(tasks)},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stream handles GET /api/tasks/ws
// The current snapshot is sent on connect, then every queue change.
func (h *TasksHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ownerID, viewAll := viewer(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		ownerID: ownerID,
		viewAll: viewAll,
	}

	initial, err := encode(visibleTasks(h.tasks.GetTasks(), ownerID, viewAll))
	if err != nil {
		h.logger.Error("Failed to encode task snapshot", zap.Error(err))
		conn.Close()
		return
	}
	c.send <- initial

	h.hub.register(c)
	go c.writePump()
	go c.readPump()
}

func viewer(r *http.Request) (string, bool) {
	ownerID := ""
	if id, ok := auth.GetUserIDFromContext(r.Context()); ok {
		ownerID = id.String()
	}
	return ownerID, auth.CanViewAll(r.Context())
}
