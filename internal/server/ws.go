package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LandmarksHandler streams pipeline snapshots (hands, mode, last action) to
// websocket clients as JSON text messages.
type LandmarksHandler struct {
	pipeline Pipeline
	logger   *zap.Logger
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	quit     chan struct{}
	once     sync.Once
}

// NewLandmarksHandler creates a LandmarksHandler fed by p.
func NewLandmarksHandler(p Pipeline, logger *zap.Logger) *LandmarksHandler {
	return &LandmarksHandler{
		pipeline: p,
		logger:   logger,
		clients:  make(map[*websocket.Conn]bool),
		quit:     make(chan struct{}),
	}
}

// Close ends every open stream.
func (h *LandmarksHandler) Close() {
	h.once.Do(func() { close(h.quit) })
}

// Clients returns the number of connected clients.
func (h *LandmarksHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and sends the current snapshot followed by
// every new one until the client goes away.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	snaps, cancel := h.pipeline.Subscribe()
	defer cancel()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// The read loop only notices the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn, h.pipeline.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-gone:
			return
		case <-h.quit:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if err := h.send(conn, snap); err != nil {
				h.logger.Debug("websocket write", zap.Error(err))
				return
			}
		}
	}
}

func (h *LandmarksHandler) send(conn *websocket.Conn, snap app.Snapshot) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}
