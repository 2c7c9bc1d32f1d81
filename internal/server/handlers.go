package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/surroundvibe/relay/internal/session"
)

// wsHandler upgrades HTTP requests to WebSocket connections and attaches
// them to the hub, which owns them from that point on.
type wsHandler struct {
	hub      *session.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func newWSHandler(hub *session.Hub, origins *OriginChecker, log *slog.Logger) *wsHandler {
	return &wsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		log: log,
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	h.hub.Connect(conn, r.RemoteAddr)
}

// statusHandler answers the keep-alive probe at the root route.
func statusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "SurroundVibe backend is running")
}
