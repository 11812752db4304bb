package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pagebot-ai/pagebot/internal/logbuf"
)

// logsHandler serves the dashboard log viewer: a snapshot endpoint and a
// WebSocket stream of records as they arrive.
type logsHandler struct {
	ring     *logbuf.Ring
	token    string
	upgrader *websocket.Upgrader
}

func newLogsHandler(ring *logbuf.Ring, token string, upgrader *websocket.Upgrader) *logsHandler {
	return &logsHandler{ring: ring, token: token, upgrader: upgrader}
}

func (h *logsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/logs", h.auth(h.handleSnapshot))
	mux.HandleFunc("GET /ws/logs", h.auth(h.handleStream))
}

func (h *logsHandler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			// Browsers cannot set headers on WebSocket dials, so the
			// stream endpoint also accepts ?token=.
			if extractBearerToken(r) != h.token && r.URL.Query().Get("token") != h.token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

// handleSnapshot returns the buffered records, newest first.
func (h *logsHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"logs": h.ring.Snapshot()})
}

// handleStream upgrades to WebSocket and forwards new records until the
// client goes away.
func (h *logsHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("logs.ws_upgrade", "error", err)
		return
	}
	defer conn.Close()

	entries, cancel := h.ring.Subscribe()
	defer cancel()

	// Reader goroutine detects client close; we never expect inbound data.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
