package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pagebot-ai/pagebot/internal/config"
	"github.com/pagebot-ai/pagebot/internal/knowledge"
	"github.com/pagebot-ai/pagebot/internal/logbuf"
)

// Registrar mounts a set of routes onto the gateway mux. Channel webhooks
// implement this so they share the gateway listener.
type Registrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Server is the HTTP front of the bot: the channel webhook endpoints plus
// the dashboard API (knowledge CRUD, log viewer, health).
type Server struct {
	cfg       *config.Config
	knowledge *knowledge.Store
	ring      *logbuf.Ring

	registrars  []Registrar
	upgrader    websocket.Upgrader
	rateLimiter *RateLimiter
	started     time.Time

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the gateway. Registrars get their routes mounted on
// the shared mux at build time.
func NewServer(cfg *config.Config, ks *knowledge.Store, ring *logbuf.Ring, registrars ...Registrar) *Server {
	s := &Server{
		cfg:        cfg,
		knowledge:  ks,
		ring:       ring,
		registrars: registrars,
		started:    time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Dashboard and webhook clients are not browsers with credentials;
		// the log stream carries no secrets beyond what /api/logs serves.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	s.rateLimiter = NewRateLimiter(cfg.Gateway.RateLimitRPS, 5)
	return s
}

// RateLimiter exposes the per-client limiter for webhook handlers.
func (s *Server) RateLimiter() *RateLimiter { return s.rateLimiter }

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	kh := newKnowledgeHandler(s.knowledge, s.cfg.Gateway.Token)
	kh.RegisterRoutes(mux)

	lh := newLogsHandler(s.ring, s.cfg.Gateway.Token, &s.upgrader)
	lh.RegisterRoutes(mux)

	for _, r := range s.registrars {
		r.RegisterRoutes(mux)
	}

	s.mux = mux
	return mux
}

// Start listens until ctx is cancelled, then drains with a short timeout.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("gateway.starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"knowledge_entries": s.knowledge.Len(),
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
