package messenger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/pagebot-ai/pagebot/internal/bus"
	"github.com/pagebot-ai/pagebot/internal/relay"
)

// eventPayload is the webhook POST body shape delivered by the platform.
type eventPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []messagingEvent `json:"messaging"`
	} `json:"entry"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// Webhook handles the platform's verification handshake and event
// delivery. Each request is processed independently; there is no state
// carried across requests.
type Webhook struct {
	verifyToken  string
	engine       *relay.Engine
	sender       relay.Sender
	allowRequest func(key string) bool
}

// SetRateLimiter installs a per-client admission check for event POSTs.
func (h *Webhook) SetRateLimiter(allow func(key string) bool) {
	h.allowRequest = allow
}

// NewWebhook wires the webhook onto the relay engine and the channel's
// sender.
func NewWebhook(verifyToken string, engine *relay.Engine, sender relay.Sender) *Webhook {
	return &Webhook{verifyToken: verifyToken, engine: engine, sender: sender}
}

// RegisterRoutes mounts the webhook endpoints.
func (h *Webhook) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook", h.HandleVerify)
	mux.HandleFunc("POST /webhook", h.HandleEvents)
}

// HandleVerify answers the subscription handshake. The challenge is echoed
// only when the mode is "subscribe" and the token matches a non-empty
// configured verify token; verification fails closed when unconfigured.
func (h *Webhook) HandleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		slog.Info("webhook.verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	slog.Error("webhook.verify_failed", "mode", mode, "token_configured", h.verifyToken != "")
	w.WriteHeader(http.StatusForbidden)
}

// HandleEvents acknowledges event delivery immediately and fans each entry
// out as a detached flow. The platform-facing response never waits on the
// pipeline.
func (h *Webhook) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.allowRequest != nil {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !h.allowRequest(host) {
			slog.Warn("webhook.rate_limited", "remote", host)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
	}

	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("webhook.bad_payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if payload.Object != "page" {
		slog.Debug("webhook.unexpected_object", "object", payload.Object)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))

	requestID := uuid.NewString()

	// Detached flows outlive this request; strip the request deadline but
	// keep context values (trace propagation).
	ctx := context.WithoutCancel(r.Context())

	for i, entry := range payload.Entry {
		if len(entry.Messaging) == 0 {
			slog.Warn("webhook.entry_skipped", "request_id", requestID, "entry", i, "reason", "no messaging events")
			continue
		}
		ev := entry.Messaging[0]
		if ev.Sender.ID == "" || ev.Message == nil || ev.Message.Text == "" {
			slog.Warn("webhook.entry_skipped", "request_id", requestID, "entry", i, "reason", "missing sender or text")
			continue
		}

		h.engine.ProcessDetached(ctx, bus.InboundEvent{
			Channel:   "messenger",
			SenderID:  ev.Sender.ID,
			Text:      ev.Message.Text,
			RequestID: requestID,
		}, h.sender)
	}
}
