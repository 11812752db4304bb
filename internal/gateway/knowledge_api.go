package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pagebot-ai/pagebot/internal/knowledge"
)

// knowledgeHandler serves the dashboard's knowledge CRUD endpoints.
type knowledgeHandler struct {
	store *knowledge.Store
	token string
}

func newKnowledgeHandler(store *knowledge.Store, token string) *knowledgeHandler {
	return &knowledgeHandler{store: store, token: token}
}

func (h *knowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/knowledge", h.auth(h.handleList))
	mux.HandleFunc("POST /api/knowledge", h.auth(h.handleUpsert))
	mux.HandleFunc("DELETE /api/knowledge/{id}", h.auth(h.handleDelete))
}

func (h *knowledgeHandler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			if extractBearerToken(r) != h.token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

type knowledgeEntryPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (h *knowledgeHandler) handleList(w http.ResponseWriter, r *http.Request) {
	entries := h.store.All()
	out := make([]knowledgeEntryPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, knowledgeEntryPayload{ID: e.ID, Text: e.Text})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// handleUpsert creates a new entry (no id given) or replaces an existing
// one's text. Entry text survives locally even when the backend write
// fails; that case is reported as 502 so the dashboard can surface it.
func (h *knowledgeHandler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var p knowledgeEntryPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	id := p.ID
	if id == "" {
		id = knowledge.GenerateID()
	}

	if err := h.store.Set(r.Context(), id, p.Text); err != nil {
		if errors.Is(err, knowledge.ErrEmptyText) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text must not be empty"})
			return
		}
		slog.Error("knowledge.api_save", "id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"id":        id,
			"persisted": false,
			"error":     "entry kept in memory, backend write failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "persisted": true})
}

func (h *knowledgeHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		slog.Error("knowledge.api_delete", "id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "entry removed from memory, backend delete failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
