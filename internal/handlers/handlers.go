// Package handlers exposes the ingestion pipeline over a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/felo/mail-ingest/internal/config"
	"github.com/felo/mail-ingest/internal/pipeline"
	"github.com/felo/mail-ingest/internal/store"
)

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	pipeline *pipeline.Pipeline
	store    *store.Store
	cfg      *config.Config
	log      *slog.Logger
}

// New creates a Handlers instance. A nil logger falls back to slog.Default.
func New(pl *pipeline.Pipeline, st *store.Store, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{pipeline: pl, store: st, cfg: cfg, log: logger}
}

// Ingest accepts raw RFC 5322 bytes in the request body and responds with
// the parsed record. Malformed mail is never an error response: the fallback
// path guarantees a well-formed record, so this returns 200 with
// recovered=true instead.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	maxSize := h.cfg.Ingest.MaxMessageSize
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(raw) == 0 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	}
	if int64(len(raw)) > maxSize {
		http.Error(w, "message exceeds size limit", http.StatusRequestEntityTooLarge)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), raw)
	if err != nil {
		h.log.Error("ingest failed", "error", err)
		http.Error(w, "failed to ingest message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetEmail returns one stored record by its (path-escaped) message id.
func (h *Handlers) GetEmail(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if unescaped, err := url.PathUnescape(messageID); err == nil {
		messageID = unescaped
	}

	email, err := h.store.GetEmail(r.Context(), messageID)
	if err != nil {
		h.log.Error("failed to load email", "message_id", messageID, "error", err)
		http.Error(w, "failed to load email", http.StatusInternalServerError)
		return
	}
	if email == nil {
		http.Error(w, "email not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, email)
}

// ListEmails returns the most recently ingested records.
func (h *Handlers) ListEmails(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	emails, err := h.store.ListEmails(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list emails", "error", err)
		http.Error(w, "failed to list emails", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"emails": emails,
		"count":  len(emails),
	})
}

// Health is the liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}
