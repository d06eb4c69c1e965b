package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/stylemirror/internal/middleware"
	natsclient "github.com/capitalize-ai/stylemirror/internal/nats"
	"github.com/capitalize-ai/stylemirror/internal/service"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
)

// HistoryReader reads a contact's past events.
type HistoryReader interface {
	History(ctx context.Context, contactID string, afterSequence uint64, limit int) ([]natsclient.StoredEvent, bool, error)
}

// ContactHandler handles contact endpoints.
type ContactHandler struct {
	orchestrator *service.Orchestrator
	history      HistoryReader
	logger       *logger.Logger
}

// NewContactHandler creates a new contact handler. history may be nil.
func NewContactHandler(o *service.Orchestrator, history HistoryReader, log *logger.Logger) *ContactHandler {
	return &ContactHandler{
		orchestrator: o,
		history:      history,
		logger:       log,
	}
}

// List handles GET /api/v1/contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.List())
}

// Get handles GET /api/v1/contacts/:id
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	view, err := h.orchestrator.View(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Select handles POST /api/v1/contacts/:id/select
func (h *ContactHandler) Select(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	if err := h.orchestrator.Select(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	view, err := h.orchestrator.View(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Analyze handles POST /api/v1/contacts/:id/analyze
func (h *ContactHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	started, err := h.orchestrator.StartAnalyze(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !started {
		writeError(w, http.StatusConflict, "analysis already in progress")
		return
	}

	view, err := h.orchestrator.View(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

// History handles GET /api/v1/contacts/:id/history
func (h *ContactHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "event history requires NATS")
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	if _, err := h.orchestrator.View(id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	afterSequence := uint64(0)
	limit := 50

	if seq := r.URL.Query().Get("after_sequence"); seq != "" {
		if parsed, err := strconv.ParseUint(seq, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	events, hasMore, err := h.history.History(r.Context(), id, afterSequence, limit)
	if err != nil {
		h.logger.Error("failed to read history", zap.String("contact", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if events == nil {
		events = []natsclient.StoredEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events":   events,
		"has_more": hasMore,
	})
}

func contactID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateContactID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func (h *ContactHandler) writeServiceError(w http.ResponseWriter, err error) {
	writeServiceError(h.logger, w, err)
}

// writeServiceError maps orchestrator errors to HTTP statuses.
func writeServiceError(log *logger.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrContactNotFound):
		writeError(w, http.StatusNotFound, "contact not found")
	case errors.Is(err, service.ErrNoActiveContact):
		writeError(w, http.StatusConflict, "no active contact")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
