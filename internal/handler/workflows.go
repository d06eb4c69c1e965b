package handler

import (
	"net/http"
	"strings"

	"github.com/capitalize-ai/stylemirror/internal/middleware"
	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/internal/service"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
)

// WorkflowHandler handles the conversation workflows of the active contact.
type WorkflowHandler struct {
	orchestrator *service.Orchestrator
	logger       *logger.Logger
}

// NewWorkflowHandler creates a new workflow handler.
func NewWorkflowHandler(o *service.Orchestrator, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		orchestrator: o,
		logger:       log,
	}
}

// Send handles POST /api/v1/messages
func (h *WorkflowHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, ok, err := h.orchestrator.Send(r.Context(), req.Text)
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "text cannot be blank")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Incoming handles POST /api/v1/incoming
func (h *WorkflowHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	var req model.IncomingMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, ok, err := h.orchestrator.SimulateIncoming(r.Context(), req.Text)
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "text cannot be blank")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Confirm handles POST /api/v1/incoming/confirm
func (h *WorkflowHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	_, hasPending := h.orchestrator.Pending()

	draft, ok, err := h.orchestrator.ConfirmIncoming(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}
	if !ok {
		if !hasPending {
			writeError(w, http.StatusConflict, "no incoming message awaiting confirmation")
			return
		}
		writeError(w, http.StatusConflict, "a draft is already being generated")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// Dismiss handles POST /api/v1/incoming/dismiss
func (h *WorkflowHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if !h.orchestrator.DismissIncoming(r.Context()) {
		writeError(w, http.StatusConflict, "no incoming message awaiting confirmation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Draft handles POST /api/v1/drafts
func (h *WorkflowHandler) Draft(w http.ResponseWriter, r *http.Request) {
	var req model.DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateText(req.IncomingText); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	draft, ok, err := h.orchestrator.RequestDraft(r.Context(), req.IncomingText)
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}
	if !ok {
		if strings.TrimSpace(req.IncomingText) == "" && !h.orchestrator.Generating() {
			writeError(w, http.StatusBadRequest, "no incoming message to reply to")
			return
		}
		writeError(w, http.StatusConflict, "a draft is already being generated")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// DiscardDraft handles DELETE /api/v1/drafts
func (h *WorkflowHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.orchestrator.DiscardDraft(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}
	if !cleared {
		writeError(w, http.StatusConflict, "no draft to discard")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /api/v1/imports
func (h *WorkflowHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req model.ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateTranscript(req.Transcript); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok, err := h.orchestrator.Import(r.Context(), req.Name, req.Transcript)
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "name and transcript are required")
		return
	}

	view, err := h.orchestrator.View(c.ID)
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/contacts/"+c.ID)
	writeJSON(w, http.StatusCreated, view)
}
