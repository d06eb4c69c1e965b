package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
	"github.com/capitalize-ai/stylemirror/pkg/metrics"
)

// EventSource is the bus side of the SSE stream.
type EventSource interface {
	Subscribe(prefix string, bufSize int) (<-chan model.ContactEvent, func())
}

// Snapshotter returns the current contact list.
type Snapshotter interface {
	List() model.ListContactsResponse
}

const (
	eventBuffer       = 64
	heartbeatInterval = 30 * time.Second
)

// EventHandler handles the SSE state-change stream.
type EventHandler struct {
	source    EventSource
	snapshot  Snapshotter
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewEventHandler creates a new event handler.
func NewEventHandler(source EventSource, snapshot Snapshotter, log *logger.Logger) *EventHandler {
	return &EventHandler{
		source:    source,
		snapshot:  snapshot,
		logger:    log,
		heartbeat: heartbeatInterval,
	}
}

// Stream handles GET /api/v1/events
// Supports ?type=<prefix> (e.g. "contact.draft_") and ?contact_id=<id> filters.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prefix := model.EventNamespace
	if t := r.URL.Query().Get("type"); t != "" {
		if !strings.HasPrefix(t, model.EventNamespace) {
			writeError(w, http.StatusBadRequest, "type must start with "+model.EventNamespace)
			return
		}
		prefix = t
	}
	contactFilter := r.URL.Query().Get("contact_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	events, unsubscribe := h.source.Subscribe(prefix, eventBuffer)
	defer unsubscribe()

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "snapshot", h.snapshot.List())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected")
			return

		case evt, ok := <-events:
			if !ok {
				sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
					Code:    "stream_closed",
					Message: "event stream closed by server",
				})
				return
			}
			if contactFilter != "" && evt.ContactID != contactFilter {
				continue
			}
			if err := sendSSEEvent(w, flusher, string(evt.Type), evt); err != nil {
				h.logger.Warn("failed to write SSE event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
