package handler

import (
	"net/http"
)

// ConnChecker reports whether an optional dependency is connected.
type ConnChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	nats     ConnChecker
	demoMode bool
	contacts func() int
}

// NewHealthHandler creates a new health handler. nats may be nil when event
// forwarding is disabled.
func NewHealthHandler(nats ConnChecker, demoMode bool, contacts func() int) *HealthHandler {
	return &HealthHandler{
		nats:     nats,
		demoMode: demoMode,
		contacts: contacts,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.nats != nil && !h.nats.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	resp := map[string]any{
		"status":    "ready",
		"demo_mode": h.demoMode,
	}
	if h.contacts != nil {
		resp["contacts"] = h.contacts()
	}
	writeJSON(w, http.StatusOK, resp)
}
