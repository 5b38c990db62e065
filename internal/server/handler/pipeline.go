package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// TriggerHandler asks a running monitor loop for an immediate cycle.
type TriggerHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{}
}

// NewTriggerHandler creates a TriggerHandler. A nil channel means no loop is
// running in this process and requests are answered with 409.
func NewTriggerHandler(triggerCh chan<- struct{}, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{triggerCh: triggerCh, logger: logger}
}

// Trigger enqueues one monitor cycle with a non-blocking send.
// POST /api/monitor/trigger
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.triggerCh == nil {
		writeError(w, http.StatusConflict, "monitor loop is not running in this process")
		return
	}
	h.logger.InfoContext(r.Context(), "handler: monitor trigger requested")
	select {
	case h.triggerCh <- struct{}{}:
	default:
		// already triggered and not yet consumed
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      "monitor cycle enqueued",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
