package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// EventsHandler replays the durable proposal stream.
type EventsHandler struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(bus domain.SignalBus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{bus: bus, logger: logger}
}

type streamEvent struct {
	ID       string          `json:"id"`
	Proposal json.RawMessage `json:"proposal"`
}

// ListEvents returns proposals appended after the given stream ID.
// GET /api/events?after=<id>&count=100
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	count := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && v > 0 && v <= 1000 {
		count = v
	}

	msgs, err := h.bus.StreamRead(r.Context(), domain.StreamProposals, after, count)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read proposal stream failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	events := make([]streamEvent, 0, len(msgs))
	lastID := after
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			continue
		}
		events = append(events, streamEvent{ID: m.ID, Proposal: m.Payload})
		lastID = m.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "last_id": lastID})
}
