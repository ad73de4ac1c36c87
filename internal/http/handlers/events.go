package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/snapbooth/snapbooth/internal/events"
)

// EventsHandler streams booth events over Server-Sent Events. Kiosk
// frontends use the stream to react to camera state changes and finished
// captures without polling.
type EventsHandler struct {
	bus    *events.Bus
	logger *slog.Logger
}

// NewEventsHandler creates an SSE event stream handler.
func NewEventsHandler(bus *events.Bus, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{bus: bus, logger: logger}
}

// ServeHTTP subscribes the client to the event bus and streams events
// until the client disconnects.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// The server write timeout would cut long-lived streams.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	h.logger.Debug("event stream opened", "remote_addr", r.RemoteAddr)
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("event stream closed", "remote_addr", r.RemoteAddr)
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.JSON()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
