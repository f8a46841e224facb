package server

import (
	"fmt"
	"net/http"
)

// EventsHandler streams the change feed.
type EventsHandler struct {
	Notifier *Notifier
}

// Watch handles GET /api/gear-events. Each changed event ID is written as
// one SSE data line. The stream stays open until the client disconnects.
func (h *EventsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, cancel := h.Notifier.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case eventID := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", eventID)
			flusher.Flush()
		}
	}
}
