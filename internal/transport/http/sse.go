package http

import (
	"fmt"
	"net/http"
	"time"
)

const keepaliveInterval = 30 * time.Second

// streamNotifications pushes live notifications to the client as
// server-sent events. The subscription is cancelled when the client
// disconnects; a periodic comment line keeps idle connections open
// through proxies.
func (h *handlers) streamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := h.deps.Notifications.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case notification, open := <-ch:
			if !open {
				return
			}

			payload, err := json.Marshal(notification)
			if err != nil {
				h.deps.Logger.Error("encoding notification failed", "error", err)
				continue
			}

			if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
