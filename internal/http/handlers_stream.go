package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const sseKeepAlive = 25 * time.Second

func (s *Server) handleTransactionStream(w http.ResponseWriter, r *http.Request, userID int64) {
	updates, cancel := s.ledger.WatchTransactions(r.Context(), userID)
	defer cancel()
	streamSnapshots(w, r, "transactions", updates)
}

func (s *Server) handleCategoryStream(w http.ResponseWriter, r *http.Request, userID int64) {
	updates, cancel := s.ledger.WatchCategories(r.Context(), userID)
	defer cancel()
	streamSnapshots(w, r, "categories", updates)
}

// streamSnapshots writes every value received on updates as a Server-Sent
// Event until the client goes away, the feed closes or the server shuts down.
func streamSnapshots[T any](w http.ResponseWriter, r *http.Request, event string, updates <-chan T) {
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
