package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/datapull/fetchtozip/internal/logging"
	"github.com/datapull/fetchtozip/internal/task"
)

// handleEvents streams task status changes via Server-Sent Events.
// Each subscriber gets an independent stream seeded with the current state;
// for a terminal task the stream delivers the terminal event once and closes.
// Supports resumption via the lastEventId query parameter: the event id is
// the progress value, so a reconnecting client skips already-seen events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	ch, unsubscribe, err := s.orchestrator.Subscribe(id)
	if err != nil {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	defer unsubscribe()

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	logger := logging.FromContext(r.Context()).With("task_id", id)
	logger.Debug("status stream opened")

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Topic closed, the task reached a terminal state.
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				logger.Debug("status stream completed")
				return
			}

			// Skip already-delivered progress after a reconnect. Terminal
			// events always go through so the client sees the final state
			// even when its progress matches what it already saw.
			if lastEventIDStr != "" && ev.Progress <= lastEventID && !task.State(ev.State).Terminal() {
				continue
			}

			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "id: %d\nevent: status\ndata: %s\n\n", ev.Progress, data)
			flusher.Flush()

		case <-r.Context().Done():
			logger.Debug("status stream client disconnected")
			return
		}
	}
}
