package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

// progressHub fans step progress out to SSE subscribers, keyed by run ID.
type progressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan models.ProgressEvent]struct{}
	done map[string]bool
}

func newProgressHub() *progressHub {
	return &progressHub{
		subs: make(map[string]map[chan models.ProgressEvent]struct{}),
		done: make(map[string]bool),
	}
}

func (h *progressHub) publish(ev models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than stall the run.
		}
	}
}

// closeRun marks the run finished and closes every subscriber channel.
func (h *progressHub) closeRun(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done[runID] = true
	for ch := range h.subs[runID] {
		close(ch)
	}
	delete(h.subs, runID)
}

// subscribe returns a channel of events for the run, or false when the run
// has already finished.
func (h *progressHub) subscribe(runID string) (chan models.ProgressEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done[runID] {
		return nil, false
	}
	ch := make(chan models.ProgressEvent, 32)
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan models.ProgressEvent]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	return ch, true
}

func (h *progressHub) unsubscribe(runID string, ch chan models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[runID][ch]; ok {
		delete(h.subs[runID], ch)
		close(ch)
	}
}

// handleEvents streams step progress as server-sent events until the run
// reaches a terminal state or the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	run, err := s.opts.Store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if run.Status.Terminal() {
		writeEvent(w, models.ProgressEvent{
			RunID:  runID,
			Status: string(run.Status),
		})
		flusher.Flush()
		return
	}

	ch, live := s.hub.subscribe(runID)
	if !live {
		// Finished between the status check and subscribing.
		writeEvent(w, models.ProgressEvent{RunID: runID, Status: "finished"})
		flusher.Flush()
		return
	}
	defer s.hub.unsubscribe(runID, ch)

	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				// Run finished; report the final state if we can.
				if final, err := s.opts.Store.GetRun(r.Context(), runID); err == nil {
					writeEvent(w, models.ProgressEvent{RunID: runID, Status: string(final.Status)})
					flusher.Flush()
				}
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev models.ProgressEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
}
