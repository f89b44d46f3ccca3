package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StreamExtractionProgress handles GET /api/v1/extraction-jobs/{jobID}/stream.
// The stream is a read-only observer over the shared job record: it polls a
// snapshot, emits an event whenever the snapshot changed, and closes after
// the terminal event. Disconnecting never touches the job itself.
func (s *Server) StreamExtractionProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	j, err := s.extraction.GetJob(r.Context(), jobID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	last := progressEventFromJob(j)
	writeSSE(w, eventName(last), last)
	flusher.Flush()
	if j.Status.Terminal() {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		j, err := s.extraction.GetJob(r.Context(), jobID)
		if err != nil {
			s.logger.Warn("poll extraction job", zap.String("job_id", jobID), zap.Error(err))
			return
		}

		event := progressEventFromJob(j)
		if event == last {
			continue
		}
		last = event

		writeSSE(w, eventName(event), event)
		flusher.Flush()

		if j.Status.Terminal() {
			return
		}
	}
}

func eventName(e progressEvent) string {
	if e.Status.Terminal() {
		return "done"
	}
	return "progress"
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
