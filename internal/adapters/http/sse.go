package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// streamFrame is the wire form of one stream event: a JSON object per line.
// data holds a string for status/chunk/error frames and the full answer
// object for the done frame.
type streamFrame struct {
	Type domain.StreamEventType `json:"type"`
	Data any                    `json:"data"`
}

// writeEventStream drains the event channel onto the response as
// newline-terminated JSON frames, flushing after each one. It returns the
// final answer when the stream ended with a done event.
func writeEventStream(w http.ResponseWriter, events <-chan domain.StreamEvent) (*domain.Answer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var answer *domain.Answer
	for event := range events {
		frame := streamFrame{Type: event.Type}
		switch event.Type {
		case domain.StreamEventStatus:
			frame.Data = event.Status
		case domain.StreamEventChunk:
			frame.Data = event.Delta
		case domain.StreamEventDone:
			frame.Data = event.Answer
			answer = event.Answer
		case domain.StreamEventError:
			frame.Data = event.Err.Error()
		}

		payload, err := json.Marshal(frame)
		if err != nil {
			return answer, fmt.Errorf("marshal stream frame: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", payload); err != nil {
			return answer, fmt.Errorf("write stream frame: %w", err)
		}
		flusher.Flush()
	}
	return answer, nil
}
