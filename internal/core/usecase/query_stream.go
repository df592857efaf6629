package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// AnswerStream runs the same retrieval core as Answer but delivers the
// answer incrementally. Event order on the returned channel is strict:
// zero or more status events, then chunk events whose concatenation equals
// the final answer text, then exactly one done or error event. The channel
// closes after the terminal event. Consumer cancellation via ctx stops
// production at the next send.
func (uc *QueryUseCase) AnswerStream(
	ctx context.Context,
	question string,
	scope domain.SearchScope,
	topK int,
) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)
		start := time.Now()

		if !send(ctx, events, domain.StatusEvent("retrieving")) {
			return
		}

		hits, subQueries, err := uc.retrieve(ctx, question, scope, topK)
		if err != nil {
			send(ctx, events, domain.ErrorEvent(err))
			return
		}

		if !send(ctx, events, domain.StatusEvent("generating")) {
			return
		}

		var assembled strings.Builder
		if len(hits) == 0 {
			if !send(ctx, events, domain.ChunkEvent(notFoundAnswer)) {
				return
			}
			assembled.WriteString(notFoundAnswer)
			hits = []domain.RetrievedChunk{}
		} else {
			err := uc.generator.GenerateAnswerStream(ctx, question, hits, func(delta string) error {
				assembled.WriteString(delta)
				if !send(ctx, events, domain.ChunkEvent(delta)) {
					return context.Canceled
				}
				return nil
			})
			if err != nil {
				send(ctx, events, domain.ErrorEvent(fmt.Errorf("generate answer: %w", err)))
				return
			}
			// A generator that streamed nothing still owes a definite answer.
			if assembled.Len() == 0 {
				if !send(ctx, events, domain.ChunkEvent(notFoundAnswer)) {
					return
				}
				assembled.WriteString(notFoundAnswer)
			}
		}

		answer := &domain.Answer{
			Text:       assembled.String(),
			Sources:    hits,
			Category:   dominantCategory(hits),
			SubQueries: subQueries,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
		send(ctx, events, domain.DoneEvent(answer))
	}()

	return events
}

// send delivers one event unless the consumer is gone. False means stop
// producing.
func send(ctx context.Context, events chan<- domain.StreamEvent, event domain.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
