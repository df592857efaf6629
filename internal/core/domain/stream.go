package domain

type StreamEventType string

const (
	StreamEventStatus StreamEventType = "status"
	StreamEventChunk  StreamEventType = "chunk"
	StreamEventDone   StreamEventType = "done"
	StreamEventError  StreamEventType = "error"
)

// StreamEvent is the closed variant emitted by the streaming retriever.
// Event order on one stream is strict: zero or more status events, then
// zero or more chunk events whose concatenation equals the final answer
// text, then exactly one done or error event.
type StreamEvent struct {
	Type StreamEventType

	// Status carries progress narration for status events.
	Status string
	// Delta carries an incremental answer fragment for chunk events.
	Delta string
	// Answer carries the final structured result for the done event.
	Answer *Answer
	// Err carries the failure for the error event.
	Err error
}

func StatusEvent(status string) StreamEvent {
	return StreamEvent{Type: StreamEventStatus, Status: status}
}

func ChunkEvent(delta string) StreamEvent {
	return StreamEvent{Type: StreamEventChunk, Delta: delta}
}

func DoneEvent(answer *Answer) StreamEvent {
	return StreamEvent{Type: StreamEventDone, Answer: answer}
}

func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Type: StreamEventError, Err: err}
}
