package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

type queryEmbedderFake struct {
	err error
}

func (f *queryEmbedderFake) EmbedRecords(_ context.Context, records []domain.VectorRecord) ([]domain.VectorRecord, error) {
	return records, nil
}

func (f *queryEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

// queryVectorFake returns a fixed hit set per search call, recording how
// many searches ran.
type queryVectorFake struct {
	hitsPerCall [][]domain.RetrievedChunk
	searchCalls int
	err         error
}

func (f *queryVectorFake) Init(context.Context) error                  { return nil }
func (f *queryVectorFake) Upsert(context.Context, []domain.VectorRecord) error { return nil }
func (f *queryVectorFake) DeleteByFile(context.Context, string) error  { return nil }
func (f *queryVectorFake) Count(context.Context) (uint64, error)       { return 0, nil }
func (f *queryVectorFake) Initialized(context.Context) (bool, error)   { return true, nil }

func (f *queryVectorFake) Search(context.Context, []float32, domain.SearchScope, int) ([]domain.RetrievedChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	call := f.searchCalls
	f.searchCalls++
	if call < len(f.hitsPerCall) {
		return f.hitsPerCall[call], nil
	}
	return nil, nil
}

type generatorFake struct {
	answer     string
	deltas     []string
	subQueries []string
	answerErr  error
	streamErr  error
}

func (f *generatorFake) GenerateAnswer(context.Context, string, []domain.RetrievedChunk) (string, error) {
	if f.answerErr != nil {
		return "", f.answerErr
	}
	return f.answer, nil
}

func (f *generatorFake) GenerateAnswerStream(_ context.Context, _ string, _ []domain.RetrievedChunk, onDelta func(string) error) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	deltas := f.deltas
	if deltas == nil {
		for _, word := range strings.SplitAfter(f.answer, " ") {
			if word != "" {
				deltas = append(deltas, word)
			}
		}
	}
	for _, delta := range deltas {
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	return nil
}

func (f *generatorFake) DecomposeQuestion(context.Context, string) ([]string, error) {
	if f.subQueries == nil {
		return nil, errors.New("no decomposition")
	}
	return f.subQueries, nil
}

func hit(pointID, fileID string, score float64, chunkIndex int) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		PointID:    pointID,
		FileID:     fileID,
		Category:   "legal",
		Text:       "chunk text",
		Score:      score,
		ChunkIndex: chunkIndex,
	}
}

func scope() domain.SearchScope {
	return domain.SearchScope{DataroomID: "room-1"}
}

func TestAnswerZeroHitsReturnsDefiniteNotFound(t *testing.T) {
	uc := NewQueryUseCase(&queryEmbedderFake{}, &queryVectorFake{}, &generatorFake{answer: "unused"}, 5)

	answer, err := uc.Answer(context.Background(), "What is the termination clause?", scope(), 5)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer.Text == "" {
		t.Fatal("empty answer is a defect")
	}
	if answer.Sources == nil {
		t.Fatal("sources must be an empty sequence, not null")
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("sources = %d, want 0", len(answer.Sources))
	}
}

func TestAnswerRanksAndTruncatesToTopK(t *testing.T) {
	vec := &queryVectorFake{hitsPerCall: [][]domain.RetrievedChunk{{
		hit("p-1", "file-1", 0.7, 0),
		hit("p-2", "file-1", 0.9, 1),
		hit("p-3", "file-1", 0.9, 4),
		hit("p-4", "file-1", 0.5, 2),
	}}}
	uc := NewQueryUseCase(&queryEmbedderFake{}, vec, &generatorFake{answer: "the clause says"}, 5)

	answer, err := uc.Answer(context.Background(), "What is the termination clause?", scope(), 3)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(answer.Sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(answer.Sources))
	}
	got := []string{answer.Sources[0].PointID, answer.Sources[1].PointID, answer.Sources[2].PointID}
	want := []string{"p-3", "p-2", "p-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking = %v, want %v (score desc, ties to later chunk)", got, want)
		}
	}
	if answer.Category != "legal" {
		t.Errorf("category = %q, want dominant source category", answer.Category)
	}
}

func TestAnswerDecomposesAndDeduplicatesByPointID(t *testing.T) {
	shared := hit("p-shared", "file-1", 0.4, 0)
	better := shared
	better.Score = 0.8
	vec := &queryVectorFake{hitsPerCall: [][]domain.RetrievedChunk{
		{shared, hit("p-a", "file-1", 0.6, 1)},
		{better, hit("p-b", "file-2", 0.5, 0)},
	}}
	gen := &generatorFake{
		answer:     "both clauses differ",
		subQueries: []string{"termination clause in lease A", "termination clause in lease B"},
	}
	uc := NewQueryUseCase(&queryEmbedderFake{}, vec, gen, 5)

	answer, err := uc.Answer(context.Background(), "Compare the termination clauses of lease A and lease B", scope(), 5)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if vec.searchCalls != 2 {
		t.Fatalf("search calls = %d, want one per sub-query", vec.searchCalls)
	}
	if len(answer.SubQueries) != 2 {
		t.Fatalf("sub-queries = %v, want 2", answer.SubQueries)
	}
	if len(answer.Sources) != 3 {
		t.Fatalf("sources = %d, want 3 after dedupe", len(answer.Sources))
	}
	if answer.Sources[0].PointID != "p-shared" || answer.Sources[0].Score != 0.8 {
		t.Fatalf("dedupe must keep best score: %+v", answer.Sources[0])
	}
}

func TestAnswerDecompositionFailureDegradesToSingleQuery(t *testing.T) {
	vec := &queryVectorFake{hitsPerCall: [][]domain.RetrievedChunk{{hit("p-1", "file-1", 0.9, 0)}}}
	uc := NewQueryUseCase(&queryEmbedderFake{}, vec, &generatorFake{answer: "answer"}, 5)

	answer, err := uc.Answer(context.Background(), "Compare revenue and churn across both decks", scope(), 5)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if vec.searchCalls != 1 {
		t.Fatalf("search calls = %d, want 1 after degraded decomposition", vec.searchCalls)
	}
	if answer.SubQueries != nil {
		t.Fatalf("sub-queries = %v, want none", answer.SubQueries)
	}
}

func TestAnswerRequiresDataroomScope(t *testing.T) {
	uc := NewQueryUseCase(&queryEmbedderFake{}, &queryVectorFake{}, &generatorFake{}, 5)

	_, err := uc.Answer(context.Background(), "question", domain.SearchScope{}, 5)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestStreamingMatchesOneShotAnswer(t *testing.T) {
	hits := [][]domain.RetrievedChunk{{hit("p-1", "file-1", 0.9, 0)}}
	gen := &generatorFake{answer: "The termination clause requires 90 days notice."}
	question := "What is the termination clause?"

	oneShot := NewQueryUseCase(&queryEmbedderFake{}, &queryVectorFake{hitsPerCall: hits}, gen, 5)
	answer, err := oneShot.Answer(context.Background(), question, scope(), 5)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	streaming := NewQueryUseCase(&queryEmbedderFake{}, &queryVectorFake{hitsPerCall: hits}, gen, 5)
	events := streaming.AnswerStream(context.Background(), question, scope(), 5)

	var assembled strings.Builder
	var done *domain.Answer
	sawChunkAfterDone := false
	for event := range events {
		switch event.Type {
		case domain.StreamEventStatus:
			if assembled.Len() > 0 {
				t.Fatal("status event after chunk events")
			}
		case domain.StreamEventChunk:
			if done != nil {
				sawChunkAfterDone = true
			}
			assembled.WriteString(event.Delta)
		case domain.StreamEventDone:
			done = event.Answer
		case domain.StreamEventError:
			t.Fatalf("unexpected error event: %v", event.Err)
		}
	}

	if done == nil {
		t.Fatal("stream must end with a done event")
	}
	if sawChunkAfterDone {
		t.Fatal("chunk event after terminal done event")
	}
	if assembled.String() != answer.Text {
		t.Fatalf("streamed text %q != one-shot text %q", assembled.String(), answer.Text)
	}
	if done.Text != answer.Text {
		t.Fatalf("done answer %q != one-shot answer %q", done.Text, answer.Text)
	}
}

func TestStreamingEmptyGeneratorOutputMatchesOneShot(t *testing.T) {
	hits := [][]domain.RetrievedChunk{{hit("p-1", "file-1", 0.9, 0)}}
	gen := &generatorFake{answer: ""}
	question := "What is the termination clause?"

	oneShot := NewQueryUseCase(&queryEmbedderFake{}, &queryVectorFake{hitsPerCall: hits}, gen, 5)
	answer, err := oneShot.Answer(context.Background(), question, scope(), 5)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer.Text == "" {
		t.Fatal("one-shot answer must never be empty")
	}

	streaming := NewQueryUseCase(&queryEmbedderFake{}, &queryVectorFake{hitsPerCall: hits}, gen, 5)
	events := streaming.AnswerStream(context.Background(), question, scope(), 5)

	var assembled strings.Builder
	var done *domain.Answer
	for event := range events {
		switch event.Type {
		case domain.StreamEventChunk:
			assembled.WriteString(event.Delta)
		case domain.StreamEventDone:
			done = event.Answer
		case domain.StreamEventError:
			t.Fatalf("unexpected error event: %v", event.Err)
		}
	}

	if done == nil {
		t.Fatal("stream must end with a done event")
	}
	if assembled.String() != answer.Text {
		t.Fatalf("streamed text %q != one-shot text %q", assembled.String(), answer.Text)
	}
	if done.Text != answer.Text {
		t.Fatalf("done answer %q != one-shot answer %q", done.Text, answer.Text)
	}
	if len(done.Sources) != 1 {
		t.Fatalf("done sources = %d, want the retrieved hit preserved", len(done.Sources))
	}
}

func TestStreamingZeroHitsEmitsNotFoundChunk(t *testing.T) {
	uc := NewQueryUseCase(&queryEmbedderFake{}, &queryVectorFake{}, &generatorFake{}, 5)
	events := uc.AnswerStream(context.Background(), "anything?", scope(), 5)

	var text strings.Builder
	var done *domain.Answer
	for event := range events {
		if event.Type == domain.StreamEventChunk {
			text.WriteString(event.Delta)
		}
		if event.Type == domain.StreamEventDone {
			done = event.Answer
		}
	}
	if text.String() == "" {
		t.Fatal("zero-hit stream must still carry a definite answer")
	}
	if done == nil || done.Sources == nil || len(done.Sources) != 0 {
		t.Fatalf("done = %+v, want empty non-nil sources", done)
	}
}

func TestStreamingRetrievalFailureEmitsTerminalError(t *testing.T) {
	vec := &queryVectorFake{err: domain.WrapError(domain.ErrVectorStoreUnavailable, "search", errors.New("down"))}
	uc := NewQueryUseCase(&queryEmbedderFake{}, vec, &generatorFake{}, 5)

	events := uc.AnswerStream(context.Background(), "question", scope(), 5)

	var last domain.StreamEvent
	for event := range events {
		last = event
	}
	if last.Type != domain.StreamEventError {
		t.Fatalf("last event = %s, want error", last.Type)
	}
	if !domain.IsKind(last.Err, domain.ErrVectorStoreUnavailable) {
		t.Fatalf("err = %v, want vector store unavailable", last.Err)
	}
}

func TestStreamingGeneratorFailureEmitsTerminalError(t *testing.T) {
	vec := &queryVectorFake{hitsPerCall: [][]domain.RetrievedChunk{{hit("p-1", "file-1", 0.9, 0)}}}
	uc := NewQueryUseCase(&queryEmbedderFake{}, vec, &generatorFake{streamErr: errors.New("model crashed")}, 5)

	events := uc.AnswerStream(context.Background(), "question", scope(), 5)

	var last domain.StreamEvent
	sawDone := false
	for event := range events {
		last = event
		if event.Type == domain.StreamEventDone {
			sawDone = true
		}
	}
	if sawDone {
		t.Fatal("done event after generator failure")
	}
	if last.Type != domain.StreamEventError {
		t.Fatalf("last event = %s, want error", last.Type)
	}
}
