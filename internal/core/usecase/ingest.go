package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
	"github.com/vaultgrid/dataroom-rag/internal/core/ports"
)

// StageObserver receives per-stage timings from the orchestrator. Nil means
// no instrumentation.
type StageObserver func(stage string, duration time.Duration)

// IngestFileUseCase drives one file through the ingestion state machine:
// uploaded → processing → embedding → ready, with error terminal from any
// non-terminal state. Every failure is caught here and persisted as an
// error status with the message captured; nothing propagates past IngestByID
// except the error value itself, for the caller's logging.
type IngestFileUseCase struct {
	repo       ports.FileRepository
	extractor  ports.TextExtractor
	chunker    ports.Chunker
	classifier ports.Classifier
	embedder   ports.Embedder
	vectors    ports.VectorStore

	classifySample int
	observeStage   StageObserver
}

func NewIngestFileUseCase(
	repo ports.FileRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	classifier ports.Classifier,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	classifySample int,
	observeStage StageObserver,
) *IngestFileUseCase {
	if classifySample <= 0 {
		classifySample = 4000
	}
	return &IngestFileUseCase{
		repo:           repo,
		extractor:      extractor,
		chunker:        chunker,
		classifier:     classifier,
		embedder:       embedder,
		vectors:        vectors,
		classifySample: classifySample,
		observeStage:   observeStage,
	}
}

func (uc *IngestFileUseCase) IngestByID(ctx context.Context, fileID string) error {
	file, err := uc.repo.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("fetch file by id: %w", err)
	}

	if err := uc.markStatus(ctx, fileID, domain.StatusProcessing, "", domain.MetadataPatch{}); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunks, err := uc.processStage(ctx, file)
	if err != nil {
		return uc.fail(ctx, fileID, err, domain.MetadataPatch{})
	}

	chunkCount := len(chunks)
	patch := domain.MetadataPatch{ChunkCount: &chunkCount}
	if err := uc.markStatus(ctx, fileID, domain.StatusEmbedding, "", patch); err != nil {
		return fmt.Errorf("set status=embedding: %w", err)
	}

	embeddingCount, err := uc.embedStage(ctx, file, chunks)
	if err != nil {
		return uc.fail(ctx, fileID, err, patch)
	}

	patch.EmbeddingCount = &embeddingCount
	if err := uc.markStatus(ctx, fileID, domain.StatusReady, "", patch); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	if embeddingCount < chunkCount {
		slog.Warn("file_ingested_partially",
			"file_id", fileID,
			"chunk_count", chunkCount,
			"embedding_count", embeddingCount,
		)
	}
	return nil
}

// processStage covers extract + chunk + classify. An extraction that yields
// no usable text degrades to zero chunks; a classifier failure degrades to
// the uncategorized label. Neither blocks embedding.
func (uc *IngestFileUseCase) processStage(ctx context.Context, file *domain.SourceFile) ([]domain.Chunk, error) {
	extraction, err := uc.timedExtract(ctx, file)
	if err != nil {
		if domain.IsKind(err, domain.ErrExtraction) {
			slog.Warn("extraction_yielded_no_text", "file_id", file.ID, "filename", file.Filename, "error", err)
			extraction = domain.Extraction{}
		} else {
			return nil, fmt.Errorf("extract text: %w", err)
		}
	}

	chunks := uc.chunker.Split(extraction)

	cls := uc.timedClassify(ctx, file, extraction)
	if err := uc.repo.SaveClassification(ctx, file.ID, cls); err != nil {
		return nil, fmt.Errorf("save classification: %w", err)
	}
	file.Category = cls.Category

	return chunks, nil
}

// embedStage covers embed + upsert. Prior vectors for the file are removed
// first, so a re-ingest with fewer chunks leaves no stale points behind.
// Records whose batch exhausted its retries come back without a vector and
// are filtered out; the shortfall shows up as embeddingCount < chunkCount.
func (uc *IngestFileUseCase) embedStage(ctx context.Context, file *domain.SourceFile, chunks []domain.Chunk) (int, error) {
	records := buildRecords(file, chunks)

	start := time.Now()
	records, err := uc.embedder.EmbedRecords(ctx, records)
	uc.observe("embed", start)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	embedded := records[:0]
	for _, r := range records {
		if len(r.Vector) > 0 {
			embedded = append(embedded, r)
		}
	}

	start = time.Now()
	if err := uc.vectors.DeleteByFile(ctx, file.ID); err != nil {
		return 0, fmt.Errorf("delete prior vectors: %w", err)
	}
	if len(embedded) > 0 {
		if err := uc.vectors.Upsert(ctx, embedded); err != nil {
			return 0, fmt.Errorf("upsert vectors: %w", err)
		}
	}
	uc.observe("upsert", start)

	return len(embedded), nil
}

func (uc *IngestFileUseCase) timedExtract(ctx context.Context, file *domain.SourceFile) (domain.Extraction, error) {
	start := time.Now()
	defer uc.observe("extract", start)
	return uc.extractor.Extract(ctx, file)
}

func (uc *IngestFileUseCase) timedClassify(ctx context.Context, file *domain.SourceFile, extraction domain.Extraction) domain.Classification {
	start := time.Now()
	defer uc.observe("classify", start)

	sample := sampleText(extraction, uc.classifySample)
	if strings.TrimSpace(sample) == "" {
		return domain.Classification{Category: domain.CategoryUncategorized}
	}

	cls, err := uc.classifier.Classify(ctx, sample)
	if err != nil || !domain.ValidCategory(cls.Category) {
		if err != nil {
			slog.Warn("classification_degraded", "file_id", file.ID, "error", err)
		}
		return domain.Classification{Category: domain.CategoryUncategorized, Description: cls.Description}
	}
	return cls
}

func (uc *IngestFileUseCase) fail(ctx context.Context, fileID string, ingestErr error, patch domain.MetadataPatch) error {
	slog.Error("file_ingestion_failed", "file_id", fileID, "error", ingestErr)
	if err := uc.markStatus(ctx, fileID, domain.StatusError, ingestErr.Error(), patch); err != nil {
		return fmt.Errorf("%w; mark error status: %v", ingestErr, err)
	}
	return ingestErr
}

func (uc *IngestFileUseCase) markStatus(
	ctx context.Context,
	fileID string,
	status domain.IngestionStatus,
	errMessage string,
	patch domain.MetadataPatch,
) error {
	return uc.repo.UpdateStatus(ctx, fileID, status, errMessage, patch)
}

func (uc *IngestFileUseCase) observe(stage string, start time.Time) {
	if uc.observeStage != nil {
		uc.observeStage(stage, time.Since(start))
	}
}

func buildRecords(file *domain.SourceFile, chunks []domain.Chunk) []domain.VectorRecord {
	records := make([]domain.VectorRecord, 0, len(chunks))
	for _, chunk := range chunks {
		records = append(records, domain.VectorRecord{
			PointID:     domain.PointID(file.ID, chunk.Index),
			FileID:      file.ID,
			DataroomID:  file.DataroomID,
			Filename:    file.Filename,
			Text:        chunk.Text,
			Category:    file.Category,
			ChunkIndex:  chunk.Index,
			TotalChunks: len(chunks),
			Sheet:       chunk.Sheet,
			RowFrom:     chunk.RowFrom,
			RowTo:       chunk.RowTo,
		})
	}
	return records
}

// sampleText flattens the extraction and truncates it to maxRunes, keeping
// classification cost bounded regardless of file size.
func sampleText(extraction domain.Extraction, maxRunes int) string {
	var b strings.Builder
	b.WriteString(extraction.Plain)
	for _, sheet := range extraction.Sheets {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sheet.Name)
		for _, row := range sheet.Rows {
			b.WriteString("\n")
			b.WriteString(row)
		}
	}

	runes := []rune(b.String())
	if len(runes) <= maxRunes {
		return b.String()
	}
	return string(runes[:maxRunes])
}
