// Package embedding batches chunk records against an upstream embedding
// API with backoff and bounded concurrency.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/resilience"
)

// VectorAPI is the raw embedding call the batcher fans out over.
type VectorAPI interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Batcher struct {
	api         VectorAPI
	executor    *resilience.Executor
	classify    resilience.ErrorClassifier
	batchSize   int
	concurrency int
}

func NewBatcher(api VectorAPI, executor *resilience.Executor, classify resilience.ErrorClassifier, batchSize, concurrency int) *Batcher {
	if batchSize <= 0 {
		batchSize = 16
	}
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Batcher{
		api:         api,
		executor:    executor,
		classify:    classify,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// EmbedRecords attaches vectors to the records batch by batch. A batch
// whose retries are exhausted leaves its records embedding-less rather
// than failing the set; the caller filters those before upsert. Only a
// cancelled context aborts the whole operation.
func (b *Batcher) EmbedRecords(ctx context.Context, records []domain.VectorRecord) ([]domain.VectorRecord, error) {
	if len(records) == 0 {
		return records, nil
	}

	out := make([]domain.VectorRecord, len(records))
	copy(out, records)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.concurrency)

	for start := 0; start < len(out); start += b.batchSize {
		end := start + b.batchSize
		if end > len(out) {
			end = len(out)
		}
		batch := out[start:end]

		group.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text
			}

			var vectors [][]float32
			err := b.executor.Execute(groupCtx, "embedding.batch", func(callCtx context.Context) error {
				var callErr error
				vectors, callErr = b.api.Embed(callCtx, texts)
				return callErr
			}, b.classify)
			if err != nil {
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				slog.Warn("embedding_batch_dropped",
					"file_id", batch[0].FileID,
					"batch_start", batch[0].ChunkIndex,
					"batch_size", len(batch),
					"error", err,
				)
				return nil
			}
			for i := range batch {
				batch[i].Vector = vectors[i]
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("embed records: %w", err)
	}
	return out, nil
}

// EmbedQuery embeds a single question with the same retry policy. Query
// embedding has no partial-success path: a failure is the caller's error.
func (b *Batcher) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vectors [][]float32
	err := b.executor.Execute(ctx, "embedding.query", func(callCtx context.Context) error {
		var callErr error
		vectors, callErr = b.api.Embed(callCtx, []string{text})
		return callErr
	}, b.classify)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: empty embedding result")
	}
	return vectors[0], nil
}
