package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/config"
	"github.com/vaultgrid/dataroom-rag/internal/core/ports"
	"github.com/vaultgrid/dataroom-rag/internal/core/usecase"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/chunking"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/embedding"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/extractor"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/llm/ollama"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/queue/nats"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/repository/postgres"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/resilience"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/storage/localfs"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/vector/memory"
	"github.com/vaultgrid/dataroom-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    ports.IngestionQueue
	Repo     ports.FileRepository
	Chat     ports.ChatStore
	Vectors  ports.VectorStore
	UploadUC ports.FileUploader
	IngestUC ports.FileIngestor
	RemoveUC ports.FileRemover
	QueryUC  ports.QueryService

	closeFn func()
}

// Options tune wiring that only one of the two binaries cares about.
type Options struct {
	// StageObserver forwards ingestion stage timings to worker metrics.
	StageObserver usecase.StageObserver
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFileRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	chat := postgres.NewChatRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init ingestion queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	classifier := ollama.NewClassifier(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	embedder := embedding.NewBatcher(
		ollama.NewEmbedder(ollamaClient),
		executor,
		ollama.ClassifyError,
		cfg.EmbedBatchSize,
		cfg.EmbedConcurrency,
	)

	var vectors ports.VectorStore
	switch cfg.VectorBackend {
	case "memory":
		vectors = memory.New()
	default:
		vectors = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorSize)
	}

	files := extractor.New(storage)
	chunker := chunking.NewSplitter(cfg.ChunkTargetSize, cfg.ChunkOverlap)

	uploadUC := usecase.NewUploadFileUseCase(repo, storage, queue, files)
	ingestUC := usecase.NewIngestFileUseCase(repo, files, chunker, classifier, embedder, vectors, cfg.ClassifySample, opts.StageObserver)
	removeUC := usecase.NewRemoveFileUseCase(repo, storage, vectors)
	queryUC := usecase.NewQueryUseCase(embedder, vectors, generator, cfg.RAGTopK)

	return &App{
		Config: cfg,

		Queue:    queue,
		Repo:     repo,
		Chat:     chat,
		Vectors:  vectors,
		UploadUC: uploadUC,
		IngestUC: ingestUC,
		RemoveUC: removeUC,
		QueryUC:  queryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// FileTimeout is the per-file ingestion deadline the worker applies.
func (a *App) FileTimeout() time.Duration {
	if a.Config.WorkerFileTimeoutS <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(a.Config.WorkerFileTimeoutS) * time.Second
}
