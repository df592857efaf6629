package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *FileRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	dataroom_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	category TEXT,
	description TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	embedding_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_dataroom ON files(dataroom_id);
CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);
CREATE INDEX IF NOT EXISTS idx_files_created_at ON files(created_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *FileRepository) Create(ctx context.Context, file *domain.SourceFile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO files (
	id, dataroom_id, filename, mime_type, storage_path, size_bytes, category, description, status, error_message, chunk_count, embedding_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		file.ID, file.DataroomID, file.Filename, file.MimeType, file.StoragePath, file.SizeBytes,
		file.Category, file.Description, string(file.Status), file.Error,
		file.Metadata.ChunkCount, file.Metadata.EmbeddingCount, file.CreatedAt, file.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.SourceFile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, dataroom_id, filename, mime_type, storage_path, size_bytes, category, description, status, error_message, chunk_count, embedding_count, created_at, updated_at
FROM files
WHERE id = $1
`, id)

	var file domain.SourceFile
	var status string
	var category, description, errMessage sql.NullString

	err := row.Scan(
		&file.ID, &file.DataroomID, &file.Filename, &file.MimeType, &file.StoragePath, &file.SizeBytes,
		&category, &description, &status, &errMessage,
		&file.Metadata.ChunkCount, &file.Metadata.EmbeddingCount, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFileNotFound, "postgres.GetByID", fmt.Errorf("file %s", id))
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}

	file.Category = category.String
	file.Description = description.String
	file.Error = errMessage.String
	file.Status = domain.IngestionStatus(status)
	return &file, nil
}

// UpdateStatus moves a file to status and applies any metadata counters in
// the same statement, so readers never observe a status without its counts.
func (r *FileRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status domain.IngestionStatus,
	errMessage string,
	patch domain.MetadataPatch,
) error {
	set := []string{"status = $2", "error_message = $3", "updated_at = $4"}
	args := []any{id, string(status), errMessage, time.Now().UTC()}

	if patch.ChunkCount != nil {
		args = append(args, *patch.ChunkCount)
		set = append(set, fmt.Sprintf("chunk_count = $%d", len(args)))
	}
	if patch.EmbeddingCount != nil {
		args = append(args, *patch.EmbeddingCount)
		set = append(set, fmt.Sprintf("embedding_count = $%d", len(args)))
	}

	query := fmt.Sprintf("UPDATE files SET %s WHERE id = $1", strings.Join(set, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrFileNotFound, "postgres.UpdateStatus", fmt.Errorf("file %s", id))
	}
	return nil
}

func (r *FileRepository) SaveClassification(ctx context.Context, id string, cls domain.Classification) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE files
SET category = $2, description = $3, updated_at = $4
WHERE id = $1
`, id, cls.Category, cls.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrFileNotFound, "postgres.Delete", fmt.Errorf("file %s", id))
	}
	return nil
}
