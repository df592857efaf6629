package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*FileRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &FileRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, dataroom_id, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansNullableColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "dataroom_id", "filename", "mime_type", "storage_path", "size_bytes",
		"category", "description", "status", "error_message",
		"chunk_count", "embedding_count", "created_at", "updated_at",
	}).AddRow(
		"file-1", "room-1", "lease.pdf", "application/pdf", "room-1/file-1", int64(1024),
		nil, nil, "uploaded", nil,
		0, 0, now, now,
	)
	mock.ExpectQuery("SELECT id, dataroom_id, filename").
		WithArgs("file-1").
		WillReturnRows(rows)

	file, err := repo.GetByID(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if file.Status != domain.StatusUploaded || file.Category != "" || file.Error != "" {
		t.Fatalf("unexpected file: %+v", file)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE files").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "", domain.MetadataPatch{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusAppliesMetadataPatch(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	chunks := 12
	embedded := 10
	mock.ExpectExec("UPDATE files SET status = \\$2, error_message = \\$3, updated_at = \\$4, chunk_count = \\$5, embedding_count = \\$6").
		WithArgs("file-1", string(domain.StatusReady), "", sqlmock.AnyArg(), chunks, embedded).
		WillReturnResult(sqlmock.NewResult(0, 1))

	patch := domain.MetadataPatch{ChunkCount: &chunks, EmbeddingCount: &embedded}
	if err := repo.UpdateStatus(context.Background(), "file-1", domain.StatusReady, "", patch); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM files").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendMessageMarshalsMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewChatRepository(db)

	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs("session-1", "assistant", "the answer", []byte(`{"category":"legal"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.AppendMessage(context.Background(), "session-1", "assistant", "the answer", map[string]any{"category": "legal"})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
