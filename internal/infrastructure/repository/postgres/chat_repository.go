package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ChatRepository stores the query/answer exchanges keyed by session, so a
// dataroom review trail survives restarts.
type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal message metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_messages (session_id, role, content, metadata, created_at)
VALUES ($1,$2,$3,$4,$5)
`, sessionID, role, content, metaJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}
