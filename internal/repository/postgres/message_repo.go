package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamasit07/guess-master/backend/internal/domain"
)

type MessageRepo struct {
	DB *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{DB: db}
}

// Create appends a message to the log
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	query := `
	INSERT INTO messages (id, session_id, user_id, content, type, created_at)
	VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.DB.ExecContext(ctx, query,
		m.ID, m.SessionID, nullString(string(m.UserID)), m.Content, string(m.Type), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListBySession returns a session's messages oldest first
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.Message, error) {
	query := `
	SELECT id, session_id, COALESCE(user_id, ''), content, type, created_at
	FROM messages
	WHERE session_id = $1
	ORDER BY created_at ASC, id ASC;
	`
	rows, err := r.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var msgType string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Content, &msgType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Type = domain.MessageType(msgType)
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
