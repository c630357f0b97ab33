package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ninerxsolution/trading-market/internal/models"
)

const chatMessageColumns = `id, sender_id, receiver_id, message, order_id, created_at`

type ChatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO chat_messages (`+chatMessageColumns+`)
		VALUES (:id, :sender_id, :receiver_id, :message, :order_id, :created_at)
	`, msg)
	if err != nil {
		return fmt.Errorf("chat repository: create: %w", err)
	}
	return nil
}

// ListConversation возвращает переписку двух пользователей в хронологическом порядке.
func (r *ChatRepository) ListConversation(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT `+chatMessageColumns+` FROM (
			SELECT `+chatMessageColumns+`
			FROM chat_messages
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT $3 OFFSET $4
		) page
		ORDER BY created_at ASC, id ASC
	`, a, b, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("chat repository: list conversation: %w", err)
	}
	return msgs, nil
}
