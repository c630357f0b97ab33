package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ninerxsolution/trading-market/internal/models"
)

type ReputationRepository struct {
	db *sqlx.DB
}

func NewReputationRepository(db *sqlx.DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

// Get возвращает репутацию; если записи нет, отдаёт стартовое значение.
func (r *ReputationRepository) Get(ctx context.Context, userID uuid.UUID) (*models.UserReputation, error) {
	var rep models.UserReputation
	err := r.db.GetContext(ctx, &rep, `SELECT user_id, score, updated_at FROM user_reputation WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserReputation{UserID: userID, Score: models.DefaultReputationScore}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reputation repository: get: %w", err)
	}
	return &rep, nil
}

func applyReputationPenalty(ctx context.Context, tx *sqlx.Tx, penalty int, now time.Time, users ...uuid.UUID) error {
	for _, userID := range users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_reputation (user_id, score, updated_at)
			VALUES ($1, $2::int - $3::int, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET score = user_reputation.score - $3::int, updated_at = $4
		`, userID, models.DefaultReputationScore, penalty, now)
		if err != nil {
			return fmt.Errorf("reputation repository: apply penalty: %w", err)
		}
	}
	return nil
}
