package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/repository/common"
)

const tradeHistoryColumns = `id, order_id, buyer_id, seller_id, item_id, quantity, created_at`

type TradeHistoryRepository struct {
	db *sqlx.DB
}

func NewTradeHistoryRepository(db *sqlx.DB) *TradeHistoryRepository {
	return &TradeHistoryRepository{db: db}
}

// ListByUser возвращает сделки, где пользователь был покупателем или продавцом.
func (r *TradeHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TradeHistory, error) {
	trades := []models.TradeHistory{}
	err := r.db.SelectContext(ctx, &trades, `
		SELECT `+tradeHistoryColumns+`
		FROM trade_history
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trade history repository: list: %w", err)
	}
	return trades, nil
}

// CountByOrder - сколько записей истории у заказа (ожидается 0 или 1).
func (r *TradeHistoryRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM trade_history WHERE order_id = $1`, orderID); err != nil {
		return 0, fmt.Errorf("trade history repository: count: %w", err)
	}
	return n, nil
}

func insertTradeHistory(ctx context.Context, tx *sqlx.Tx, t *models.TradeHistory) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO trade_history (`+tradeHistoryColumns+`)
		VALUES (:id, :order_id, :buyer_id, :seller_id, :item_id, :quantity, :created_at)
	`, t)
	if err != nil {
		if common.IsUniqueViolation(err, "") {
			return ErrTradeAlreadyRecorded
		}
		return fmt.Errorf("trade history repository: insert: %w", err)
	}
	return nil
}
