package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/models"
)

type TradeHistoryRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TradeHistory, error)
}

type ReputationRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserReputation, error)
}

// TradeService отдаёт историю сделок и репутацию пользователей.
type TradeService struct {
	trades     TradeHistoryRepository
	reputation ReputationRepository
}

func NewTradeService(trades TradeHistoryRepository, reputation ReputationRepository) *TradeService {
	return &TradeService{trades: trades, reputation: reputation}
}

func (s *TradeService) ListTrades(ctx context.Context, id models.Identity, limit, offset int) ([]models.TradeHistory, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	trades, err := s.trades.ListByUser(ctx, id.UserID, limit, offset)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return trades, nil
}

func (s *TradeService) GetReputation(ctx context.Context, userID uuid.UUID) (*models.UserReputation, error) {
	rep, err := s.reputation.Get(ctx, userID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return rep, nil
}
