package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/dto"
	"github.com/ninerxsolution/trading-market/internal/models"
)

type TradeUseCase interface {
	ListTrades(ctx context.Context, id models.Identity, limit, offset int) ([]models.TradeHistory, error)
	GetReputation(ctx context.Context, userID uuid.UUID) (*models.UserReputation, error)
}

type TradeHandler struct {
	trades TradeUseCase
}

func NewTradeHandler(trades TradeUseCase) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// List обрабатывает GET /api/trades.
func (h *TradeHandler) List(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	trades, err := h.trades.ListTrades(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TradeListResponse{Trades: trades, Limit: limit, Offset: offset})
}

// Reputation обрабатывает GET /api/users/:id/reputation.
func (h *TradeHandler) Reputation(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	rep, err := h.trades.GetReputation(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rep)
}
