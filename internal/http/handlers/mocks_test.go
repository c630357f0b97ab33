package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ninerxsolution/trading-market/internal/http/middleware"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/service"
)

type mockOrders struct{ mock.Mock }

func (m *mockOrders) Reserve(ctx context.Context, id models.Identity, in service.ReserveInput) (*models.Order, error) {
	args := m.Called(ctx, id, in)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) UpdateStatus(ctx context.Context, id models.Identity, orderID uuid.UUID, in service.StatusUpdateInput) (*models.Order, error) {
	args := m.Called(ctx, id, orderID, in)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) Resolve(ctx context.Context, id models.Identity, orderID uuid.UUID, in service.ResolveInput) (*models.Order, error) {
	args := m.Called(ctx, id, orderID, in)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) GetOrder(ctx context.Context, id models.Identity, orderID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id, orderID)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) ListOrders(ctx context.Context, id models.Identity, in service.ListOrdersInput) ([]models.Order, error) {
	args := m.Called(ctx, id, in)
	o, _ := args.Get(0).([]models.Order)
	return o, args.Error(1)
}

type mockChat struct{ mock.Mock }

func (m *mockChat) SendMessage(ctx context.Context, id models.Identity, in service.SendMessageInput) (*models.ChatMessage, error) {
	args := m.Called(ctx, id, in)
	msg, _ := args.Get(0).(*models.ChatMessage)
	return msg, args.Error(1)
}

func (m *mockChat) ListConversation(ctx context.Context, id models.Identity, with uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, id, with, limit, offset)
	msgs, _ := args.Get(0).([]models.ChatMessage)
	return msgs, args.Error(1)
}

// withIdentity подменяет AuthMiddleware в тестах.
func withIdentity(id models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextIdentityKey, id)
		c.Next()
	}
}
