package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/dto"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/service"
)

// OrderUseCase - операции жизненного цикла заказа.
type OrderUseCase interface {
	Reserve(ctx context.Context, id models.Identity, in service.ReserveInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, id models.Identity, orderID uuid.UUID, in service.StatusUpdateInput) (*models.Order, error)
	Resolve(ctx context.Context, id models.Identity, orderID uuid.UUID, in service.ResolveInput) (*models.Order, error)
	GetOrder(ctx context.Context, id models.Identity, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, id models.Identity, in service.ListOrdersInput) ([]models.Order, error)
}

type OrderHandler struct {
	orders OrderUseCase
}

func NewOrderHandler(orders OrderUseCase) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Reserve обрабатывает POST /api/orders.
func (h *OrderHandler) Reserve(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req dto.ReserveOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Reserve(c.Request.Context(), id, service.ReserveInput{
		ListingID: req.ListingID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// List обрабатывает GET /api/orders?status=&role=buyer|seller.
func (h *OrderHandler) List(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	orders, err := h.orders.ListOrders(c.Request.Context(), id, service.ListOrdersInput{
		Status: c.Query("status"),
		Side:   c.Query("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OrderListResponse{Orders: orders, Limit: limit, Offset: offset})
}

// Get обрабатывает GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateStatus обрабатывает PATCH /api/orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), id, orderID, service.StatusUpdateInput{
		Status:        req.Status,
		ProofImages:   req.ProofImages,
		DisputeReason: req.DisputeReason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Resolve обрабатывает POST /api/admin/orders/:id/resolve.
func (h *OrderHandler) Resolve(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Resolve(c.Request.Context(), id, orderID, service.ResolveInput{
		Status:       req.Status,
		AdminNotes:   req.AdminNotes,
		ApplyPenalty: req.ApplyPenalty,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
