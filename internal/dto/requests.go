package dto

import "github.com/google/uuid"

// ReserveOrderRequest - тело POST /api/orders.
type ReserveOrderRequest struct {
	ListingID uuid.UUID `json:"listingId"`
	Quantity  int       `json:"quantity"`
}

// UpdateOrderStatusRequest - тело PATCH /api/orders/:id/status.
type UpdateOrderStatusRequest struct {
	Status        string   `json:"status" binding:"required"`
	ProofImages   []string `json:"proofImages"`
	DisputeReason *string  `json:"disputeReason"`
}

// ResolveDisputeRequest - решение администратора по спору.
type ResolveDisputeRequest struct {
	Status       string  `json:"status" binding:"required"`
	AdminNotes   *string `json:"adminNotes"`
	ApplyPenalty bool    `json:"applyPenalty"`
}

type UpdateListingRequest struct {
	Price *float64 `json:"price"`
	Stock *int     `json:"stock"`
}

// SendMessageRequest - сообщение в чат, orderId привязывает его к сделке.
type SendMessageRequest struct {
	ReceiverID uuid.UUID  `json:"receiverId"`
	Message    string     `json:"message" binding:"required"`
	OrderID    *uuid.UUID `json:"orderId"`
}
