package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeHistory - неизменяемая запись о завершённой сделке, одна на заказ.
type TradeHistory struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrderID   uuid.UUID `db:"order_id" json:"orderId"`
	BuyerID   uuid.UUID `db:"buyer_id" json:"buyerId"`
	SellerID  uuid.UUID `db:"seller_id" json:"sellerId"`
	ItemID    uuid.UUID `db:"item_id" json:"itemId"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func NewTradeHistory(o *Order, now time.Time) *TradeHistory {
	return &TradeHistory{
		ID:        uuid.New(),
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		ItemID:    o.ItemID,
		Quantity:  o.Quantity,
		CreatedAt: now,
	}
}
