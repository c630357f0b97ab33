package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Order - сделка покупателя по объявлению продавца.
type Order struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	ListingID     uuid.UUID      `db:"listing_id" json:"listingId"`
	ItemID        uuid.UUID      `db:"item_id" json:"itemId"`
	SellerID      uuid.UUID      `db:"seller_id" json:"sellerId"`
	BuyerID       uuid.UUID      `db:"buyer_id" json:"buyerId"`
	Price         float64        `db:"price" json:"price"`
	Quantity      int            `db:"quantity" json:"quantity"`
	Status        OrderStatus    `db:"status" json:"status"`
	ProofImages   pq.StringArray `db:"proof_images" json:"proofImages"`
	DisputeReason *string        `db:"dispute_reason" json:"disputeReason,omitempty"`
	AdminNotes    *string        `db:"admin_notes" json:"adminNotes,omitempty"`
	ExpiresAt     *time.Time     `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// ActorFor определяет роль пользователя в заказе.
// Администратор всегда получает ActorAdmin, посторонний - false.
func (o *Order) ActorFor(id Identity) (Actor, bool) {
	switch {
	case id.IsAdmin():
		return ActorAdmin, true
	case id.UserID == o.BuyerID:
		return ActorBuyer, true
	case id.UserID == o.SellerID:
		return ActorSeller, true
	}
	return "", false
}

// IsParticipant - покупатель или продавец.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return userID == o.BuyerID || userID == o.SellerID
}

// Counterparty возвращает второго участника сделки.
func (o *Order) Counterparty(userID uuid.UUID) uuid.UUID {
	if userID == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}

// Transition - набор изменений, применяемых к заказу в одной транзакции.
type Transition struct {
	To            OrderStatus
	ProofImages   []string
	DisputeReason *string
	AdminNotes    *string

	// SettleStock списывает остаток и пишет TradeHistory.
	SettleStock bool
	// Penalty снимается с репутации обоих участников.
	Penalty int
}

// Apply переносит изменения перехода в заказ.
func (o *Order) Apply(t *Transition, now time.Time) {
	o.Status = t.To
	if t.ProofImages != nil {
		o.ProofImages = pq.StringArray(t.ProofImages)
	}
	if t.DisputeReason != nil {
		o.DisputeReason = t.DisputeReason
	}
	if t.AdminNotes != nil {
		o.AdminNotes = t.AdminNotes
	}
	if !o.Status.IsActive() {
		o.ExpiresAt = nil
	}
	o.UpdatedAt = now
}

// IsExpired - активный заказ с истёкшим сроком резервации.
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status.IsActive() && o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// NewReservedOrder фиксирует цену объявления и срок резервации.
func NewReservedOrder(l *Listing, buyerID uuid.UUID, quantity int, now time.Time, ttl time.Duration) *Order {
	expires := now.Add(ttl)
	return &Order{
		ID:          uuid.New(),
		ListingID:   l.ID,
		ItemID:      l.ItemID,
		SellerID:    l.SellerID,
		BuyerID:     buyerID,
		Price:       l.Price,
		Quantity:    quantity,
		Status:      OrderStatusReserved,
		ProofImages: pq.StringArray{},
		ExpiresAt:   &expires,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
