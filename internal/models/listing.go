package models

import (
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "ACTIVE"
	ListingStatusReserved ListingStatus = "RESERVED"
	ListingStatusSoldOut  ListingStatus = "SOLD_OUT"
	ListingStatusInactive ListingStatus = "INACTIVE"
)

// Listing - предложение продавца по предмету каталога.
type Listing struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	SellerID  uuid.UUID     `db:"seller_id" json:"sellerId"`
	ItemID    uuid.UUID     `db:"item_id" json:"itemId"`
	Price     float64       `db:"price" json:"price"`
	Stock     int           `db:"stock" json:"stock"`
	Status    ListingStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

// Reservable - по объявлению можно открыть заказ.
func (l *Listing) Reservable() bool {
	return l.Status == ListingStatusActive || l.Status == ListingStatusReserved
}

// Settle списывает quantity со склада. Вызывать только под блокировкой строки.
func (l *Listing) Settle(quantity int, now time.Time) bool {
	if l.Stock < quantity {
		return false
	}
	l.Stock -= quantity
	if l.Stock == 0 {
		l.Status = ListingStatusSoldOut
	}
	l.UpdatedAt = now
	return true
}

// SetStock выставляет остаток через редактирование объявления.
// Нулевой остаток всегда даёт SOLD_OUT, пополнение выводит из SOLD_OUT и INACTIVE в ACTIVE.
func (l *Listing) SetStock(stock int, now time.Time) {
	l.Stock = stock
	switch {
	case stock == 0:
		l.Status = ListingStatusSoldOut
	case l.Status == ListingStatusSoldOut || l.Status == ListingStatusInactive:
		l.Status = ListingStatusActive
	}
	l.UpdatedAt = now
}
