package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage - сообщение между двумя пользователями. Не изменяется после записи.
// OrderID заполнен у системных сообщений о ходе сделки.
type ChatMessage struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	SenderID   uuid.UUID  `db:"sender_id" json:"senderId"`
	ReceiverID uuid.UUID  `db:"receiver_id" json:"receiverId"`
	Message    string     `db:"message" json:"message"`
	OrderID    *uuid.UUID `db:"order_id" json:"orderId,omitempty"`
	Timestamp  time.Time  `db:"created_at" json:"timestamp"`
}
