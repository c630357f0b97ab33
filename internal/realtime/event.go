package realtime

import "github.com/ninerxsolution/trading-market/internal/models"

type EventType string

const (
	EventMessage EventType = "message"
	EventOrder   EventType = "order"
)

// Event - полезная нагрузка, доставляемая подписчику.
// Заполнено ровно одно из полей Message или Order.
type Event struct {
	Type    EventType           `json:"type"`
	Message *models.ChatMessage `json:"message,omitempty"`
	Order   *models.Order       `json:"order,omitempty"`
}

func MessageEvent(m *models.ChatMessage) Event {
	return Event{Type: EventMessage, Message: m}
}

// OrderEvent копирует заказ, чтобы последующие изменения не попали в уже отправленное событие.
func OrderEvent(o *models.Order) Event {
	cp := *o
	return Event{Type: EventOrder, Order: &cp}
}
