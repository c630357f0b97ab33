package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/models"
)

const EventOrderStatusChanged = "order.status_changed"

// Envelope - формат сообщений в топике.
type Envelope struct {
	EventID    string          `json:"eventId"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderStatusChanged - полезная нагрузка события смены статуса.
type OrderStatusChanged struct {
	OrderID   uuid.UUID          `json:"orderId"`
	ListingID uuid.UUID          `json:"listingId"`
	BuyerID   uuid.UUID          `json:"buyerId"`
	SellerID  uuid.UUID          `json:"sellerId"`
	From      models.OrderStatus `json:"from,omitempty"`
	To        models.OrderStatus `json:"to"`
	Quantity  int                `json:"quantity"`
	Price     float64            `json:"price"`
}

// OrderMirror дублирует смены статусов заказов в Kafka для внешних потребителей.
// Клиентам события доставляет хаб, не Kafka.
type OrderMirror struct {
	producer *Producer
}

func NewOrderMirror(p *Producer) *OrderMirror {
	return &OrderMirror{producer: p}
}

func (m *OrderMirror) OrderStatusChanged(o *models.Order, from models.OrderStatus) {
	payload, err := json.Marshal(OrderStatusChanged{
		OrderID:   o.ID,
		ListingID: o.ListingID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		From:      from,
		To:        o.Status,
		Quantity:  o.Quantity,
		Price:     o.Price,
	})
	if err != nil {
		logger.Log.WithError(err).Error("kafka: не удалось сериализовать событие заказа")
		return
	}

	env, err := json.Marshal(Envelope{
		EventID:    uuid.NewString(),
		Type:       EventOrderStatusChanged,
		OccurredAt: o.UpdatedAt,
		Payload:    payload,
	})
	if err != nil {
		logger.Log.WithError(err).Error("kafka: не удалось сериализовать конверт")
		return
	}

	m.producer.Publish([]byte(o.ID.String()), env, kafka.Header{Key: "type", Value: []byte(EventOrderStatusChanged)})
}
