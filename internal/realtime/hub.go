package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/metrics"
)

const defaultBuffer = 32

// Subscription - одно открытое соединение пользователя (SSE или WebSocket).
type Subscription struct {
	id     uuid.UUID
	userID uuid.UUID
	events chan Event
	hub    *Hub
	once   sync.Once
}

func (s *Subscription) ID() uuid.UUID     { return s.id }
func (s *Subscription) UserID() uuid.UUID { return s.userID }

// Events закрывается, когда подписка снята: клиентом, хабом при переполнении или при остановке.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close снимает подписку. Повторные вызовы безопасны.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Hub хранит подписки пользователей и раздаёт им события.
// Доставка без очереди: нет подписчиков - событие теряется.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe регистрирует новое соединение пользователя.
func (h *Hub) Subscribe(userID uuid.UUID) *Subscription {
	sub := &Subscription{
		id:     uuid.New(),
		userID: userID,
		events: make(chan Event, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	if _, ok := h.subs[userID]; !ok {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	metrics.ActiveSubscribers.Inc()
	return sub
}

// Unsubscribe удаляет подписку и закрывает её канал. Идемпотентен.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}

	// Канал закрывается под эксклюзивной блокировкой: Publish пишет только под RLock.
	sub.once.Do(func() {
		close(sub.events)
		metrics.ActiveSubscribers.Dec()
	})
}

// Publish отправляет событие всем соединениям пользователя.
// Переполненная подписка закрывается: клиент переподключится и перечитает состояние.
func (h *Hub) Publish(userID uuid.UUID, ev Event) {
	metrics.PublishedEventsTotal.WithLabelValues(string(ev.Type)).Inc()

	h.mu.RLock()
	set := h.subs[userID]
	if len(set) == 0 {
		h.mu.RUnlock()
		metrics.DroppedEventsTotal.WithLabelValues("no_subscribers").Inc()
		return
	}

	var overflowed []*Subscription
	for sub := range set {
		select {
		case sub.events <- ev:
		default:
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range overflowed {
		metrics.DroppedEventsTotal.WithLabelValues("buffer_full").Inc()
		logger.Log.WithFields(logrus.Fields{
			"user_id":         userID,
			"subscription_id": sub.id,
		}).Warn("realtime: буфер подписчика переполнен, подписка закрыта")
		h.Unsubscribe(sub)
	}
}

// PublishMany отправляет событие нескольким пользователям, каждому один раз.
func (h *Hub) PublishMany(ev Event, userIDs ...uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		h.Publish(id, ev)
	}
}

// SubscriberCount - число открытых соединений пользователя.
func (h *Hub) SubscriberCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close снимает все подписки, транспорты при этом завершают стримы.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Subscription, 0)
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range all {
		h.Unsubscribe(sub)
	}
}
