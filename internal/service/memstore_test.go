package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/repository"
)

// memStore - хранилище в памяти. Один мьютекс играет роль транзакции
// с блокировками строк: колбэки выполняются под ним целиком.
type memStore struct {
	mu         sync.Mutex
	listings   map[uuid.UUID]models.Listing
	orders     map[uuid.UUID]models.Order
	trades     map[uuid.UUID]models.TradeHistory
	messages   []models.ChatMessage
	reputation map[uuid.UUID]int

	failChat error
}

func newMemStore() *memStore {
	return &memStore{
		listings:   make(map[uuid.UUID]models.Listing),
		orders:     make(map[uuid.UUID]models.Order),
		trades:     make(map[uuid.UUID]models.TradeHistory),
		reputation: make(map[uuid.UUID]int),
	}
}

func (m *memStore) addListing(seller uuid.UUID, price float64, stock int) models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	l := models.Listing{
		ID:        uuid.New(),
		SellerID:  seller,
		ItemID:    uuid.New(),
		Price:     price,
		Stock:     stock,
		Status:    models.ListingStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if stock == 0 {
		l.Status = models.ListingStatusSoldOut
	}
	m.listings[l.ID] = l
	return l
}

func (m *memStore) listing(id uuid.UUID) models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings[id]
}

func (m *memStore) setStock(id uuid.UUID, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.listings[id]
	l.Stock = stock
	m.listings[id] = l
}

func (m *memStore) setStatus(id uuid.UUID, status models.ListingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.listings[id]
	l.Status = status
	m.listings[id] = l
}

func (m *memStore) order(id uuid.UUID) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) expireOrder(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.ExpiresAt = &at
	m.orders[id] = o
}

func (m *memStore) tradeCount(orderID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[orderID]; ok {
		return 1
	}
	return 0
}

func (m *memStore) chatLog() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChatMessage(nil), m.messages...)
}

// OrderRepository

func (m *memStore) Reserve(_ context.Context, listingID uuid.UUID, build func(l *models.Listing) (*models.Order, error)) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[listingID]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	order, err := build(&l)
	if err != nil {
		return nil, err
	}
	for _, o := range m.orders {
		if o.ListingID == listingID && o.Status.IsActive() {
			return nil, repository.ErrListingAlreadyReserved
		}
	}

	m.orders[order.ID] = *order
	cp := *order
	return &cp, nil
}

func (m *memStore) ApplyTransition(_ context.Context, orderID uuid.UUID, decide func(o *models.Order) (*models.Transition, error)) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	l := m.listings[o.ListingID]

	plan, err := decide(&o)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var trade *models.TradeHistory
	if plan.SettleStock {
		if !l.Settle(o.Quantity, now) {
			return nil, repository.ErrInsufficientStock
		}
		if _, exists := m.trades[o.ID]; exists {
			return nil, repository.ErrTradeAlreadyRecorded
		}
		trade = models.NewTradeHistory(&o, now)
	}

	// Фиксация "транзакции".
	if plan.Penalty > 0 {
		for _, id := range []uuid.UUID{o.BuyerID, o.SellerID} {
			score, ok := m.reputation[id]
			if !ok {
				score = models.DefaultReputationScore
			}
			m.reputation[id] = score - plan.Penalty
		}
	}
	if trade != nil {
		m.trades[o.ID] = *trade
		m.listings[l.ID] = l
	}
	o.Apply(plan, now)
	m.orders[o.ID] = o

	cp := o
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memStore) List(_ context.Context, f repository.OrderFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Order{}
	for _, o := range m.orders {
		if f.UserID != nil {
			switch f.Side {
			case repository.OrderSideBuyer:
				if o.BuyerID != *f.UserID {
					continue
				}
			case repository.OrderSideSeller:
				if o.SellerID != *f.UserID {
					continue
				}
			default:
				if !o.IsParticipant(*f.UserID) {
					continue
				}
			}
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) EscalateExpired(_ context.Context, now time.Time, reason string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Order
	for id, o := range m.orders {
		if !o.IsExpired(now) {
			continue
		}
		r := reason
		o.Status = models.OrderStatusDispute
		o.DisputeReason = &r
		o.ExpiresAt = nil
		o.UpdatedAt = now
		m.orders[id] = o
		out = append(out, o)
	}
	return out, nil
}

// ListingRepository

type memListings struct{ *memStore }

func (m memListings) GetByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	return &l, nil
}

func (m memListings) Update(_ context.Context, id uuid.UUID, mutate func(l *models.Listing) error) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	if err := mutate(&l); err != nil {
		return nil, err
	}
	m.listings[id] = l
	return &l, nil
}

// ChatRepository

func (m *memStore) Create(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failChat != nil {
		return m.failChat
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) ListConversation(_ context.Context, a, b uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.ChatMessage{}
	for _, msg := range m.messages {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			out = append(out, msg)
		}
	}
	if offset >= len(out) {
		return []models.ChatMessage{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var errStorageDown = errors.New("storage down")
