package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/metrics"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/realtime"
	"github.com/ninerxsolution/trading-market/internal/redisx"
)

type ExpiredOrderRepository interface {
	EscalateExpired(ctx context.Context, now time.Time, reason string) ([]models.Order, error)
}

// Locker - блокировка с одним владельцем. ok=false означает, что она занята.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// localLocker используется, когда Redis не настроен: защищает только внутри процесса.
type localLocker struct {
	mu sync.Mutex
}

func (l *localLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

// ExpiryEscalator переводит зависшие резервации в DISPUTE.
type ExpiryEscalator struct {
	repo   ExpiredOrderRepository
	events Broadcaster
	mirror OrderMirror
	locker Locker
	reason string
	now    func() time.Time
}

func NewExpiryEscalator(repo ExpiredOrderRepository, events Broadcaster, ttl time.Duration) *ExpiryEscalator {
	return &ExpiryEscalator{
		repo:   repo,
		events: events,
		locker: &localLocker{},
		reason: fmt.Sprintf("Order expired after %d hours", int(ttl.Hours())),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLocker заменяет локальную блокировку распределённой.
func (e *ExpiryEscalator) SetLocker(l Locker) {
	e.locker = l
}

func (e *ExpiryEscalator) SetMirror(m OrderMirror) {
	e.mirror = m
}

// Sweep эскалирует все просроченные активные заказы и оповещает участников.
// Безопасен при параллельных вызовах: каждый заказ эскалируется ровно один раз.
func (e *ExpiryEscalator) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	orders, err := e.repo.EscalateExpired(ctx, e.now(), e.reason)
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("expiry escalator: %w", err)
	}

	for i := range orders {
		o := &orders[i]
		metrics.EscalatedOrdersTotal.Inc()
		if e.events != nil {
			e.events.PublishMany(realtime.OrderEvent(o), o.BuyerID, o.SellerID)
		}
		if e.mirror != nil {
			e.mirror.OrderStatusChanged(o, "")
		}
	}

	if len(orders) > 0 {
		logger.Log.WithFields(logrus.Fields{"count": len(orders)}).Info("expiry escalator: просроченные заказы переведены в DISPUTE")
	}
	return len(orders), nil
}

// Run периодически запускает Sweep до отмены ctx. На кластер работает один экземпляр.
func (e *ExpiryEscalator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepOnce(ctx, interval)
		}
	}
}

func (e *ExpiryEscalator) sweepOnce(ctx context.Context, interval time.Duration) {
	unlock, ok, err := e.locker.TryLock(ctx, redisx.KeyExpirySweepLock, interval)
	if err != nil {
		logger.Log.WithError(err).Warn("expiry escalator: не удалось взять блокировку")
		return
	}
	if !ok {
		logger.Log.Debug("expiry escalator: эскалация уже выполняется другим экземпляром")
		return
	}
	defer unlock()

	if _, err := e.Sweep(ctx); err != nil {
		logger.Log.WithError(err).Error("expiry escalator: периодическая эскалация не удалась")
	}
}
