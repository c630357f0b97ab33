package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/metrics"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
	"github.com/ninerxsolution/trading-market/internal/realtime"
	"github.com/ninerxsolution/trading-market/internal/repository"
	"github.com/ninerxsolution/trading-market/internal/validation"
)

// OrderRepository описывает хранилище заказов.
// Reserve и ApplyTransition выполняют колбэк внутри транзакции под блокировками строк.
type OrderRepository interface {
	Reserve(ctx context.Context, listingID uuid.UUID, build func(l *models.Listing) (*models.Order, error)) (*models.Order, error)
	ApplyTransition(ctx context.Context, orderID uuid.UUID, decide func(o *models.Order) (*models.Transition, error)) (*models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, f repository.OrderFilter) ([]models.Order, error)
}

// Broadcaster доставляет события подключённым клиентам.
type Broadcaster interface {
	PublishMany(ev realtime.Event, userIDs ...uuid.UUID)
}

// NarrativeSender пишет системные сообщения о ходе сделки в чат участников.
type NarrativeSender interface {
	SendSystemMessage(ctx context.Context, orderID, from, to uuid.UUID, text string) (*models.ChatMessage, error)
}

// OrderMirror получает копию каждой смены статуса (например, Kafka).
type OrderMirror interface {
	OrderStatusChanged(o *models.Order, from models.OrderStatus)
}

// ExpirySweeper эскалирует просроченные резервации.
type ExpirySweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type OrderServiceConfig struct {
	ReservationTTL       time.Duration
	DisputeCancelPenalty int
}

type ReserveInput struct {
	ListingID uuid.UUID
	Quantity  int
}

type StatusUpdateInput struct {
	Status        string
	ProofImages   []string
	DisputeReason *string
}

type ResolveInput struct {
	Status       string
	AdminNotes   *string
	ApplyPenalty bool
}

type ListOrdersInput struct {
	Status string
	Side   string
	Limit  int
	Offset int
}

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// OrderService - машина состояний заказа и координатор резервации.
type OrderService struct {
	orders  OrderRepository
	chat    NarrativeSender
	events  Broadcaster
	mirror  OrderMirror
	sweeper ExpirySweeper
	cfg     OrderServiceConfig
	now     func() time.Time
}

func NewOrderService(orders OrderRepository, chat NarrativeSender, events Broadcaster, cfg OrderServiceConfig) *OrderService {
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 72 * time.Hour
	}
	return &OrderService{
		orders: orders,
		chat:   chat,
		events: events,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetMirror подключает дублирование смен статусов во внешнюю шину.
func (s *OrderService) SetMirror(m OrderMirror) {
	s.mirror = m
}

// SetSweeper включает ленивую эскалацию при чтении списка заказов.
func (s *OrderService) SetSweeper(sw ExpirySweeper) {
	s.sweeper = sw
}

// Reserve создаёт заказ в статусе RESERVED. Остаток объявления не меняется.
func (s *OrderService) Reserve(ctx context.Context, id models.Identity, in ReserveInput) (*models.Order, error) {
	if in.ListingID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "listingId обязателен")
	}
	if in.Quantity < 1 {
		return nil, apperror.New(apperror.ErrCodeValidation, "количество должно быть не меньше 1")
	}

	now := s.now()
	order, err := s.orders.Reserve(ctx, in.ListingID, func(l *models.Listing) (*models.Order, error) {
		if l.SellerID == id.UserID {
			return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя купить собственное объявление")
		}
		if !l.Reservable() {
			return nil, apperror.New(apperror.ErrCodeValidation, "объявление недоступно для покупки")
		}
		if l.Stock < in.Quantity {
			return nil, apperror.ErrInsufficientStock
		}
		return models.NewReservedOrder(l, id.UserID, in.Quantity, now, s.cfg.ReservationTTL), nil
	})
	if err != nil {
		err = mapRepositoryError(err)
		metrics.ReservationsTotal.WithLabelValues(strings.ToLower(string(apperror.CodeOf(err)))).Inc()
		return nil, err
	}
	metrics.ReservationsTotal.WithLabelValues("ok").Inc()

	logger.Log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"listing_id": order.ListingID,
		"buyer_id":   order.BuyerID,
		"quantity":   order.Quantity,
	}).Info("order: резервация создана")

	s.narrate(ctx, order, order.BuyerID, order.SellerID, fmt.Sprintf(
		"Order Reserved: %d x item %s for %.2f each (order #%s). Reservation expires at %s.",
		order.Quantity, order.ItemID, order.Price, shortID(order.ID), order.ExpiresAt.Format(time.RFC1123),
	))
	s.announce(order, "")

	return order, nil
}

// UpdateStatus выполняет переход по запросу участника сделки.
func (s *OrderService) UpdateStatus(ctx context.Context, id models.Identity, orderID uuid.UUID, in StatusUpdateInput) (*models.Order, error) {
	to, err := models.ParseOrderStatus(in.Status)
	if err != nil {
		return nil, err
	}
	proofs, err := validation.ValidateProofImages(in.ProofImages)
	if err != nil {
		return nil, validationError(err)
	}
	reason, err := validation.ValidateOptionalText("disputeReason", in.DisputeReason, validation.MaxDisputeReasonLength)
	if err != nil {
		return nil, validationError(err)
	}

	return s.transition(ctx, id, orderID, to, func(_ *models.Order, plan *models.Transition) error {
		plan.ProofImages = proofs
		if to == models.OrderStatusDispute || to == models.OrderStatusCancelled {
			plan.DisputeReason = reason
		}
		return nil
	})
}

// Resolve - решение администратора по спору: COMPLETED или CANCELLED.
func (s *OrderService) Resolve(ctx context.Context, id models.Identity, orderID uuid.UUID, in ResolveInput) (*models.Order, error) {
	if !id.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	to, err := models.ParseOrderStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if to != models.OrderStatusCompleted && to != models.OrderStatusCancelled {
		return nil, apperror.New(apperror.ErrCodeValidation, "спор разрешается только в COMPLETED или CANCELLED")
	}
	notes, err := validation.ValidateOptionalText("adminNotes", in.AdminNotes, validation.MaxAdminNotesLength)
	if err != nil {
		return nil, validationError(err)
	}

	return s.transition(ctx, id, orderID, to, func(o *models.Order, plan *models.Transition) error {
		if o.Status != models.OrderStatusDispute {
			return apperror.ErrInvalidTransition
		}
		plan.AdminNotes = notes
		if in.ApplyPenalty && to == models.OrderStatusCancelled {
			plan.Penalty = s.cfg.DisputeCancelPenalty
		}
		return nil
	})
}

// transition - общий путь всех переходов после резервации.
// Проверки выполняются над заблокированной строкой заказа, поэтому решение
// принимается по актуальному статусу.
func (s *OrderService) transition(
	ctx context.Context,
	id models.Identity,
	orderID uuid.UUID,
	to models.OrderStatus,
	customize func(o *models.Order, plan *models.Transition) error,
) (*models.Order, error) {
	var from models.OrderStatus

	updated, err := s.orders.ApplyTransition(ctx, orderID, func(o *models.Order) (*models.Transition, error) {
		actor, ok := o.ActorFor(id)
		if !ok {
			return nil, apperror.ErrForbidden
		}
		if err := models.CheckTransition(o.Status, to, actor); err != nil {
			return nil, err
		}

		plan := &models.Transition{
			To:          to,
			SettleStock: to == models.OrderStatusCompleted,
		}
		if customize != nil {
			if err := customize(o, plan); err != nil {
				return nil, err
			}
		}
		from = o.Status
		return plan, nil
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	logger.Log.WithFields(logrus.Fields{
		"order_id": updated.ID,
		"from":     from,
		"to":       to,
		"user_id":  id.UserID,
	}).Info("order: статус изменён")

	switch to {
	case models.OrderStatusAwaitingBuyerConfirm:
		s.narrate(ctx, updated, updated.SellerID, updated.BuyerID, fmt.Sprintf(
			"Seller marked as sent order #%s. Please confirm receipt when the item arrives.", shortID(updated.ID),
		))
	case models.OrderStatusCompleted:
		s.narrate(ctx, updated, updated.BuyerID, updated.SellerID, fmt.Sprintf(
			"Order #%s completed: %d x item %s delivered.", shortID(updated.ID), updated.Quantity, updated.ItemID,
		))
	}
	s.announce(updated, from)

	return updated, nil
}

// GetOrder доступен участникам сделки и администратору.
func (s *OrderService) GetOrder(ctx context.Context, id models.Identity, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if !id.IsAdmin() && !order.IsParticipant(id.UserID) {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя (администратору - все).
// Перед чтением эскалирует просроченные резервации; ошибка эскалации чтение не прерывает.
func (s *OrderService) ListOrders(ctx context.Context, id models.Identity, in ListOrdersInput) ([]models.Order, error) {
	filter := repository.OrderFilter{Limit: in.Limit, Offset: in.Offset}

	if in.Status != "" {
		st, err := models.ParseOrderStatus(in.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}

	switch side := strings.ToLower(strings.TrimSpace(in.Side)); side {
	case "", repository.OrderSideBuyer, repository.OrderSideSeller:
		filter.Side = side
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "role должен быть buyer или seller")
	}

	if !id.IsAdmin() || filter.Side != "" {
		userID := id.UserID
		filter.UserID = &userID
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if s.sweeper != nil {
		if _, err := s.sweeper.Sweep(ctx); err != nil {
			logger.Log.WithError(err).Warn("order: ленивая эскалация не удалась")
		}
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return orders, nil
}

// narrate отправляет системное сообщение; сбой не влияет на уже выполненный переход.
func (s *OrderService) narrate(ctx context.Context, o *models.Order, from, to uuid.UUID, text string) {
	if s.chat == nil {
		return
	}
	if _, err := s.chat.SendSystemMessage(ctx, o.ID, from, to, text); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"order_id": o.ID,
			"error":    err.Error(),
		}).Warn("order: не удалось отправить системное сообщение")
	}
}

// announce рассылает новое состояние заказа обоим участникам.
func (s *OrderService) announce(o *models.Order, from models.OrderStatus) {
	if s.events != nil {
		s.events.PublishMany(realtime.OrderEvent(o), o.BuyerID, o.SellerID)
	}
	if s.mirror != nil {
		s.mirror.OrderStatusChanged(o, from)
	}
}

func mapRepositoryError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.ErrOrderNotFound
	case errors.Is(err, repository.ErrListingNotFound):
		return apperror.ErrListingNotFound
	case errors.Is(err, repository.ErrListingAlreadyReserved):
		return apperror.ErrAlreadyReserved
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperror.ErrInsufficientStock
	case errors.Is(err, repository.ErrTradeAlreadyRecorded):
		return apperror.ErrInvalidTransition
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperror.Wrap(err, apperror.ErrCodeInternal, "запрос прерван")
	default:
		logger.Log.WithError(err).Error("order: ошибка хранилища")
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
	}
}

// validationError переводит ошибку пакета validation в ответ 400.
func validationError(err error) error {
	return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
