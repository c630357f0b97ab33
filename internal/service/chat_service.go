package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
	"github.com/ninerxsolution/trading-market/internal/realtime"
	"github.com/ninerxsolution/trading-market/internal/validation"
)

type ChatRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	ListConversation(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]models.ChatMessage, error)
}

// OrderReader нужен чату, чтобы проверить привязку сообщения к сделке.
type OrderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type SendMessageInput struct {
	ReceiverID uuid.UUID
	Message    string
	OrderID    *uuid.UUID
}

// ChatService сохраняет сообщения и сразу рассылает их обоим собеседникам.
type ChatService struct {
	repo   ChatRepository
	orders OrderReader
	events Broadcaster
	now    func() time.Time
}

func NewChatService(repo ChatRepository, orders OrderReader, events Broadcaster) *ChatService {
	return &ChatService{
		repo:   repo,
		orders: orders,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage - сообщение пользователя. Отправитель тоже получает событие,
// по нему клиент подтверждает оптимистично показанную строку.
func (s *ChatService) SendMessage(ctx context.Context, id models.Identity, in SendMessageInput) (*models.ChatMessage, error) {
	switch {
	case in.ReceiverID == uuid.Nil:
		return nil, apperror.New(apperror.ErrCodeValidation, "receiverId обязателен")
	case in.ReceiverID == id.UserID:
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя написать самому себе")
	}
	text, err := validation.ValidateMessageContent(in.Message)
	if err != nil {
		return nil, validationError(err)
	}

	if in.OrderID != nil {
		order, err := s.orders.GetByID(ctx, *in.OrderID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		if !order.IsParticipant(id.UserID) || order.Counterparty(id.UserID) != in.ReceiverID {
			return nil, apperror.New(apperror.ErrCodeForbidden, "сообщение можно привязать только к своей сделке")
		}
	}

	return s.store(ctx, &models.ChatMessage{
		ID:         uuid.New(),
		SenderID:   id.UserID,
		ReceiverID: in.ReceiverID,
		Message:    text,
		OrderID:    in.OrderID,
		Timestamp:  s.now(),
	})
}

// SendSystemMessage записывает сообщение о ходе сделки от имени участника.
func (s *ChatService) SendSystemMessage(ctx context.Context, orderID, from, to uuid.UUID, text string) (*models.ChatMessage, error) {
	oid := orderID
	return s.store(ctx, &models.ChatMessage{
		ID:         uuid.New(),
		SenderID:   from,
		ReceiverID: to,
		Message:    text,
		OrderID:    &oid,
		Timestamp:  s.now(),
	})
}

// ListConversation возвращает переписку текущего пользователя с with.
func (s *ChatService) ListConversation(ctx context.Context, id models.Identity, with uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	if with == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "параметр with обязателен")
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.repo.ListConversation(ctx, id.UserID, with, limit, offset)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return msgs, nil
}

func (s *ChatService) store(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, mapRepositoryError(err)
	}
	if s.events != nil {
		s.events.PublishMany(realtime.MessageEvent(msg), msg.SenderID, msg.ReceiverID)
	}
	return msg, nil
}
