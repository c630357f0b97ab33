package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/dto"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
	"github.com/ninerxsolution/trading-market/internal/service"
)

type ChatUseCase interface {
	SendMessage(ctx context.Context, id models.Identity, in service.SendMessageInput) (*models.ChatMessage, error)
	ListConversation(ctx context.Context, id models.Identity, with uuid.UUID, limit, offset int) ([]models.ChatMessage, error)
}

type ChatHandler struct {
	chat ChatUseCase
}

func NewChatHandler(chat ChatUseCase) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Send обрабатывает POST /api/chat/messages.
func (h *ChatHandler) Send(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), id, service.SendMessageInput{
		ReceiverID: req.ReceiverID,
		Message:    req.Message,
		OrderID:    req.OrderID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// List обрабатывает GET /api/chat/messages?with=<userId>.
func (h *ChatHandler) List(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}

	with, err := uuid.Parse(c.Query("with"))
	if err != nil {
		respondError(c, apperror.New(apperror.ErrCodeValidation, "параметр with должен быть валидным UUID"))
		return
	}

	limit, offset := pagination(c)
	msgs, err := h.chat.ListConversation(c.Request.Context(), id, with, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageListResponse{Messages: msgs, Limit: limit, Offset: offset})
}
