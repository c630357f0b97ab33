package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
	"github.com/ninerxsolution/trading-market/internal/realtime"
)

// Subscriber - источник событий для стриминговых транспортов.
type Subscriber interface {
	Subscribe(userID uuid.UUID) *realtime.Subscription
}

// EventsHandler отдаёт события пользователя по SSE.
type EventsHandler struct {
	hub       Subscriber
	heartbeat time.Duration
}

func NewEventsHandler(hub Subscriber, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &EventsHandler{hub: hub, heartbeat: heartbeat}
}

// Stream обрабатывает GET /api/events. Поток живёт до отключения клиента
// или до закрытия подписки хабом.
func (h *EventsHandler) Stream(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		respondError(c, apperror.New(apperror.ErrCodeInternal, "стриминг не поддерживается"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sub := h.hub.Subscribe(id.UserID)
	defer sub.Close()

	if _, err := writeSSEComment(c.Writer, "connected"); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Log.WithError(err).Error("sse: не удалось сериализовать событие")
				continue
			}
			if _, err := writeSSEEvent(c.Writer, string(ev.Type), string(data)); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := writeSSEComment(c.Writer, "ping"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
