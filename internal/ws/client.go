package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ninerxsolution/trading-market/internal/goroutine"
	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 4 * 1024
)

// Client - WebSocket транспорт одной подписки хаба.
// Сервер только пишет, входящие кадры читаются ради pong и закрытия.
type Client struct {
	conn *websocket.Conn
	sub  *realtime.Subscription
	once sync.Once
}

func NewClient(conn *websocket.Conn, sub *realtime.Subscription) *Client {
	return &Client{conn: conn, sub: sub}
}

// Run блокируется до закрытия соединения, отмены ctx или снятия подписки.
func (c *Client) Run(ctx context.Context) {
	goroutine.SafeGo("ws.writePump", func() {
		defer c.Close()
		c.writePump(ctx)
	})
	c.readPump()
}

// Close снимает подписку и закрывает соединение. Повторные вызовы безопасны.
func (c *Client) Close() {
	c.once.Do(func() {
		c.sub.Close()
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithFields(logrus.Fields{
					"user_id": c.sub.UserID(),
					"error":   err.Error(),
				}).Debug("ws: соединение оборвано")
			}
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.sub.Events():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Log.WithError(err).Error("ws: не удалось сериализовать событие")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
