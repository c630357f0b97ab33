package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ninerxsolution/trading-market/internal/dto"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/realtime"
)

// apiClient - минимальный клиент REST и стримов сервиса.
type apiClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

func newAPIClient(base, token string) (*apiClient, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("tradechat: некорректный адрес сервера: %w", err)
	}
	return &apiClient{base: u, token: token, http: &http.Client{Timeout: 15 * time.Second}}, nil
}

func (c *apiClient) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *apiClient) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: %d %s %s", method, endpoint, resp.StatusCode, apiErr.Code, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) history(ctx context.Context, with uuid.UUID) ([]models.ChatMessage, error) {
	var resp dto.MessageListResponse
	q := url.Values{"with": {with.String()}, "limit": {"100"}}
	if err := c.do(ctx, http.MethodGet, c.endpoint("/api/chat/messages", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *apiClient) send(ctx context.Context, to uuid.UUID, text string, orderID *uuid.UUID) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	req := dto.SendMessageRequest{ReceiverID: to, Message: text, OrderID: orderID}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/chat/messages", nil), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// followSSE читает /api/events, пока соединение живо.
func (c *apiClient) followSSE(ctx context.Context, handle func(realtime.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/events", nil), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")

	// У стрима нет общего таймаута, только контекст.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("events: статус %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var ev realtime.Event
				if err := json.Unmarshal([]byte(data.String()), &ev); err == nil {
					handle(ev)
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
		}
		// Комментарии и "event:" не нужны: тип есть в самом JSON.
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// followWS - то же через /api/ws.
func (c *apiClient) followWS(ctx context.Context, handle func(realtime.Event)) error {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		handle(ev)
	}
}
