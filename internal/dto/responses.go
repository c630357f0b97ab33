package dto

import "github.com/ninerxsolution/trading-market/internal/models"

// ErrorResponse - единый формат ошибки API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type TradeListResponse struct {
	Trades []models.TradeHistory `json:"trades"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type MessageListResponse struct {
	Messages []models.ChatMessage `json:"messages"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}
