package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ninerxsolution/trading-market/internal/config"
	"github.com/ninerxsolution/trading-market/internal/http/handlers"
	"github.com/ninerxsolution/trading-market/internal/http/middleware"
)

// Handlers собирает все хэндлеры API.
type Handlers struct {
	Orders   *handlers.OrderHandler
	Listings *handlers.ListingHandler
	Trades   *handlers.TradeHandler
	Chat     *handlers.ChatHandler
	Events   *handlers.EventsHandler
	WS       *handlers.WSHandler
	Health   *handlers.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.TokenParser) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// WebSocket проверяет токен сам: он приходит в query.
	api.GET("/ws", h.WS.Handle)
	api.GET("/listings/:id", middleware.UUIDValidator("id"), h.Listings.Get)
	api.GET("/users/:id/reputation", middleware.UUIDValidator("id"), h.Trades.Reputation)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))

	orders := protected.Group("/orders")
	{
		orders.POST("", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), h.Orders.Reserve)
		orders.GET("", h.Orders.List)
		orders.GET("/:id", middleware.UUIDValidator("id"), h.Orders.Get)
		orders.PATCH("/:id/status", middleware.UUIDValidator("id"), h.Orders.UpdateStatus)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/orders/:id/resolve", middleware.UUIDValidator("id"), h.Orders.Resolve)
	}

	protected.PATCH("/listings/:id", middleware.UUIDValidator("id"), h.Listings.Update)
	protected.GET("/trades", h.Trades.List)

	chat := protected.Group("/chat")
	{
		chat.POST("/messages", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), h.Chat.Send)
		chat.GET("/messages", h.Chat.List)
	}

	protected.GET("/events", h.Events.Stream)

	return r
}
