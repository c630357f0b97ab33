package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ninerxsolution/trading-market/internal/config"
	"github.com/ninerxsolution/trading-market/internal/db"
	"github.com/ninerxsolution/trading-market/internal/goroutine"
	httpHandlers "github.com/ninerxsolution/trading-market/internal/http/handlers"
	httpRouter "github.com/ninerxsolution/trading-market/internal/http/router"
	"github.com/ninerxsolution/trading-market/internal/kafka"
	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/metrics"
	"github.com/ninerxsolution/trading-market/internal/realtime"
	"github.com/ninerxsolution/trading-market/internal/redisx"
	"github.com/ninerxsolution/trading-market/internal/repository"
	"github.com/ninerxsolution/trading-market/internal/service"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}
	metrics.Register()

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis нужен только для блокировки периодической эскалации.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("main: ошибка подключения к redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret)
	hub := realtime.NewHub(cfg.SubscriberBuffer)

	// Репозитории.
	orderRepo := repository.NewOrderRepository(dbConn)
	listingRepo := repository.NewListingRepository(dbConn)
	chatRepo := repository.NewChatRepository(dbConn)
	tradeRepo := repository.NewTradeHistoryRepository(dbConn)
	reputationRepo := repository.NewReputationRepository(dbConn)

	// Сервисы.
	chatService := service.NewChatService(chatRepo, orderRepo, hub)
	orderService := service.NewOrderService(orderRepo, chatService, hub, service.OrderServiceConfig{
		ReservationTTL:       cfg.ReservationTTL,
		DisputeCancelPenalty: cfg.DisputeCancelPenalty,
	})
	listingService := service.NewListingService(listingRepo)
	tradeService := service.NewTradeService(tradeRepo, reputationRepo)

	escalator := service.NewExpiryEscalator(orderRepo, hub, cfg.ReservationTTL)
	if rdb != nil {
		escalator.SetLocker(redisx.NewLocker(rdb))
	}
	orderService.SetSweeper(escalator)

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrdersTopic, 0)
		producer.Start()
		mirror := kafka.NewOrderMirror(producer)
		orderService.SetMirror(mirror)
		escalator.SetMirror(mirror)
	}

	goroutine.SafeGoWithContext(ctx, "expiry-escalator", func(ctx context.Context) {
		escalator.Run(ctx, cfg.EscalationInterval)
	})

	// HTTP хэндлеры.
	healthChecks := map[string]httpHandlers.Pinger{"database": dbConn}
	if rdb != nil {
		healthChecks["redis"] = httpHandlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Orders:   httpHandlers.NewOrderHandler(orderService),
		Listings: httpHandlers.NewListingHandler(listingService),
		Trades:   httpHandlers.NewTradeHandler(tradeService),
		Chat:     httpHandlers.NewChatHandler(chatService),
		Events:   httpHandlers.NewEventsHandler(hub, cfg.SSEHeartbeat),
		WS:       httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:   httpHandlers.NewHealthHandler(healthChecks),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала. Стримы держат соединения,
	// поэтому подписки снимаются до Shutdown.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
	<-shutdownDone

	if producer != nil {
		producer.Close()
	}
	logger.Log.Info("main: сервер остановлен")
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
