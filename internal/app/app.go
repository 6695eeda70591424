package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ecomstack/storefront/internal/config"
	"github.com/ecomstack/storefront/internal/event"
	handler "github.com/ecomstack/storefront/internal/handler/http"
	"github.com/ecomstack/storefront/internal/migrations"
	"github.com/ecomstack/storefront/internal/notifier/mock"
	"github.com/ecomstack/storefront/internal/payment"
	paymentmock "github.com/ecomstack/storefront/internal/payment/mock"
	paymentremote "github.com/ecomstack/storefront/internal/payment/remote"
	"github.com/ecomstack/storefront/internal/realtime"
	"github.com/ecomstack/storefront/internal/repository/postgres"
	"github.com/ecomstack/storefront/internal/service"
	"github.com/ecomstack/storefront/pkg/database"
	"github.com/ecomstack/storefront/pkg/health"
	"github.com/ecomstack/storefront/pkg/httpclient"
	"github.com/ecomstack/storefront/pkg/kafka"
	"github.com/ecomstack/storefront/pkg/logger"
	"github.com/ecomstack/storefront/pkg/middleware"
)

// App owns every long-lived resource of the service and shuts them down in
// reverse order of startup.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *kafka.Producer
	bridge   *realtime.RedisBridge
	server   *http.Server
}

// New wires the whole service together. Migrations run before anything else
// touches the database.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.New(cfg.ServiceName, cfg.LogLevel)

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresPoolConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a := &App{cfg: cfg, logger: log, pool: pool}

	hub := realtime.NewHub(log)
	var broadcaster realtime.Broadcaster = hub
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisClientConfig())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = rdb
		a.bridge = realtime.NewRedisBridge(hub, rdb, log)
		broadcaster = a.bridge
	}

	var publisher event.Publisher = event.NoopPublisher{}
	if cfg.Kafka.Enabled {
		a.producer = kafka.NewProducer(kafka.DefaultProducerConfig(cfg.Kafka.Brokers), log)
		publisher = event.NewKafkaPublisher(a.producer, log)
	}

	stockRepo := postgres.NewStockRepository(pool)
	movementRepo := postgres.NewMovementRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	checkoutRepo := postgres.NewCheckoutRepository(pool)
	alertRepo := postgres.NewAlertRepository(pool)

	sender := mock.New(log)
	alertSvc := service.NewAlertService(alertRepo, stockRepo, sender, log)
	ledgerSvc := service.NewLedgerService(stockRepo, movementRepo, publisher, broadcaster, alertSvc, log)
	couponSvc := service.NewCouponService(couponRepo, log)

	provider, err := buildPaymentProvider(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	checkoutSvc := service.NewCheckoutService(
		checkoutRepo, orderRepo, ledgerSvc, couponSvc,
		provider, publisher, cfg.Payment.Timeout, log,
	)
	orderSvc := service.NewOrderService(orderRepo, ledgerSvc, provider, log)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORS.AllowedOrigins

	router := handler.NewRouter(handler.RouterDeps{
		Logger:   log,
		Health:   healthHandler,
		Stock:    handler.NewStockHandler(ledgerSvc, log),
		Checkout: handler.NewCheckoutHandler(checkoutSvc, log),
		Orders:   handler.NewOrderHandler(orderSvc, log),
		Coupons:  handler.NewCouponHandler(couponSvc, log),
		Alerts:   handler.NewAlertHandler(alertSvc, log),
		WS:       realtime.NewWSHandler(hub, log),
		CORS:     corsCfg,
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return a, nil
}

func buildPaymentProvider(cfg *config.Config, log *slog.Logger) (payment.Provider, error) {
	switch cfg.Payment.Mode {
	case config.PaymentModeMock:
		return paymentmock.New(log, cfg.Payment.MockLatency), nil
	case config.PaymentModeRemote:
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = cfg.Payment.Timeout
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(clientCfg),
			httpclient.DefaultCircuitBreakerConfig("payment-gateway"),
			log,
		)
		return paymentremote.New(paymentremote.Config{
			BaseURL: cfg.Payment.BaseURL,
			APIKey:  cfg.Payment.APIKey,
		}, client, log), nil
	default:
		return nil, fmt.Errorf("unknown payment mode %q", cfg.Payment.Mode)
	}
}

// Run serves until ctx is cancelled, then shuts everything down gracefully.
func (a *App) Run(ctx context.Context) error {
	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	defer cancelBridge()
	if a.bridge != nil {
		go func() {
			if err := a.bridge.Run(bridgeCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("realtime bridge stopped", slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}

	cancelBridge()
	a.Close()
	return nil
}

// Close releases all resources. Safe to call on a partially constructed app.
func (a *App) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka close failed", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close failed", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
