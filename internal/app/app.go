package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bokzor/revenue-boost/internal/config"
	"github.com/bokzor/revenue-boost/internal/event"
	"github.com/bokzor/revenue-boost/internal/gateway"
	handler "github.com/bokzor/revenue-boost/internal/handler/http"
	pgrepo "github.com/bokzor/revenue-boost/internal/repository/postgres"
	redisrepo "github.com/bokzor/revenue-boost/internal/repository/redis"
	"github.com/bokzor/revenue-boost/internal/service"
	"github.com/bokzor/revenue-boost/pkg/database"
	"github.com/bokzor/revenue-boost/pkg/health"
	"github.com/bokzor/revenue-boost/pkg/httpclient"
	pkgkafka "github.com/bokzor/revenue-boost/pkg/kafka"
	"github.com/bokzor/revenue-boost/pkg/middleware"
)

// App wires together all dependencies and runs the issuance service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	rdb        *redis.Client
	producer   *pkgkafka.Producer
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Campaign store.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)

	// Idempotency cache and rate limiter backend.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.Redis().Addr()),
		slog.Int("db", cfg.RedisDB),
	)

	// Analytics producer. Async: issuance latency must not absorb broker
	// round trips, and delivery failures are only logged anyway.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	kafkaCfg.Async = true
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Provisioning gateway client: short timeout, no retries (a retried
	// POST could double-issue), circuit breaker in front.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.GatewayTimeout()
	clientCfg.MaxRetries = 0
	cbClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultCircuitBreakerConfig("provisioning"),
		logger,
	)
	provisioner := gateway.NewHTTPProvisioner(cbClient, cfg.GatewayURL)

	// Build the dependency graph.
	campaignRepo := pgrepo.NewCampaignRepository(pool)
	issuanceCache := redisrepo.NewIssuanceCache(rdb)
	rateLimiter := redisrepo.NewRateLimiter(rdb)
	eventProducer := event.NewProducer(producer, logger)

	issuanceService := service.NewIssuanceService(
		campaignRepo,
		issuanceCache,
		rateLimiter,
		provisioner,
		eventProducer,
		logger,
		service.Settings{
			IdempotencyTTL:  cfg.IdempotencyTTL(),
			RateLimit:       cfg.RateLimit(),
			RateLimitBypass: cfg.RateLimitBypass,
		},
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	router := handler.NewRouter(handler.RouterConfig{
		IssuanceService:  issuanceService,
		HealthHandler:    healthHandler,
		SessionValidator: sessionValidator(cfg),
		Logger:           logger,
		TracingEnabled:   cfg.TracingEnabled,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		rdb:        rdb,
		producer:   producer,
		httpServer: httpServer,
	}, nil
}

// sessionValidator builds the storefront session validator. Tokens have the
// form "<session_id>.<store_id>.<hex hmac-sha256>", signed with the shared
// session secret by the storefront widget loader.
func sessionValidator(cfg *config.Config) middleware.SessionValidator {
	secret := []byte(cfg.SessionSecret)
	devMode := cfg.Environment == "development"

	return func(token string) (*middleware.Session, error) {
		parts := strings.Split(token, ".")
		if len(parts) == 3 {
			mac := hmac.New(sha256.New, secret)
			mac.Write([]byte(parts[0] + "." + parts[1]))
			expected := hex.EncodeToString(mac.Sum(nil))
			if !hmac.Equal([]byte(expected), []byte(parts[2])) {
				return nil, fmt.Errorf("session signature mismatch")
			}
			return &middleware.Session{SessionID: parts[0], StoreID: parts[1]}, nil
		}

		// Unsigned tokens are only honored in development.
		if devMode && token != "" && len(parts) == 1 {
			return &middleware.Session{SessionID: token}, nil
		}
		return nil, fmt.Errorf("malformed session token")
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return nil
}
