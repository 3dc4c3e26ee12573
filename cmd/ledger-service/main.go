/**
 * @description
 * Entry point for the ledger service. It receives Shopify order webhooks, applies
 * them to the PV ledger in Postgres, relays ledger events to RabbitMQ and serves
 * the eligibility and product read endpoints.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: Postgres connection pool.
 * - github.com/redis/go-redis/v9: Optional product listing cache.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nanisveeha-crypto/svntex-app/internal/api"
	"github.com/nanisveeha-crypto/svntex-app/internal/app"
	"github.com/nanisveeha-crypto/svntex-app/internal/config"
	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
	"github.com/nanisveeha-crypto/svntex-app/internal/metrics"
	"github.com/nanisveeha-crypto/svntex-app/internal/store"
	"github.com/nanisveeha-crypto/svntex-app/pkg/rabbitmq"
	"github.com/nanisveeha-crypto/svntex-app/pkg/shopifyclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.ShopifyWebhookSecret == "" {
		logger.Error("SHOPIFY_WEBHOOK_SECRET is required; refusing to accept unsigned webhooks")
		os.Exit(1)
	}
	if cfg.InternalAPIKey == "" {
		logger.Warn("INTERNAL_API_KEY is not set; internal read endpoints will reject every request")
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	pgConfig.MaxConns = 50
	pgConfig.MinConns = 5
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewPostgresRepository(dbpool)

	var productCache app.ProductCache
	if redisClient := connectRedis(ctx, cfg.RedisURL, logger); redisClient != nil {
		defer redisClient.Close()
		productCache = app.NewRedisProductCache(redisClient)
	}

	service := app.NewService(repository, cfg.LedgerEventsExchange, logger)
	catalog := app.NewCatalog(
		repository,
		shopifyclient.NewClient(cfg.ShopifyAPIVersion),
		productCache,
		domain.ShopifyCredentials{
			StoreURL:    strings.TrimSpace(cfg.ShopifyStoreURL),
			AccessToken: strings.TrimSpace(cfg.ShopifyAccessToken),
		},
		cfg.ProductCacheTTL(),
		logger,
	)

	dispatcher := app.NewOutboxDispatcher(repository, publisherDialer(cfg.RabbitMQURL, logger), logger)
	go dispatcher.Run(ctx)

	jobs := app.NewJobs(repository, cfg.ProcessedOrderRetention(), logger)
	scheduler := app.NewScheduler(jobs, logger, cfg.PruneJobSchedule)
	if err := scheduler.Start(); err != nil {
		logger.Error("invalid PRUNE_JOB_SCHEDULE", "schedule", cfg.PruneJobSchedule, "error", err)
		os.Exit(1)
	}

	webhookHandler := api.NewWebhookHandler(service, cfg.ShopifyWebhookSecret, cfg.WebhookMaxBodyBytes, cfg.WebhookTimeout(), logger)
	handler := api.NewHandler(service, catalog, logger)
	router := api.NewRouter(webhookHandler, handler, cfg.InternalAPIKey, cfg.AllowedOrigins())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduled jobs still running at shutdown")
	}

	logger.Info("server stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// product listing then goes to Shopify on every request.
func connectRedis(ctx context.Context, redisURL string, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		logger.Info("REDIS_URL not set; product cache disabled")
		return nil
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; product cache disabled", "error", err)
		return nil
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; product cache disabled", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

// publisherDialer connects to RabbitMQ when RABBITMQ_URL is set and logs events otherwise.
func publisherDialer(rabbitURL string, logger *slog.Logger) app.PublisherDialer {
	if strings.TrimSpace(rabbitURL) == "" {
		logger.Warn("RABBITMQ_URL not set; ledger events will be logged instead of published")
		return func() (rabbitmq.Publisher, error) {
			return &rabbitmq.LoggingPublisher{Logger: logger}, nil
		}
	}
	return func() (rabbitmq.Publisher, error) {
		producer, err := rabbitmq.NewEventProducer(rabbitURL, logger)
		if err != nil {
			return nil, err
		}
		return producer, nil
	}
}
