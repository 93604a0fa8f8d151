package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"finan/internal/amqp"
	"finan/internal/auth"
	"finan/internal/cache"
	"finan/internal/cli"
	"finan/internal/config"
	"finan/internal/core"
	apphttp "finan/internal/http"
	"finan/internal/ledger"
	"finan/internal/log"
	"finan/internal/metrics"
	"finan/internal/middleware/ratelimit"
	"finan/internal/notify"
	"finan/internal/snapshot"
)

const (
	shutdownTimeout  = 30 * time.Second
	cacheCleanup     = 10 * time.Minute
	noticesPerUser   = 20
	noticesRetention = time.Hour
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	loc, _ := cfg.Location()
	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	startup, cancelStartup := context.WithCancel(context.Background())
	defer cancelStartup()
	go cli.EnsureSchema(startup, logger.WithComponent(log.ComponentStorage), repo)

	m := metrics.New()
	notices := notify.NewBuffer(cfg.SnapshotCacheSize, noticesPerUser, noticesRetention)
	categoryFeed := snapshot.NewFeed[[]core.Category](cfg.SnapshotCacheSize, cfg.SnapshotTTL)
	transactionFeed := snapshot.NewFeed[[]core.Transaction](cfg.SnapshotCacheSize, cfg.SnapshotTTL)
	m.RegisterGauge("snapshot", "subscribers", "Open snapshot feed subscriptions.", func() float64 {
		return float64(categoryFeed.Subscribers() + transactionFeed.Subscribers())
	})

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register("category_feed", categoryFeed.Cache())
	caches.Register("transaction_feed", transactionFeed.Cache())
	caches.Register("notices", notices.Cache())
	caches.Start(context.Background(), cacheCleanup)

	opts := []ledger.Option{
		ledger.WithNotifier(notices),
		ledger.WithMetrics(m),
		ledger.WithLogger(logger),
		ledger.WithLocation(loc),
		ledger.WithFeeds(categoryFeed, transactionFeed),
	}
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			events = client
			opts = append(opts, ledger.WithEvents(client))
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
		}
	}
	svc := ledger.New(repo, opts...)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Ledger:         svc,
		Users:          auth.NewPasswordAuthenticator(repo, cfg.BcryptCost),
		Tokens:         auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		Notices:        notices,
		Metrics:        m,
		Logger:         logger,
		Location:       loc,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		HistoryCount:   cfg.HistoryDefaultCount,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		cancelStartup()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := svc.Shutdown(ctx); err != nil {
			logger.Warn("Snapshot refreshes still running at shutdown", log.FieldError, err)
		}
		caches.Stop()
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting finan server", "port", cfg.Port, "db", cfg.SQLiteDBPath, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
