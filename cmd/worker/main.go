package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrimandi/agrimarket-backend/internal/cron"
	"github.com/agrimandi/agrimarket-backend/internal/insurance"
	"github.com/agrimandi/agrimarket-backend/internal/ledger"
	"github.com/agrimandi/agrimarket-backend/internal/parties"
	"github.com/agrimandi/agrimarket-backend/pkg/config"
	"github.com/agrimandi/agrimarket-backend/pkg/db"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
	"github.com/agrimandi/agrimarket-backend/pkg/metrics"
	"github.com/agrimandi/agrimarket-backend/pkg/migrate"
	"github.com/agrimandi/agrimarket-backend/pkg/outbox"
	"github.com/agrimandi/agrimarket-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	partyRepo := parties.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	insuranceSvc, err := insurance.NewService(
		dbClient,
		insurance.NewRepository(dbClient.DB()),
		partyRepo,
		ledgerSvc,
		outboxSvc,
		settlementMetrics,
		logg,
		nil,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create insurance service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewSubscriptionExpiryJob(cron.SubscriptionExpiryJobParams{
		Logger:    logg,
		Insurance: insuranceSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}
	auditJob, err := cron.NewLedgerAuditJob(cron.LedgerAuditJobParams{
		Logger:    logg,
		PartyRepo: partyRepo,
		Ledger:    ledgerSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockScope(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, auditJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Insurance.SubscriptionExpiryInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func lockScope(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("worker:%s", env)
}
