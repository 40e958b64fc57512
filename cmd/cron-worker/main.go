package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pennyledger/pledger-backend/internal/cron"
	"github.com/pennyledger/pledger-backend/internal/ledger"
	"github.com/pennyledger/pledger-backend/internal/plans"
	"github.com/pennyledger/pledger-backend/internal/subscriptions"
	"github.com/pennyledger/pledger-backend/pkg/config"
	"github.com/pennyledger/pledger-backend/pkg/db"
	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/metrics"
	"github.com/pennyledger/pledger-backend/pkg/migrate"
	"github.com/pennyledger/pledger-backend/pkg/outbox"
	"github.com/pennyledger/pledger-backend/pkg/redis"
)

const lockKeyFormat = "pl:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()

	planService, err := plans.NewService(plans.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	subscriptionRepo := subscriptions.NewRepository(gormDB)
	syncer, err := subscriptions.NewSyncer(subscriptions.NewProfileRepository(gormDB), subscriptionRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create profile syncer", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(gormDB)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Tx:          dbClient,
		Repo:        subscriptionRepo,
		Index:       subscriptions.NewIndexRepository(gormDB),
		Profiles:    syncer,
		Plans:       planService,
		Ledger:      ledgerService,
		Outbox:      outbox.NewService(outboxRepo, logg),
		Idempotency: redisClient,
		Logger:      logg,
		Billing:     cfg.Billing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	sweepJob, err := cron.NewPeriodEndSweepJob(cron.PeriodEndSweepJobParams{
		Logger:    logg,
		Sweeper:   subscriptionService,
		Metrics:   metricsCollector,
		BatchSize: cfg.Cron.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create period end sweep job", err)
		os.Exit(1)
	}

	duplicateJob, err := cron.NewDuplicateCleanupJob(cron.DuplicateCleanupJobParams{
		Logger:     logg,
		Lister:     subscriptionRepo,
		Reconciler: subscriptionService,
		Metrics:    metricsCollector,
		Limit:      cfg.Cron.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create duplicate cleanup job", err)
		os.Exit(1)
	}

	resyncJob, err := cron.NewProfileResyncJob(cron.ProfileResyncJobParams{
		Logger:   logg,
		Lister:   subscriptionRepo,
		Resyncer: syncer,
		Metrics:  metricsCollector,
		Window:   cfg.Cron.ReconcileWindow,
		Limit:    cfg.Cron.ResyncBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create profile resync job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(sweepJob, duplicateJob, resyncJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
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
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
