package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/pennyledger/pledger-backend/api/routes"
	"github.com/pennyledger/pledger-backend/internal/ledger"
	"github.com/pennyledger/pledger-backend/internal/plans"
	"github.com/pennyledger/pledger-backend/internal/subscriptions"
	"github.com/pennyledger/pledger-backend/internal/webhooks"
	"github.com/pennyledger/pledger-backend/pkg/config"
	"github.com/pennyledger/pledger-backend/pkg/db"
	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/migrate"
	"github.com/pennyledger/pledger-backend/pkg/outbox"
	"github.com/pennyledger/pledger-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Tx:          dbClient,
		Repo:        subscriptionRepo,
		Index:       subscriptions.NewIndexRepository(gormDB),
		Profiles:    syncer,
		Plans:       planService,
		Ledger:      ledgerService,
		Outbox:      outbox.NewService(outbox.NewRepository(gormDB), logg),
		Idempotency: redisClient,
		Logger:      logg,
		Billing:     cfg.Billing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	webhookService, err := webhooks.NewService(subscriptionService, ledgerService, redisClient, logg, cfg.Billing)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, planService, subscriptionService, ledgerService, webhookService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
