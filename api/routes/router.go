package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pennyledger/pledger-backend/api/controllers"
	"github.com/pennyledger/pledger-backend/api/middleware"
	"github.com/pennyledger/pledger-backend/internal/plans"
	"github.com/pennyledger/pledger-backend/pkg/config"
	"github.com/pennyledger/pledger-backend/pkg/db"
	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	planService plans.Service,
	subscriptionService controllers.SubscriptionService,
	ledgerService controllers.PaymentLedgerService,
	webhookService controllers.GatewayWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Route("/v1/plans", func(r chi.Router) {
			r.Get("/", controllers.PlanList(planService, logg))
			r.Get("/{planId}", controllers.PlanFetch(planService, logg))
		})
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", controllers.GatewayWebhook(webhookService, cfg.Billing.WebhookSigningSecret, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/v1/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionCreate(subscriptionService, logg))
			r.Get("/me", controllers.SubscriptionFetch(subscriptionService, logg))
			r.Get("/history", controllers.SubscriptionHistory(subscriptionService, logg))
			r.Post("/change-plan", controllers.SubscriptionChangePlan(subscriptionService, logg))
			r.Post("/{subscriptionId}/cancel", controllers.SubscriptionCancel(subscriptionService, logg))
			r.Patch("/{subscriptionId}/details", controllers.SubscriptionUpdateDetails(subscriptionService, logg))
		})

		r.Route("/v1/payments", func(r chi.Router) {
			r.Get("/", controllers.PaymentList(ledgerService, logg))
			r.Get("/stats", controllers.PaymentStats(ledgerService, logg))
		})
	})

	return r
}
