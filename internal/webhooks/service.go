package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/internal/ledger"
	"github.com/pennyledger/pledger-backend/internal/subscriptions"
	"github.com/pennyledger/pledger-backend/pkg/config"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/redis"
)

const dedupScope = "webhook"

// Lifecycle is the slice of the orchestrator the adapter drives.
type Lifecycle interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetByGatewayRef(ctx context.Context, ref string) (*models.Subscription, error)
	Transition(ctx context.Context, id uuid.UUID, input subscriptions.TransitionInput) (*models.Subscription, error)
}

// GatewayEvent is one normalized payment-gateway callback. Either the internal
// subscription id or the gateway's own reference identifies the target.
type GatewayEvent struct {
	SubscriptionID *uuid.UUID
	GatewayRef     *string
	NewStatus      enums.SubscriptionStatus
	Amount         *decimal.Decimal
	ChargeRef      *string
}

// Service translates gateway callbacks into lifecycle transitions. Gateways
// redeliver and reorder events freely, so every path here has to be safe to
// hit more than once.
type Service struct {
	lifecycle Lifecycle
	ledger    ledger.Service
	dedup     redis.IdempotencyStore
	logg      *logger.Logger
	billing   config.BillingConfig
}

// NewService wires the webhook adapter.
func NewService(lifecycle Lifecycle, ledgerSvc ledger.Service, dedup redis.IdempotencyStore, logg *logger.Logger, billing config.BillingConfig) (*Service, error) {
	if lifecycle == nil {
		return nil, errors.New("lifecycle service is required")
	}
	if ledgerSvc == nil {
		return nil, errors.New("ledger service is required")
	}
	return &Service{
		lifecycle: lifecycle,
		ledger:    ledgerSvc,
		dedup:     dedup,
		logg:      logg,
		billing:   billing,
	}, nil
}

// Process applies one callback. Duplicates (same charge ref) and stale
// out-of-order events are acknowledged without effect; only a genuinely new
// status change reaches the orchestrator.
func (s *Service) Process(ctx context.Context, event GatewayEvent) (*models.Subscription, error) {
	if !event.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription status")
	}
	if event.SubscriptionID == nil && (event.GatewayRef == nil || *event.GatewayRef == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id or gateway ref is required")
	}

	if duplicate := s.seenBefore(ctx, event.ChargeRef); duplicate {
		s.logInfo(ctx, "duplicate webhook delivery skipped")
		return nil, nil
	}

	sub, err := s.resolve(ctx, event)
	if err != nil {
		return nil, err
	}
	ctx = s.withSubFields(ctx, sub)

	if sub.Status == event.NewStatus {
		// Redelivery of a state we already hold. The only outstanding work
		// can be a pending ledger row waiting for its settlement outcome.
		if err := s.settleOutstanding(ctx, sub, event.ChargeRef); err != nil {
			return nil, err
		}
		return sub, nil
	}

	updated, err := s.lifecycle.Transition(ctx, sub.ID, subscriptions.TransitionInput{
		ToStatus:  event.NewStatus,
		Amount:    event.Amount,
		ChargeRef: event.ChargeRef,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			// Stale event that arrived after a later one already landed.
			s.logWarn(ctx, "out-of-order webhook delivery ignored")
			return sub, nil
		}
		return nil, err
	}
	s.logInfo(ctx, "webhook transition applied")
	return updated, nil
}

// seenBefore claims the charge ref in the dedup store. Redis being down
// degrades to at-least-once; downstream paths tolerate the replay.
func (s *Service) seenBefore(ctx context.Context, chargeRef *string) bool {
	if s.dedup == nil || chargeRef == nil || *chargeRef == "" {
		return false
	}
	key := s.dedup.IdempotencyKey(dedupScope, *chargeRef)
	claimed, err := s.dedup.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.billing.WebhookDedupTTL)
	if err != nil {
		s.logWarn(ctx, "webhook dedup store unavailable")
		return false
	}
	return !claimed
}

func (s *Service) resolve(ctx context.Context, event GatewayEvent) (*models.Subscription, error) {
	if event.SubscriptionID != nil {
		return s.lifecycle.GetByID(ctx, *event.SubscriptionID)
	}
	return s.lifecycle.GetByGatewayRef(ctx, *event.GatewayRef)
}

// settleOutstanding flips the newest pending ledger row to the outcome the
// subscription's current status implies. No pending row means nothing to do.
func (s *Service) settleOutstanding(ctx context.Context, sub *models.Subscription, chargeRef *string) error {
	records, err := s.ledger.ListForSubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	var pending *models.PaymentRecord
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].PaymentStatus == enums.PaymentStatusPending {
			pending = &records[i]
			break
		}
	}
	if pending == nil {
		return nil
	}

	switch sub.Status {
	case enums.SubscriptionStatusActive:
		if err := s.ledger.MarkCompleted(ctx, pending.ID, enums.PaymentModeCard, chargeRef); err != nil {
			return err
		}
		s.logInfo(ctx, "pending payment settled as completed")
	case enums.SubscriptionStatusPastDue:
		if err := s.ledger.MarkFailed(ctx, pending.ID); err != nil {
			return err
		}
		s.logInfo(ctx, "pending payment settled as failed")
	}
	return nil
}

func (s *Service) withSubFields(ctx context.Context, sub *models.Subscription) context.Context {
	if s.logg == nil || sub == nil {
		return ctx
	}
	ctx = s.logg.WithUserID(ctx, sub.UserID.String())
	return s.logg.WithSubscriptionID(ctx, sub.ID.String())
}

func (s *Service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
