package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pennyledger/pledger-backend/internal/ledger"
	"github.com/pennyledger/pledger-backend/internal/plans"
	"github.com/pennyledger/pledger-backend/pkg/config"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/outbox"
	"github.com/pennyledger/pledger-backend/pkg/redis"
)

const (
	reasonDuplicateCleanup = "duplicate cleanup"
	reasonPlanChange       = "plan change"
	reasonPeriodEnd        = "period end"

	idempotencyScopeCreate = "create"
	createKeyPending       = "pending"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the lifecycle orchestrator.
type ServiceParams struct {
	Tx          TxRunner
	Repo        Repository
	Index       IndexRepository
	Profiles    *Syncer
	Plans       plans.Service
	Ledger      ledger.Service
	Outbox      *outbox.Service
	Idempotency redis.IdempotencyStore
	Logger      *logger.Logger
	Billing     config.BillingConfig
}

// Service is the lifecycle orchestrator. It owns every write to the
// subscription history, the active index, the payment ledger and the profile
// copy; nothing else in the codebase mutates those records.
type Service struct {
	tx       TxRunner
	repo     Repository
	index    IndexRepository
	profiles *Syncer
	plans    plans.Service
	ledger   ledger.Service
	outbox   *outbox.Service
	idem     redis.IdempotencyStore
	logg     *logger.Logger
	billing  config.BillingConfig
}

// NewService builds the orchestrator, validating required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("subscription repository is required")
	}
	if params.Index == nil {
		return nil, errors.New("index repository is required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profile syncer is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan service is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	return &Service{
		tx:       params.Tx,
		repo:     params.Repo,
		index:    params.Index,
		profiles: params.Profiles,
		plans:    params.Plans,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		idem:     params.Idempotency,
		logg:     params.Logger,
		billing:  params.Billing,
	}, nil
}

// CreateInput captures a new-subscription intent.
type CreateInput struct {
	User           UserDetails
	PlanID         string
	BillingCycle   enums.BillingCycle
	IdempotencyKey string
	GatewaySubRef  *string
}

// TransitionInput drives a status change, typically from a gateway callback.
type TransitionInput struct {
	ToStatus  enums.SubscriptionStatus
	Amount    *decimal.Decimal
	ChargeRef *string
	Reason    *string
}

// DetailsInput is a metadata-only merge; it never produces a ledger row.
type DetailsInput struct {
	Email         *string
	FirstName     *string
	LastName      *string
	GatewaySubRef *string
}

// Create provisions a new subscription instance. Duplicate live rows are
// reconciled first, then the four writes run inside one transaction in the
// fixed order subscription, index, ledger, profile.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Subscription, error) {
	if input.User.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.User.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user email is required")
	}
	if input.BillingCycle == "" {
		input.BillingCycle = enums.BillingCycleMonthly
	}
	if !input.BillingCycle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid billing cycle %q", input.BillingCycle))
	}

	plan, err := s.plans.Resolve(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not open for signup")
	}

	key, replay := s.claimCreateKey(ctx, input)
	if replay != nil {
		return replay, nil
	}

	var created *models.Subscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		created, txErr = s.createInTx(ctx, tx, input, plan, "")
		return txErr
	})
	if err != nil {
		s.releaseCreateKey(ctx, key)
		return nil, err
	}
	s.recordCreateKey(ctx, key, created.ID)
	return created, nil
}

// claimCreateKey claims the caller's idempotency key. The key starts out
// holding a pending marker and is swapped for the created subscription ID
// once the transaction commits, so a replay only short-circuits when the
// first attempt actually finished; a key left pending by a crashed attempt
// is reused by the retry. Redis being down degrades to reconciliation-only
// dedup.
func (s *Service) claimCreateKey(ctx context.Context, input CreateInput) (string, *models.Subscription) {
	if s.idem == nil || input.IdempotencyKey == "" {
		return "", nil
	}
	key := s.idem.IdempotencyKey(idempotencyScopeCreate, input.IdempotencyKey)
	claimed, err := s.idem.SetNX(ctx, key, createKeyPending, s.billing.CreateIdempotencyTTL)
	if err != nil {
		s.logWarn(ctx, "idempotency store unavailable, relying on reconciliation")
		return "", nil
	}
	if claimed {
		return key, nil
	}
	val, err := s.idem.Get(ctx, key)
	if err != nil || val == "" || val == createKeyPending {
		return key, nil
	}
	subID, parseErr := uuid.Parse(val)
	if parseErr != nil {
		return key, nil
	}
	sub, err := s.repo.GetByID(ctx, subID)
	if err != nil {
		return key, nil
	}
	return "", sub
}

func (s *Service) releaseCreateKey(ctx context.Context, key string) {
	if s.idem == nil || key == "" {
		return
	}
	if err := s.idem.Del(ctx, key); err != nil {
		s.logWarn(ctx, "failed to release create idempotency key")
	}
}

func (s *Service) recordCreateKey(ctx context.Context, key string, subID uuid.UUID) {
	if s.idem == nil || key == "" {
		return
	}
	if err := s.idem.Set(ctx, key, subID.String(), s.billing.CreateIdempotencyTTL); err != nil {
		s.logWarn(ctx, "failed to record create idempotency key")
	}
}

// createInTx runs the ordered create sequence on the given transaction.
// paymentStatus overrides the default ledger classification when non-empty
// (plan changes land completed rather than pending).
func (s *Service) createInTx(ctx context.Context, tx *gorm.DB, input CreateInput, plan *models.Plan, paymentStatus enums.PaymentStatus) (*models.Subscription, error) {
	repo := s.repo.WithTx(tx)
	now := time.Now().UTC()

	// The row about to be created is the survivor; any currently live rows
	// are duplicates of it.
	if _, err := s.reconcileInTx(ctx, tx, input.User.UserID, now, false); err != nil {
		return nil, err
	}

	sub := newSubscription(input.User, plan, input.BillingCycle, now)
	sub.GatewaySubscriptionRef = input.GatewaySubRef
	if err := repo.Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}

	ctx = s.withSubFields(ctx, sub)
	if err := s.index.WithTx(tx).Set(ctx, indexSnapshot(sub)); err != nil {
		return nil, s.partialWrite(ctx, "index", sub, err)
	}

	amount := sub.CyclePrice()
	status := paymentStatus
	if status == "" {
		status = enums.PaymentStatusPending
		if amount.IsZero() {
			status = enums.PaymentStatusCompleted
		}
	}
	if _, err := s.ledger.WithTx(tx).Append(ctx, ledger.AppendPaymentInput{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		Currency:       s.billing.DefaultCurrency,
		BillingCycle:   sub.BillingCycle,
		PlanName:       sub.PlanName,
		Mode:           paymentModeFor(status, amount),
		Status:         status,
		UserDetails:    userDetailsJSON(sub),
		SubDetails:     subscriptionDetailsJSON(sub),
		PaymentDate:    now,
	}); err != nil {
		return nil, s.partialWrite(ctx, "ledger", sub, err)
	}

	if err := s.profiles.WithTx(tx).SyncFromSubscription(ctx, sub); err != nil {
		return nil, s.partialWrite(ctx, "profile", sub, err)
	}

	s.emitEvent(ctx, tx, enums.EventSubscriptionCreated, sub, nil)
	s.logInfo(ctx, "subscription created")
	return sub, nil
}

// Transition applies a status change after validating it against the
// transition table. Every accepted transition appends exactly one ledger row
// with the derived amount and status.
func (s *Service) Transition(ctx context.Context, subscriptionID uuid.UUID, input TransitionInput) (*models.Subscription, error) {
	if !input.ToStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.ToStatus))
	}
	sub, err := s.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(sub.Status, input.ToStatus) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move subscription from %s to %s", sub.Status, input.ToStatus))
	}

	from := sub.Status
	now := time.Now().UTC()
	patch := UpdatePatch{Status: &input.ToStatus}
	if from == enums.SubscriptionStatusTrialing {
		off := false
		patch.IsTrialActive = &off
	}
	if input.ToStatus == enums.SubscriptionStatusCancelled {
		patch.EndDate = &now
		patch.CancelledAt = &now
		if input.Reason != nil {
			patch.CancellationReason = input.Reason
		}
	}
	if input.ChargeRef != nil {
		patch.GatewayChargeRef = input.ChargeRef
	}

	var updated *models.Subscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		updated, txErr = s.repo.WithTx(tx).Update(ctx, subscriptionID, patch)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "update subscription")
		}

		logCtx := s.withSubFields(ctx, updated)
		if updated.Status.IsLive() {
			if err := s.index.WithTx(tx).Set(logCtx, indexSnapshot(updated)); err != nil {
				return s.partialWrite(logCtx, "index", updated, err)
			}
		} else {
			if err := s.index.WithTx(tx).Clear(logCtx, updated.UserID); err != nil {
				return s.partialWrite(logCtx, "index", updated, err)
			}
		}

		amount := updated.CyclePrice()
		if input.Amount != nil {
			amount = *input.Amount
		}
		paymentStatus := derivedPaymentStatus(from, updated.Status)
		if _, err := s.ledger.WithTx(tx).Append(logCtx, ledger.AppendPaymentInput{
			UserID:         updated.UserID,
			SubscriptionID: updated.ID,
			Amount:         amount,
			Currency:       s.billing.DefaultCurrency,
			BillingCycle:   updated.BillingCycle,
			PlanName:       updated.PlanName,
			Mode:           paymentModeFor(paymentStatus, amount),
			Status:         paymentStatus,
			ChargeRef:      input.ChargeRef,
			UserDetails:    userDetailsJSON(updated),
			SubDetails:     subscriptionDetailsJSON(updated),
			PaymentDate:    now,
		}); err != nil {
			return s.partialWrite(logCtx, "ledger", updated, err)
		}

		if err := s.syncProfileFor(logCtx, tx, updated); err != nil {
			return s.partialWrite(logCtx, "profile", updated, err)
		}

		eventType := enums.EventSubscriptionUpdated
		if updated.Status == enums.SubscriptionStatusCancelled {
			eventType = enums.EventSubscriptionCancelled
		}
		s.emitEvent(logCtx, tx, eventType, updated, &from)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withSubFields(ctx, updated), "subscription transitioned")
	return updated, nil
}

// Cancel ends a subscription. Immediate cancellation takes effect now and
// appends a cancelled ledger row; deferred cancellation only flags the row
// and lets the period-end sweep finish the job at the boundary.
func (s *Service) Cancel(ctx context.Context, subscriptionID uuid.UUID, reason string, immediate bool) (*models.Subscription, error) {
	sub, err := s.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already cancelled")
	}

	if immediate {
		return s.Transition(ctx, subscriptionID, TransitionInput{
			ToStatus: enums.SubscriptionStatusCancelled,
			Reason:   &reason,
		})
	}

	now := time.Now().UTC()
	flag := true
	boundary := periodEnd(sub.StartDate, sub.BillingCycle, now)
	patch := UpdatePatch{
		CancelAtPeriodEnd:  &flag,
		EndDate:            &boundary,
		CancellationReason: &reason,
	}

	var updated *models.Subscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		updated, txErr = s.repo.WithTx(tx).Update(ctx, subscriptionID, patch)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "update subscription")
		}
		logCtx := s.withSubFields(ctx, updated)
		if err := s.index.WithTx(tx).Set(logCtx, indexSnapshot(updated)); err != nil {
			return s.partialWrite(logCtx, "index", updated, err)
		}
		if err := s.profiles.WithTx(tx).SyncFromSubscription(logCtx, updated); err != nil {
			return s.partialWrite(logCtx, "profile", updated, err)
		}
		prev := updated.Status
		s.emitEvent(logCtx, tx, enums.EventSubscriptionUpdated, updated, &prev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withSubFields(ctx, updated), "subscription flagged for period-end cancellation")
	return updated, nil
}

// ChangePlan swaps the user onto a new plan: cancel-then-create, so two live
// paid subscriptions never coexist. The transient zero-live window inside the
// transaction is acceptable; readers treat "no live subscription" as free tier.
func (s *Service) ChangePlan(ctx context.Context, userID uuid.UUID, newPlanID string, cycle enums.BillingCycle) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	plan, err := s.plans.Get(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not open for signup")
	}

	live, err := s.repo.ListLiveForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list live subscriptions")
	}
	if len(live) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no live subscription to change")
	}
	current := live[0]
	if cycle == "" {
		cycle = current.BillingCycle
	}

	var created *models.Subscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := s.forceCancelInTx(ctx, tx, current.ID, reasonPlanChange, now); err != nil {
			return err
		}

		// The plan change itself is the payment-significant event; the new
		// row's ledger classification follows where it lands.
		paymentStatus := enums.PaymentStatusPending
		if plan.TrialDays == 0 {
			paymentStatus = enums.PaymentStatusCompleted
		}
		input := CreateInput{
			User: UserDetails{
				UserID:    current.UserID,
				Email:     current.UserEmail,
				FirstName: current.UserFirstName,
				LastName:  current.UserLastName,
			},
			PlanID:       plan.ID,
			BillingCycle: cycle,
		}
		var txErr error
		created, txErr = s.createInTx(ctx, tx, input, plan, paymentStatus)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withSubFields(ctx, created), "subscription plan changed")
	return created, nil
}

// UpdateDetails merges caller-supplied metadata onto the history row. Not a
// payment-significant edit: the ledger is never touched here.
func (s *Service) UpdateDetails(ctx context.Context, subscriptionID uuid.UUID, details DetailsInput) (*models.Subscription, error) {
	patch := UpdatePatch{
		UserEmail:     details.Email,
		UserFirstName: details.FirstName,
		UserLastName:  details.LastName,
		GatewaySubRef: details.GatewaySubRef,
	}
	updated, err := s.repo.Update(ctx, subscriptionID, patch)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return updated, nil
}

// ReconcileDuplicates is the standalone repair pass: it restores the
// at-most-one-live invariant, repoints the index and profile at the survivor,
// and reports which rows it had to cancel.
func (s *Service) ReconcileDuplicates(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var cancelled []uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var txErr error
		cancelled, txErr = s.reconcileInTx(ctx, tx, userID, now, true)
		if txErr != nil {
			return txErr
		}

		live, err := s.repo.WithTx(tx).ListLiveForUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list live subscriptions")
		}
		if len(live) == 0 {
			if err := s.index.WithTx(tx).Clear(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear index")
			}
			return s.profiles.WithTx(tx).Resync(ctx, userID)
		}
		if err := s.index.WithTx(tx).Set(ctx, indexSnapshot(&live[0])); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set index")
		}
		return s.profiles.WithTx(tx).SyncFromSubscription(ctx, &live[0])
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// reconcileInTx force-cancels duplicate live rows. With keepNewest the newest
// row survives; without it every live row is cancelled, which is the create
// path where the row about to be written is the survivor. Row failures are
// aggregated so one bad row does not strand the others.
func (s *Service) reconcileInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time, keepNewest bool) ([]uuid.UUID, error) {
	live, err := s.repo.WithTx(tx).ListLiveForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list live subscriptions")
	}
	extras := live
	if keepNewest {
		if len(live) <= 1 {
			return nil, nil
		}
		extras = live[1:]
	}

	var cancelled []uuid.UUID
	var errs error
	for _, extra := range extras {
		if err := s.forceCancelInTx(ctx, tx, extra.ID, reasonDuplicateCleanup, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel duplicate %s: %w", extra.ID, err))
			continue
		}
		cancelled = append(cancelled, extra.ID)
		s.logWarn(s.withSubFields(ctx, &extra), "duplicate live subscription cancelled")
	}
	return cancelled, errs
}

// forceCancelInTx flips one row to cancelled without touching the index,
// ledger or profile; callers own those follow-up writes.
func (s *Service) forceCancelInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string, now time.Time) error {
	status := enums.SubscriptionStatusCancelled
	off := false
	patch := UpdatePatch{
		Status:             &status,
		EndDate:            &now,
		CancelledAt:        &now,
		CancellationReason: &reason,
		IsTrialActive:      &off,
	}
	if _, err := s.repo.WithTx(tx).Update(ctx, id, patch); err != nil {
		return err
	}
	return nil
}

// SweepPeriodEnd completes deferred cancellations whose period boundary has
// passed. Used by the scheduled sweep; returns how many rows it closed.
func (s *Service) SweepPeriodEnd(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	due, err := s.repo.ListDuePeriodEnd(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due subscriptions")
	}

	var errs error
	swept := 0
	for _, sub := range due {
		reason := sub.CancellationReason
		if reason == nil {
			r := reasonPeriodEnd
			reason = &r
		}
		if _, err := s.Transition(ctx, sub.ID, TransitionInput{
			ToStatus: enums.SubscriptionStatusCancelled,
			Reason:   reason,
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep subscription %s: %w", sub.ID, err))
			continue
		}
		swept++
	}
	return swept, errs
}

// GetLiveSubscription reads the active index; nil means free tier, not error.
func (s *Service) GetLiveSubscription(ctx context.Context, userID uuid.UUID) (*models.ActiveSubscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	entry, err := s.index.Get(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read active index")
	}
	return entry, nil
}

// GetByID loads one history row.
func (s *Service) GetByID(ctx context.Context, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return s.loadSubscription(ctx, subscriptionID)
}

// GetByGatewayRef resolves the subscription a gateway callback refers to.
func (s *Service) GetByGatewayRef(ctx context.Context, ref string) (*models.Subscription, error) {
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway ref is required")
	}
	sub, err := s.repo.GetByGatewayRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

// ListHistory returns every subscription instance the user ever had.
func (s *Service) ListHistory(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	subs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, nil
}

func (s *Service) loadSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

// syncProfileFor mirrors live rows onto the profile and clears the triple on
// cancellation so the copy converges with what Resync would compute.
func (s *Service) syncProfileFor(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	if sub.Status.IsLive() {
		return s.profiles.WithTx(tx).SyncFromSubscription(ctx, sub)
	}
	return s.profiles.WithTx(tx).Sync(ctx, sub.UserID, nil, nil, nil)
}

func (s *Service) emitEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, sub *models.Subscription, prev *enums.SubscriptionStatus) {
	if s.outbox == nil {
		return
	}
	var prevStatus *string
	if prev != nil {
		v := string(*prev)
		prevStatus = &v
	}
	userID := sub.UserID
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		UserID:        &userID,
		Data: outbox.SubscriptionEventData{
			SubscriptionID:     sub.ID,
			UserID:             sub.UserID,
			PlanID:             sub.PlanID,
			PlanName:           sub.PlanName,
			Status:             sub.Status,
			PreviousStatus:     prevStatus,
			BillingCycle:       sub.BillingCycle,
			StartDate:          sub.StartDate,
			EndDate:            sub.EndDate,
			CancellationReason: sub.CancellationReason,
		},
	})
	if err != nil {
		// The event rides the same transaction; a marshal failure here is the
		// only realistic cause and must not sink the state change.
		s.logError(ctx, "emit outbox event", err)
	}
}

// partialWrite tags a failure that happened after the subscription row was
// written. The transaction still rolls back as a whole; the code and logged
// step exist so operators and the repair jobs can tell which write tripped.
func (s *Service) partialWrite(ctx context.Context, step string, sub *models.Subscription, err error) error {
	s.logError(ctx, fmt.Sprintf("ordered write failed at step %s", step), err)
	return pkgerrors.Wrap(pkgerrors.CodePartialWrite, err, "write partially applied, repair scheduled").
		WithDetails(map[string]string{
			"step":           step,
			"userId":         sub.UserID.String(),
			"subscriptionId": sub.ID.String(),
		})
}

func paymentModeFor(status enums.PaymentStatus, amount decimal.Decimal) enums.PaymentMode {
	if status != enums.PaymentStatusCompleted {
		return enums.PaymentModePending
	}
	if amount.IsZero() {
		return enums.PaymentModeOther
	}
	return enums.PaymentModeCard
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

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}
