package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/api/middleware"
	"github.com/pennyledger/pledger-backend/api/responses"
	"github.com/pennyledger/pledger-backend/api/validators"
	subsvc "github.com/pennyledger/pledger-backend/internal/subscriptions"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
	"github.com/pennyledger/pledger-backend/pkg/logger"
)

// SubscriptionService is the lifecycle surface the handlers depend on.
type SubscriptionService interface {
	Create(ctx context.Context, input subsvc.CreateInput) (*models.Subscription, error)
	Cancel(ctx context.Context, subscriptionID uuid.UUID, reason string, immediate bool) (*models.Subscription, error)
	ChangePlan(ctx context.Context, userID uuid.UUID, newPlanID string, cycle enums.BillingCycle) (*models.Subscription, error)
	UpdateDetails(ctx context.Context, subscriptionID uuid.UUID, details subsvc.DetailsInput) (*models.Subscription, error)
	GetByID(ctx context.Context, subscriptionID uuid.UUID) (*models.Subscription, error)
	GetLiveSubscription(ctx context.Context, userID uuid.UUID) (*models.ActiveSubscription, error)
	ListHistory(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
}

type subscriptionCreateRequest struct {
	PlanID                 string  `json:"planId" validate:"required"`
	BillingCycle           string  `json:"billingCycle" validate:"required,oneof=monthly annual"`
	IdempotencyKey         string  `json:"idempotencyKey,omitempty"`
	GatewaySubscriptionRef *string `json:"gatewaySubscriptionRef,omitempty"`
}

type subscriptionCancelRequest struct {
	Reason    string `json:"reason,omitempty"`
	Immediate bool   `json:"immediate,omitempty"`
}

type subscriptionChangePlanRequest struct {
	PlanID       string `json:"planId" validate:"required"`
	BillingCycle string `json:"billingCycle,omitempty" validate:"omitempty,oneof=monthly annual"`
}

type subscriptionDetailsRequest struct {
	Email                  *string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName              *string `json:"firstName,omitempty"`
	LastName               *string `json:"lastName,omitempty"`
	GatewaySubscriptionRef *string `json:"gatewaySubscriptionRef,omitempty"`
}

type subscriptionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	PlanID             string          `json:"planId"`
	PlanName           string          `json:"planName"`
	BillingCycle       string          `json:"billingCycle"`
	Status             string          `json:"status"`
	MonthlyPrice       decimal.Decimal `json:"monthlyPrice"`
	AnnualPrice        decimal.Decimal `json:"annualPrice"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            *time.Time      `json:"endDate,omitempty"`
	TrialEndDate       *time.Time      `json:"trialEndDate,omitempty"`
	IsTrialActive      bool            `json:"isTrialActive"`
	CancelAtPeriodEnd  bool            `json:"cancelAtPeriodEnd"`
	CancellationReason *string         `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
}

type liveSubscriptionResponse struct {
	SubscriptionID    uuid.UUID       `json:"subscriptionId"`
	PlanID            string          `json:"planId"`
	PlanName          string          `json:"planName"`
	BillingCycle      string          `json:"billingCycle"`
	Status            string          `json:"status"`
	MonthlyPrice      decimal.Decimal `json:"monthlyPrice"`
	AnnualPrice       decimal.Decimal `json:"annualPrice"`
	StartDate         time.Time       `json:"startDate"`
	EndDate           *time.Time      `json:"endDate,omitempty"`
	TrialEndDate      *time.Time      `json:"trialEndDate,omitempty"`
	IsTrialActive     bool            `json:"isTrialActive"`
	CancelAtPeriodEnd bool            `json:"cancelAtPeriodEnd"`
}

// SubscriptionCreate provisions a subscription for the authenticated user.
// Contact details come from the access token, not the request body.
func SubscriptionCreate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.IdempotencyKey == "" {
			payload.IdempotencyKey = r.Header.Get("Idempotency-Key")
		}

		user := subsvc.UserDetails{UserID: userID}
		if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
			user.Email = claims.Email
			user.FirstName = claims.FirstName
			user.LastName = claims.LastName
		}

		sub, err := svc.Create(r.Context(), subsvc.CreateInput{
			User:           user,
			PlanID:         payload.PlanID,
			BillingCycle:   enums.BillingCycle(payload.BillingCycle),
			IdempotencyKey: payload.IdempotencyKey,
			GatewaySubRef:  payload.GatewaySubscriptionRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSubscriptionResponse(sub))
	}
}

// SubscriptionFetch returns the caller's single live subscription, or null
// for the free tier.
func SubscriptionFetch(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.GetLiveSubscription(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if entry == nil {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, newLiveSubscriptionResponse(entry))
	}
}

// SubscriptionHistory lists every subscription instance the user ever held,
// newest first.
func SubscriptionHistory(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.ListHistory(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]*subscriptionResponse, 0, len(history))
		for i := range history {
			out = append(out, newSubscriptionResponse(&history[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// SubscriptionCancel cancels one of the caller's subscriptions, either
// immediately or at the end of the paid period.
func SubscriptionCancel(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := parseSubscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionCancelRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := ensureOwnership(r.Context(), svc, subscriptionID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Cancel(r.Context(), subscriptionID, payload.Reason, payload.Immediate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

// SubscriptionChangePlan swaps the caller's live subscription onto a new
// plan. The old instance is closed out and a fresh one takes its place.
func SubscriptionChangePlan(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionChangePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.ChangePlan(r.Context(), userID, payload.PlanID, enums.BillingCycle(payload.BillingCycle))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSubscriptionResponse(sub))
	}
}

// SubscriptionUpdateDetails merges contact and gateway metadata onto a
// subscription without touching its lifecycle state.
func SubscriptionUpdateDetails(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := parseSubscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := ensureOwnership(r.Context(), svc, subscriptionID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.UpdateDetails(r.Context(), subscriptionID, subsvc.DetailsInput{
			Email:         payload.Email,
			FirstName:     payload.FirstName,
			LastName:      payload.LastName,
			GatewaySubRef: payload.GatewaySubscriptionRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func ensureOwnership(ctx context.Context, svc SubscriptionService, subscriptionID, userID uuid.UUID) error {
	sub, err := svc.GetByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "subscription belongs to another user")
	}
	return nil
}

func newSubscriptionResponse(sub *models.Subscription) *subscriptionResponse {
	if sub == nil {
		return nil
	}
	return &subscriptionResponse{
		ID:                 sub.ID,
		PlanID:             sub.PlanID,
		PlanName:           sub.PlanName,
		BillingCycle:       sub.BillingCycle.String(),
		Status:             sub.Status.String(),
		MonthlyPrice:       sub.MonthlyPrice,
		AnnualPrice:        sub.AnnualPrice,
		StartDate:          sub.StartDate,
		EndDate:            sub.EndDate,
		TrialEndDate:       sub.TrialEndDate,
		IsTrialActive:      sub.IsTrialActive,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CancellationReason: sub.CancellationReason,
		CancelledAt:        sub.CancelledAt,
	}
}

func newLiveSubscriptionResponse(entry *models.ActiveSubscription) *liveSubscriptionResponse {
	return &liveSubscriptionResponse{
		SubscriptionID:    entry.SubscriptionID,
		PlanID:            entry.PlanID,
		PlanName:          entry.PlanName,
		BillingCycle:      entry.BillingCycle.String(),
		Status:            entry.Status.String(),
		MonthlyPrice:      entry.MonthlyPrice,
		AnnualPrice:       entry.AnnualPrice,
		StartDate:         entry.StartDate,
		EndDate:           entry.EndDate,
		TrialEndDate:      entry.TrialEndDate,
		IsTrialActive:     entry.IsTrialActive,
		CancelAtPeriodEnd: entry.CancelAtPeriodEnd,
	}
}
