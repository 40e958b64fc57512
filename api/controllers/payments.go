package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/api/responses"
	"github.com/pennyledger/pledger-backend/api/validators"
	"github.com/pennyledger/pledger-backend/internal/ledger"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/pagination"
)

// PaymentLedgerService is the read surface of the payment ledger used by the
// handlers.
type PaymentLedgerService interface {
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PaymentRecord, string, error)
	StatsForUser(ctx context.Context, userID uuid.UUID) (*ledger.Stats, error)
}

type paymentResponse struct {
	ID               uuid.UUID       `json:"id"`
	SubscriptionID   uuid.UUID       `json:"subscriptionId"`
	PaymentAmount    decimal.Decimal `json:"paymentAmount"`
	Currency         string          `json:"currency"`
	BillingCycle     string          `json:"billingCycle"`
	PlanName         string          `json:"planName"`
	ModeOfPayment    string          `json:"modeOfPayment"`
	PaymentStatus    string          `json:"paymentStatus"`
	GatewayChargeRef *string         `json:"gatewayChargeRef,omitempty"`
	PaymentDate      time.Time       `json:"paymentDate"`
}

type paymentListResponse struct {
	Items      []paymentResponse `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// PaymentList returns the caller's payment history, newest first, with
// cursor pagination.
func PaymentList(svc PaymentLedgerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, nextCursor, err := svc.ListForUser(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]paymentResponse, 0, len(records))
		for i := range records {
			items = append(items, newPaymentResponse(&records[i]))
		}
		responses.WriteSuccess(w, paymentListResponse{Items: items, NextCursor: nextCursor})
	}
}

// PaymentStats aggregates the caller's settled spend.
func PaymentStats(svc PaymentLedgerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.StatsForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func newPaymentResponse(record *models.PaymentRecord) paymentResponse {
	return paymentResponse{
		ID:               record.ID,
		SubscriptionID:   record.SubscriptionID,
		PaymentAmount:    record.PaymentAmount,
		Currency:         record.Currency,
		BillingCycle:     record.BillingCycle.String(),
		PlanName:         record.PlanName,
		ModeOfPayment:    record.ModeOfPayment.String(),
		PaymentStatus:    record.PaymentStatus.String(),
		GatewayChargeRef: record.GatewayChargeRef,
		PaymentDate:      record.PaymentDate,
	}
}
