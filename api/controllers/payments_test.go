package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/internal/ledger"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	"github.com/pennyledger/pledger-backend/pkg/pagination"
)

type stubLedgerService struct {
	records    []models.PaymentRecord
	nextCursor string
	stats      *ledger.Stats
	err        error

	lastParams pagination.Params
}

func (s *stubLedgerService) ListForUser(_ context.Context, _ uuid.UUID, params pagination.Params) ([]models.PaymentRecord, string, error) {
	s.lastParams = params
	return s.records, s.nextCursor, s.err
}

func (s *stubLedgerService) StatsForUser(_ context.Context, _ uuid.UUID) (*ledger.Stats, error) {
	return s.stats, s.err
}

func samplePayment() models.PaymentRecord {
	return models.PaymentRecord{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		SubscriptionID: uuid.New(),
		PaymentAmount:  decimal.RequireFromString("29.99"),
		Currency:       "usd",
		BillingCycle:   enums.BillingCycleMonthly,
		PlanName:       "Pro",
		ModeOfPayment:  enums.PaymentModeCard,
		PaymentStatus:  enums.PaymentStatusCompleted,
		PaymentDate:    time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestPaymentListForwardsPagination(t *testing.T) {
	service := &stubLedgerService{
		records:    []models.PaymentRecord{samplePayment(), samplePayment()},
		nextCursor: "cursor-2",
	}
	handler := PaymentList(service, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?limit=2&cursor=cursor-1", nil)
	req = authedRequest(req, uuid.New())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.lastParams.Limit != 2 || service.lastParams.Cursor != "cursor-1" {
		t.Fatalf("pagination not forwarded: %+v", service.lastParams)
	}

	var envelope struct {
		Data paymentListResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Items) != 2 || envelope.Data.NextCursor != "cursor-2" {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
	if envelope.Data.Items[0].PaymentStatus != "completed" {
		t.Fatalf("unexpected status: %q", envelope.Data.Items[0].PaymentStatus)
	}
}

func TestPaymentListRejectsBadLimit(t *testing.T) {
	handler := PaymentList(&stubLedgerService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?limit=nope", nil)
	req = authedRequest(req, uuid.New())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestPaymentListRequiresAuth(t *testing.T) {
	handler := PaymentList(&stubLedgerService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestPaymentStatsSuccess(t *testing.T) {
	last := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	service := &stubLedgerService{stats: &ledger.Stats{
		TotalSpent:    decimal.RequireFromString("59.98"),
		PaymentCount:  2,
		AverageAmount: decimal.RequireFromString("29.99"),
		CountByStatus: map[enums.PaymentStatus]int64{
			enums.PaymentStatusCompleted: 2,
		},
		LastPaymentDate: &last,
	}}
	handler := PaymentStats(service, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/stats", nil)
	req = authedRequest(req, uuid.New())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var envelope struct {
		Data ledger.Stats `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.PaymentCount != 2 {
		t.Fatalf("unexpected stats: %+v", envelope.Data)
	}
	if !envelope.Data.AverageAmount.Equal(decimal.RequireFromString("29.99")) {
		t.Fatalf("average not surfaced: %+v", envelope.Data)
	}
	if envelope.Data.CountByStatus[enums.PaymentStatusCompleted] != 2 {
		t.Fatalf("status counts not surfaced: %+v", envelope.Data)
	}
}
