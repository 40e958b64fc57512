package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
	"github.com/pennyledger/pledger-backend/pkg/pagination"
)

// IntegrityViolation signals an attempt to rewrite a payment record that has
// already reached a terminal status. The ledger is append-only; hitting this
// means a caller bug, so it is raised as a panic rather than returned.
type IntegrityViolation struct {
	PaymentID uuid.UUID
	From      enums.PaymentStatus
	To        enums.PaymentStatus
}

func (v *IntegrityViolation) Error() string {
	return fmt.Sprintf("ledger integrity violation: payment %s is %s, cannot move to %s",
		v.PaymentID, v.From, v.To)
}

// AppendPaymentInput captures the immutable data a payment record requires.
type AppendPaymentInput struct {
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	BillingCycle   enums.BillingCycle
	PlanName       string
	Mode           enums.PaymentMode
	Status         enums.PaymentStatus
	ChargeRef      *string
	UserDetails    json.RawMessage
	SubDetails     json.RawMessage
	PaymentDate    time.Time
}

// Stats summarizes a user's payment history. TotalSpent, AverageAmount and
// LastPaymentDate only consider completed payments; PaymentCount and
// CountByStatus cover every record.
type Stats struct {
	TotalSpent      decimal.Decimal               `json:"totalSpent"`
	PaymentCount    int64                         `json:"paymentCount"`
	AverageAmount   decimal.Decimal               `json:"averageAmount"`
	CountByStatus   map[enums.PaymentStatus]int64 `json:"countByStatus"`
	LastPaymentDate *time.Time                    `json:"lastPaymentDate,omitempty"`
}

// Service defines operations over the append-only payment ledger.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Append(ctx context.Context, input AppendPaymentInput) (*models.PaymentRecord, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PaymentRecord, string, error)
	ListForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.PaymentRecord, error)
	StatsForUser(ctx context.Context, userID uuid.UUID) (*Stats, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, mode enums.PaymentMode, chargeRef *string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Append(ctx context.Context, input AppendPaymentInput) (*models.PaymentRecord, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.SubscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount cannot be negative")
	}
	if !input.BillingCycle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid billing cycle %q", input.BillingCycle))
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment mode %q", input.Mode))
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", input.Status))
	}
	if input.Currency == "" {
		input.Currency = "usd"
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now().UTC()
	}

	record := &models.PaymentRecord{
		UserID:              input.UserID,
		SubscriptionID:      input.SubscriptionID,
		PaymentAmount:       input.Amount,
		Currency:            input.Currency,
		BillingCycle:        input.BillingCycle,
		PlanName:            input.PlanName,
		ModeOfPayment:       input.Mode,
		PaymentStatus:       input.Status,
		GatewayChargeRef:    input.ChargeRef,
		UserDetails:         input.UserDetails,
		SubscriptionDetails: input.SubDetails,
		PaymentDate:         input.PaymentDate,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payment record")
	}
	return record, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PaymentRecord, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	records, err := s.repo.ListByUser(ctx, userID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}

	next := ""
	if len(records) > limit {
		records = records[:limit]
		last := records[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return records, next, nil
}

func (s *service) ListForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.PaymentRecord, error) {
	if subscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	records, err := s.repo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	return records, nil
}

func (s *service) StatsForUser(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	row, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payment stats")
	}
	average := decimal.Zero
	if row.CompletedCount > 0 {
		average = row.TotalSpent.Div(decimal.NewFromInt(row.CompletedCount)).Round(2)
	}
	return &Stats{
		TotalSpent:    row.TotalSpent,
		PaymentCount:  row.PaymentCount,
		AverageAmount: average,
		CountByStatus: map[enums.PaymentStatus]int64{
			enums.PaymentStatusPending:   row.PendingCount,
			enums.PaymentStatusCompleted: row.CompletedCount,
			enums.PaymentStatusFailed:    row.FailedCount,
			enums.PaymentStatusCancelled: row.CancelledCount,
		},
		LastPaymentDate: row.LastPaymentDate,
	}, nil
}

func (s *service) MarkCompleted(ctx context.Context, id uuid.UUID, mode enums.PaymentMode, chargeRef *string) error {
	if !mode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment mode %q", mode))
	}
	return s.resolve(ctx, id, enums.PaymentStatusCompleted, &mode, chargeRef)
}

func (s *service) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return s.resolve(ctx, id, enums.PaymentStatusFailed, nil, nil)
}

// resolve moves a pending record to a terminal status. A record that already
// reached a terminal status cannot be rewritten; that is raised as a panic.
func (s *service) resolve(ctx context.Context, id uuid.UUID, to enums.PaymentStatus, mode *enums.PaymentMode, chargeRef *string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	affected, err := s.repo.UpdateStatus(ctx, id, enums.PaymentStatusPending, to, mode, chargeRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	if affected > 0 {
		return nil
	}

	// Guard missed: either the record does not exist or it is no longer pending.
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	if record.PaymentStatus == to {
		// Already resolved to the requested status; treat the retry as settled.
		return nil
	}
	panic(&IntegrityViolation{PaymentID: id, From: record.PaymentStatus, To: to})
}
