package outbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// SubscriptionEventData is the data block for subscription lifecycle events.
type SubscriptionEventData struct {
	SubscriptionID     uuid.UUID                `json:"subscriptionId"`
	UserID             uuid.UUID                `json:"userId"`
	PlanID             string                   `json:"planId"`
	PlanName           string                   `json:"planName"`
	Status             enums.SubscriptionStatus `json:"status"`
	PreviousStatus     *string                  `json:"previousStatus,omitempty"`
	BillingCycle       enums.BillingCycle       `json:"billingCycle"`
	StartDate          time.Time                `json:"startDate"`
	EndDate            *time.Time               `json:"endDate,omitempty"`
	CancellationReason *string                  `json:"cancellationReason,omitempty"`
}

// PaymentEventData is the data block for ledger append events.
type PaymentEventData struct {
	PaymentID      uuid.UUID           `json:"paymentId"`
	UserID         uuid.UUID           `json:"userId"`
	SubscriptionID uuid.UUID           `json:"subscriptionId"`
	Amount         decimal.Decimal     `json:"amount"`
	Currency       string              `json:"currency"`
	PlanName       string              `json:"planName"`
	Status         enums.PaymentStatus `json:"status"`
	PaymentDate    time.Time           `json:"paymentDate"`
}
