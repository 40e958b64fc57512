package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// PaymentRecord is one append-only ledger row. Exactly one is written per
// payment-significant lifecycle transition; only the status field may change
// afterwards, and only while it is still pending.
type PaymentRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	SubscriptionID uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;index"`

	PaymentAmount decimal.Decimal    `gorm:"column:payment_amount;type:numeric(12,2);not null"`
	Currency      string             `gorm:"column:currency;not null;default:'usd'"`
	BillingCycle  enums.BillingCycle `gorm:"column:billing_cycle;type:billing_cycle;not null"`
	PlanName      string             `gorm:"column:plan_name;not null"`

	ModeOfPayment enums.PaymentMode   `gorm:"column:mode_of_payment;type:payment_mode;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`

	GatewayChargeRef *string `gorm:"column:gateway_charge_ref"`

	// Audit snapshots, independent of later mutation of their sources.
	UserDetails         json.RawMessage `gorm:"column:user_details;type:jsonb"`
	SubscriptionDetails json.RawMessage `gorm:"column:subscription_details;type:jsonb"`

	PaymentDate time.Time `gorm:"column:payment_date;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
