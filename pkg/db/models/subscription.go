package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// Subscription is one lifecycle instance in the per-user history table. Rows
// are never hard-deleted; cancelled rows are retained for audit.
type Subscription struct {
	ID           uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID       string                   `gorm:"column:plan_id;not null"`
	PlanName     string                   `gorm:"column:plan_name;not null"`
	MonthlyPrice decimal.Decimal          `gorm:"column:monthly_price;type:numeric(12,2);not null"`
	AnnualPrice  decimal.Decimal          `gorm:"column:annual_price;type:numeric(12,2);not null"`
	BillingCycle enums.BillingCycle       `gorm:"column:billing_cycle;type:billing_cycle;not null;default:'monthly'"`
	Status       enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`

	StartDate     time.Time  `gorm:"column:start_date;not null"`
	EndDate       *time.Time `gorm:"column:end_date"`
	TrialEndDate  *time.Time `gorm:"column:trial_end_date"`
	IsTrialActive bool       `gorm:"column:is_trial_active;not null;default:false"`

	CancelAtPeriodEnd  bool       `gorm:"column:cancel_at_period_end;not null;default:false"`
	CancellationReason *string    `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`

	// Opaque references into the external payment gateway.
	GatewaySubscriptionRef *string `gorm:"column:gateway_subscription_ref"`
	GatewayChargeRef       *string `gorm:"column:gateway_charge_ref"`

	// User snapshot captured at creation time; never re-fetched.
	UserEmail     string `gorm:"column:user_email;not null"`
	UserFirstName string `gorm:"column:user_first_name"`
	UserLastName  string `gorm:"column:user_last_name"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CyclePrice returns the price charged per billing cycle.
func (s *Subscription) CyclePrice() decimal.Decimal {
	if s.BillingCycle == enums.BillingCycleAnnual {
		return s.AnnualPrice
	}
	return s.MonthlyPrice
}
