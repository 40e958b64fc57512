package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// ActiveSubscription is the uniqueness-enforcing projection of the single live
// subscription per user. It mirrors the source row; it is never edited
// independently and is always overwritten whole.
type ActiveSubscription struct {
	UserID         uuid.UUID                `gorm:"column:user_id;type:uuid;primaryKey"`
	SubscriptionID uuid.UUID                `gorm:"column:subscription_id;type:uuid;not null"`
	PlanID         string                   `gorm:"column:plan_id;not null"`
	PlanName       string                   `gorm:"column:plan_name;not null"`
	MonthlyPrice   decimal.Decimal          `gorm:"column:monthly_price;type:numeric(12,2);not null"`
	AnnualPrice    decimal.Decimal          `gorm:"column:annual_price;type:numeric(12,2);not null"`
	BillingCycle   enums.BillingCycle       `gorm:"column:billing_cycle;type:billing_cycle;not null"`
	Status         enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`

	StartDate         time.Time  `gorm:"column:start_date;not null"`
	EndDate           *time.Time `gorm:"column:end_date"`
	TrialEndDate      *time.Time `gorm:"column:trial_end_date"`
	IsTrialActive     bool       `gorm:"column:is_trial_active;not null;default:false"`
	CancelAtPeriodEnd bool       `gorm:"column:cancel_at_period_end;not null;default:false"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Equal reports whether two index entries carry the same snapshot. UpdatedAt
// is excluded so a repeated Set with identical contents is observably a no-op.
func (a ActiveSubscription) Equal(other ActiveSubscription) bool {
	return a.UserID == other.UserID &&
		a.SubscriptionID == other.SubscriptionID &&
		a.PlanID == other.PlanID &&
		a.PlanName == other.PlanName &&
		a.MonthlyPrice.Equal(other.MonthlyPrice) &&
		a.AnnualPrice.Equal(other.AnnualPrice) &&
		a.BillingCycle == other.BillingCycle &&
		a.Status == other.Status &&
		timePtrEqual(&a.StartDate, &other.StartDate) &&
		timePtrEqual(a.EndDate, other.EndDate) &&
		timePtrEqual(a.TrialEndDate, other.TrialEndDate) &&
		a.IsTrialActive == other.IsTrialActive &&
		a.CancelAtPeriodEnd == other.CancelAtPeriodEnd
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
