package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// Plan is a catalog entry. The engine reads it exactly once per create or
// plan change to populate the subscription snapshot; it never writes plans.
type Plan struct {
	ID            string           `gorm:"column:id;primaryKey"`
	Name          string           `gorm:"column:name;not null"`
	Status        enums.PlanStatus `gorm:"column:status;type:plan_status;not null"`
	IsDefault     bool             `gorm:"column:is_default;not null;default:false"`
	MonthlyPrice  decimal.Decimal  `gorm:"column:monthly_price;type:numeric(12,2);not null"`
	AnnualPrice   decimal.Decimal  `gorm:"column:annual_price;type:numeric(12,2);not null"`
	TrialDays     int              `gorm:"column:trial_days;not null;default:0"`
	FeatureLimits pq.StringArray   `gorm:"column:feature_limits;type:text[];default:ARRAY[]::text[]"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
