package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// Profile carries the denormalized subscription triple used for cheap
// access-control checks. Best-effort cache, never a source of truth.
type Profile struct {
	UserID                uuid.UUID                 `gorm:"column:user_id;type:uuid;primaryKey"`
	SubscriptionPlanID    *string                   `gorm:"column:subscription_plan_id"`
	SubscriptionStatus    *enums.SubscriptionStatus `gorm:"column:subscription_status;type:subscription_status"`
	SubscriptionExpiresAt *time.Time                `gorm:"column:subscription_expires_at"`
	UpdatedAt             time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
