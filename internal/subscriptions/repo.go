package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// UpdatePatch carries partial field updates. Nil fields are left untouched so
// concurrent writers never clobber columns they did not mean to change.
type UpdatePatch struct {
	Status             *enums.SubscriptionStatus
	EndDate            *time.Time
	TrialEndDate       *time.Time
	IsTrialActive      *bool
	CancelAtPeriodEnd  *bool
	CancellationReason *string
	CancelledAt        *time.Time
	GatewaySubRef      *string
	GatewayChargeRef   *string
	UserEmail          *string
	UserFirstName      *string
	UserLastName       *string
}

func (p UpdatePatch) columns() map[string]any {
	updates := map[string]any{}
	if p.Status != nil {
		updates["status"] = *p.Status
	}
	if p.EndDate != nil {
		updates["end_date"] = *p.EndDate
	}
	if p.TrialEndDate != nil {
		updates["trial_end_date"] = *p.TrialEndDate
	}
	if p.IsTrialActive != nil {
		updates["is_trial_active"] = *p.IsTrialActive
	}
	if p.CancelAtPeriodEnd != nil {
		updates["cancel_at_period_end"] = *p.CancelAtPeriodEnd
	}
	if p.CancellationReason != nil {
		updates["cancellation_reason"] = *p.CancellationReason
	}
	if p.CancelledAt != nil {
		updates["cancelled_at"] = *p.CancelledAt
	}
	if p.GatewaySubRef != nil {
		updates["gateway_subscription_ref"] = *p.GatewaySubRef
	}
	if p.GatewayChargeRef != nil {
		updates["gateway_charge_ref"] = *p.GatewayChargeRef
	}
	if p.UserEmail != nil {
		updates["user_email"] = *p.UserEmail
	}
	if p.UserFirstName != nil {
		updates["user_first_name"] = *p.UserFirstName
	}
	if p.UserLastName != nil {
		updates["user_last_name"] = *p.UserLastName
	}
	return updates
}

// Repository manages the per-user subscription history table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetByGatewayRef(ctx context.Context, ref string) (*models.Subscription, error)
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListLiveForUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	ListDuePeriodEnd(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error)
	ListUsersWithDuplicateLive(ctx context.Context, limit int) ([]uuid.UUID, error)
	ListRecentlyUpdatedUserIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) GetByGatewayRef(ctx context.Context, ref string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("gateway_subscription_ref = ?", ref).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetLatestForUser returns the most recently created row regardless of status.
// Callers that need the live one must filter or use the active index.
func (r *repository) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListLiveForUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, enums.LiveSubscriptionStatuses()).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListDuePeriodEnd returns live rows flagged cancel_at_period_end whose period
// boundary has passed, for the scheduled sweep.
func (r *repository) ListDuePeriodEnd(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("cancel_at_period_end = ? AND status IN ? AND end_date IS NOT NULL AND end_date <= ?",
			true, enums.LiveSubscriptionStatuses(), cutoff).
		Order("end_date ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListUsersWithDuplicateLive finds users holding more than one live row, the
// population the duplicate-cleanup job repairs.
func (r *repository) ListUsersWithDuplicateLive(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("user_id").
		Where("status IN ?", enums.LiveSubscriptionStatuses()).
		Group("user_id").
		Having("COUNT(*) > 1").
		Limit(limit).
		Find(&userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

// ListRecentlyUpdatedUserIDs returns users whose history changed after the
// given instant, so the profile resync job only touches warm rows.
func (r *repository) ListRecentlyUpdatedUserIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Distinct("user_id").
		Where("updated_at >= ?", since).
		Limit(limit).
		Find(&userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*models.Subscription, error) {
	updates := patch.columns()
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).
			Model(&models.Subscription{}).
			Where("id = ?", id).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.GetByID(ctx, id)
}
