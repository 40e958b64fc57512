package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
)

// ProfileRepository persists the denormalized subscription triple on profiles.
type ProfileRepository interface {
	WithTx(tx *gorm.DB) ProfileRepository
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Upsert(ctx context.Context, profile models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a profile repository bound to the database.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) WithTx(tx *gorm.DB) ProfileRepository {
	if tx == nil {
		return r
	}
	return &profileRepository{db: tx}
}

func (r *profileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Upsert(ctx context.Context, profile models.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&profile).Error
}

// Syncer keeps the profile copy of {planId, status, expiryDate} roughly
// current. It is a cache for cheap access checks, never a source of truth.
type Syncer struct {
	profiles ProfileRepository
	subs     Repository
}

// NewSyncer wires a profile syncer.
func NewSyncer(profiles ProfileRepository, subs Repository) (*Syncer, error) {
	if profiles == nil {
		return nil, errors.New("profile repository required")
	}
	if subs == nil {
		return nil, errors.New("subscription repository required")
	}
	return &Syncer{profiles: profiles, subs: subs}, nil
}

// WithTx binds both repositories to the given transaction.
func (s *Syncer) WithTx(tx *gorm.DB) *Syncer {
	if tx == nil {
		return s
	}
	return &Syncer{profiles: s.profiles.WithTx(tx), subs: s.subs.WithTx(tx)}
}

// Sync overwrites the profile triple with the given values.
func (s *Syncer) Sync(ctx context.Context, userID uuid.UUID, planID *string, status *enums.SubscriptionStatus, expiry *time.Time) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.profiles.Upsert(ctx, models.Profile{
		UserID:                userID,
		SubscriptionPlanID:    planID,
		SubscriptionStatus:    status,
		SubscriptionExpiresAt: expiry,
	})
}

// SyncFromSubscription projects the triple out of a subscription row.
func (s *Syncer) SyncFromSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	planID := sub.PlanID
	status := sub.Status
	return s.Sync(ctx, sub.UserID, &planID, &status, profileExpiry(sub))
}

// Resync recomputes the triple from subscription-store truth. No live row
// clears the fields, meaning free tier, and is not an error.
func (s *Syncer) Resync(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	live, err := s.subs.ListLiveForUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list live subscriptions")
	}
	if len(live) == 0 {
		return s.Sync(ctx, userID, nil, nil, nil)
	}
	return s.SyncFromSubscription(ctx, &live[0])
}

func profileExpiry(sub *models.Subscription) *time.Time {
	if sub.EndDate != nil {
		return sub.EndDate
	}
	return sub.TrialEndDate
}
