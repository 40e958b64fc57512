package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
)

// IndexRepository maintains the one-row-per-user projection of the live
// subscription. Entries are only ever written whole, never merged, so the
// copy cannot drift field-by-field from its source row.
type IndexRepository interface {
	WithTx(tx *gorm.DB) IndexRepository
	Get(ctx context.Context, userID uuid.UUID) (*models.ActiveSubscription, error)
	Set(ctx context.Context, entry models.ActiveSubscription) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type indexRepository struct {
	db *gorm.DB
}

// NewIndexRepository returns an active-subscription index bound to the database.
func NewIndexRepository(db *gorm.DB) IndexRepository {
	return &indexRepository{db: db}
}

func (r *indexRepository) WithTx(tx *gorm.DB) IndexRepository {
	if tx == nil {
		return r
	}
	return &indexRepository{db: tx}
}

// Get returns nil without error when the user has no live subscription.
func (r *indexRepository) Get(ctx context.Context, userID uuid.UUID) (*models.ActiveSubscription, error) {
	var entry models.ActiveSubscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Set is a total-overwrite upsert. A repeat call with an identical snapshot
// is observably a no-op: the stored copy is compared first and the write is
// skipped when nothing changed.
func (r *indexRepository) Set(ctx context.Context, entry models.ActiveSubscription) error {
	current, err := r.Get(ctx, entry.UserID)
	if err != nil {
		return err
	}
	if current != nil && current.Equal(entry) {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&entry).Error
}

func (r *indexRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.ActiveSubscription{}).Error
}
