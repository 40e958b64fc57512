package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	"github.com/pennyledger/pledger-backend/pkg/pagination"
)

// StatsRow is the aggregate projection over a user's payment history.
type StatsRow struct {
	TotalSpent      decimal.Decimal `gorm:"column:total_spent"`
	PaymentCount    int64           `gorm:"column:payment_count"`
	PendingCount    int64           `gorm:"column:pending_count"`
	CompletedCount  int64           `gorm:"column:completed_count"`
	FailedCount     int64           `gorm:"column:failed_count"`
	CancelledCount  int64           `gorm:"column:cancelled_count"`
	LastPaymentDate *time.Time      `gorm:"column:last_payment_date"`
}

// Repository manages persistence for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.PaymentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)
	GetByChargeRef(ctx context.Context, chargeRef string) (*models.PaymentRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentRecord, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.PaymentRecord, error)
	Stats(ctx context.Context, userID uuid.UUID) (*StatsRow, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, mode *enums.PaymentMode, chargeRef *string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) GetByChargeRef(ctx context.Context, chargeRef string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	if err := r.db.WithContext(ctx).
		Where("gateway_charge_ref = ?", chargeRef).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentRecord, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var records []models.PaymentRecord
	if err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) Stats(ctx context.Context, userID uuid.UUID) (*StatsRow, error) {
	var row StatsRow
	err := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Select(`COALESCE(SUM(CASE WHEN payment_status = ? THEN payment_amount ELSE 0 END), 0) AS total_spent,
COUNT(*) AS payment_count,
COALESCE(SUM(CASE WHEN payment_status = ? THEN 1 ELSE 0 END), 0) AS pending_count,
COALESCE(SUM(CASE WHEN payment_status = ? THEN 1 ELSE 0 END), 0) AS completed_count,
COALESCE(SUM(CASE WHEN payment_status = ? THEN 1 ELSE 0 END), 0) AS failed_count,
COALESCE(SUM(CASE WHEN payment_status = ? THEN 1 ELSE 0 END), 0) AS cancelled_count,
MAX(CASE WHEN payment_status = ? THEN payment_date END) AS last_payment_date`,
			enums.PaymentStatusCompleted,
			enums.PaymentStatusPending,
			enums.PaymentStatusCompleted,
			enums.PaymentStatusFailed,
			enums.PaymentStatusCancelled,
			enums.PaymentStatusCompleted).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateStatus flips payment_status only when the row still holds the expected
// source status. The returned count tells the caller whether the guard held.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, mode *enums.PaymentMode, chargeRef *string) (int64, error) {
	updates := map[string]any{"payment_status": to}
	if mode != nil {
		updates["mode_of_payment"] = *mode
	}
	if chargeRef != nil {
		updates["gateway_charge_ref"] = *chargeRef
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}
