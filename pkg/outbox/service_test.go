package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(setupOutboxTestDB(t)), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestEmitStoresEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	subID := uuid.New()
	userID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventSubscriptionCreated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   subID,
			UserID:        &userID,
			Data: SubscriptionEventData{
				SubscriptionID: subID,
				UserID:         userID,
				PlanID:         "pro",
				PlanName:       "Pro",
				Status:         enums.SubscriptionStatusActive,
				BillingCycle:   enums.BillingCycleMonthly,
				StartDate:      time.Now().UTC(),
			},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, enums.EventSubscriptionCreated, row.EventType)
	require.Equal(t, enums.AggregateSubscription, row.AggregateType)
	require.Equal(t, subID, row.AggregateID)
	require.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.UserID)
	require.Equal(t, userID, *envelope.UserID)

	var data SubscriptionEventData
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, "pro", data.PlanID)
	require.Equal(t, enums.SubscriptionStatusActive, data.Status)
}

func TestFetchUnpublishedOrderingAndAttemptCap(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	base := time.Now().Add(-time.Hour)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		row := models.OutboxEvent{
			ID:            id,
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return repo.Insert(tx, row)
		}))
	}

	// exhaust the middle event
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.MarkFailed(ids[1], errors.New("publish failed")))
	}
	require.NoError(t, repo.MarkPublished(ids[0]))

	rows, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, ids[2], rows[0].ID)

	// no cap returns the exhausted row too
	rows, err = repo.FetchUnpublished(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, ids[1], rows[0].ID)
}

func TestDeletePublishedBefore(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	id := uuid.New()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.Insert(tx, models.OutboxEvent{
			ID:            id,
			EventType:     enums.EventSubscriptionUpdated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		})
	}))
	require.NoError(t, repo.MarkPublished(id))

	// cutoff in the past keeps the freshly published row
	n, err := repo.DeletePublishedBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = repo.DeletePublishedBefore(time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
