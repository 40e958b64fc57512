package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeSweeper struct {
	batch int
	swept int
	err   error
}

func (f *fakeSweeper) SweepPeriodEnd(ctx context.Context, batchSize int) (int, error) {
	f.batch = batchSize
	return f.swept, f.err
}

func TestPeriodEndSweepJob(t *testing.T) {
	sweeper := &fakeSweeper{swept: 3}
	job, err := NewPeriodEndSweepJob(PeriodEndSweepJobParams{
		Logger:    testLogger(),
		Sweeper:   sweeper,
		BatchSize: 50,
	})
	if err != nil {
		t.Fatalf("NewPeriodEndSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.batch != 50 {
		t.Fatalf("expected batch size 50, got %d", sweeper.batch)
	}
}

func TestPeriodEndSweepJobPropagatesError(t *testing.T) {
	job, err := NewPeriodEndSweepJob(PeriodEndSweepJobParams{
		Logger:  testLogger(),
		Sweeper: &fakeSweeper{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewPeriodEndSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeDuplicateStore struct {
	users      []uuid.UUID
	reconciled []uuid.UUID
	failFor    map[uuid.UUID]error
}

func (f *fakeDuplicateStore) ListUsersWithDuplicateLive(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit < len(f.users) {
		return f.users[:limit], nil
	}
	return f.users, nil
}

func (f *fakeDuplicateStore) ReconcileDuplicates(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := f.failFor[userID]; err != nil {
		return nil, err
	}
	f.reconciled = append(f.reconciled, userID)
	return []uuid.UUID{uuid.New()}, nil
}

func TestDuplicateCleanupJobHealsEachUser(t *testing.T) {
	store := &fakeDuplicateStore{users: []uuid.UUID{uuid.New(), uuid.New()}}
	job, err := NewDuplicateCleanupJob(DuplicateCleanupJobParams{
		Logger:     testLogger(),
		Lister:     store,
		Reconciler: store,
	})
	if err != nil {
		t.Fatalf("NewDuplicateCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.reconciled) != 2 {
		t.Fatalf("expected 2 users reconciled, got %d", len(store.reconciled))
	}
}

func TestDuplicateCleanupJobContinuesPastFailures(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	store := &fakeDuplicateStore{
		users:   []uuid.UUID{bad, good},
		failFor: map[uuid.UUID]error{bad: errors.New("boom")},
	}
	job, err := NewDuplicateCleanupJob(DuplicateCleanupJobParams{
		Logger:     testLogger(),
		Lister:     store,
		Reconciler: store,
	})
	if err != nil {
		t.Fatalf("NewDuplicateCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(store.reconciled) != 1 || store.reconciled[0] != good {
		t.Fatalf("the healthy user should still be reconciled")
	}
}

type fakeResyncStore struct {
	users    []uuid.UUID
	since    time.Time
	resynced []uuid.UUID
}

func (f *fakeResyncStore) ListRecentlyUpdatedUserIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	f.since = since
	return f.users, nil
}

func (f *fakeResyncStore) Resync(ctx context.Context, userID uuid.UUID) error {
	f.resynced = append(f.resynced, userID)
	return nil
}

func TestProfileResyncJobUsesWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeResyncStore{users: []uuid.UUID{uuid.New(), uuid.New()}}
	job, err := NewProfileResyncJob(ProfileResyncJobParams{
		Logger:   testLogger(),
		Lister:   store,
		Resyncer: store,
		Window:   48 * time.Hour,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewProfileResyncJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantSince := now.Add(-48 * time.Hour)
	if !store.since.Equal(wantSince) {
		t.Fatalf("expected since %s, got %s", wantSince, store.since)
	}
	if len(store.resynced) != 2 {
		t.Fatalf("expected 2 users resynced, got %d", len(store.resynced))
	}
}

type fakeRetentionRepo struct {
	cutoff time.Time
	err    error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

func TestOutboxRetentionJobUsesCutoff(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeRetentionRepo{}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantCutoff := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.cutoff.Equal(wantCutoff) {
		t.Fatalf("expected cutoff %s, got %s", wantCutoff, repo.cutoff)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: &fakeRetentionRepo{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
