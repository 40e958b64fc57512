package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/metrics"
)

const defaultDuplicateScanLimit = 250

type duplicateLister interface {
	ListUsersWithDuplicateLive(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type duplicateReconciler interface {
	ReconcileDuplicates(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// DuplicateCleanupJobParams configures the duplicate-live repair job.
type DuplicateCleanupJobParams struct {
	Logger     *logger.Logger
	Lister     duplicateLister
	Reconciler duplicateReconciler
	Metrics    *metrics.CronJobMetrics
	Limit      int
}

// NewDuplicateCleanupJob builds the job that restores the one-live-row rule
// for users a race left with several.
func NewDuplicateCleanupJob(params DuplicateCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lister == nil {
		return nil, fmt.Errorf("duplicate lister required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDuplicateScanLimit
	}
	return &duplicateCleanupJob{
		logg:       params.Logger,
		lister:     params.Lister,
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
		limit:      limit,
	}, nil
}

type duplicateCleanupJob struct {
	logg       *logger.Logger
	lister     duplicateLister
	reconciler duplicateReconciler
	metrics    *metrics.CronJobMetrics
	limit      int
}

func (j *duplicateCleanupJob) Name() string { return "duplicate-cleanup" }

func (j *duplicateCleanupJob) Run(ctx context.Context) error {
	userIDs, err := j.lister.ListUsersWithDuplicateLive(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list duplicate users: %w", err)
	}

	var errs error
	healed := 0
	for _, userID := range userIDs {
		userCtx := j.logg.WithUserID(ctx, userID.String())
		cancelled, err := j.reconciler.ReconcileDuplicates(userCtx, userID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile user %s: %w", userID, err))
			continue
		}
		healed += len(cancelled)
	}
	j.metrics.AddProcessed(j.Name(), healed)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users_scanned":        len(userIDs),
		"duplicates_cancelled": healed,
	})
	j.logg.Info(logCtx, "duplicate cleanup complete")
	return errs
}
