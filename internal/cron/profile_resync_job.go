package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/metrics"
)

const (
	defaultResyncWindow = 7 * 24 * time.Hour
	defaultResyncLimit  = 250
)

type recentUserLister interface {
	ListRecentlyUpdatedUserIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type profileResyncer interface {
	Resync(ctx context.Context, userID uuid.UUID) error
}

// ProfileResyncJobParams configures the profile repair job.
type ProfileResyncJobParams struct {
	Logger   *logger.Logger
	Lister   recentUserLister
	Resyncer profileResyncer
	Metrics  *metrics.CronJobMetrics
	Window   time.Duration
	Limit    int
	Now      func() time.Time
}

// NewProfileResyncJob builds the job that recomputes the profile copy for
// users whose subscription history changed recently, healing any profile
// write that was lost to a partial failure.
func NewProfileResyncJob(params ProfileResyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lister == nil {
		return nil, fmt.Errorf("user lister required")
	}
	if params.Resyncer == nil {
		return nil, fmt.Errorf("resyncer required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultResyncWindow
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultResyncLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &profileResyncJob{
		logg:     params.Logger,
		lister:   params.Lister,
		resyncer: params.Resyncer,
		metrics:  params.Metrics,
		window:   window,
		limit:    limit,
		now:      now,
	}, nil
}

type profileResyncJob struct {
	logg     *logger.Logger
	lister   recentUserLister
	resyncer profileResyncer
	metrics  *metrics.CronJobMetrics
	window   time.Duration
	limit    int
	now      func() time.Time
}

func (j *profileResyncJob) Name() string { return "profile-resync" }

func (j *profileResyncJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.window)
	userIDs, err := j.lister.ListRecentlyUpdatedUserIDs(ctx, since, j.limit)
	if err != nil {
		return fmt.Errorf("list recently updated users: %w", err)
	}

	var errs error
	synced := 0
	for _, userID := range userIDs {
		userCtx := j.logg.WithUserID(ctx, userID.String())
		if err := j.resyncer.Resync(userCtx, userID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("resync user %s: %w", userID, err))
			continue
		}
		synced++
	}
	j.metrics.AddProcessed(j.Name(), synced)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":      since,
		"candidates": len(userIDs),
		"synced":     synced,
	})
	j.logg.Info(logCtx, "profile resync complete")
	return errs
}
