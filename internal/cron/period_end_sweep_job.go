package cron

import (
	"context"
	"fmt"

	"github.com/pennyledger/pledger-backend/pkg/logger"
	"github.com/pennyledger/pledger-backend/pkg/metrics"
)

const defaultSweepBatchSize = 250

// periodEndSweeper is the slice of the lifecycle orchestrator the job needs.
type periodEndSweeper interface {
	SweepPeriodEnd(ctx context.Context, batchSize int) (int, error)
}

// PeriodEndSweepJobParams configures the deferred-cancellation sweep.
type PeriodEndSweepJobParams struct {
	Logger    *logger.Logger
	Sweeper   periodEndSweeper
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewPeriodEndSweepJob builds the job that finishes deferred cancellations
// whose billing-period boundary has passed.
func NewPeriodEndSweepJob(params PeriodEndSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &periodEndSweepJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type periodEndSweepJob struct {
	logg    *logger.Logger
	sweeper periodEndSweeper
	metrics *metrics.CronJobMetrics
	batch   int
}

func (j *periodEndSweepJob) Name() string { return "period-end-sweep" }

func (j *periodEndSweepJob) Run(ctx context.Context) error {
	swept, err := j.sweeper.SweepPeriodEnd(ctx, j.batch)
	j.metrics.AddProcessed(j.Name(), swept)
	if err != nil {
		return fmt.Errorf("period end sweep: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_swept", swept)
	j.logg.Info(logCtx, "period end sweep complete")
	return nil
}
