package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gymdesk/gymdesk/internal/jobs"
)

// OverdueMarker flags students past their due date.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int64, error)
}

// OverdueJob handles TaskStudentsOverdue.
type OverdueJob struct {
	Students OverdueMarker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewOverdueJob wires the overdue sweep.
func NewOverdueJob(students OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueJob {
	return &OverdueJob{Students: students, Logger: logger, Metrics: metrics}
}

// Handle runs one sweep.
func (j *OverdueJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Students == nil {
		return errors.New("students overdue: dependencies not configured")
	}
	tracker := j.Metrics.Track(TaskStudentsOverdue)
	n, err := j.Students.MarkOverdue(ctx)
	if err != nil {
		logger(j.Logger).Error("mark overdue", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddAffected(TaskStudentsOverdue, n)
	return tracker.End(nil)
}

// KeyCleaner purges idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob handles TaskIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	Store     KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle runs one purge.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: dependencies not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	n, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		logger(j.Logger).Error("idempotency cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddAffected(TaskIdempotencyCleanup, n)
	if n > 0 {
		logger(j.Logger).Info("idempotency keys purged", slog.Int64("count", n), slog.Duration("retention", retention))
	}
	return tracker.End(nil)
}
