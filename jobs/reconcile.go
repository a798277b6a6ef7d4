package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/gymdesk/gymdesk/internal/jobs"
	"github.com/gymdesk/gymdesk/internal/payments"
)

// CycleReconciler rebuilds cached payment dates from the ledger.
type CycleReconciler interface {
	Reconcile(ctx context.Context, studentID *uuid.UUID) (payments.ReconcileReport, error)
}

// ReconcileJob handles TaskCycleReconcile.
type ReconcileJob struct {
	Payments CycleReconciler
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewReconcileJob wires the reconcile handler.
func NewReconcileJob(svc CycleReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Payments: svc, Logger: logger, Metrics: metrics}
}

// Handle processes a reconcile task.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Payments == nil {
		return errors.New("cycle reconcile: dependencies not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.Metrics.Track(TaskCycleReconcile)
	report, err := j.Payments.Reconcile(ctx, payload.StudentID)
	if err != nil {
		logger(j.Logger).Error("cycle reconcile", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddAffected(TaskCycleReconcile, int64(report.Fixed))
	logger(j.Logger).Info("cycle reconcile done",
		slog.Int("checked", report.Checked),
		slog.Int("fixed", report.Fixed))
	return tracker.End(nil)
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
