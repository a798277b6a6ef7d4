package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskCycleReconcile recomputes student payment cycles from the ledger.
	TaskCycleReconcile = "cycle:reconcile"
	// TaskStudentsOverdue flags students whose next payment date has passed.
	TaskStudentsOverdue = "students:overdue"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReconcilePayload scopes a reconcile run. A nil StudentID means every student.
type ReconcilePayload struct {
	StudentID *uuid.UUID `json:"student_id,omitempty"`
}

// NewReconcileTask builds a cycle reconcile task.
func NewReconcileTask(studentID *uuid.UUID) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{StudentID: studentID})
	if err != nil {
		return nil, fmt.Errorf("reconcile task: %w", err)
	}
	return asynq.NewTask(TaskCycleReconcile, body, asynq.Queue(QueueDefault)), nil
}

// NewOverdueTask builds the overdue sweep task.
func NewOverdueTask() *asynq.Task {
	return asynq.NewTask(TaskStudentsOverdue, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask builds the key purge task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}
