package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStageResync moves manifest members back onto their manifest stage.
	TaskStageResync = "manifest:stage_resync"
	// TaskDashboardWarmup recomputes the cached dashboard figures.
	TaskDashboardWarmup = "dashboard:warmup"
	// TaskIdempotencyCleanup drops expired Idempotency-Key claims.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DefaultIdempotencyTTL is how long a claimed key is kept.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyCleanupPayload configures the cleanup horizon.
type IdempotencyCleanupPayload struct {
	OlderThanSeconds int64 `json:"older_than_seconds"`
}

// NewStageResyncTask constructs the stage resync task.
func NewStageResyncTask() *asynq.Task {
	return asynq.NewTask(TaskStageResync, nil)
}

// NewDashboardWarmupTask constructs the dashboard warmup task.
func NewDashboardWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardWarmup, nil)
}

// NewIdempotencyCleanupTask constructs the cleanup task for keys older than olderThan.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	if olderThan <= 0 {
		olderThan = DefaultIdempotencyTTL
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{OlderThanSeconds: int64(olderThan / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewTask builds a task by name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskStageResync:
		return NewStageResyncTask(), nil
	case TaskDashboardWarmup:
		return NewDashboardWarmupTask(), nil
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(DefaultIdempotencyTTL)
	}
	return nil, fmt.Errorf("jobs: unsupported job %s", name)
}

// TaskNames lists the jobs that can be triggered manually.
func TaskNames() []string {
	return []string{TaskStageResync, TaskDashboardWarmup, TaskIdempotencyCleanup}
}
