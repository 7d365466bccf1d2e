package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mftcargo/tracker/internal/jobs"
	"github.com/mftcargo/tracker/internal/manifests"
	"github.com/mftcargo/tracker/internal/platform/cache"
	"github.com/mftcargo/tracker/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StageResyncer re-applies manifest stages to their members.
type StageResyncer interface {
	ResyncStages(ctx context.Context) (manifests.ResyncReport, error)
}

// Warmer refreshes a cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// KeyCleaner drops stale idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Locker serialises job runs across workers.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// StageResyncJob repairs shipments that drifted from their manifest stage.
// With a Locker set, a run that finds another one in progress is skipped.
type StageResyncJob struct {
	Manifests StageResyncer
	Lock      Locker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

const resyncLockTTL = 10 * time.Minute

// NewStageResyncJob wires dependencies for the resync handler.
func NewStageResyncJob(m StageResyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *StageResyncJob {
	return &StageResyncJob{Manifests: m, Logger: logger, Metrics: metrics}
}

// WithLock sets the run lock.
func (j *StageResyncJob) WithLock(l Locker) *StageResyncJob {
	j.Lock = l
	return j
}

// Handle processes TaskStageResync tasks.
func (j *StageResyncJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Manifests == nil {
		return errors.New("stage resync: handler not configured")
	}
	logger := jobLogger(j.Logger, TaskStageResync)
	if j.Lock != nil {
		release, lockErr := j.Lock.Acquire(ctx, shared.JobLockKey(TaskStageResync), resyncLockTTL)
		if errors.Is(lockErr, cache.ErrLocked) {
			logger.Info("stage resync already running, skipping")
			return nil
		}
		if lockErr != nil {
			return lockErr
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release resync lock", slog.Any("error", err))
			}
		}()
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskStageResync)
	defer func() { err = tracker.End(err) }()

	start := time.Now()
	report, err := j.Manifests.ResyncStages(ctx)
	metricsOrDefault(j.Metrics).AddRepaired(report.Updated)
	attrs := []any{
		slog.Int("manifests", report.Manifests),
		slog.Int("updated", report.Updated),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		logger.Error("stage resync finished with errors", append(attrs, slog.Any("error", err))...)
		return err
	}
	logger.Info("stage resync completed", attrs...)
	return nil
}

// DashboardWarmupJob recomputes the cached dashboard summary.
type DashboardWarmupJob struct {
	Dashboard Warmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(d Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{Dashboard: d, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDashboardWarmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskDashboardWarmup)
	defer func() { err = tracker.End(err) }()

	// Each run is bounded to 20s.
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err = j.Dashboard.Warm(runCtx); err != nil {
		jobLogger(j.Logger, TaskDashboardWarmup).Error("dashboard warmup", slog.Any("error", err))
		return err
	}
	jobLogger(j.Logger, TaskDashboardWarmup).Debug("dashboard warmed")
	return nil
}

// IdempotencyCleanupJob deletes expired Idempotency-Key claims.
type IdempotencyCleanupJob struct {
	Keys    KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Keys: keys, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	olderThan := time.Duration(payload.OlderThanSeconds) * time.Second
	if olderThan <= 0 {
		olderThan = DefaultIdempotencyTTL
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := j.Keys.Cleanup(ctx, olderThan)
	if err != nil {
		jobLogger(j.Logger, TaskIdempotencyCleanup).Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	jobLogger(j.Logger, TaskIdempotencyCleanup).Info("idempotency keys removed", slog.Int64("removed", removed))
	return nil
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
