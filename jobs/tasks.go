package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/farmstead-erp/farmstead-erp/internal/feeding"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFeedSuggestion delivers an advisory message emitted by the
	// consumption flow.
	TaskFeedSuggestion = "feeding:suggest"
	// TaskLowStockScan triggers the nightly low-stock sweep.
	TaskLowStockScan = "feeding:lowstock:scan"
	// TaskAnalyticsWarmup pre-populates analytics caches per organization.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency:cleanup"
)

// NewFeedSuggestionTask constructs an Asynq task carrying one suggestion.
func NewFeedSuggestionTask(s feeding.Suggestion) (*asynq.Task, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeedSuggestion, body, asynq.Queue(QueueDefault)), nil
}

// ScanPayload carries scheduling metadata for periodic sweeps.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs the nightly low-stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewAnalyticsWarmupTask constructs the cache warmup task.
func NewAnalyticsWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the idempotency key retention task.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
