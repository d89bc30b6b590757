package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmstead-erp/farmstead-erp/internal/feeding"
	jobmetrics "github.com/farmstead-erp/farmstead-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SuggestionPersistJob writes queued advisory suggestions to the database so
// farm staff can review them later.
type SuggestionPersistJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSuggestionPersistJob wires dependencies for the suggestion handler.
func NewSuggestionPersistJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *SuggestionPersistJob {
	return &SuggestionPersistJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes feed suggestion tasks.
func (j *SuggestionPersistJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Pool == nil {
		return errors.New("suggestion persist: handler not configured")
	}
	var payload feeding.Suggestion
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OrgID <= 0 || payload.Message == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskFeedSuggestion)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	_, resultErr = j.Pool.Exec(ctx,
		`INSERT INTO feed_suggestions (org_id, batch_id, stock_id, kind, message, created_at)
		 VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5, $6)`,
		payload.OrgID, payload.BatchID, payload.StockID, string(payload.Kind), payload.Message, j.now(),
	)
	if resultErr != nil {
		j.logger().Error("persist suggestion", slog.Int64("org_id", payload.OrgID), slog.Any("error", resultErr))
		return resultErr
	}
	j.logger().Info("suggestion persisted",
		slog.Int64("org_id", payload.OrgID),
		slog.String("kind", string(payload.Kind)))
	return resultErr
}

func (j *SuggestionPersistJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SuggestionPersistJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFeedSuggestion))
	}
	return slog.Default().With(slog.String("job", TaskFeedSuggestion))
}

func (j *SuggestionPersistJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
