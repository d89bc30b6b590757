package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmstead-erp/farmstead-erp/internal/analytics"
	jobmetrics "github.com/farmstead-erp/farmstead-erp/internal/jobs"
)

// AnalyticsWarmupJob pre-populates the analytics cache for every active
// organization so dashboard reads stay warm overnight.
type AnalyticsWarmupJob struct {
	Analytics *analytics.Service
	Pool      *pgxpool.Pool
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(analyticsSvc *analytics.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: analyticsSvc,
		Pool:      pool,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	orgs, err := j.fetchOrgs(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("load warmup orgs", slog.Any("error", err))
		return resultErr
	}
	if len(orgs) == 0 {
		j.logger().Info("no organizations discovered for warmup")
		return resultErr
	}

	now := j.now()
	warmed := 0
	for _, orgID := range orgs {
		if err := j.warmOrg(ctx, orgID, now); err != nil {
			resultErr = err
			j.logger().Error("warm org", slog.Int64("org_id", orgID), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	j.logger().Info("completed analytics warmup", slog.Int("orgs", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *AnalyticsWarmupJob) warmOrg(ctx context.Context, orgID int64, now time.Time) error {
	if j.Analytics == nil {
		return nil
	}
	// Cap each organization so a slow query cannot stall the whole sweep.
	orgCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	year := now.Year()
	month := int(now.Month())

	filters := []analytics.SeriesFilter{
		{},
		{Year: &year},
		{Year: &year, Month: &month},
	}
	for _, filter := range filters {
		if _, err := j.Analytics.GetFeedingSeries(orgCtx, orgID, filter); err != nil {
			return err
		}
		if _, err := j.Analytics.GetIncubationSeries(orgCtx, orgID, filter); err != nil {
			return err
		}
	}
	return nil
}

func (j *AnalyticsWarmupJob) fetchOrgs(ctx context.Context) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("analytics warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT org_id FROM feed_consumptions WHERE org_id > 0 ORDER BY org_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := make([]int64, 0)
	for rows.Next() {
		var orgID int64
		if err := rows.Scan(&orgID); err != nil {
			return nil, err
		}
		orgs = append(orgs, orgID)
	}
	return orgs, rows.Err()
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
