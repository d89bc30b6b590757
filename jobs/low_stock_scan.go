package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmstead-erp/farmstead-erp/internal/feeding"
	jobmetrics "github.com/farmstead-erp/farmstead-erp/internal/jobs"
)

// LowStockScanJob sweeps bagged feed stocks and raises restock suggestions
// for records holding less than the configured number of bag-weights.
// Bulk stocks (forage, silage) are not tracked by bags and are skipped.
type LowStockScanJob struct {
	Pool      *pgxpool.Pool
	Sink      feeding.SuggestionSink
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Threshold float64
}

// NewLowStockScanJob wires dependencies for the low-stock sweep.
func NewLowStockScanJob(pool *pgxpool.Pool, sink feeding.SuggestionSink, logger *slog.Logger, metrics *jobmetrics.Metrics, threshold float64) *LowStockScanJob {
	if threshold <= 0 {
		threshold = 1
	}
	return &LowStockScanJob{
		Pool:      pool,
		Sink:      sink,
		Logger:    logger,
		Metrics:   metrics,
		Threshold: threshold,
	}
}

type lowStockRow struct {
	OrgID    int64
	StockID  int64
	Category string
	WeightKg float64
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Pool == nil || j.Sink == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	rows, err := j.fetchLowStocks(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("load low stocks", slog.Any("error", err))
		return resultErr
	}
	if len(rows) == 0 {
		j.logger().Info("no low stocks found")
		return resultErr
	}

	flagged := 0
	for _, row := range rows {
		suggestion := feeding.Suggestion{
			OrgID:   row.OrgID,
			StockID: row.StockID,
			Kind:    feeding.SuggestionRestock,
			Message: fmt.Sprintf("Feed stock %q is down to %.1f kg, restock soon.", row.Category, row.WeightKg),
		}
		if err := j.Sink.EnqueueSuggestion(ctx, suggestion); err != nil {
			resultErr = err
			j.logger().Error("enqueue restock suggestion", slog.Int64("stock_id", row.StockID), slog.Any("error", err))
			return resultErr
		}
		flagged++
	}

	j.logger().Info("completed low stock scan", slog.Int("flagged", flagged))
	return resultErr
}

func (j *LowStockScanJob) fetchLowStocks(ctx context.Context) ([]lowStockRow, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT org_id, id, category, weight_kg
		 FROM feed_stocks
		 WHERE deleted_at IS NULL
		   AND category NOT IN ('FORAGE', 'SILAGE')
		   AND bag_weight_kg > 0
		   AND weight_kg < bag_weight_kg * $1
		 ORDER BY org_id, id`,
		j.Threshold,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]lowStockRow, 0)
	for rows.Next() {
		var row lowStockRow
		if err := rows.Scan(&row.OrgID, &row.StockID, &row.Category, &row.WeightKg); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}
