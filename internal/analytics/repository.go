package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeriesParams scope a grouped-row query to one organization and an
// optional calendar window.
type SeriesParams struct {
	OrgID int64
	Year  pgtype.Int4
	Month pgtype.Int4
}

// Repository exposes the pre-grouped aggregation queries the service folds.
type Repository interface {
	ConsumptionGrouped(ctx context.Context, params SeriesParams) ([]GroupedRow, error)
	IncubationGrouped(ctx context.Context, params SeriesParams) ([]GroupedRow, error)
}

// PGRepository runs the grouping queries against PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ConsumptionGrouped groups feed consumption events by their exact timestamp.
func (r *PGRepository) ConsumptionGrouped(ctx context.Context, params SeriesParams) ([]GroupedRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT occurred_at, COUNT(*), COALESCE(SUM(quantity_kg), 0), 0
		 FROM feed_consumptions
		 WHERE org_id = $1
		   AND ($2::int IS NULL OR EXTRACT(YEAR FROM occurred_at) = $2)
		   AND ($3::int IS NULL OR EXTRACT(MONTH FROM occurred_at) = $3)
		 GROUP BY occurred_at
		 ORDER BY occurred_at`,
		params.OrgID, params.Year, params.Month,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroupedRows(rows)
}

// IncubationGrouped groups incubation records by their exact timestamp,
// carrying eggs set and eggs hatched as the two measures.
func (r *PGRepository) IncubationGrouped(ctx context.Context, params SeriesParams) ([]GroupedRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT created_at, COUNT(*), COALESCE(SUM(eggs_set), 0), COALESCE(SUM(eggs_hatched), 0)
		 FROM incubations
		 WHERE org_id = $1
		   AND ($2::int IS NULL OR EXTRACT(YEAR FROM created_at) = $2)
		   AND ($3::int IS NULL OR EXTRACT(MONTH FROM created_at) = $3)
		 GROUP BY created_at
		 ORDER BY created_at`,
		params.OrgID, params.Year, params.Month,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroupedRows(rows)
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanGroupedRows(rows pgRows) ([]GroupedRow, error) {
	var out []GroupedRow
	for rows.Next() {
		var (
			at  pgtype.Timestamptz
			row GroupedRow
		)
		if err := rows.Scan(&at, &row.Count, &row.Sum, &row.Sum2); err != nil {
			return nil, err
		}
		if at.Valid {
			row.CreatedAt = at.Time
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
