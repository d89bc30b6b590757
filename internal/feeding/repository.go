package feeding

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmstead-erp/farmstead-erp/internal/flock"
)

// Repository persists feeding data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, orgID, stockID int64) (FeedStock, error)
	InsertConsumption(ctx context.Context, event ConsumptionEvent) (int64, error)
	UpdateStockLevels(ctx context.Context, stockID int64, weightKg float64, bagCount int) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// InsertStock stores a new stock record and returns its ID.
func (r *Repository) InsertStock(ctx context.Context, stock FeedStock) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO feed_stocks (org_id, animal_type, category, weight_kg, bag_count, bag_weight_kg, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING id`,
		stock.OrgID, string(stock.Animal), string(stock.Category), stock.WeightKg, stock.BagCount, stock.BagWeightKg,
	).Scan(&id)
	return id, err
}

// ListStock returns live stock records matching the filter.
func (r *Repository) ListStock(ctx context.Context, filter StockFilter) ([]FeedStock, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, animal_type, category, weight_kg, bag_count, bag_weight_kg, created_at
		 FROM feed_stocks
		 WHERE org_id = $1
		   AND deleted_at IS NULL
		   AND ($2 = '' OR animal_type = $2)
		   AND ($3 = '' OR category = $3)
		 ORDER BY created_at DESC`,
		filter.OrgID, string(filter.Animal), string(filter.Category),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []FeedStock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, stock)
	}
	return stocks, rows.Err()
}

// SoftDeleteStock marks a stock record deleted.
func (r *Repository) SoftDeleteStock(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE feed_stocks SET deleted_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockNotFound
	}
	return nil
}

func (r *txRepo) GetStockForUpdate(ctx context.Context, orgID, stockID int64) (FeedStock, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT id, org_id, animal_type, category, weight_kg, bag_count, bag_weight_kg, created_at
		 FROM feed_stocks
		 WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL
		 FOR UPDATE`,
		stockID, orgID,
	)
	stock, err := scanStock(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeedStock{}, ErrStockNotFound
		}
		return FeedStock{}, err
	}
	return stock, nil
}

func (r *txRepo) InsertConsumption(ctx context.Context, event ConsumptionEvent) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO feed_consumptions (code, org_id, stock_id, batch_id, quantity_kg, note, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		event.Code, event.OrgID, event.StockID, event.BatchID, event.QuantityKg, event.Note,
		pgtype.Timestamptz{Time: event.OccurredAt, Valid: true},
	).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateStockLevels(ctx context.Context, stockID int64, weightKg float64, bagCount int) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE feed_stocks SET weight_kg = $1, bag_count = $2 WHERE id = $3`,
		weightKg, bagCount, stockID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStock(row rowScanner) (FeedStock, error) {
	var (
		stock     FeedStock
		animal    string
		category  string
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(&stock.ID, &stock.OrgID, &animal, &category, &stock.WeightKg, &stock.BagCount, &stock.BagWeightKg, &createdAt)
	if err != nil {
		return FeedStock{}, err
	}
	stock.Animal = flock.AnimalType(animal)
	stock.Category = FeedCategory(category)
	if createdAt.Valid {
		stock.CreatedAt = createdAt.Time
	}
	return stock, nil
}
