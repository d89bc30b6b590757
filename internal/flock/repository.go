package flock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch stores a new batch and returns its ID.
func (r *Repository) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO flock_batches (org_id, name, animal_type, phase, hatched_on, headcount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING id`,
		batch.OrgID, batch.Name, string(batch.Animal), string(batch.Phase),
		pgtype.Date{Time: batch.HatchedOn, Valid: !batch.HatchedOn.IsZero()}, batch.Headcount,
	).Scan(&id)
	return id, err
}

// GetBatch loads one batch scoped to the organization.
func (r *Repository) GetBatch(ctx context.Context, orgID, id int64) (Batch, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, org_id, name, animal_type, phase, hatched_on, headcount, created_at
		 FROM flock_batches
		 WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID,
	)
	return scanBatch(row)
}

// ListBatches returns all live batches for the organization.
func (r *Repository) ListBatches(ctx context.Context, orgID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, name, animal_type, phase, hatched_on, headcount, created_at
		 FROM flock_batches
		 WHERE org_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// UpdatePhase moves a batch to the given phase.
func (r *Repository) UpdatePhase(ctx context.Context, orgID, id int64, phase ProductionPhase) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE flock_batches SET phase = $1 WHERE id = $2 AND org_id = $3 AND deleted_at IS NULL`,
		string(phase), id, orgID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (Batch, error) {
	var (
		batch     Batch
		animal    string
		phase     string
		hatchedOn pgtype.Date
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(&batch.ID, &batch.OrgID, &batch.Name, &animal, &phase, &hatchedOn, &batch.Headcount, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	batch.Animal = AnimalType(animal)
	batch.Phase = ProductionPhase(phase)
	if hatchedOn.Valid {
		batch.HatchedOn = hatchedOn.Time
	}
	if createdAt.Valid {
		batch.CreatedAt = createdAt.Time
	}
	return batch, nil
}
