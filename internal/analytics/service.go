package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Cache exposes the cache helper so writers can bump the version.
func (s *Service) Cache() *Cache {
	return s.cache
}

// GetFeedingSeries returns the consumption time series for the organization,
// bucketed per the filter's granularity rule.
func (s *Service) GetFeedingSeries(ctx context.Context, orgID int64, filter SeriesFilter) ([]Bucket, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.ConsumptionGrouped(ctx, seriesParams(orgID, filter))
		if err != nil {
			return nil, err
		}
		return Aggregate(rows, filter, s.now), nil
	}
	return s.fetchSeries(ctx, keyFeeding(orgID, filter), loader)
}

// GetIncubationSeries returns the dual-measure incubation series (eggs set
// and eggs hatched per bucket).
func (s *Service) GetIncubationSeries(ctx context.Context, orgID int64, filter SeriesFilter) ([]Bucket, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.IncubationGrouped(ctx, seriesParams(orgID, filter))
		if err != nil {
			return nil, err
		}
		return Aggregate(rows, filter, s.now), nil
	}
	return s.fetchSeries(ctx, keyIncubation(orgID, filter), loader)
}

func (s *Service) fetchSeries(ctx context.Context, keyBase string, loader func(context.Context) (interface{}, error)) ([]Bucket, error) {
	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]Bucket), nil
	}
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		return nil, err
	}
	var buckets []Bucket
	if err := s.cache.FetchJSON(ctx, key, &buckets, loader); err != nil {
		return nil, err
	}
	return buckets, nil
}

func seriesParams(orgID int64, filter SeriesFilter) SeriesParams {
	return SeriesParams{
		OrgID: orgID,
		Year:  optionalInt(filter.Year),
		Month: optionalInt(filter.Month),
	}
}

func optionalInt(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}
