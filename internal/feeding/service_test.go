package feeding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farmstead-erp/farmstead-erp/internal/flock"
)

type memoryRepo struct {
	stocks     map[int64]FeedStock
	events     []ConsumptionEvent
	nextID     int64
	failInsert bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: make(map[int64]FeedStock)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) InsertStock(ctx context.Context, stock FeedStock) (int64, error) {
	r.nextID++
	stock.ID = r.nextID
	r.stocks[stock.ID] = stock
	return stock.ID, nil
}

func (r *memoryRepo) ListStock(ctx context.Context, filter StockFilter) ([]FeedStock, error) {
	var out []FeedStock
	for _, stock := range r.stocks {
		if stock.OrgID == filter.OrgID {
			out = append(out, stock)
		}
	}
	return out, nil
}

func (r *memoryRepo) SoftDeleteStock(ctx context.Context, orgID, id int64) error {
	stock, ok := r.stocks[id]
	if !ok || stock.OrgID != orgID {
		return ErrStockNotFound
	}
	delete(r.stocks, id)
	return nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, orgID, stockID int64) (FeedStock, error) {
	stock, ok := tx.repo.stocks[stockID]
	if !ok || stock.OrgID != orgID {
		return FeedStock{}, ErrStockNotFound
	}
	return stock, nil
}

func (tx *memoryTx) InsertConsumption(ctx context.Context, event ConsumptionEvent) (int64, error) {
	if tx.repo.failInsert {
		return 0, errors.New("insert failed")
	}
	tx.repo.nextID++
	event.ID = tx.repo.nextID
	tx.repo.events = append(tx.repo.events, event)
	return event.ID, nil
}

func (tx *memoryTx) UpdateStockLevels(ctx context.Context, stockID int64, weightKg float64, bagCount int) error {
	stock := tx.repo.stocks[stockID]
	stock.WeightKg = weightKg
	stock.BagCount = bagCount
	tx.repo.stocks[stockID] = stock
	return nil
}

type batchMap map[int64]flock.Batch

func (m batchMap) GetBatch(ctx context.Context, orgID, id int64) (flock.Batch, error) {
	batch, ok := m[id]
	if !ok || batch.OrgID != orgID {
		return flock.Batch{}, flock.ErrBatchNotFound
	}
	return batch, nil
}

type recordingSink struct {
	suggestions []Suggestion
	err         error
}

func (s *recordingSink) EnqueueSuggestion(ctx context.Context, suggestion Suggestion) error {
	if s.err != nil {
		return s.err
	}
	s.suggestions = append(s.suggestions, suggestion)
	return nil
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(repo *memoryRepo, batches batchMap, sink SuggestionSink) *Service {
	svc := NewService(repo, batches, sink, nil, nil, nil, nil)
	svc.WithNow(func() time.Time { return testNow })
	return svc
}

func seedStock(repo *memoryRepo, stock FeedStock) int64 {
	id, _ := repo.InsertStock(context.Background(), stock)
	return id
}

func growthBatch(orgID int64) flock.Batch {
	return flock.Batch{
		ID:        1,
		OrgID:     orgID,
		Animal:    flock.AnimalTypeLayer,
		Phase:     flock.PhaseGrowth,
		HatchedOn: testNow.AddDate(0, 0, -80),
		Headcount: 100,
	}
}

func TestConsumeDecrementsWeightAndBags(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	event, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 25})
	require.NoError(t, err)
	require.InDelta(t, 25.0, event.QuantityKg, 0.0001)
	require.NotEmpty(t, event.Code)

	stock := repo.stocks[stockID]
	require.InDelta(t, 25.0, stock.WeightKg, 0.0001)
	require.Equal(t, 1, stock.BagCount)
	require.Len(t, repo.events, 1)
}

func TestConsumeInsufficientStockLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 60})
	require.ErrorIs(t, err, ErrInsufficientStock)

	stock := repo.stocks[stockID]
	require.InDelta(t, 50.0, stock.WeightKg, 0.0001)
	require.Equal(t, 2, stock.BagCount)
	require.Empty(t, repo.events)
}

func TestConsumeIncompatibleCategory(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryLay, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 10})
	require.ErrorIs(t, err, ErrIncompatibleCategory)
	require.Empty(t, repo.events)
	require.InDelta(t, 50.0, repo.stocks[stockID].WeightKg, 0.0001)
}

func TestConsumeRejectsForeignOrgAndAnimalMismatch(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 2, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	broilerStock := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeBroiler, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 10})
	require.ErrorIs(t, err, ErrStockNotFound)

	_, err = svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: broilerStock, BatchID: 1, QuantityKg: 10})
	require.ErrorIs(t, err, ErrStockNotFound)
	require.Empty(t, repo.events)
}

func TestConsumeInvalidQuantity(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	for _, qty := range []float64{0, -5} {
		_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: qty})
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
	require.Empty(t, repo.events)
}

func TestConsumeInsertFailureLeavesStockUntouched(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	repo.failInsert = true
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 10})
	require.Error(t, err)
	require.InDelta(t, 50.0, repo.stocks[stockID].WeightKg, 0.0001)
	require.Equal(t, 2, repo.stocks[stockID].BagCount)
}

func TestBagCountNeverNegative(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 30, BagCount: 1, BagWeightKg: 25})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 30})
	require.NoError(t, err)
	stock := repo.stocks[stockID]
	require.InDelta(t, 0.0, stock.WeightKg, 0.0001)
	require.Equal(t, 0, stock.BagCount)

	// Weight is exhausted; any further consumption must be rejected whole.
	_, err = svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestBagCountMonotonicAcrossSequence(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 100, BagCount: 4, BagWeightKg: 25})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	prevBags := repo.stocks[stockID].BagCount
	for _, qty := range []float64{10, 10, 10, 20, 30, 15} {
		_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: qty})
		require.NoError(t, err)
		stock := repo.stocks[stockID]
		require.GreaterOrEqual(t, stock.WeightKg, 0.0)
		require.LessOrEqual(t, stock.BagCount, prevBags)
		require.GreaterOrEqual(t, stock.BagCount, 0)
		prevBags = stock.BagCount
	}
	require.InDelta(t, 5.0, repo.stocks[stockID].WeightKg, 0.0001)
	require.Equal(t, 0, repo.stocks[stockID].BagCount)
}

func TestBulkCategorySkipsBagAccounting(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryForage, WeightKg: 200, BagCount: 0, BagWeightKg: 0})
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, nil)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 120})
	require.NoError(t, err)
	stock := repo.stocks[stockID]
	require.InDelta(t, 80.0, stock.WeightKg, 0.0001)
	require.Equal(t, 0, stock.BagCount)
}

func TestMilestoneSuggestionEmitted(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryStarter, WeightKg: 100, BagCount: 4, BagWeightKg: 25})
	sink := &recordingSink{}
	batch := growthBatch(1)
	batch.HatchedOn = testNow.AddDate(0, 0, -60)
	svc := newTestService(repo, batchMap{1: batch}, sink)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 10})
	require.NoError(t, err)
	require.Len(t, sink.suggestions, 1)
	require.Equal(t, SuggestionFeedChange, sink.suggestions[0].Kind)
	require.Equal(t, int64(1), sink.suggestions[0].BatchID)
}

func TestNoSuggestionBetweenMilestones(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 100, BagCount: 4, BagWeightKg: 25})
	sink := &recordingSink{}
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, sink)

	// Batch age is 80 days: outside every layer milestone window.
	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 10})
	require.NoError(t, err)
	require.Empty(t, sink.suggestions)
}

func TestRestockSuggestionWhenBelowOneBag(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 30, BagCount: 1, BagWeightKg: 25})
	sink := &recordingSink{}
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, sink)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 10})
	require.NoError(t, err)
	require.Len(t, sink.suggestions, 1)
	require.Equal(t, SuggestionRestock, sink.suggestions[0].Kind)
	require.Equal(t, stockID, sink.suggestions[0].StockID)
}

func TestSinkFailureDoesNotAbortConsumption(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 30, BagCount: 1, BagWeightKg: 25})
	sink := &recordingSink{err: errors.New("queue down")}
	svc := newTestService(repo, batchMap{1: growthBatch(1)}, sink)

	_, err := svc.Consume(context.Background(), ConsumeInput{OrgID: 1, StockID: stockID, BatchID: 1, QuantityKg: 10})
	require.NoError(t, err)
	require.InDelta(t, 20.0, repo.stocks[stockID].WeightKg, 0.0001)
}

func TestCreateStockDerivesBagCount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, batchMap{}, nil)

	stock, err := svc.CreateStock(context.Background(), CreateStockInput{
		OrgID:       1,
		Animal:      flock.AnimalTypeLayer,
		Category:    CategoryGrowth,
		WeightKg:    110,
		BagWeightKg: 25,
	})
	require.NoError(t, err)
	require.Equal(t, 4, stock.BagCount)

	_, err = svc.CreateStock(context.Background(), CreateStockInput{
		OrgID:       1,
		Animal:      flock.AnimalTypeLayer,
		Category:    CategoryGrowth,
		WeightKg:    50,
		BagWeightKg: 0,
	})
	require.ErrorIs(t, err, ErrInvalidStock)
}

func TestCompatibilityTable(t *testing.T) {
	cases := []struct {
		phase    flock.ProductionPhase
		category FeedCategory
		ok       bool
	}{
		{flock.PhaseGrowth, CategoryGrowth, true},
		{flock.PhaseGrowth, CategoryLay, false},
		{flock.PhaseLay, CategoryLay, true},
		{flock.PhaseLay, CategoryGrowth, false},
		{flock.PhaseLay, CategoryStarter, false},
		{flock.PhaseBrooding, CategoryStarter, true},
		{flock.PhaseGrowth, CategoryForage, true},
		{flock.PhaseLay, CategoryForage, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.category.CompatibleWith(tc.phase), "%s vs %s", tc.category, tc.phase)
	}
}
