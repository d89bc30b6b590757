package feeding

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farmstead-erp/farmstead-erp/internal/flock"
	"github.com/farmstead-erp/farmstead-erp/internal/shared"
)

func newTestHandler(repo *memoryRepo, batches batchMap) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, newTestService(repo, batches, nil))
}

func consumeRequestFor(t *testing.T, orgID int64, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/feeding/consumptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if orgID != 0 {
		req = req.WithContext(shared.ContextWithOrg(req.Context(), orgID))
	}
	return req
}

func TestHandleConsumeCreated(t *testing.T) {
	repo := newMemoryRepo()
	stockID := seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	h := newTestHandler(repo, batchMap{1: growthBatch(1)})

	rec := httptest.NewRecorder()
	h.handleConsume(rec, consumeRequestFor(t, 1, `{"stock_id":1,"batch_id":1,"quantity_kg":25}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"quantity_kg":25`)
	require.InDelta(t, 25.0, repo.stocks[stockID].WeightKg, 0.0001)
}

func TestHandleConsumeUnknownStockIsNotFound(t *testing.T) {
	h := newTestHandler(newMemoryRepo(), batchMap{1: growthBatch(1)})

	rec := httptest.NewRecorder()
	h.handleConsume(rec, consumeRequestFor(t, 1, `{"stock_id":99,"batch_id":1,"quantity_kg":5}`))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "stock not found")
}

func TestHandleConsumeUnknownBatchIsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	h := newTestHandler(repo, batchMap{})

	rec := httptest.NewRecorder()
	h.handleConsume(rec, consumeRequestFor(t, 1, `{"stock_id":1,"batch_id":7,"quantity_kg":5}`))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleConsumeInsufficientIsUnprocessable(t *testing.T) {
	repo := newMemoryRepo()
	seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	h := newTestHandler(repo, batchMap{1: growthBatch(1)})

	rec := httptest.NewRecorder()
	h.handleConsume(rec, consumeRequestFor(t, 1, `{"stock_id":1,"batch_id":1,"quantity_kg":60}`))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient")
}

func TestHandleConsumeIncompatibleIsUnprocessable(t *testing.T) {
	repo := newMemoryRepo()
	seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryLay, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	h := newTestHandler(repo, batchMap{1: growthBatch(1)})

	rec := httptest.NewRecorder()
	h.handleConsume(rec, consumeRequestFor(t, 1, `{"stock_id":1,"batch_id":1,"quantity_kg":5}`))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Stock must be untouched after a rejected consumption.
	require.InDelta(t, 50.0, repo.stocks[1].WeightKg, 0.0001)
}

func TestHandleConsumeRejectsBadPayloads(t *testing.T) {
	repo := newMemoryRepo()
	seedStock(repo, FeedStock{OrgID: 1, Animal: flock.AnimalTypeLayer, Category: CategoryGrowth, WeightKg: 50, BagCount: 2, BagWeightKg: 25})
	h := newTestHandler(repo, batchMap{1: growthBatch(1)})

	for _, body := range []string{
		`{"stock_id":1,"batch_id":1,"quantity_kg":0}`,
		`{"stock_id":1,"batch_id":1,"quantity_kg":-4}`,
		`{"batch_id":1,"quantity_kg":5}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		h.handleConsume(rec, consumeRequestFor(t, 1, body))
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
	require.Empty(t, repo.events)
}

func TestHandleConsumeRequiresOrg(t *testing.T) {
	h := newTestHandler(newMemoryRepo(), batchMap{})

	rec := httptest.NewRecorder()
	h.handleConsume(rec, consumeRequestFor(t, 0, `{"stock_id":1,"batch_id":1,"quantity_kg":5}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "organization")
}

func TestHandleCreateStockInvalidBagWeight(t *testing.T) {
	h := newTestHandler(newMemoryRepo(), batchMap{})

	req := httptest.NewRequest(http.MethodPost, "/feeding/stocks", strings.NewReader(`{"animal":"LAYER","category":"GROWTH FEED","weight_kg":50,"bag_weight_kg":0}`))
	req = req.WithContext(shared.ContextWithOrg(req.Context(), 1))
	rec := httptest.NewRecorder()
	h.handleCreateStock(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
