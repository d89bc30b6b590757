package feeding

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/farmstead-erp/farmstead-erp/internal/flock"
	"github.com/farmstead-erp/farmstead-erp/internal/platform/httpx"
	"github.com/farmstead-erp/farmstead-erp/internal/shared"
)

// Handler wires HTTP endpoints for the feeding module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs feeding handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers feeding routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stocks", h.handleCreateStock)
	r.Get("/stocks", h.handleListStock)
	r.Delete("/stocks/{id}", h.handleRemoveStock)
	r.Post("/consumptions", h.handleConsume)
}

type createStockRequest struct {
	Animal      string  `json:"animal" validate:"required,oneof=LAYER BROILER"`
	Category    string  `json:"category" validate:"required"`
	WeightKg    float64 `json:"weight_kg" validate:"gte=0"`
	BagCount    int     `json:"bag_count" validate:"gte=0"`
	BagWeightKg float64 `json:"bag_weight_kg" validate:"gte=0"`
}

type consumeRequest struct {
	StockID    int64   `json:"stock_id" validate:"required,gt=0"`
	BatchID    int64   `json:"batch_id" validate:"required,gt=0"`
	QuantityKg float64 `json:"quantity_kg" validate:"required,gt=0"`
	Note       string  `json:"note" validate:"max=500"`
}

type stockResponse struct {
	ID          int64   `json:"id"`
	Animal      string  `json:"animal"`
	Category    string  `json:"category"`
	WeightKg    float64 `json:"weight_kg"`
	BagCount    int     `json:"bag_count"`
	BagWeightKg float64 `json:"bag_weight_kg"`
}

type consumptionResponse struct {
	ID         int64   `json:"id"`
	Code       string  `json:"code"`
	StockID    int64   `json:"stock_id"`
	BatchID    int64   `json:"batch_id"`
	QuantityKg float64 `json:"quantity_kg"`
	OccurredAt string  `json:"occurred_at"`
}

func (h *Handler) handleCreateStock(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	if orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organization header missing")
		return
	}
	var req createStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	stock, err := h.service.CreateStock(r.Context(), CreateStockInput{
		OrgID:       orgID,
		Animal:      flock.AnimalType(req.Animal),
		Category:    FeedCategory(req.Category),
		WeightKg:    req.WeightKg,
		BagCount:    req.BagCount,
		BagWeightKg: req.BagWeightKg,
	})
	if err != nil {
		h.respondError(w, "create stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toStockResponse(stock))
}

func (h *Handler) handleListStock(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	if orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organization header missing")
		return
	}
	q := r.URL.Query()
	stocks, err := h.service.ListStock(r.Context(), StockFilter{
		OrgID:    orgID,
		Animal:   flock.AnimalType(q.Get("animal")),
		Category: FeedCategory(q.Get("category")),
	})
	if err != nil {
		h.respondError(w, "list stock", err)
		return
	}
	out := make([]stockResponse, 0, len(stocks))
	for _, stock := range stocks {
		out = append(out, toStockResponse(stock))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleRemoveStock(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid stock id")
		return
	}
	if err := h.service.RemoveStock(r.Context(), orgID, id, 0); err != nil {
		h.respondError(w, "remove stock", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleConsume(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	if orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organization header missing")
		return
	}
	var req consumeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	event, err := h.service.Consume(r.Context(), ConsumeInput{
		OrgID:          orgID,
		StockID:        req.StockID,
		BatchID:        req.BatchID,
		QuantityKg:     req.QuantityKg,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, "consume", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, consumptionResponse{
		ID:         event.ID,
		Code:       event.Code,
		StockID:    event.StockID,
		BatchID:    event.BatchID,
		QuantityKg: event.QuantityKg,
		OccurredAt: event.OccurredAt.Format(time.RFC3339),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrStockNotFound), errors.Is(err, flock.ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrIncompatibleCategory):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidStock):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toStockResponse(stock FeedStock) stockResponse {
	return stockResponse{
		ID:          stock.ID,
		Animal:      string(stock.Animal),
		Category:    string(stock.Category),
		WeightKg:    stock.WeightKg,
		BagCount:    stock.BagCount,
		BagWeightKg: stock.BagWeightKg,
	}
}
