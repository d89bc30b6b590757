package flock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/farmstead-erp/farmstead-erp/internal/platform/httpx"
	"github.com/farmstead-erp/farmstead-erp/internal/shared"
)

// Handler wires HTTP endpoints for the flock module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs flock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers flock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/phase", h.handlePhase)
}

type createBatchRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Animal    string `json:"animal" validate:"required,oneof=LAYER BROILER"`
	HatchedOn string `json:"hatched_on" validate:"omitempty,datetime=2006-01-02"`
	Headcount int    `json:"headcount" validate:"required,gt=0"`
}

type phaseRequest struct {
	Phase string `json:"phase" validate:"required"`
}

type batchResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Animal    string `json:"animal"`
	Phase     string `json:"phase"`
	HatchedOn string `json:"hatched_on,omitempty"`
	Headcount int    `json:"headcount"`
	AgeDays   int    `json:"age_days"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	if orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organization header missing")
		return
	}
	var req createBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var hatchedOn time.Time
	if req.HatchedOn != "" {
		var err error
		hatchedOn, err = time.Parse("2006-01-02", req.HatchedOn)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid hatched_on date")
			return
		}
	}
	batch, err := h.service.CreateBatch(r.Context(), CreateBatchInput{
		OrgID:     orgID,
		Name:      req.Name,
		Animal:    AnimalType(req.Animal),
		HatchedOn: hatchedOn,
		Headcount: req.Headcount,
	})
	if err != nil {
		h.respondError(w, "create batch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBatchResponse(batch))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	if orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organization header missing")
		return
	}
	batches, err := h.service.ListBatches(r.Context(), orgID)
	if err != nil {
		h.respondError(w, "list batches", err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, toBatchResponse(batch))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	batch, err := h.service.GetBatch(r.Context(), orgID, id)
	if err != nil {
		h.respondError(w, "get batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handlePhase(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrgFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	var req phaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.AdvancePhase(r.Context(), orgID, id, ProductionPhase(req.Phase), 0)
	if err != nil {
		h.respondError(w, "advance phase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, ErrInvalidBatch):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toBatchResponse(batch Batch) batchResponse {
	resp := batchResponse{
		ID:        batch.ID,
		Name:      batch.Name,
		Animal:    string(batch.Animal),
		Phase:     string(batch.Phase),
		Headcount: batch.Headcount,
		AgeDays:   batch.AgeDays(time.Now().UTC()),
	}
	if !batch.HatchedOn.IsZero() {
		resp.HatchedOn = batch.HatchedOn.Format("2006-01-02")
	}
	return resp
}
