package analytichttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/farmstead-erp/farmstead-erp/internal/analytics"
	"github.com/farmstead-erp/farmstead-erp/internal/analytics/export"
	"github.com/farmstead-erp/farmstead-erp/internal/platform/httpx"
	"github.com/farmstead-erp/farmstead-erp/internal/shared"
)

const requestTimeout = 2 * time.Second

// AnalyticsService defines the series data contract used by the handler.
type AnalyticsService interface {
	GetFeedingSeries(ctx context.Context, orgID int64, filter analytics.SeriesFilter) ([]analytics.Bucket, error)
	GetIncubationSeries(ctx context.Context, orgID int64, filter analytics.SeriesFilter) ([]analytics.Bucket, error)
}

// Handler coordinates HTTP requests for farm analytics.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	now     func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type dashboardResponse struct {
	Feeding    []analytics.Bucket `json:"feeding"`
	Incubation []analytics.Bucket `json:"incubation"`
}

func (h *Handler) handleFeeding(w http.ResponseWriter, r *http.Request) {
	orgID, filter, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	buckets, err := h.service.GetFeedingSeries(ctx, orgID, filter)
	if err != nil {
		h.handleServerError(w, "load feeding series", err)
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) handleIncubation(w http.ResponseWriter, r *http.Request) {
	orgID, filter, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	buckets, err := h.service.GetIncubationSeries(ctx, orgID, filter)
	if err != nil {
		h.handleServerError(w, "load incubation series", err)
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	orgID, filter, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var resp dashboardResponse
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buckets, err := h.service.GetFeedingSeries(ctx, orgID, filter)
		if err != nil {
			return err
		}
		resp.Feeding = buckets
		return nil
	})
	g.Go(func() error {
		buckets, err := h.service.GetIncubationSeries(ctx, orgID, filter)
		if err != nil {
			return err
		}
		resp.Incubation = buckets
		return nil
	})
	if err := g.Wait(); err != nil {
		h.handleServerError(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleFeedingCSV(w http.ResponseWriter, r *http.Request) {
	orgID, filter, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	buckets, err := h.service.GetFeedingSeries(ctx, orgID, filter)
	if err != nil {
		h.handleServerError(w, "load feeding series", err)
		return
	}

	filename := fmt.Sprintf("feeding-%s.csv", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteSeriesCSV(w, buckets); err != nil {
		h.logError("stream feeding csv", err)
	}
}

func (h *Handler) handleIncubationCSV(w http.ResponseWriter, r *http.Request) {
	orgID, filter, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	buckets, err := h.service.GetIncubationSeries(ctx, orgID, filter)
	if err != nil {
		h.handleServerError(w, "load incubation series", err)
		return
	}

	filename := fmt.Sprintf("incubation-%s.csv", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteDualSeriesCSV(w, buckets); err != nil {
		h.logError("stream incubation csv", err)
	}
}

func (h *Handler) parseFilters(r *http.Request) (int64, analytics.SeriesFilter, error) {
	orgID := shared.OrgFromContext(r.Context())
	if orgID == 0 {
		return 0, analytics.SeriesFilter{}, validationError{field: "organization"}
	}

	var filter analytics.SeriesFilter
	q := r.URL.Query()
	if yearStr := strings.TrimSpace(q.Get("year")); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil || year < 2000 || year > 2200 {
			return 0, analytics.SeriesFilter{}, validationError{field: "year"}
		}
		filter.Year = &year
	}
	if monthStr := strings.TrimSpace(q.Get("month")); monthStr != "" {
		if filter.Year == nil {
			return 0, analytics.SeriesFilter{}, validationError{field: "month requires year"}
		}
		month, err := strconv.Atoi(monthStr)
		if err != nil || month < 1 || month > 12 {
			return 0, analytics.SeriesFilter{}, validationError{field: "month"}
		}
		filter.Month = &month
	}
	return orgID, filter, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}
