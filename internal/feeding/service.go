package feeding

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/farmstead-erp/farmstead-erp/internal/flock"
	"github.com/farmstead-erp/farmstead-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertStock(ctx context.Context, stock FeedStock) (int64, error)
	ListStock(ctx context.Context, filter StockFilter) ([]FeedStock, error)
	SoftDeleteStock(ctx context.Context, orgID, id int64) error
}

// BatchSource supplies the consuming subject's phase and age.
type BatchSource interface {
	GetBatch(ctx context.Context, orgID, id int64) (flock.Batch, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates derived analytics after inventory writes.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service coordinates feed stock operations.
type Service struct {
	repo        RepositoryPort
	batches     BatchSource
	sink        SuggestionSink
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       CacheBumper
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, batches BatchSource, sink SuggestionSink, audit AuditPort, idem *shared.IdempotencyStore, cache CacheBumper, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		batches:     batches,
		sink:        sink,
		audit:       audit,
		idempotency: idem,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// CreateStock registers a feed stock record. The bag count is derived from
// weight and bag weight when the caller omits it.
func (s *Service) CreateStock(ctx context.Context, input CreateStockInput) (FeedStock, error) {
	if input.OrgID == 0 {
		return FeedStock{}, fmt.Errorf("%w: organization required", ErrInvalidStock)
	}
	if !knownCategories[input.Category] {
		return FeedStock{}, fmt.Errorf("%w: unknown category %q", ErrInvalidStock, input.Category)
	}
	if input.WeightKg < 0 {
		return FeedStock{}, fmt.Errorf("%w: weight must not be negative", ErrInvalidStock)
	}
	if !input.Category.IsBulk() && input.BagWeightKg <= 0 {
		return FeedStock{}, fmt.Errorf("%w: bag weight required for bagged categories", ErrInvalidStock)
	}
	stock := FeedStock{
		OrgID:       input.OrgID,
		Animal:      input.Animal,
		Category:    input.Category,
		WeightKg:    input.WeightKg,
		BagCount:    input.BagCount,
		BagWeightKg: input.BagWeightKg,
	}
	if !stock.Category.IsBulk() {
		derived := int(stock.WeightKg / stock.BagWeightKg)
		if stock.BagCount <= 0 || stock.BagCount > derived {
			stock.BagCount = derived
		}
	} else {
		stock.BagCount = 0
	}
	id, err := s.repo.InsertStock(ctx, stock)
	if err != nil {
		return FeedStock{}, err
	}
	stock.ID = id
	s.recordAudit(ctx, input.OrgID, input.ActorID, "feeding:stock:create", id, map[string]any{
		"category":  string(input.Category),
		"weight_kg": input.WeightKg,
	})
	return stock, nil
}

// ListStock lists live stock records for the organization.
func (s *Service) ListStock(ctx context.Context, filter StockFilter) ([]FeedStock, error) {
	if filter.OrgID == 0 {
		return nil, fmt.Errorf("%w: organization required", ErrInvalidStock)
	}
	return s.repo.ListStock(ctx, filter)
}

// RemoveStock soft-deletes a stock record.
func (s *Service) RemoveStock(ctx context.Context, orgID, id int64, actorID int64) error {
	if err := s.repo.SoftDeleteStock(ctx, orgID, id); err != nil {
		return err
	}
	s.recordAudit(ctx, orgID, actorID, "feeding:stock:remove", id, nil)
	return nil
}

// Consume applies a feeding event against a stock record. Validation, the
// event insert, and the stock decrement run in one transaction holding a row
// lock on the stock record, so concurrent feedings of the same stock
// serialize. Advisory suggestions are emitted after commit and never affect
// the outcome.
func (s *Service) Consume(ctx context.Context, input ConsumeInput) (ConsumptionEvent, error) {
	if input.QuantityKg <= 0 {
		return ConsumptionEvent{}, ErrInvalidQuantity
	}
	batch, err := s.batches.GetBatch(ctx, input.OrgID, input.BatchID)
	if err != nil {
		return ConsumptionEvent{}, err
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "feeding"); err != nil {
			return ConsumptionEvent{}, err
		}
		insertedKey = true
	}

	now := s.now().UTC()
	event := ConsumptionEvent{
		Code:       uuid.NewString(),
		OrgID:      input.OrgID,
		StockID:    input.StockID,
		BatchID:    input.BatchID,
		QuantityKg: input.QuantityKg,
		Note:       input.Note,
		OccurredAt: now,
	}

	var remaining FeedStock
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, input.OrgID, input.StockID)
		if err != nil {
			return err
		}
		if stock.Animal != batch.Animal {
			return ErrStockNotFound
		}
		if input.QuantityKg > stock.WeightKg {
			return ErrInsufficientStock
		}
		if !stock.Category.CompatibleWith(batch.Phase) {
			return ErrIncompatibleCategory
		}

		newWeight := stock.WeightKg - input.QuantityKg
		newBags := remainingBags(stock, newWeight)

		id, err := tx.InsertConsumption(ctx, event)
		if err != nil {
			return err
		}
		event.ID = id

		if err := tx.UpdateStockLevels(ctx, stock.ID, newWeight, newBags); err != nil {
			return err
		}
		stock.WeightKg = newWeight
		stock.BagCount = newBags
		remaining = stock
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return ConsumptionEvent{}, err
	}

	s.recordAudit(ctx, input.OrgID, input.ActorID, "feeding:consume", input.StockID, map[string]any{
		"batch_id":    input.BatchID,
		"quantity_kg": input.QuantityKg,
		"weight_kg":   remaining.WeightKg,
	})
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logWarn("bump analytics cache", err)
		}
	}
	s.emitSuggestions(ctx, batch, remaining, now)
	return event, nil
}

// remainingBags recomputes the whole-bag count after a weight change. One bag
// is removed per bag-weight boundary crossed; bulk categories carry no bags.
// The count never goes below zero.
func remainingBags(stock FeedStock, newWeight float64) int {
	if stock.Category.IsBulk() || stock.BagWeightKg <= 0 {
		return stock.BagCount
	}
	crossed := int(stock.WeightKg/stock.BagWeightKg) - int(newWeight/stock.BagWeightKg)
	if crossed <= 0 {
		return stock.BagCount
	}
	bags := stock.BagCount - crossed
	if bags < 0 {
		bags = 0
	}
	return bags
}

// emitSuggestions fires the advisory side channel. Failures are logged only.
func (s *Service) emitSuggestions(ctx context.Context, batch flock.Batch, stock FeedStock, now time.Time) {
	if s.sink == nil {
		return
	}
	if msg, ok := milestoneMessage(batch.Animal, batch.AgeDays(now)); ok {
		err := s.sink.EnqueueSuggestion(ctx, Suggestion{
			OrgID:   batch.OrgID,
			BatchID: batch.ID,
			Kind:    SuggestionFeedChange,
			Message: msg,
		})
		if err != nil {
			s.logWarn("enqueue feed-change suggestion", err)
		}
	}
	if !stock.Category.IsBulk() && stock.WeightKg < stock.BagWeightKg {
		err := s.sink.EnqueueSuggestion(ctx, Suggestion{
			OrgID:   stock.OrgID,
			StockID: stock.ID,
			Kind:    SuggestionRestock,
			Message: fmt.Sprintf("Feed stock %d is below one bag (%.1f kg left), plan a restock.", stock.ID, stock.WeightKg),
		})
		if err != nil {
			s.logWarn("enqueue restock suggestion", err)
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "feed_stock",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}

func (s *Service) logWarn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err))
	}
}
