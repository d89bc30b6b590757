package feeding

import (
	"errors"
	"time"

	"github.com/farmstead-erp/farmstead-erp/internal/flock"
)

// FeedCategory enumerates feed material categories.
type FeedCategory string

const (
	CategoryStarter  FeedCategory = "STARTER FEED"
	CategoryGrowth   FeedCategory = "GROWTH FEED"
	CategoryLay      FeedCategory = "LAY FEED"
	CategoryFinisher FeedCategory = "FINISHER FEED"
	CategoryForage   FeedCategory = "FORAGE"
	CategorySilage   FeedCategory = "SILAGE"
)

// bulkCategories are tracked by weight only, never by discrete bags.
var bulkCategories = map[FeedCategory]bool{
	CategoryForage: true,
	CategorySilage: true,
}

// IsBulk reports whether the category is weight-only inventory.
func (c FeedCategory) IsBulk() bool {
	return bulkCategories[c]
}

// knownCategories guards input validation.
var knownCategories = map[FeedCategory]bool{
	CategoryStarter:  true,
	CategoryGrowth:   true,
	CategoryLay:      true,
	CategoryFinisher: true,
	CategoryForage:   true,
	CategorySilage:   true,
}

// forbiddenFor declares which feed categories must not be applied to a batch
// in a given production phase. The rule set is data so new restrictions are a
// table edit, not another conditional.
var forbiddenFor = map[flock.ProductionPhase][]FeedCategory{
	flock.PhaseBrooding: {CategoryGrowth, CategoryLay, CategoryFinisher},
	flock.PhaseGrowth:   {CategoryLay, CategoryFinisher},
	flock.PhasePreLay:   {CategoryStarter, CategoryFinisher},
	flock.PhaseLay:      {CategoryStarter, CategoryGrowth, CategoryFinisher},
	flock.PhaseFinisher: {CategoryStarter, CategoryLay},
}

// CompatibleWith reports whether the category may be fed to a batch in phase.
func (c FeedCategory) CompatibleWith(phase flock.ProductionPhase) bool {
	for _, forbidden := range forbiddenFor[phase] {
		if forbidden == c {
			return false
		}
	}
	return true
}

// FeedStock models one inventory batch of feed.
type FeedStock struct {
	ID          int64
	OrgID       int64
	Animal      flock.AnimalType
	Category    FeedCategory
	WeightKg    float64
	BagCount    int
	BagWeightKg float64
	CreatedAt   time.Time
}

// ConsumptionEvent models one feeding action applied against a stock record.
type ConsumptionEvent struct {
	ID         int64
	Code       string
	OrgID      int64
	StockID    int64
	BatchID    int64
	QuantityKg float64
	Note       string
	OccurredAt time.Time
}

// CreateStockInput describes a stock registration.
type CreateStockInput struct {
	OrgID       int64
	Animal      flock.AnimalType
	Category    FeedCategory
	WeightKg    float64
	BagCount    int
	BagWeightKg float64
	ActorID     int64
}

// ConsumeInput describes a feeding request.
type ConsumeInput struct {
	OrgID          int64
	StockID        int64
	BatchID        int64
	QuantityKg     float64
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// StockFilter filters stock listings.
type StockFilter struct {
	OrgID    int64
	Animal   flock.AnimalType
	Category FeedCategory
}

// ErrStockNotFound indicates the stock record is missing, soft-deleted, or
// scoped to another organization or animal type.
var ErrStockNotFound = errors.New("feeding: feed stock not found")

// ErrInsufficientStock indicates the requested quantity exceeds available weight.
var ErrInsufficientStock = errors.New("feeding: insufficient amount of feed available, update the feed stock first")

// ErrIncompatibleCategory indicates the feed category is forbidden for the
// batch's current production phase.
var ErrIncompatibleCategory = errors.New("feeding: feed category not suitable for the batch's production phase")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("feeding: quantity must be positive")

// ErrInvalidStock indicates a malformed stock definition.
var ErrInvalidStock = errors.New("feeding: invalid feed stock")
