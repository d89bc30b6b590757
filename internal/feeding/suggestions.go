package feeding

import (
	"context"

	"github.com/farmstead-erp/farmstead-erp/internal/flock"
)

// SuggestionKind classifies advisory messages.
type SuggestionKind string

const (
	// SuggestionFeedChange advises switching feed for an age milestone.
	SuggestionFeedChange SuggestionKind = "FEED_CHANGE"
	// SuggestionRestock advises replenishing a depleted stock record.
	SuggestionRestock SuggestionKind = "RESTOCK"
)

// Suggestion is an advisory message emitted after a successful consumption.
// It never influences inventory state.
type Suggestion struct {
	OrgID   int64          `json:"org_id"`
	BatchID int64          `json:"batch_id,omitempty"`
	StockID int64          `json:"stock_id,omitempty"`
	Kind    SuggestionKind `json:"kind"`
	Message string         `json:"message"`
}

// SuggestionSink delivers suggestions out of band. Implementations must be
// safe to fail: the consumption flow logs and continues.
type SuggestionSink interface {
	EnqueueSuggestion(ctx context.Context, s Suggestion) error
}

// milestone is an age checkpoint that warrants a feed or environment change.
type milestone struct {
	AgeDays    int
	WindowDays int
	Message    string
}

// feedMilestones lists advisory checkpoints per animal line. Ages are days
// since hatch; a batch matches when its age falls inside the window.
var feedMilestones = map[flock.AnimalType][]milestone{
	flock.AnimalTypeLayer: {
		{AgeDays: 0, WindowDays: 3, Message: "Chicks placed: provide starter feed and brooding temperature of 33-35C."},
		{AgeDays: 60, WindowDays: 3, Message: "Batch is around 2 months old: switch from starter to growth feed."},
		{AgeDays: 120, WindowDays: 3, Message: "Batch is around 4 months old: introduce pre-lay ration and extend lighting."},
		{AgeDays: 150, WindowDays: 3, Message: "Batch is around 5 months old: switch to lay feed and prepare nest boxes."},
	},
	flock.AnimalTypeBroiler: {
		{AgeDays: 0, WindowDays: 3, Message: "Chicks placed: provide starter feed and brooding temperature of 33-35C."},
		{AgeDays: 21, WindowDays: 2, Message: "Batch is 3 weeks old: switch from starter to growth feed."},
		{AgeDays: 35, WindowDays: 2, Message: "Batch is 5 weeks old: switch to finisher feed."},
	},
}

// milestoneMessage returns the advisory for the batch age, if any.
func milestoneMessage(animal flock.AnimalType, ageDays int) (string, bool) {
	for _, m := range feedMilestones[animal] {
		if ageDays >= m.AgeDays && ageDays <= m.AgeDays+m.WindowDays {
			return m.Message, true
		}
	}
	return "", false
}
