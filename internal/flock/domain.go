package flock

import (
	"errors"
	"time"
)

// AnimalType enumerates the supported animal lines.
type AnimalType string

const (
	// AnimalTypeLayer is an egg-laying poultry line.
	AnimalTypeLayer AnimalType = "LAYER"
	// AnimalTypeBroiler is a meat poultry line.
	AnimalTypeBroiler AnimalType = "BROILER"
)

// ProductionPhase enumerates the life stages of a batch.
type ProductionPhase string

const (
	PhaseBrooding ProductionPhase = "BROODING"
	PhaseGrowth   ProductionPhase = "GROWTH"
	PhasePreLay   ProductionPhase = "PRE_LAY"
	PhaseLay      ProductionPhase = "LAY"
	PhaseFinisher ProductionPhase = "FINISHER"
	PhaseCulled   ProductionPhase = "CULLED"
)

// allowedTransitions declares the forward-only phase graph per animal type.
// A batch can always be culled.
var allowedTransitions = map[AnimalType]map[ProductionPhase][]ProductionPhase{
	AnimalTypeLayer: {
		PhaseBrooding: {PhaseGrowth, PhaseCulled},
		PhaseGrowth:   {PhasePreLay, PhaseCulled},
		PhasePreLay:   {PhaseLay, PhaseCulled},
		PhaseLay:      {PhaseCulled},
	},
	AnimalTypeBroiler: {
		PhaseBrooding: {PhaseGrowth, PhaseCulled},
		PhaseGrowth:   {PhaseFinisher, PhaseCulled},
		PhaseFinisher: {PhaseCulled},
	},
}

// CanTransition reports whether a batch of the given type may move between phases.
func CanTransition(animal AnimalType, from, to ProductionPhase) bool {
	phases, ok := allowedTransitions[animal]
	if !ok {
		return false
	}
	for _, next := range phases[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Batch models a group of animals managed as one unit.
type Batch struct {
	ID        int64
	OrgID     int64
	Name      string
	Animal    AnimalType
	Phase     ProductionPhase
	HatchedOn time.Time
	Headcount int
	CreatedAt time.Time
}

// AgeDays returns the batch age in whole days at the given instant.
func (b Batch) AgeDays(now time.Time) int {
	if b.HatchedOn.IsZero() || now.Before(b.HatchedOn) {
		return 0
	}
	return int(now.Sub(b.HatchedOn).Hours() / 24)
}

// ErrBatchNotFound indicates the batch does not exist in the caller's organization.
var ErrBatchNotFound = errors.New("flock: batch not found")

// ErrInvalidTransition indicates a phase change outside the allowed graph.
var ErrInvalidTransition = errors.New("flock: phase transition not allowed")

// ErrInvalidBatch indicates a malformed batch definition.
var ErrInvalidBatch = errors.New("flock: invalid batch")
