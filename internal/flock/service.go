package flock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/farmstead-erp/farmstead-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertBatch(ctx context.Context, batch Batch) (int64, error)
	GetBatch(ctx context.Context, orgID, id int64) (Batch, error)
	ListBatches(ctx context.Context, orgID int64) ([]Batch, error)
	UpdatePhase(ctx context.Context, orgID, id int64, phase ProductionPhase) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates batch operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateBatchInput describes a new batch registration.
type CreateBatchInput struct {
	OrgID     int64
	Name      string
	Animal    AnimalType
	HatchedOn time.Time
	Headcount int
	ActorID   int64
}

// CreateBatch registers a batch starting in the brooding phase.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	if input.OrgID == 0 {
		return Batch{}, fmt.Errorf("%w: organization required", ErrInvalidBatch)
	}
	if input.Name == "" {
		return Batch{}, fmt.Errorf("%w: name required", ErrInvalidBatch)
	}
	if _, ok := allowedTransitions[input.Animal]; !ok {
		return Batch{}, fmt.Errorf("%w: unknown animal type %q", ErrInvalidBatch, input.Animal)
	}
	if input.Headcount <= 0 {
		return Batch{}, fmt.Errorf("%w: headcount must be positive", ErrInvalidBatch)
	}
	batch := Batch{
		OrgID:     input.OrgID,
		Name:      input.Name,
		Animal:    input.Animal,
		Phase:     PhaseBrooding,
		HatchedOn: input.HatchedOn,
		Headcount: input.Headcount,
	}
	id, err := s.repo.InsertBatch(ctx, batch)
	if err != nil {
		return Batch{}, err
	}
	batch.ID = id
	s.recordAudit(ctx, input.OrgID, input.ActorID, "flock:create", id, map[string]any{
		"name":   input.Name,
		"animal": string(input.Animal),
	})
	return batch, nil
}

// GetBatch loads one batch scoped to the organization.
func (s *Service) GetBatch(ctx context.Context, orgID, id int64) (Batch, error) {
	return s.repo.GetBatch(ctx, orgID, id)
}

// ListBatches returns live batches for the organization.
func (s *Service) ListBatches(ctx context.Context, orgID int64) ([]Batch, error) {
	return s.repo.ListBatches(ctx, orgID)
}

// AdvancePhase moves a batch along the allowed phase graph.
func (s *Service) AdvancePhase(ctx context.Context, orgID, id int64, next ProductionPhase, actorID int64) (Batch, error) {
	batch, err := s.repo.GetBatch(ctx, orgID, id)
	if err != nil {
		return Batch{}, err
	}
	if !CanTransition(batch.Animal, batch.Phase, next) {
		return Batch{}, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, batch.Phase, next, batch.Animal)
	}
	if err := s.repo.UpdatePhase(ctx, orgID, id, next); err != nil {
		return Batch{}, err
	}
	prior := batch.Phase
	batch.Phase = next
	s.recordAudit(ctx, orgID, actorID, "flock:phase", id, map[string]any{
		"from": string(prior),
		"to":   string(next),
	})
	return batch, nil
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "flock_batch",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
