package flock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farmstead-erp/farmstead-erp/internal/shared"
)

type memoryRepo struct {
	nextID  int64
	batches map[int64]Batch
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, batches: make(map[int64]Batch)}
}

func (m *memoryRepo) InsertBatch(_ context.Context, batch Batch) (int64, error) {
	id := m.nextID
	m.nextID++
	batch.ID = id
	m.batches[id] = batch
	return id, nil
}

func (m *memoryRepo) GetBatch(_ context.Context, orgID, id int64) (Batch, error) {
	batch, ok := m.batches[id]
	if !ok || batch.OrgID != orgID {
		return Batch{}, ErrBatchNotFound
	}
	return batch, nil
}

func (m *memoryRepo) ListBatches(_ context.Context, orgID int64) ([]Batch, error) {
	out := make([]Batch, 0)
	for _, batch := range m.batches {
		if batch.OrgID == orgID {
			out = append(out, batch)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdatePhase(_ context.Context, orgID, id int64, phase ProductionPhase) error {
	batch, ok := m.batches[id]
	if !ok || batch.OrgID != orgID {
		return ErrBatchNotFound
	}
	batch.Phase = phase
	m.batches[id] = batch
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func hatched(daysAgo int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -daysAgo)
}

func TestCreateBatchStartsInBrooding(t *testing.T) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit)

	batch, err := svc.CreateBatch(context.Background(), CreateBatchInput{
		OrgID:     1,
		Name:      "Layer batch A",
		Animal:    AnimalTypeLayer,
		HatchedOn: hatched(1),
		Headcount: 500,
	})
	require.NoError(t, err)
	require.Equal(t, PhaseBrooding, batch.Phase)
	require.NotZero(t, batch.ID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "flock:create", audit.logs[0].Action)
}

func TestCreateBatchValidates(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, CreateBatchInput{OrgID: 0, Name: "x", Animal: AnimalTypeLayer, Headcount: 1})
	require.ErrorIs(t, err, ErrInvalidBatch)

	_, err = svc.CreateBatch(ctx, CreateBatchInput{OrgID: 1, Name: "", Animal: AnimalTypeLayer, Headcount: 1})
	require.ErrorIs(t, err, ErrInvalidBatch)

	_, err = svc.CreateBatch(ctx, CreateBatchInput{OrgID: 1, Name: "x", Animal: "OSTRICH", Headcount: 1})
	require.ErrorIs(t, err, ErrInvalidBatch)

	_, err = svc.CreateBatch(ctx, CreateBatchInput{OrgID: 1, Name: "x", Animal: AnimalTypeLayer, Headcount: 0})
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestAdvancePhaseFollowsGraph(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	batch, err := svc.CreateBatch(ctx, CreateBatchInput{
		OrgID: 1, Name: "Layer batch A", Animal: AnimalTypeLayer, HatchedOn: hatched(60), Headcount: 500,
	})
	require.NoError(t, err)

	for _, next := range []ProductionPhase{PhaseGrowth, PhasePreLay, PhaseLay} {
		batch, err = svc.AdvancePhase(ctx, 1, batch.ID, next, 0)
		require.NoError(t, err)
		require.Equal(t, next, batch.Phase)
	}

	_, err = svc.AdvancePhase(ctx, 1, batch.ID, PhaseGrowth, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdvancePhaseRejectsSkips(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	batch, err := svc.CreateBatch(ctx, CreateBatchInput{
		OrgID: 1, Name: "Broiler batch", Animal: AnimalTypeBroiler, HatchedOn: hatched(5), Headcount: 800,
	})
	require.NoError(t, err)

	// A broiler line has no lay phases at all.
	_, err = svc.AdvancePhase(ctx, 1, batch.ID, PhaseLay, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Brooding cannot jump straight to finisher.
	_, err = svc.AdvancePhase(ctx, 1, batch.ID, PhaseFinisher, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Culling is always allowed.
	batch, err = svc.AdvancePhase(ctx, 1, batch.ID, PhaseCulled, 0)
	require.NoError(t, err)
	require.Equal(t, PhaseCulled, batch.Phase)
}

func TestAdvancePhaseScopedToOrg(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	batch, err := svc.CreateBatch(ctx, CreateBatchInput{
		OrgID: 1, Name: "Layer batch A", Animal: AnimalTypeLayer, HatchedOn: hatched(10), Headcount: 100,
	})
	require.NoError(t, err)

	_, err = svc.AdvancePhase(ctx, 2, batch.ID, PhaseGrowth, 0)
	require.ErrorIs(t, err, ErrBatchNotFound)
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	batch := Batch{HatchedOn: now.AddDate(0, 0, -60)}
	require.Equal(t, 60, batch.AgeDays(now))

	require.Equal(t, 0, Batch{}.AgeDays(now))
	require.Equal(t, 0, Batch{HatchedOn: now.AddDate(0, 0, 5)}.AgeDays(now))
}
