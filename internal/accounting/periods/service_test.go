package periods

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	periods map[int64]Period
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{periods: map[int64]Period{}}
}

func (r *memoryRepo) FindCovering(ctx context.Context, tenantID int64, date time.Time) (Period, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.covering(tenantID, date)
}

func (r *memoryRepo) covering(tenantID int64, date time.Time) (Period, bool, error) {
	for _, p := range r.periods {
		if p.TenantID == tenantID && p.Covers(date) {
			return p, true, nil
		}
	}
	return Period{}, false, nil
}

func (r *memoryRepo) List(ctx context.Context, tenantID int64) ([]Period, error) {
	return nil, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Period, len(r.periods))
	for k, v := range r.periods {
		snapshot[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.periods = snapshot
		return err
	}
	return nil
}

type memoryTx struct{ repo *memoryRepo }

func (t *memoryTx) CoveringForShare(ctx context.Context, tenantID int64, date time.Time) (Period, bool, error) {
	return t.repo.covering(tenantID, date)
}

func (t *memoryTx) GetForUpdate(ctx context.Context, tenantID, id int64) (Period, error) {
	p, ok := t.repo.periods[id]
	if !ok || p.TenantID != tenantID {
		return Period{}, accshared.ErrPeriodNotFound
	}
	return p, nil
}

func (t *memoryTx) Overlaps(ctx context.Context, tenantID int64, start, end time.Time) (bool, error) {
	for _, p := range t.repo.periods {
		if p.TenantID == tenantID && !p.StartDate.After(end) && !p.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) Insert(ctx context.Context, tenantID int64, in CreateInput) (Period, error) {
	t.repo.nextID++
	p := Period{ID: t.repo.nextID, TenantID: tenantID, Code: in.Code, StartDate: in.StartDate, EndDate: in.EndDate, Status: PeriodStatusOpen}
	t.repo.periods[p.ID] = p
	return p, nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, tenantID, id int64, status PeriodStatus, actorID int64) error {
	p := t.repo.periods[id]
	p.Status = status
	t.repo.periods[id] = p
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLockRefusesPostingAndIsLockedReports(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil, nil)

	jan, err := svc.Create(ctx, 1, CreateInput{StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31)})
	require.NoError(t, err)
	require.Equal(t, "2026-01", jan.Code)

	require.NoError(t, svc.EnsureOpen(ctx, 1, date(2026, 1, 15)))

	_, err = svc.Lock(ctx, 1, jan.ID, 42)
	require.NoError(t, err)

	locked, err := svc.IsLocked(ctx, 1, date(2026, 1, 31))
	require.NoError(t, err)
	require.True(t, locked)

	err = svc.EnsureOpen(ctx, 1, date(2026, 1, 15))
	require.ErrorIs(t, err, accshared.ErrPeriodLocked)
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	// other tenants and uncovered dates are unaffected
	require.NoError(t, svc.EnsureOpen(ctx, 2, date(2026, 1, 15)))
	locked, err = svc.IsLocked(ctx, 1, date(2026, 2, 1))
	require.NoError(t, err)
	require.False(t, locked)
}

func TestClosedPeriodStillAcceptsPostings(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil, nil)
	p, err := svc.Create(ctx, 1, CreateInput{StartDate: date(2026, 2, 1), EndDate: date(2026, 2, 28)})
	require.NoError(t, err)
	_, err = svc.Close(ctx, 1, p.ID, 1)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureOpen(ctx, 1, date(2026, 2, 10)))
}

func TestUnlockRequiresOverride(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil, nil)
	p, err := svc.Create(ctx, 1, CreateInput{StartDate: date(2026, 3, 1), EndDate: date(2026, 3, 31)})
	require.NoError(t, err)
	_, err = svc.Lock(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	_, err = svc.Reopen(ctx, 1, p.ID, 1, false)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	reopened, err := svc.Reopen(ctx, 1, p.ID, 1, true)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusOpen, reopened.Status)
}

func TestCreateRejectsOverlapAndInvertedRange(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Create(ctx, 1, CreateInput{Code: "Q1", StartDate: date(2026, 1, 1), EndDate: date(2026, 3, 31)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, CreateInput{Code: "MAR", StartDate: date(2026, 3, 1), EndDate: date(2026, 3, 31)})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Create(ctx, 1, CreateInput{StartDate: date(2026, 5, 1), EndDate: date(2026, 4, 1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}
