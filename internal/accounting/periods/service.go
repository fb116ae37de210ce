package periods

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records period status changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service answers lock queries and drives the period lifecycle.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// IsLocked reports whether date falls inside a locked period. Dates outside every
// period are not locked.
func (s *Service) IsLocked(ctx context.Context, tenantID int64, date time.Time) (bool, error) {
	p, ok, err := s.repo.FindCovering(ctx, tenantID, date)
	if err != nil || !ok {
		return false, err
	}
	return !shared.PeriodAcceptsPostings(string(p.Status)), nil
}

// EnsureOpen fails with ErrPeriodLocked when date is in a locked period. It must run
// inside the posting transaction; the share lock it takes blocks a concurrent Lock
// until that transaction ends.
func (s *Service) EnsureOpen(ctx context.Context, tenantID int64, date time.Time) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, ok, err := tx.CoveringForShare(ctx, tenantID, date)
		if err != nil || !ok {
			return err
		}
		if !shared.PeriodAcceptsPostings(string(p.Status)) {
			return fmt.Errorf("period %s: %w", p.Code, accshared.ErrPeriodLocked)
		}
		return nil
	})
}

// List returns the tenant's periods ordered by start date.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Period, error) {
	return s.repo.List(ctx, tenantID)
}

// Create opens a new period that must not overlap an existing one.
func (s *Service) Create(ctx context.Context, tenantID int64, in CreateInput) (Period, error) {
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		in.Code = in.StartDate.Format("2006-01")
	}
	in.StartDate, in.EndDate = dateOnly(in.StartDate), dateOnly(in.EndDate)
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return Period{}, shared.Errorf(shared.ErrValidation, "periods: start must not be after end")
	}
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		overlap, err := tx.Overlaps(ctx, tenantID, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if overlap {
			return shared.Errorf(shared.ErrConflict, "periods: %s overlaps an existing period", in.Code)
		}
		created, err = tx.Insert(ctx, tenantID, in)
		return err
	})
	return created, err
}

// Close soft-closes a period; postings remain allowed.
func (s *Service) Close(ctx context.Context, tenantID, id, actorID int64) (Period, error) {
	return s.transition(ctx, tenantID, id, actorID, PeriodStatusClosed, false)
}

// Lock refuses further postings into the period.
func (s *Service) Lock(ctx context.Context, tenantID, id, actorID int64) (Period, error) {
	return s.transition(ctx, tenantID, id, actorID, PeriodStatusLocked, false)
}

// Reopen returns a period to OPEN. Unlocking requires override.
func (s *Service) Reopen(ctx context.Context, tenantID, id, actorID int64, override bool) (Period, error) {
	return s.transition(ctx, tenantID, id, actorID, PeriodStatusOpen, override)
}

func (s *Service) transition(ctx context.Context, tenantID, id, actorID int64, target PeriodStatus, override bool) (Period, error) {
	var updated Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := shared.ValidatePeriodTransition(string(current.Status), string(target), override); err != nil {
			return fmt.Errorf("period %s %s -> %s: %w", current.Code, current.Status, target, err)
		}
		if current.Status == target {
			updated = current
			return nil
		}
		if err := tx.UpdateStatus(ctx, tenantID, id, target, actorID); err != nil {
			return err
		}
		if s.audit != nil {
			if err := s.audit.Record(ctx, shared.AuditLog{
				TenantID: tenantID,
				ActorID:  actorID,
				Action:   "period.status",
				Entity:   "period",
				EntityID: fmt.Sprintf("%d", id),
				Meta:     map[string]any{"from": current.Status, "to": target, "override": override},
			}); err != nil {
				return err
			}
		}
		updated = current
		updated.Status = target
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.logger.Info("period status changed",
		slog.Int64("tenant_id", tenantID),
		slog.String("period", updated.Code),
		slog.String("status", string(updated.Status)),
	)
	return updated, nil
}
