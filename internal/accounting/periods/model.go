package periods

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = shared.PeriodStatusOpen
	PeriodStatusClosed PeriodStatus = shared.PeriodStatusClosed
	PeriodStatusLocked PeriodStatus = shared.PeriodStatusLocked
)

// Period represents a fiscal period window. Both bounds are inclusive dates.
type Period struct {
	ID        int64
	TenantID  int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Status    PeriodStatus
	LockedBy  *int64
	LockedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether date falls inside the period.
func (p Period) Covers(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(p.StartDate)) && !d.After(dateOnly(p.EndDate))
}

// CreateInput describes a new period.
type CreateInput struct {
	Code      string
	StartDate time.Time
	EndDate   time.Time
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
