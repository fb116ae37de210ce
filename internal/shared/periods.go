package shared

// Period statuses reused outside the accounting module.
const (
	PeriodStatusOpen   = "OPEN"
	PeriodStatusClosed = "CLOSED"
	PeriodStatusLocked = "LOCKED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = Errorf(ErrInvalidState, "period transition invalid")

// ValidatePeriodTransition checks transitions according to policy. Leaving LOCKED
// needs an explicit override.
func ValidatePeriodTransition(current, target string, hasOverride bool) error {
	if current == target {
		return nil
	}
	switch current {
	case PeriodStatusOpen:
		if target == PeriodStatusClosed || target == PeriodStatusLocked {
			return nil
		}
	case PeriodStatusClosed:
		if target == PeriodStatusOpen || target == PeriodStatusLocked {
			return nil
		}
	case PeriodStatusLocked:
		if (target == PeriodStatusClosed || target == PeriodStatusOpen) && hasOverride {
			return nil
		}
	}
	return ErrInvalidPeriodTransition
}

// PeriodAcceptsPostings reports whether journals may be dated inside a period in status.
func PeriodAcceptsPostings(status string) bool {
	return status != PeriodStatusLocked
}
