package shared

import (
	"errors"
	"fmt"
)

// Error kinds shared by every ledger module. Callers match them with errors.Is.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration indicates a missing account or mapping.
	ErrConfiguration = errors.New("configuration error")
	// ErrPeriodLocked indicates the posting date falls in a locked period.
	ErrPeriodLocked = errors.New("period locked")
	// ErrUnbalancedEntry indicates a journal that breaks double-entry rules.
	ErrUnbalancedEntry = errors.New("unbalanced entry")
	// ErrDuplicateRun indicates the depreciation month is already posted.
	ErrDuplicateRun = errors.New("depreciation already posted for month")
	// ErrNothingToDepreciate indicates no asset produced a positive charge.
	ErrNothingToDepreciate = errors.New("nothing to depreciate")
	// ErrInvalidState indicates an operation not allowed from the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrAllocationExceedsBalance indicates an allocation larger than what remains.
	ErrAllocationExceedsBalance = errors.New("allocation exceeds balance")
	// ErrMatchValidation indicates a three-way match batch was rejected.
	ErrMatchValidation = errors.New("match validation failed")
	// ErrConflict indicates a concurrent or duplicate write.
	ErrConflict = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Errorf formats a message that matches kind under errors.Is.
func Errorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Kind returns the taxonomy sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound, ErrValidation, ErrConfiguration, ErrPeriodLocked, ErrUnbalancedEntry,
		ErrDuplicateRun, ErrNothingToDepreciate, ErrInvalidState, ErrAllocationExceedsBalance,
		ErrMatchValidation, ErrConflict,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
