package fixedassets

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LedgerPostError indicates the depreciation run was computed and saved as a draft
// but its journal could not be posted. Rerunning the month recomputes the draft.
type LedgerPostError struct {
	RunID     int64
	Err       error
	Retryable bool
	Message   string
}

func (e *LedgerPostError) Error() string {
	return e.Message
}

func (e *LedgerPostError) Unwrap() error {
	return e.Err
}

func wrapLedgerPostError(runID int64, err error) *LedgerPostError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, shared.ErrPeriodLocked):
		return &LedgerPostError{
			RunID:     runID,
			Err:       err,
			Retryable: true,
			Message:   "Ledger period locked; depreciation run saved as draft but journal posting pending",
		}
	case errors.Is(err, shared.ErrConfiguration):
		return &LedgerPostError{
			RunID:     runID,
			Err:       err,
			Retryable: true,
			Message:   fmt.Sprintf("Account configuration incomplete; depreciation run saved as draft (%s)", err.Error()),
		}
	default:
		return &LedgerPostError{
			RunID:     runID,
			Err:       err,
			Retryable: false,
			Message:   fmt.Sprintf("Failed to post depreciation to ledger; run saved as draft (%s)", err.Error()),
		}
	}
}
