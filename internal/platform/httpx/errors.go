package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrUnauthorized indicates the request carries no tenant scope.
var ErrUnauthorized = errors.New("tenant scope missing")

type mapping struct {
	status int
	code   string
}

var kindMappings = map[error]mapping{
	shared.ErrValidation:               {http.StatusBadRequest, "validation_error"},
	shared.ErrNotFound:                 {http.StatusNotFound, "not_found"},
	shared.ErrConfiguration:            {http.StatusUnprocessableEntity, "configuration_error"},
	shared.ErrPeriodLocked:             {http.StatusConflict, "period_locked"},
	shared.ErrUnbalancedEntry:          {http.StatusInternalServerError, "unbalanced_entry"},
	shared.ErrDuplicateRun:             {http.StatusConflict, "duplicate_run"},
	shared.ErrNothingToDepreciate:      {http.StatusUnprocessableEntity, "nothing_to_depreciate"},
	shared.ErrInvalidState:             {http.StatusConflict, "invalid_state"},
	shared.ErrAllocationExceedsBalance: {http.StatusUnprocessableEntity, "allocation_exceeds_balance"},
	shared.ErrMatchValidation:          {http.StatusUnprocessableEntity, "match_validation_error"},
	shared.ErrConflict:                 {http.StatusConflict, "conflict"},
}

// Status returns the HTTP status and machine code for err.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return http.StatusConflict, "duplicate_request"
	case db.IsRetryable(err):
		return http.StatusConflict, "conflict"
	}
	if kind := shared.Kind(err); kind != nil {
		m := kindMappings[kind]
		return m.status, m.code
	}
	return http.StatusInternalServerError, "internal_error"
}

// Fail maps domain errors onto the error envelope. Unknown errors are logged and
// their message withheld.
func Fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := Status(err)
	message := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		if logger != nil {
			logger.Error("request failed", slog.String("code", code), slog.Any("error", err))
		}
		if code == "internal_error" {
			message = http.StatusText(status)
		}
	case logger != nil:
		logger.Warn("request rejected", slog.String("code", code), slog.Any("error", err))
	}
	Problem(w, status, code, message)
}
