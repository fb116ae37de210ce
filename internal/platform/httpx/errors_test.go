package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestStatusMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.Errorf(shared.ErrPeriodLocked, "accounting: period 2026-01 locked"), http.StatusConflict, "period_locked"},
		{fmt.Errorf("post bill: %w", shared.ErrAllocationExceedsBalance), http.StatusUnprocessableEntity, "allocation_exceeds_balance"},
		{shared.ErrMatchValidation, http.StatusUnprocessableEntity, "match_validation_error"},
		{shared.ErrDuplicateRun, http.StatusConflict, "duplicate_run"},
		{shared.ErrIdempotencyConflict, http.StatusConflict, "duplicate_request"},
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{&pgconn.PgError{Code: "40001"}, http.StatusConflict, "conflict"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := Status(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, nil, fmt.Errorf("dial tcp: secret host"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.OK)
	require.Equal(t, "internal_error", body.Error.Code)
	require.NotContains(t, body.Error.Message, "secret")
}

func TestDecodeJSONValidates(t *testing.T) {
	type request struct {
		RunMonth string `json:"run_month" validate:"required,datetime=2006-01"`
	}
	dec := NewDecoder()

	var ok request
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"run_month":"2026-03"}`))
	require.NoError(t, dec.DecodeJSON(req, &ok))
	require.Equal(t, "2026-03", ok.RunMonth)

	var bad request
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"run_month":"March"}`))
	err := dec.DecodeJSON(req, &bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	require.ErrorIs(t, dec.DecodeJSON(req, &bad), shared.ErrValidation)
}
