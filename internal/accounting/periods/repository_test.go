package periods

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestInsertErrorMapsConstraintRaces(t *testing.T) {
	in := CreateInput{Code: "2025-03"}

	err := insertError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01", ConstraintName: "ex_periods_overlap"}), in)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Contains(t, err.Error(), "overlaps")

	err = insertError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_periods_code"}, in)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Contains(t, err.Error(), "already exists")

	plain := errors.New("connection reset")
	require.Same(t, plain, insertError(plain, in))
}
