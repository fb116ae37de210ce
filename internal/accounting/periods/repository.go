package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists fiscal periods.
type Repository interface {
	// FindCovering returns the period containing date; ok is false when none does.
	FindCovering(ctx context.Context, tenantID int64, date time.Time) (Period, bool, error)
	List(ctx context.Context, tenantID int64) ([]Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// CoveringForShare reads the covering period with a share lock so a concurrent
	// status change waits for the caller's transaction.
	CoveringForShare(ctx context.Context, tenantID int64, date time.Time) (Period, bool, error)
	GetForUpdate(ctx context.Context, tenantID, id int64) (Period, error)
	Overlaps(ctx context.Context, tenantID int64, start, end time.Time) (bool, error)
	Insert(ctx context.Context, tenantID int64, in CreateInput) (Period, error)
	UpdateStatus(ctx context.Context, tenantID, id int64, status PeriodStatus, actorID int64) error
}

type repository struct {
	runner *db.Runner
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(runner *db.Runner) Repository {
	return &repository{runner: runner}
}

const periodColumns = `id, tenant_id, code, start_date, end_date, status, locked_by, locked_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.LockedBy, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func covering(ctx context.Context, q db.Querier, tenantID int64, date time.Time, lock string) (Period, bool, error) {
	p, err := scanPeriod(q.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id=$1 AND $2::date BETWEEN start_date AND end_date`+lock, tenantID, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, false, nil
		}
		return Period{}, false, err
	}
	return p, true, nil
}

func (r *repository) FindCovering(ctx context.Context, tenantID int64, date time.Time) (Period, bool, error) {
	return covering(ctx, db.Conn(ctx, r.runner.Pool()), tenantID, date, "")
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]Period, error) {
	rows, err := db.Conn(ctx, r.runner.Pool()).Query(ctx, `SELECT `+periodColumns+` FROM periods WHERE tenant_id=$1 ORDER BY start_date`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) CoveringForShare(ctx context.Context, tenantID int64, date time.Time) (Period, bool, error) {
	return covering(ctx, r.tx, tenantID, date, " FOR SHARE")
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID, id int64) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, accshared.ErrPeriodNotFound
	}
	return p, err
}

func (r *txRepository) Overlaps(ctx context.Context, tenantID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM periods WHERE tenant_id=$1 AND start_date <= $3::date AND end_date >= $2::date)`, tenantID, start, end).Scan(&exists)
	return exists, err
}

func (r *txRepository) Insert(ctx context.Context, tenantID int64, in CreateInput) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO periods (tenant_id, code, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN') RETURNING `+periodColumns, tenantID, in.Code, in.StartDate, in.EndDate))
	if err != nil {
		return Period{}, insertError(err, in)
	}
	return p, nil
}

func insertError(err error, in CreateInput) error {
	switch {
	case db.IsUniqueViolation(err, ""):
		return shared.Errorf(shared.ErrConflict, "periods: code %s already exists", in.Code)
	case db.IsExclusionViolation(err, "ex_periods_overlap"):
		return shared.Errorf(shared.ErrConflict, "periods: %s overlaps an existing period", in.Code)
	}
	return err
}

func (r *txRepository) UpdateStatus(ctx context.Context, tenantID, id int64, status PeriodStatus, actorID int64) error {
	var lockedBy any
	if status == PeriodStatusLocked && actorID != 0 {
		lockedBy = actorID
	}
	tag, err := r.tx.Exec(ctx, `UPDATE periods SET status=$3,
locked_by = CASE WHEN $3='LOCKED' THEN $4::bigint ELSE NULL END,
locked_at = CASE WHEN $3='LOCKED' THEN NOW() ELSE NULL END,
updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id, status, lockedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return accshared.ErrPeriodNotFound
	}
	return nil
}
