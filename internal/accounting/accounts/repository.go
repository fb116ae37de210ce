package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists chart of accounts rows.
type Repository interface {
	List(ctx context.Context, tenantID int64) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// LockChart locks and returns every account of the tenant.
	LockChart(ctx context.Context, tenantID int64) ([]Account, error)
	Insert(ctx context.Context, tenantID int64, in CreateInput) (Account, error)
	UpdateParent(ctx context.Context, tenantID, id int64, parentID *int64) error
	SetActive(ctx context.Context, tenantID, id int64, active bool) error
	IsReferenced(ctx context.Context, tenantID int64, code string) (bool, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

type repository struct {
	runner *db.Runner
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(runner *db.Runner) Repository {
	return &repository{runner: runner}
}

const accountColumns = `id, tenant_id, code, name, type, parent_id, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := db.Conn(ctx, r.runner.Pool()).Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockChart(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY id FOR UPDATE`, tenantID)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

func (r *txRepository) Insert(ctx context.Context, tenantID int64, in CreateInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, type, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING `+accountColumns, tenantID, in.Code, in.Name, in.Type, in.ParentID)
	var a Account
	if err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_code") {
			return Account{}, shared.Errorf(shared.ErrConflict, "accounting: account code %s already exists", in.Code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateParent(ctx context.Context, tenantID, id int64, parentID *int64) error {
	return expectOne(r.tx.Exec(ctx, `UPDATE accounts SET parent_id=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id, parentID))
}

func (r *txRepository) SetActive(ctx context.Context, tenantID, id int64, active bool) error {
	return expectOne(r.tx.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id, active))
}

func (r *txRepository) IsReferenced(ctx context.Context, tenantID int64, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND l.account_code=$2)`, tenantID, code).Scan(&exists)
	return exists, err
}

func (r *txRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return expectOne(r.tx.Exec(ctx, `DELETE FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accshared.ErrAccountNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return accshared.ErrAccountNotFound
	}
	return nil
}
