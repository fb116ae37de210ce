package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository reads and writes role mappings.
type Repository interface {
	// Get returns the mapped code or ErrMappingNotFound.
	Get(ctx context.Context, tenantID int64, role Role) (string, error)
	Upsert(ctx context.Context, m AccountMapping) error
	List(ctx context.Context, tenantID int64) ([]AccountMapping, error)
}

type repository struct {
	runner *db.Runner
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(runner *db.Runner) Repository {
	return &repository{runner: runner}
}

func (r *repository) Get(ctx context.Context, tenantID int64, role Role) (string, error) {
	var code string
	err := r.runner.Pool().QueryRow(ctx, `SELECT account_code FROM account_mappings WHERE tenant_id=$1 AND role_key=$2`, tenantID, role).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", accshared.ErrMappingNotFound
		}
		return "", err
	}
	return code, nil
}

func (r *repository) Upsert(ctx context.Context, m AccountMapping) error {
	return r.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `SELECT is_active FROM accounts WHERE tenant_id=$1 AND code=$2 FOR SHARE`, m.TenantID, m.AccountCode).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
			return shared.Errorf(shared.ErrValidation, "mappings: account %s is not an active account", m.AccountCode)
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO account_mappings (tenant_id, role_key, account_code, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (tenant_id, role_key) DO UPDATE SET account_code=EXCLUDED.account_code, updated_at=NOW()`, m.TenantID, m.Role, m.AccountCode)
		return err
	})
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]AccountMapping, error) {
	rows, err := db.Conn(ctx, r.runner.Pool()).Query(ctx, `SELECT tenant_id, role_key, account_code, updated_at FROM account_mappings WHERE tenant_id=$1 ORDER BY role_key`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.TenantID, &m.Role, &m.AccountCode, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
