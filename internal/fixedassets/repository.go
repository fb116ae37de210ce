package fixedassets

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrAssetNotFound indicates a missing asset.
	ErrAssetNotFound = shared.Errorf(shared.ErrNotFound, "fixedassets: asset not found")
	// ErrRunNotFound indicates a missing depreciation run.
	ErrRunNotFound = shared.Errorf(shared.ErrNotFound, "fixedassets: depreciation run not found")
)

// Repository exposes persistence for assets and depreciation runs.
type Repository interface {
	InsertAsset(ctx context.Context, tenantID int64, in RegisterAssetInput) (Asset, error)
	GetAsset(ctx context.Context, tenantID, id int64) (Asset, error)
	ListAssets(ctx context.Context, tenantID int64) ([]Asset, error)
	// ActiveTenants lists tenants holding at least one active asset.
	ActiveTenants(ctx context.Context) ([]int64, error)
	ListRuns(ctx context.Context, tenantID int64) ([]DepreciationRun, error)
	GetRun(ctx context.Context, tenantID, runID int64) (DepreciationRun, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the locking reads and writes used inside a transaction.
type TxRepository interface {
	// LockMonth serialises depreciation for one tenant month until the transaction ends.
	LockMonth(ctx context.Context, tenantID int64, month time.Time) error
	RunForMonth(ctx context.Context, tenantID int64, month time.Time) (DepreciationRun, bool, error)
	// DiscardDraft reverts asset accumulated depreciation by the run's lines and deletes the run.
	DiscardDraft(ctx context.Context, runID int64) error
	LockDepreciableAssets(ctx context.Context, tenantID int64, asOf time.Time) ([]Asset, error)
	InsertRun(ctx context.Context, run DepreciationRun) (DepreciationRun, error)
	// InsertLines stores the run lines and adds each amount to the asset's accumulated depreciation.
	InsertLines(ctx context.Context, runID int64, lines []DepreciationLine) ([]DepreciationLine, error)
	LockRun(ctx context.Context, tenantID, runID int64) (DepreciationRun, error)
	// RunLines returns the run lines with each asset's expense and accumulated codes.
	RunLines(ctx context.Context, runID int64) ([]DepreciationLine, error)
	MarkRunPosted(ctx context.Context, runID, journalID int64) error
	LockAsset(ctx context.Context, tenantID, id int64) (Asset, error)
	// HasDraftLines reports whether the asset appears in a depreciation run that is not yet posted.
	HasDraftLines(ctx context.Context, assetID int64) (bool, error)
	MarkDisposed(ctx context.Context, assetID int64, date time.Time, proceeds money.Cents, journalID int64) error
	InsertDisposal(ctx context.Context, d Disposal) (Disposal, error)
}

type repository struct {
	runner *db.Runner
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(runner *db.Runner) Repository {
	return &repository{runner: runner}
}

const assetColumns = `id, tenant_id, name, category, purchase_date, cost_cents, salvage_cents, useful_life_months, method,
asset_account_code, expense_account_code, accumulated_account_code, accumulated_cents, status,
disposal_date, disposal_proceeds_cents, disposal_journal_id`

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Category, &a.PurchaseDate, &a.Cost, &a.Salvage, &a.UsefulLifeMonths, &a.Method,
		&a.AssetAccountCode, &a.ExpenseAccountCode, &a.AccumulatedAccountCode, &a.Accumulated, &a.Status,
		&a.DisposalDate, &a.DisposalProceeds, &a.DisposalJournalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, ErrAssetNotFound
	}
	return a, err
}

func collectAssets(rows pgx.Rows, err error) ([]Asset, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const runColumns = `id, tenant_id, run_month, status, total_cents, journal_entry_id, COALESCE(created_by, 0), created_at, posted_at`

func scanRun(row pgx.Row) (DepreciationRun, error) {
	var r DepreciationRun
	err := row.Scan(&r.ID, &r.TenantID, &r.RunMonth, &r.Status, &r.Total, &r.JournalEntryID, &r.CreatedBy, &r.CreatedAt, &r.PostedAt)
	return r, err
}

func (r *repository) InsertAsset(ctx context.Context, tenantID int64, in RegisterAssetInput) (Asset, error) {
	return scanAsset(db.Conn(ctx, r.runner.Pool()).QueryRow(ctx, `INSERT INTO fa_assets
(tenant_id, name, category, purchase_date, cost_cents, salvage_cents, useful_life_months, method,
 asset_account_code, expense_account_code, accumulated_account_code)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+assetColumns,
		tenantID, in.Name, in.Category, in.PurchaseDate, in.Cost, in.Salvage, in.UsefulLifeMonths, in.Method,
		in.AssetAccountCode, in.ExpenseAccountCode, in.AccumulatedAccountCode))
}

func (r *repository) GetAsset(ctx context.Context, tenantID, id int64) (Asset, error) {
	return scanAsset(db.Conn(ctx, r.runner.Pool()).QueryRow(ctx, `SELECT `+assetColumns+` FROM fa_assets WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *repository) ListAssets(ctx context.Context, tenantID int64) ([]Asset, error) {
	return collectAssets(db.Conn(ctx, r.runner.Pool()).Query(ctx, `SELECT `+assetColumns+` FROM fa_assets WHERE tenant_id=$1 ORDER BY id`, tenantID))
}

func (r *repository) ActiveTenants(ctx context.Context) ([]int64, error) {
	rows, err := db.Conn(ctx, r.runner.Pool()).Query(ctx, `SELECT DISTINCT tenant_id FROM fa_assets WHERE status='ACTIVE' ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *repository) ListRuns(ctx context.Context, tenantID int64) ([]DepreciationRun, error) {
	rows, err := db.Conn(ctx, r.runner.Pool()).Query(ctx, `SELECT `+runColumns+` FROM fa_depreciation_runs WHERE tenant_id=$1 ORDER BY run_month DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DepreciationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *repository) GetRun(ctx context.Context, tenantID, runID int64) (DepreciationRun, error) {
	q := db.Conn(ctx, r.runner.Pool())
	run, err := scanRun(q.QueryRow(ctx, `SELECT `+runColumns+` FROM fa_depreciation_runs WHERE tenant_id=$1 AND id=$2`, tenantID, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return DepreciationRun{}, ErrRunNotFound
	}
	if err != nil {
		return DepreciationRun{}, err
	}
	run.Lines, err = runLines(ctx, q, runID)
	return run, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockMonth(ctx context.Context, tenantID int64, month time.Time) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, shared.DepreciationLockKey(tenantID, month))
	return err
}

func (r *txRepository) RunForMonth(ctx context.Context, tenantID int64, month time.Time) (DepreciationRun, bool, error) {
	run, err := scanRun(r.tx.QueryRow(ctx, `SELECT `+runColumns+` FROM fa_depreciation_runs
WHERE tenant_id=$1 AND run_month=$2 FOR UPDATE`, tenantID, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return DepreciationRun{}, false, nil
	}
	if err != nil {
		return DepreciationRun{}, false, err
	}
	return run, true, nil
}

func (r *txRepository) DiscardDraft(ctx context.Context, runID int64) error {
	if _, err := r.tx.Exec(ctx, `UPDATE fa_assets a SET accumulated_cents = a.accumulated_cents - l.amount_cents, updated_at = NOW()
FROM fa_depreciation_lines l WHERE l.run_id=$1 AND a.id = l.asset_id`, runID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM fa_depreciation_runs WHERE id=$1 AND status='DRAFT'`, runID)
	return err
}

func (r *txRepository) LockDepreciableAssets(ctx context.Context, tenantID int64, asOf time.Time) ([]Asset, error) {
	return collectAssets(r.tx.Query(ctx, `SELECT `+assetColumns+` FROM fa_assets
WHERE tenant_id=$1 AND status='ACTIVE' AND purchase_date <= $2
ORDER BY id FOR UPDATE`, tenantID, asOf))
}

func (r *txRepository) InsertRun(ctx context.Context, run DepreciationRun) (DepreciationRun, error) {
	out, err := scanRun(r.tx.QueryRow(ctx, `INSERT INTO fa_depreciation_runs (tenant_id, run_month, status, total_cents, created_by)
VALUES ($1,$2,$3,$4,$5) RETURNING `+runColumns, run.TenantID, run.RunMonth, run.Status, run.Total, nullInt(run.CreatedBy)))
	if db.IsUniqueViolation(err, "uq_depreciation_month") {
		return DepreciationRun{}, shared.Errorf(shared.ErrDuplicateRun, "fixedassets: run already exists for %s", run.RunMonth.Format("2006-01"))
	}
	return out, err
}

func (r *txRepository) InsertLines(ctx context.Context, runID int64, lines []DepreciationLine) ([]DepreciationLine, error) {
	out := make([]DepreciationLine, 0, len(lines))
	for _, line := range lines {
		line.RunID = runID
		if err := r.tx.QueryRow(ctx, `INSERT INTO fa_depreciation_lines (run_id, asset_id, amount_cents) VALUES ($1,$2,$3) RETURNING id`,
			runID, line.AssetID, line.Amount).Scan(&line.ID); err != nil {
			return nil, err
		}
		if _, err := r.tx.Exec(ctx, `UPDATE fa_assets SET accumulated_cents = accumulated_cents + $2, updated_at = NOW() WHERE id=$1`,
			line.AssetID, line.Amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) LockRun(ctx context.Context, tenantID, runID int64) (DepreciationRun, error) {
	run, err := scanRun(r.tx.QueryRow(ctx, `SELECT `+runColumns+` FROM fa_depreciation_runs WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return DepreciationRun{}, ErrRunNotFound
	}
	return run, err
}

func (r *txRepository) RunLines(ctx context.Context, runID int64) ([]DepreciationLine, error) {
	return runLines(ctx, r.tx, runID)
}

func runLines(ctx context.Context, q db.Querier, runID int64) ([]DepreciationLine, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.run_id, l.asset_id, l.amount_cents, a.expense_account_code, a.accumulated_account_code
FROM fa_depreciation_lines l JOIN fa_assets a ON a.id = l.asset_id
WHERE l.run_id=$1 ORDER BY l.asset_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DepreciationLine
	for rows.Next() {
		var l DepreciationLine
		if err := rows.Scan(&l.ID, &l.RunID, &l.AssetID, &l.Amount, &l.expenseCode, &l.accumulatedCode); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepository) MarkRunPosted(ctx context.Context, runID, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE fa_depreciation_runs SET status='POSTED', journal_entry_id=$2, posted_at=NOW() WHERE id=$1`, runID, journalID)
	return err
}

func (r *txRepository) LockAsset(ctx context.Context, tenantID, id int64) (Asset, error) {
	return scanAsset(r.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM fa_assets WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

func (r *txRepository) HasDraftLines(ctx context.Context, assetID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fa_depreciation_lines l
JOIN fa_depreciation_runs r ON r.id = l.run_id WHERE l.asset_id=$1 AND r.status='DRAFT')`, assetID).Scan(&exists)
	return exists, err
}

func (r *txRepository) MarkDisposed(ctx context.Context, assetID int64, date time.Time, proceeds money.Cents, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE fa_assets SET status='DISPOSED', disposal_date=$2, disposal_proceeds_cents=$3,
disposal_journal_id=$4, updated_at=NOW() WHERE id=$1`, assetID, date, proceeds, journalID)
	return err
}

func (r *txRepository) InsertDisposal(ctx context.Context, d Disposal) (Disposal, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO fa_disposals
(tenant_id, asset_id, disposal_date, proceeds_cents, book_value_cents, gain_cents, loss_cents, notes, journal_entry_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		d.TenantID, d.AssetID, d.Date, d.Proceeds, d.BookValue, d.Gain, d.Loss, d.Notes, d.JournalEntryID, nullInt(d.CreatedBy)).Scan(&d.ID)
	return d, err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
