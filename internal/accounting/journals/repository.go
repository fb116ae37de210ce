package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	Get(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
	ListBySource(ctx context.Context, tenantID int64, source SourceRef) ([]JournalEntry, error)
	// FindUnbalanced scans entries created since the cutoff across all tenants.
	FindUnbalanced(ctx context.Context, since time.Time) ([]Imbalance, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// ActiveAccountCodes share-locks the named accounts and reports which are active.
	ActiveAccountCodes(ctx context.Context, tenantID int64, codes []string) (map[string]bool, error)
	NextNumber(ctx context.Context, tenantID int64) (int64, error)
	InsertEntry(ctx context.Context, tenantID, number int64, in PostingInput, reverses *int64) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error)
	GetWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
}

type repository struct {
	runner *db.Runner
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(runner *db.Runner) Repository {
	return &repository{runner: runner}
}

const entryColumns = `id, tenant_id, number, entry_date, reference, description, source_module, source_type, source_id, reverses_entry_id, created_by, created_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var createdBy *int64
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &e.Reference, &e.Description,
		&e.Source.Module, &e.Source.Type, &e.Source.ID, &e.ReversesEntryID, &createdBy, &e.CreatedAt)
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	return e, err
}

func getWithLines(ctx context.Context, q db.Querier, tenantID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, accshared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, entry_id, line_no, account_code, description, debit_cents, credit_cents
FROM journal_lines WHERE entry_id=$1 ORDER BY line_no`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.LineNo, &l.AccountCode, &l.Description, &l.Debit, &l.Credit); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return getWithLines(ctx, db.Conn(ctx, r.runner.Pool()), tenantID, entryID)
}

func (r *repository) ListBySource(ctx context.Context, tenantID int64, source SourceRef) ([]JournalEntry, error) {
	q := db.Conn(ctx, r.runner.Pool())
	rows, err := q.Query(ctx, `SELECT id FROM journal_entries
WHERE tenant_id=$1 AND source_module=$2 AND source_type IN ($3, $3 || '.reversal') AND source_id=$4 ORDER BY id`,
		tenantID, source.Module, source.Type, source.ID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	out := make([]JournalEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := getWithLines(ctx, q, tenantID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *repository) FindUnbalanced(ctx context.Context, since time.Time) ([]Imbalance, error) {
	rows, err := r.runner.Pool().Query(ctx, `SELECT e.tenant_id, e.id, e.number,
COALESCE(SUM(l.debit_cents),0), COALESCE(SUM(l.credit_cents),0), COUNT(l.id)
FROM journal_entries e LEFT JOIN journal_lines l ON l.entry_id = e.id
WHERE e.created_at >= $1
GROUP BY e.tenant_id, e.id, e.number
HAVING COALESCE(SUM(l.debit_cents),0) <> COALESCE(SUM(l.credit_cents),0) OR COUNT(l.id) < 2
ORDER BY e.tenant_id, e.id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Imbalance
	for rows.Next() {
		var im Imbalance
		if err := rows.Scan(&im.TenantID, &im.EntryID, &im.Number, &im.Debit, &im.Credit, &im.Lines); err != nil {
			return nil, err
		}
		out = append(out, im)
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

func (r *txRepository) ActiveAccountCodes(ctx context.Context, tenantID int64, codes []string) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT code, is_active FROM accounts WHERE tenant_id=$1 AND code = ANY($2) ORDER BY code FOR SHARE`, tenantID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool, len(codes))
	for rows.Next() {
		var code string
		var active bool
		if err := rows.Scan(&code, &active); err != nil {
			return nil, err
		}
		out[code] = active
	}
	return out, rows.Err()
}

func (r *txRepository) NextNumber(ctx context.Context, tenantID int64) (int64, error) {
	var number int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_counters (tenant_id, last_number) VALUES ($1, 1)
ON CONFLICT (tenant_id) DO UPDATE SET last_number = journal_counters.last_number + 1
RETURNING last_number`, tenantID).Scan(&number)
	return number, err
}

func (r *txRepository) InsertEntry(ctx context.Context, tenantID, number int64, in PostingInput, reverses *int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(tenant_id, number, entry_date, reference, description, source_module, source_type, source_id, reverses_entry_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+entryColumns,
		tenantID, number, in.Date, in.Reference, in.Description, in.Source.Module, in.Source.Type, in.Source.ID, reverses, nullInt(in.CreatedBy)))
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "uq_journal_source"):
			return JournalEntry{}, accshared.ErrSourceAlreadyPosted
		case db.IsUniqueViolation(err, "uq_journal_reversal"):
			return JournalEntry{}, accshared.ErrAlreadyReversed
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error) {
	rows := make([][]any, 0, len(lines))
	out := make([]JournalLine, 0, len(lines))
	for i, line := range lines {
		rows = append(rows, []any{entryID, i + 1, line.AccountCode, line.Description, int64(line.Debit), int64(line.Credit)})
		out = append(out, JournalLine{EntryID: entryID, LineNo: i + 1, AccountCode: line.AccountCode, Description: line.Description, Debit: line.Debit, Credit: line.Credit})
	}
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"journal_lines"},
		[]string{"entry_id", "line_no", "account_code", "description", "debit_cents", "credit_cents"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return nil, err
	}
	ids, err := r.lineIDs(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return withLineIDs(out, ids)
}

// lineIDs maps line_no to the id assigned by the database; COPY does not return keys.
func (r *txRepository) lineIDs(ctx context.Context, entryID int64) (map[int]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT line_no, id FROM journal_lines WHERE entry_id=$1`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make(map[int]int64)
	for rows.Next() {
		var (
			lineNo int
			id     int64
		)
		if err := rows.Scan(&lineNo, &id); err != nil {
			return nil, err
		}
		ids[lineNo] = id
	}
	return ids, rows.Err()
}

func withLineIDs(lines []JournalLine, ids map[int]int64) ([]JournalLine, error) {
	for i := range lines {
		id, ok := ids[lines[i].LineNo]
		if !ok {
			return nil, fmt.Errorf("journals: entry %d line %d not stored", lines[i].EntryID, lines[i].LineNo)
		}
		lines[i].ID = id
	}
	return lines, nil
}

func (r *txRepository) GetWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return getWithLines(ctx, r.tx, tenantID, entryID)
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
