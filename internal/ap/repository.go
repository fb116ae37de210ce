package ap

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrBillNotFound indicates a missing bill.
	ErrBillNotFound = shared.Errorf(shared.ErrNotFound, "ap: bill not found")
	// ErrCreditNotFound indicates a missing vendor credit.
	ErrCreditNotFound = shared.Errorf(shared.ErrNotFound, "ap: vendor credit not found")
	// ErrDuplicateBill indicates the supplier already has a bill with this invoice number.
	ErrDuplicateBill = shared.Errorf(shared.ErrConflict, "ap: invoice number already recorded for supplier")
	// ErrDuplicateCredit indicates the supplier already has a credit with this number.
	ErrDuplicateCredit = shared.Errorf(shared.ErrConflict, "ap: credit number already recorded for supplier")
)

// Repository defines AP data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetBill(ctx context.Context, tenantID, id int64) (Bill, error)
	// Settled returns the payment and credit allocations recorded against a bill.
	Settled(ctx context.Context, billID int64) (paid, credited money.Cents, err error)
	ListOutstanding(ctx context.Context, tenantID, supplierID int64) ([]OutstandingBill, error)
	GetVendorCredit(ctx context.Context, tenantID, id int64) (VendorCredit, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	InsertBill(ctx context.Context, bill Bill) (Bill, error)
	InsertBillLines(ctx context.Context, tenantID, billID int64, lines []BillLine) ([]BillLine, error)
	LockBill(ctx context.Context, tenantID, id int64) (Bill, error)
	// LockBills locks the bills in ascending id order. Missing ids are omitted.
	LockBills(ctx context.Context, tenantID int64, ids []int64) ([]Bill, error)
	BillLines(ctx context.Context, billID int64) ([]BillLine, error)
	// SettledTotals sums payment and credit allocations per bill.
	SettledTotals(ctx context.Context, billIDs []int64) (map[int64]money.Cents, error)
	UpdateBillStatus(ctx context.Context, id int64, status BillStatus, journalID *int64) error

	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	InsertPaymentAllocations(ctx context.Context, paymentID int64, allocations []Allocation) error
	SetPaymentJournal(ctx context.Context, paymentID, journalID int64) error

	InsertVendorCredit(ctx context.Context, c VendorCredit) (VendorCredit, error)
	InsertVendorCreditLines(ctx context.Context, creditID int64, lines []BillLine) ([]BillLine, error)
	SetCreditJournal(ctx context.Context, creditID, journalID int64) error
	LockVendorCredit(ctx context.Context, tenantID, id int64) (VendorCredit, error)
	CreditApplied(ctx context.Context, creditID int64) (money.Cents, error)
	InsertCreditAllocations(ctx context.Context, creditID, actorID int64, allocations []Allocation) error
	UpdateCreditStatus(ctx context.Context, id int64, status CreditStatus) error
}

type pgRepository struct {
	runner *db.Runner
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(runner *db.Runner) Repository {
	return &pgRepository{runner: runner}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const billColumns = `id, tenant_id, supplier_id, invoice_number, issue_date, due_date, status, total_cents, notes, journal_entry_id, COALESCE(created_by, 0), created_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.TenantID, &b.SupplierID, &b.InvoiceNumber, &b.IssueDate, &b.DueDate, &b.Status,
		&b.Total, &b.Notes, &b.JournalEntryID, &b.CreatedBy, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	return b, err
}

func collectLines(rows pgx.Rows, err error, withMatched bool) ([]BillLine, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BillLine
	for rows.Next() {
		var l BillLine
		dest := []any{&l.ID, &l.DocumentID, &l.Description, &l.Quantity, &l.Unit, &l.UnitPrice, &l.Discount, &l.TaxRate, &l.GLAccountCode, &l.LineTotal, &l.SortOrder}
		if withMatched {
			dest = append(dest, &l.QtyMatched)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func billLines(ctx context.Context, q db.Querier, billID int64) ([]BillLine, error) {
	rows, err := q.Query(ctx, `SELECT id, bill_id, description, quantity, unit, unit_price_cents, discount_cents, tax_rate,
gl_account_code, line_total_cents, sort_order, qty_matched FROM ap_bill_lines WHERE bill_id=$1 ORDER BY sort_order, id`, billID)
	return collectLines(rows, err, true)
}

func (r *pgRepository) GetBill(ctx context.Context, tenantID, id int64) (Bill, error) {
	q := db.Conn(ctx, r.runner.Pool())
	bill, err := scanBill(q.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		return Bill{}, err
	}
	bill.Lines, err = billLines(ctx, q, id)
	return bill, err
}

func (r *pgRepository) Settled(ctx context.Context, billID int64) (money.Cents, money.Cents, error) {
	var paid, credited money.Cents
	err := db.Conn(ctx, r.runner.Pool()).QueryRow(ctx, `SELECT
  (SELECT COALESCE(SUM(amount_cents),0) FROM ap_payment_allocations WHERE bill_id=$1),
  (SELECT COALESCE(SUM(amount_cents),0) FROM ap_vendor_credit_allocations WHERE bill_id=$1)`, billID).Scan(&paid, &credited)
	return paid, credited, err
}

func (r *pgRepository) ListOutstanding(ctx context.Context, tenantID, supplierID int64) ([]OutstandingBill, error) {
	rows, err := db.Conn(ctx, r.runner.Pool()).Query(ctx, `WITH settled AS (
  SELECT bill_id, SUM(amount_cents) AS amount FROM ap_payment_allocations GROUP BY bill_id
  UNION ALL
  SELECT bill_id, SUM(amount_cents) FROM ap_vendor_credit_allocations GROUP BY bill_id
)
SELECT b.id, b.supplier_id, b.invoice_number, b.due_date, b.total_cents, COALESCE(SUM(s.amount),0)::BIGINT
FROM ap_bills b LEFT JOIN settled s ON s.bill_id = b.id
WHERE b.tenant_id=$1 AND b.status='POSTED' AND ($2::BIGINT = 0 OR b.supplier_id=$2)
GROUP BY b.id
HAVING b.total_cents - COALESCE(SUM(s.amount),0) > 0
ORDER BY b.due_date, b.id`, tenantID, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutstandingBill
	for rows.Next() {
		var o OutstandingBill
		if err := rows.Scan(&o.ID, &o.SupplierID, &o.InvoiceNumber, &o.DueDate, &o.Total, &o.Settled); err != nil {
			return nil, err
		}
		o.Balance = o.Total - o.Settled
		out = append(out, o)
	}
	return out, rows.Err()
}

const creditColumns = `id, tenant_id, supplier_id, credit_number, issue_date, status, total_cents, notes, journal_entry_id, COALESCE(created_by, 0)`

func scanCredit(row pgx.Row) (VendorCredit, error) {
	var c VendorCredit
	err := row.Scan(&c.ID, &c.TenantID, &c.SupplierID, &c.CreditNumber, &c.IssueDate, &c.Status, &c.Total, &c.Notes, &c.JournalEntryID, &c.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorCredit{}, ErrCreditNotFound
	}
	return c, err
}

func (r *pgRepository) GetVendorCredit(ctx context.Context, tenantID, id int64) (VendorCredit, error) {
	q := db.Conn(ctx, r.runner.Pool())
	credit, err := scanCredit(q.QueryRow(ctx, `SELECT `+creditColumns+` FROM ap_vendor_credits WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		return VendorCredit{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, credit_id, description, quantity, unit, unit_price_cents, discount_cents, tax_rate,
gl_account_code, line_total_cents, sort_order FROM ap_vendor_credit_lines WHERE credit_id=$1 ORDER BY sort_order, id`, id)
	credit.Lines, err = collectLines(rows, err, false)
	return credit, err
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) InsertBill(ctx context.Context, bill Bill) (Bill, error) {
	out, err := scanBill(r.tx.QueryRow(ctx, `INSERT INTO ap_bills
(tenant_id, supplier_id, invoice_number, issue_date, due_date, status, total_cents, notes, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING `+billColumns,
		bill.TenantID, bill.SupplierID, bill.InvoiceNumber, bill.IssueDate, bill.DueDate, bill.Status, bill.Total, bill.Notes, nullInt(bill.CreatedBy)))
	if db.IsUniqueViolation(err, "uq_ap_bill_number") {
		return Bill{}, ErrDuplicateBill
	}
	return out, err
}

func (r *pgTxRepository) InsertBillLines(ctx context.Context, tenantID, billID int64, lines []BillLine) ([]BillLine, error) {
	out := make([]BillLine, 0, len(lines))
	for _, l := range lines {
		l.DocumentID = billID
		if err := r.tx.QueryRow(ctx, `INSERT INTO ap_bill_lines
(tenant_id, bill_id, description, quantity, unit, unit_price_cents, discount_cents, tax_rate, gl_account_code, line_total_cents, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
			tenantID, billID, l.Description, l.Quantity, l.Unit, l.UnitPrice, l.Discount, l.TaxRate, l.GLAccountCode, l.LineTotal, l.SortOrder).Scan(&l.ID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *pgTxRepository) LockBill(ctx context.Context, tenantID, id int64) (Bill, error) {
	return scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

func (r *pgTxRepository) LockBills(ctx context.Context, tenantID int64, ids []int64) ([]Bill, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE tenant_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgTxRepository) BillLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return billLines(ctx, r.tx, billID)
}

func (r *pgTxRepository) SettledTotals(ctx context.Context, billIDs []int64) (map[int64]money.Cents, error) {
	rows, err := r.tx.Query(ctx, `SELECT bill_id, SUM(amount)::BIGINT FROM (
  SELECT bill_id, amount_cents AS amount FROM ap_payment_allocations WHERE bill_id = ANY($1)
  UNION ALL
  SELECT bill_id, amount_cents FROM ap_vendor_credit_allocations WHERE bill_id = ANY($1)
) s GROUP BY bill_id`, billIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]money.Cents, len(billIDs))
	for rows.Next() {
		var id int64
		var amount money.Cents
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, err
		}
		out[id] = amount
	}
	return out, rows.Err()
}

func (r *pgTxRepository) UpdateBillStatus(ctx context.Context, id int64, status BillStatus, journalID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE ap_bills SET status=$2, journal_entry_id=COALESCE($3, journal_entry_id), updated_at=NOW() WHERE id=$1`, id, status, journalID)
	return err
}

func (r *pgTxRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ap_payments
(tenant_id, supplier_id, payment_date, method, bank_account_code, reference, amount_cents, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		p.TenantID, p.SupplierID, p.Date, p.Method, p.BankAccountCode, p.Reference, p.Amount, nullInt(p.CreatedBy)).Scan(&p.ID)
	return p, err
}

func (r *pgTxRepository) InsertPaymentAllocations(ctx context.Context, paymentID int64, allocations []Allocation) error {
	rows := make([][]any, 0, len(allocations))
	for _, a := range allocations {
		rows = append(rows, []any{paymentID, a.BillID, int64(a.Amount)})
	}
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"ap_payment_allocations"}, []string{"payment_id", "bill_id", "amount_cents"}, pgx.CopyFromRows(rows))
	return err
}

func (r *pgTxRepository) SetPaymentJournal(ctx context.Context, paymentID, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE ap_payments SET journal_entry_id=$2 WHERE id=$1`, paymentID, journalID)
	return err
}

func (r *pgTxRepository) InsertVendorCredit(ctx context.Context, c VendorCredit) (VendorCredit, error) {
	out, err := scanCredit(r.tx.QueryRow(ctx, `INSERT INTO ap_vendor_credits
(tenant_id, supplier_id, credit_number, issue_date, status, total_cents, notes, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+creditColumns,
		c.TenantID, c.SupplierID, c.CreditNumber, c.IssueDate, c.Status, c.Total, c.Notes, nullInt(c.CreatedBy)))
	if db.IsUniqueViolation(err, "uq_ap_credit_number") {
		return VendorCredit{}, ErrDuplicateCredit
	}
	return out, err
}

func (r *pgTxRepository) InsertVendorCreditLines(ctx context.Context, creditID int64, lines []BillLine) ([]BillLine, error) {
	out := make([]BillLine, 0, len(lines))
	for _, l := range lines {
		l.DocumentID = creditID
		if err := r.tx.QueryRow(ctx, `INSERT INTO ap_vendor_credit_lines
(credit_id, description, quantity, unit, unit_price_cents, discount_cents, tax_rate, gl_account_code, line_total_cents, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			creditID, l.Description, l.Quantity, l.Unit, l.UnitPrice, l.Discount, l.TaxRate, l.GLAccountCode, l.LineTotal, l.SortOrder).Scan(&l.ID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *pgTxRepository) SetCreditJournal(ctx context.Context, creditID, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE ap_vendor_credits SET journal_entry_id=$2 WHERE id=$1`, creditID, journalID)
	return err
}

func (r *pgTxRepository) LockVendorCredit(ctx context.Context, tenantID, id int64) (VendorCredit, error) {
	return scanCredit(r.tx.QueryRow(ctx, `SELECT `+creditColumns+` FROM ap_vendor_credits WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

func (r *pgTxRepository) CreditApplied(ctx context.Context, creditID int64) (money.Cents, error) {
	var applied money.Cents
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents),0) FROM ap_vendor_credit_allocations WHERE credit_id=$1`, creditID).Scan(&applied)
	return applied, err
}

func (r *pgTxRepository) InsertCreditAllocations(ctx context.Context, creditID, actorID int64, allocations []Allocation) error {
	batch := &pgx.Batch{}
	for _, a := range allocations {
		batch.Queue(`INSERT INTO ap_vendor_credit_allocations (credit_id, bill_id, amount_cents, created_by) VALUES ($1,$2,$3,$4)`,
			creditID, a.BillID, a.Amount, nullInt(actorID))
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *pgTxRepository) UpdateCreditStatus(ctx context.Context, id int64, status CreditStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE ap_vendor_credits SET status=$2 WHERE id=$1`, id, status)
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
