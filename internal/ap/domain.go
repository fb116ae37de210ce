package ap

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// BillStatus enumerates supplier bill statuses.
type BillStatus string

const (
	BillStatusDraft    BillStatus = "DRAFT"
	BillStatusReview   BillStatus = "REVIEW"
	BillStatusApproved BillStatus = "APPROVED"
	BillStatusPosted   BillStatus = "POSTED"
	BillStatusPaid     BillStatus = "PAID"
	BillStatusBlocked  BillStatus = "BLOCKED"
)

// CreditStatus enumerates vendor credit statuses.
type CreditStatus string

const (
	CreditStatusOpen    CreditStatus = "OPEN"
	CreditStatusApplied CreditStatus = "APPLIED"
)

// Bill is a supplier invoice. Its total is derived from the lines.
type Bill struct {
	ID             int64       `json:"id"`
	TenantID       int64       `json:"tenant_id"`
	SupplierID     int64       `json:"supplier_id"`
	InvoiceNumber  string      `json:"invoice_number"`
	IssueDate      time.Time   `json:"issue_date"`
	DueDate        time.Time   `json:"due_date"`
	Status         BillStatus  `json:"status"`
	Total          money.Cents `json:"total_cents"`
	Notes          string      `json:"notes"`
	JournalEntryID *int64      `json:"journal_entry_id,omitempty"`
	CreatedBy      int64       `json:"created_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Lines          []BillLine  `json:"lines,omitempty"`
}

// BillLine represents a line item on a bill or vendor credit.
type BillLine struct {
	ID            int64           `json:"id"`
	DocumentID    int64           `json:"document_id"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	UnitPrice     money.Cents     `json:"unit_price_cents"`
	Discount      money.Cents     `json:"discount_cents"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	GLAccountCode string          `json:"gl_account_code"`
	LineTotal     money.Cents     `json:"line_total_cents"`
	SortOrder     int             `json:"sort_order"`
	QtyMatched    decimal.Decimal `json:"qty_matched"`
}

// BillDetail is a bill with its settled amounts. Balance is always derived.
type BillDetail struct {
	Bill
	Paid     money.Cents `json:"paid_cents"`
	Credited money.Cents `json:"credited_cents"`
	Balance  money.Cents `json:"balance_cents"`
}

// Payment is money paid to a supplier and allocated to bills.
type Payment struct {
	ID              int64        `json:"id"`
	TenantID        int64        `json:"tenant_id"`
	SupplierID      int64        `json:"supplier_id"`
	Date            time.Time    `json:"payment_date"`
	Method          string       `json:"method"`
	BankAccountCode string       `json:"bank_account_code"`
	Reference       string       `json:"reference"`
	Amount          money.Cents  `json:"amount_cents"`
	JournalEntryID  *int64       `json:"journal_entry_id,omitempty"`
	CreatedBy       int64        `json:"created_by,omitempty"`
	Allocations     []Allocation `json:"allocations,omitempty"`
}

// Allocation applies part of a payment or credit to one bill.
type Allocation struct {
	BillID int64       `json:"bill_id"`
	Amount money.Cents `json:"amount_cents"`
}

// VendorCredit is a supplier credit note applied against bills.
type VendorCredit struct {
	ID             int64        `json:"id"`
	TenantID       int64        `json:"tenant_id"`
	SupplierID     int64        `json:"supplier_id"`
	CreditNumber   string       `json:"credit_number"`
	IssueDate      time.Time    `json:"issue_date"`
	Status         CreditStatus `json:"status"`
	Total          money.Cents  `json:"total_cents"`
	Notes          string       `json:"notes"`
	JournalEntryID *int64       `json:"journal_entry_id,omitempty"`
	CreatedBy      int64        `json:"created_by,omitempty"`
	Lines          []BillLine   `json:"lines,omitempty"`
}

// OutstandingBill is a posted bill with an open balance.
type OutstandingBill struct {
	ID            int64       `json:"id"`
	SupplierID    int64       `json:"supplier_id"`
	InvoiceNumber string      `json:"invoice_number"`
	DueDate       time.Time   `json:"due_date"`
	Total         money.Cents `json:"total_cents"`
	Settled       money.Cents `json:"settled_cents"`
	Balance       money.Cents `json:"balance_cents"`
}

// AgingBucket summarises open balances by days past due.
type AgingBucket struct {
	Current   money.Cents `json:"current"`
	Bucket30  money.Cents `json:"bucket_30"`
	Bucket60  money.Cents `json:"bucket_60"`
	Bucket90  money.Cents `json:"bucket_90"`
	Bucket120 money.Cents `json:"bucket_120"`
}

// Total sums all buckets.
func (b AgingBucket) Total() money.Cents {
	return money.Sum(b.Current, b.Bucket30, b.Bucket60, b.Bucket90, b.Bucket120)
}

// --- Input DTOs ---

// LineInput describes one bill or credit line.
type LineInput struct {
	Description   string
	Quantity      decimal.Decimal
	Unit          string
	UnitPrice     money.Cents
	Discount      money.Cents
	TaxRate       decimal.Decimal
	GLAccountCode string
}

// CreateBillInput for creating bills.
type CreateBillInput struct {
	SupplierID    int64
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       time.Time
	Notes         string
	CreatedBy     int64
	Lines         []LineInput
}

// RecordPaymentInput for recording supplier payments.
type RecordPaymentInput struct {
	SupplierID      int64
	Date            time.Time
	Method          string
	BankAccountCode string
	Reference       string
	Amount          money.Cents
	CreatedBy       int64
	Allocations     []Allocation
}

// CreateVendorCreditInput for recording vendor credits.
type CreateVendorCreditInput struct {
	SupplierID   int64
	CreditNumber string
	IssueDate    time.Time
	Notes        string
	CreatedBy    int64
	Lines        []LineInput
}
