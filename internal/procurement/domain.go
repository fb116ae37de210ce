package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// Side names one of the three matchable line tables. Rows are always locked in
// the order the sides are declared here.
type Side string

const (
	SidePO   Side = "po_line"
	SideGRN  Side = "grn_line"
	SideBill Side = "bill_line"
)

// lockOrder is the fixed table order used when taking row locks.
var lockOrder = []Side{SidePO, SideGRN, SideBill}

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	SupplierID int64     `json:"supplier_id"`
	Number     string    `json:"number"`
	OrderDate  time.Time `json:"order_date"`
	CreatedBy  int64     `json:"created_by,omitempty"`
	Lines      []POLine  `json:"lines"`
}

// POLine is an ordered quantity.
type POLine struct {
	ID          int64           `json:"id"`
	POID        int64           `json:"po_id"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   money.Cents     `json:"unit_price_cents"`
	QtyMatched  decimal.Decimal `json:"qty_matched"`
}

// GoodsReceipt records goods received from a supplier, optionally against a PO.
type GoodsReceipt struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	SupplierID   int64     `json:"supplier_id"`
	POID         *int64    `json:"po_id,omitempty"`
	Number       string    `json:"number"`
	ReceivedDate time.Time `json:"received_date"`
	CreatedBy    int64     `json:"created_by,omitempty"`
	Lines        []GRNLine `json:"lines"`
}

// GRNLine is a received quantity.
type GRNLine struct {
	ID          int64           `json:"id"`
	GRNID       int64           `json:"grn_id"`
	POLineID    *int64          `json:"po_line_id,omitempty"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	QtyMatched  decimal.Decimal `json:"qty_matched"`
}

// MatchableLine is a PO, GRN or bill line with its remaining quantity.
type MatchableLine struct {
	ID             int64           `json:"id"`
	SupplierID     int64           `json:"supplier_id"`
	DocumentNumber string          `json:"document_number"`
	Description    string          `json:"description"`
	QtyTotal       decimal.Decimal `json:"qty_total"`
	QtyMatched     decimal.Decimal `json:"qty_matched"`
	QtyAvailable   decimal.Decimal `json:"qty_available"`
}

// Available groups the lines that still have quantity to match.
type Available struct {
	POLines   []MatchableLine `json:"po_lines"`
	GRNLines  []MatchableLine `json:"grn_lines"`
	BillLines []MatchableLine `json:"bill_lines"`
}

// MatchInput ties up to one line of each side together with a quantity.
type MatchInput struct {
	POLineID   *int64
	GRNLineID  *int64
	BillLineID *int64
	Qty        decimal.Decimal
}

// sides maps each referenced side to its line id.
func (m MatchInput) sides() map[Side]int64 {
	out := make(map[Side]int64, 3)
	if m.POLineID != nil {
		out[SidePO] = *m.POLineID
	}
	if m.GRNLineID != nil {
		out[SideGRN] = *m.GRNLineID
	}
	if m.BillLineID != nil {
		out[SideBill] = *m.BillLineID
	}
	return out
}

// Match is a persisted reconciliation row.
type Match struct {
	ID         int64           `json:"id"`
	TenantID   int64           `json:"tenant_id"`
	BatchID    uuid.UUID       `json:"batch_id"`
	POLineID   *int64          `json:"po_line_id,omitempty"`
	GRNLineID  *int64          `json:"grn_line_id,omitempty"`
	BillLineID *int64          `json:"bill_line_id,omitempty"`
	Qty        decimal.Decimal `json:"qty"`
	CreatedBy  int64           `json:"created_by,omitempty"`
}

// LockedLine is a matchable line read under a row lock.
type LockedLine struct {
	ID         int64
	SupplierID int64
	Qty        decimal.Decimal
	QtyMatched decimal.Decimal
}

// Available returns the quantity not yet matched.
func (l LockedLine) Available() decimal.Decimal {
	return l.Qty.Sub(l.QtyMatched)
}

// POLineInput describes an ordered line.
type POLineInput struct {
	Description string
	Qty         decimal.Decimal
	UnitPrice   money.Cents
}

// CreatePurchaseOrderInput describes a purchase order.
type CreatePurchaseOrderInput struct {
	SupplierID int64
	Number     string
	OrderDate  time.Time
	CreatedBy  int64
	Lines      []POLineInput
}

// GRNLineInput describes a received line.
type GRNLineInput struct {
	POLineID    *int64
	Description string
	Qty         decimal.Decimal
}

// CreateGoodsReceiptInput describes a goods receipt.
type CreateGoodsReceiptInput struct {
	SupplierID   int64
	POID         *int64
	Number       string
	ReceivedDate time.Time
	CreatedBy    int64
	Lines        []GRNLineInput
}
