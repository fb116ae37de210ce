package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrPurchaseOrderNotFound indicates a missing purchase order.
	ErrPurchaseOrderNotFound = shared.Errorf(shared.ErrNotFound, "procurement: purchase order not found")
	// ErrGoodsReceiptNotFound indicates a missing goods receipt.
	ErrGoodsReceiptNotFound = shared.Errorf(shared.ErrNotFound, "procurement: goods receipt not found")
	// ErrDuplicateNumber indicates the document number is taken for the tenant.
	ErrDuplicateNumber = shared.Errorf(shared.ErrConflict, "procurement: document number already used")
)

// Repository provides procurement persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// ListAvailable returns lines of one side with quantity left to match.
	// supplierID 0 lists every supplier.
	ListAvailable(ctx context.Context, tenantID, supplierID int64, side Side) ([]MatchableLine, error)
	GetPurchaseOrder(ctx context.Context, tenantID, id int64) (PurchaseOrder, error)
	GetGoodsReceipt(ctx context.Context, tenantID, id int64) (GoodsReceipt, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	InsertGoodsReceipt(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error)
	// PurchaseOrderLines returns the lines of a purchase order together with its supplier.
	PurchaseOrderLines(ctx context.Context, tenantID, poID int64) (supplierID int64, lineIDs []int64, err error)
	// LockLines locks the given lines of one side in ascending id order. Missing ids are omitted.
	LockLines(ctx context.Context, tenantID int64, side Side, ids []int64) ([]LockedLine, error)
	AddMatched(ctx context.Context, side Side, qty map[int64]decimal.Decimal) error
	InsertMatches(ctx context.Context, matches []Match) (int64, error)
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

// sideTable names the line table of a side, its header table and the columns used.
type sideTable struct {
	lines, header, headerKey, number, qty string
}

var sideTables = map[Side]sideTable{
	SidePO:   {lines: "po_lines", header: "purchase_orders", headerKey: "po_id", number: "number", qty: "qty"},
	SideGRN:  {lines: "grn_lines", header: "goods_receipts", headerKey: "grn_id", number: "number", qty: "qty"},
	SideBill: {lines: "ap_bill_lines", header: "ap_bills", headerKey: "bill_id", number: "invoice_number", qty: "quantity"},
}

func tableFor(side Side) (sideTable, error) {
	t, ok := sideTables[side]
	if !ok {
		return t, fmt.Errorf("procurement: unknown side %q", side)
	}
	return t, nil
}

func (r *pgRepository) ListAvailable(ctx context.Context, tenantID, supplierID int64, side Side) ([]MatchableLine, error) {
	t, err := tableFor(side)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT l.id, h.supplier_id, h.%[4]s, l.description, l.%[5]s, l.qty_matched, l.%[5]s - l.qty_matched
FROM %[1]s l JOIN %[2]s h ON h.id = l.%[3]s
WHERE l.tenant_id=$1 AND ($2::BIGINT = 0 OR h.supplier_id=$2) AND l.%[5]s > l.qty_matched
ORDER BY h.%[4]s, l.id`, t.lines, t.header, t.headerKey, t.number, t.qty)
	rows, err := db.Conn(ctx, r.runner.Pool()).Query(ctx, sql, tenantID, supplierID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchableLine, error) {
		var l MatchableLine
		err := row.Scan(&l.ID, &l.SupplierID, &l.DocumentNumber, &l.Description, &l.QtyTotal, &l.QtyMatched, &l.QtyAvailable)
		return l, err
	})
}

func (r *pgRepository) GetPurchaseOrder(ctx context.Context, tenantID, id int64) (PurchaseOrder, error) {
	q := db.Conn(ctx, r.runner.Pool())
	var po PurchaseOrder
	err := q.QueryRow(ctx, `SELECT id, tenant_id, supplier_id, number, order_date, COALESCE(created_by,0)
FROM purchase_orders WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&po.ID, &po.TenantID, &po.SupplierID, &po.Number, &po.OrderDate, &po.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrPurchaseOrderNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, po_id, description, qty, unit_price_cents, qty_matched FROM po_lines WHERE po_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (POLine, error) {
		var l POLine
		err := row.Scan(&l.ID, &l.POID, &l.Description, &l.Qty, &l.UnitPrice, &l.QtyMatched)
		return l, err
	})
	return po, err
}

func (r *pgRepository) GetGoodsReceipt(ctx context.Context, tenantID, id int64) (GoodsReceipt, error) {
	q := db.Conn(ctx, r.runner.Pool())
	var grn GoodsReceipt
	err := q.QueryRow(ctx, `SELECT id, tenant_id, supplier_id, po_id, number, received_date, COALESCE(created_by,0)
FROM goods_receipts WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&grn.ID, &grn.TenantID, &grn.SupplierID, &grn.POID, &grn.Number, &grn.ReceivedDate, &grn.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, ErrGoodsReceiptNotFound
	}
	if err != nil {
		return GoodsReceipt{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, grn_id, po_line_id, description, qty, qty_matched FROM grn_lines WHERE grn_id=$1 ORDER BY id`, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	grn.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (GRNLine, error) {
		var l GRNLine
		err := row.Scan(&l.ID, &l.GRNID, &l.POLineID, &l.Description, &l.Qty, &l.QtyMatched)
		return l, err
	})
	return grn, err
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (tenant_id, supplier_id, number, order_date, created_by)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, po.TenantID, po.SupplierID, po.Number, po.OrderDate, nullInt(po.CreatedBy)).Scan(&po.ID)
	if db.IsUniqueViolation(err, "uq_purchase_orders_number") {
		return PurchaseOrder{}, ErrDuplicateNumber
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	for i := range po.Lines {
		line := &po.Lines[i]
		line.POID = po.ID
		if err := r.tx.QueryRow(ctx, `INSERT INTO po_lines (tenant_id, po_id, description, qty, unit_price_cents)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, po.TenantID, po.ID, line.Description, line.Qty, line.UnitPrice).Scan(&line.ID); err != nil {
			return PurchaseOrder{}, err
		}
	}
	return po, nil
}

func (r *pgTxRepository) InsertGoodsReceipt(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO goods_receipts (tenant_id, supplier_id, po_id, number, received_date, created_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, grn.TenantID, grn.SupplierID, grn.POID, grn.Number, grn.ReceivedDate, nullInt(grn.CreatedBy)).Scan(&grn.ID)
	if db.IsUniqueViolation(err, "uq_goods_receipts_number") {
		return GoodsReceipt{}, ErrDuplicateNumber
	}
	if err != nil {
		return GoodsReceipt{}, err
	}
	for i := range grn.Lines {
		line := &grn.Lines[i]
		line.GRNID = grn.ID
		if err := r.tx.QueryRow(ctx, `INSERT INTO grn_lines (tenant_id, grn_id, po_line_id, description, qty)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, grn.TenantID, grn.ID, line.POLineID, line.Description, line.Qty).Scan(&line.ID); err != nil {
			return GoodsReceipt{}, err
		}
	}
	return grn, nil
}

func (r *pgTxRepository) PurchaseOrderLines(ctx context.Context, tenantID, poID int64) (int64, []int64, error) {
	var supplierID int64
	err := r.tx.QueryRow(ctx, `SELECT supplier_id FROM purchase_orders WHERE tenant_id=$1 AND id=$2`, tenantID, poID).Scan(&supplierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, ErrPurchaseOrderNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id FROM po_lines WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return 0, nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return supplierID, ids, err
}

func (r *pgTxRepository) LockLines(ctx context.Context, tenantID int64, side Side, ids []int64) ([]LockedLine, error) {
	t, err := tableFor(side)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT l.id, h.supplier_id, l.%[4]s, l.qty_matched
FROM %[1]s l JOIN %[2]s h ON h.id = l.%[3]s
WHERE l.tenant_id=$1 AND l.id = ANY($2) ORDER BY l.id FOR UPDATE OF l`, t.lines, t.header, t.headerKey, t.qty)
	rows, err := r.tx.Query(ctx, sql, tenantID, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LockedLine, error) {
		var l LockedLine
		err := row.Scan(&l.ID, &l.SupplierID, &l.Qty, &l.QtyMatched)
		return l, err
	})
}

func (r *pgTxRepository) AddMatched(ctx context.Context, side Side, qty map[int64]decimal.Decimal) error {
	t, err := tableFor(side)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, id := range sortedIDs(qty) {
		batch.Queue(fmt.Sprintf(`UPDATE %s SET qty_matched = qty_matched + $2 WHERE id=$1`, t.lines), id, qty[id])
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *pgTxRepository) InsertMatches(ctx context.Context, matches []Match) (int64, error) {
	return r.tx.CopyFrom(ctx,
		pgx.Identifier{"three_way_matches"},
		[]string{"tenant_id", "batch_id", "po_line_id", "grn_line_id", "bill_line_id", "qty", "created_by"},
		pgx.CopyFromSlice(len(matches), func(i int) ([]any, error) {
			m := matches[i]
			return []any{m.TenantID, m.BatchID, m.POLineID, m.GRNLineID, m.BillLineID, m.Qty, nullInt(m.CreatedBy)}, nil
		}),
	)
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
