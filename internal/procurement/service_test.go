package procurement

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryLine struct {
	supplierID  int64
	document    string
	description string
	qty         decimal.Decimal
	matched     decimal.Decimal
}

// memoryProcRepo serialises transactions behind one mutex, standing in for row locks,
// and restores a snapshot when a transaction fails.
type memoryProcRepo struct {
	mu      sync.Mutex
	lines   map[Side]map[int64]memoryLine
	pos     map[int64]PurchaseOrder
	grns    map[int64]GoodsReceipt
	numbers map[string]bool
	matches []Match
	nextID  int64
	listErr map[Side]error
}

type memoryProcTx struct {
	repo *memoryProcRepo
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		lines:   map[Side]map[int64]memoryLine{SidePO: {}, SideGRN: {}, SideBill: {}},
		pos:     make(map[int64]PurchaseOrder),
		grns:    make(map[int64]GoodsReceipt),
		numbers: make(map[string]bool),
		listErr: make(map[Side]error),
	}
}

func (r *memoryProcRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryProcRepo) seedLine(side Side, supplierID int64, qty string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.id()
	r.lines[side][id] = memoryLine{
		supplierID:  supplierID,
		document:    fmt.Sprintf("%s-%d", side, id),
		description: "Widget",
		qty:         decimal.RequireFromString(qty),
	}
	return id
}

func (r *memoryProcRepo) available(side Side, id int64) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.lines[side][id]
	return l.qty.Sub(l.matched)
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make(map[Side]map[int64]memoryLine, len(r.lines))
	for side, byID := range r.lines {
		cp := make(map[int64]memoryLine, len(byID))
		for id, l := range byID {
			cp[id] = l
		}
		lines[side] = cp
	}
	pos := make(map[int64]PurchaseOrder, len(r.pos))
	for k, v := range r.pos {
		pos[k] = v
	}
	grns := make(map[int64]GoodsReceipt, len(r.grns))
	for k, v := range r.grns {
		grns[k] = v
	}
	numbers := make(map[string]bool, len(r.numbers))
	for k, v := range r.numbers {
		numbers[k] = v
	}
	matches := append([]Match(nil), r.matches...)
	if err := fn(ctx, &memoryProcTx{repo: r}); err != nil {
		r.lines, r.pos, r.grns, r.numbers, r.matches = lines, pos, grns, numbers, matches
		return err
	}
	return nil
}

func (r *memoryProcRepo) ListAvailable(ctx context.Context, tenantID, supplierID int64, side Side) ([]MatchableLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.listErr[side]; err != nil {
		return nil, err
	}
	var out []MatchableLine
	for id, l := range r.lines[side] {
		if supplierID != 0 && l.supplierID != supplierID {
			continue
		}
		avail := l.qty.Sub(l.matched)
		if !avail.IsPositive() {
			continue
		}
		out = append(out, MatchableLine{ID: id, SupplierID: l.supplierID, DocumentNumber: l.document, Description: l.description,
			QtyTotal: l.qty, QtyMatched: l.matched, QtyAvailable: avail})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryProcRepo) GetPurchaseOrder(ctx context.Context, tenantID, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.pos[id]
	if !ok || po.TenantID != tenantID {
		return PurchaseOrder{}, ErrPurchaseOrderNotFound
	}
	return po, nil
}

func (r *memoryProcRepo) GetGoodsReceipt(ctx context.Context, tenantID, id int64) (GoodsReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grn, ok := r.grns[id]
	if !ok || grn.TenantID != tenantID {
		return GoodsReceipt{}, ErrGoodsReceiptNotFound
	}
	return grn, nil
}

func (t *memoryProcTx) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	key := "po:" + po.Number
	if t.repo.numbers[key] {
		return PurchaseOrder{}, ErrDuplicateNumber
	}
	t.repo.numbers[key] = true
	po.ID = t.repo.id()
	for i := range po.Lines {
		po.Lines[i].ID = t.repo.id()
		po.Lines[i].POID = po.ID
		t.repo.lines[SidePO][po.Lines[i].ID] = memoryLine{supplierID: po.SupplierID, document: po.Number,
			description: po.Lines[i].Description, qty: po.Lines[i].Qty}
	}
	t.repo.pos[po.ID] = po
	return po, nil
}

func (t *memoryProcTx) InsertGoodsReceipt(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error) {
	key := "grn:" + grn.Number
	if t.repo.numbers[key] {
		return GoodsReceipt{}, ErrDuplicateNumber
	}
	t.repo.numbers[key] = true
	grn.ID = t.repo.id()
	for i := range grn.Lines {
		grn.Lines[i].ID = t.repo.id()
		grn.Lines[i].GRNID = grn.ID
		t.repo.lines[SideGRN][grn.Lines[i].ID] = memoryLine{supplierID: grn.SupplierID, document: grn.Number,
			description: grn.Lines[i].Description, qty: grn.Lines[i].Qty}
	}
	t.repo.grns[grn.ID] = grn
	return grn, nil
}

func (t *memoryProcTx) PurchaseOrderLines(ctx context.Context, tenantID, poID int64) (int64, []int64, error) {
	po, ok := t.repo.pos[poID]
	if !ok || po.TenantID != tenantID {
		return 0, nil, ErrPurchaseOrderNotFound
	}
	ids := make([]int64, 0, len(po.Lines))
	for _, l := range po.Lines {
		ids = append(ids, l.ID)
	}
	return po.SupplierID, ids, nil
}

func (t *memoryProcTx) LockLines(ctx context.Context, tenantID int64, side Side, ids []int64) ([]LockedLine, error) {
	var out []LockedLine
	for _, id := range ids {
		if l, ok := t.repo.lines[side][id]; ok {
			out = append(out, LockedLine{ID: id, SupplierID: l.supplierID, Qty: l.qty, QtyMatched: l.matched})
		}
	}
	return out, nil
}

func (t *memoryProcTx) AddMatched(ctx context.Context, side Side, qty map[int64]decimal.Decimal) error {
	for id, q := range qty {
		l := t.repo.lines[side][id]
		l.matched = l.matched.Add(q)
		if l.matched.GreaterThan(l.qty) {
			return errors.New("check constraint violated")
		}
		t.repo.lines[side][id] = l
	}
	return nil
}

func (t *memoryProcTx) InsertMatches(ctx context.Context, matches []Match) (int64, error) {
	t.repo.matches = append(t.repo.matches, matches...)
	return int64(len(matches)), nil
}

func ptr(id int64) *int64 { return &id }

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyMatchesMovesCounters(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	po := repo.seedLine(SidePO, 3, "10")
	grn := repo.seedLine(SideGRN, 3, "8")
	bill := repo.seedLine(SideBill, 3, "8")

	inserted, err := svc.ApplyMatches(context.Background(), 1, 7, []MatchInput{
		{POLineID: ptr(po), GRNLineID: ptr(grn), BillLineID: ptr(bill), Qty: qty("5")},
		{POLineID: ptr(po), GRNLineID: ptr(grn), Qty: qty("2.5")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
	require.True(t, repo.available(SidePO, po).Equal(qty("2.5")))
	require.True(t, repo.available(SideGRN, grn).Equal(qty("0.5")))
	require.True(t, repo.available(SideBill, bill).Equal(qty("3")))

	require.Len(t, repo.matches, 2)
	require.NotEqual(t, uuid.Nil, repo.matches[0].BatchID)
	require.Equal(t, repo.matches[0].BatchID, repo.matches[1].BatchID)
	require.Nil(t, repo.matches[1].BillLineID)
	require.Equal(t, int64(7), repo.matches[0].CreatedBy)
}

func TestConcurrentMatchesNeverOvercommit(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	po := repo.seedLine(SidePO, 3, "10")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApplyMatches(context.Background(), 1, 7, []MatchInput{{POLineID: ptr(po), Qty: qty("6")}})
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrMatchValidation):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)
	require.True(t, repo.available(SidePO, po).Equal(qty("4")))
	require.Len(t, repo.matches, 1)
}

func TestInvalidMatchRejectsWholeBatch(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	po := repo.seedLine(SidePO, 3, "10")
	grn := repo.seedLine(SideGRN, 3, "3")

	_, err := svc.ApplyMatches(context.Background(), 1, 7, []MatchInput{
		{POLineID: ptr(po), Qty: qty("4")},
		{POLineID: ptr(po), GRNLineID: ptr(grn), Qty: qty("4")},
	})
	require.ErrorIs(t, err, shared.ErrMatchValidation)
	require.Contains(t, err.Error(), "matches[1]")
	require.True(t, repo.available(SidePO, po).Equal(qty("10")))
	require.True(t, repo.available(SideGRN, grn).Equal(qty("3")))
	require.Empty(t, repo.matches)
}

func TestBatchDemandIsCumulativePerLine(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	bill := repo.seedLine(SideBill, 3, "10")

	_, err := svc.ApplyMatches(context.Background(), 1, 7, []MatchInput{
		{BillLineID: ptr(bill), Qty: qty("6")},
		{BillLineID: ptr(bill), Qty: qty("6")},
	})
	require.ErrorIs(t, err, shared.ErrMatchValidation)
	require.Contains(t, err.Error(), "matches[1]")

	inserted, err := svc.ApplyMatches(context.Background(), 1, 7, []MatchInput{
		{BillLineID: ptr(bill), Qty: qty("6")},
		{BillLineID: ptr(bill), Qty: qty("4")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
	require.True(t, repo.available(SideBill, bill).IsZero())
}

func TestApplyMatchesValidation(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	po := repo.seedLine(SidePO, 3, "10")
	otherSupplier := repo.seedLine(SideGRN, 4, "10")

	cases := map[string]struct {
		matches []MatchInput
		index   string
	}{
		"empty batch":        {nil, "no matches"},
		"zero quantity":      {[]MatchInput{{POLineID: ptr(po), Qty: decimal.Zero}}, "matches[0]"},
		"negative quantity":  {[]MatchInput{{POLineID: ptr(po), Qty: qty("-1")}}, "matches[0]"},
		"no side":            {[]MatchInput{{POLineID: ptr(po), Qty: qty("1")}, {Qty: qty("1")}}, "matches[1]"},
		"unknown line":       {[]MatchInput{{GRNLineID: ptr(999), Qty: qty("1")}}, "matches[0]"},
		"different supplier": {[]MatchInput{{POLineID: ptr(po), GRNLineID: ptr(otherSupplier), Qty: qty("1")}}, "matches[0]"},
	}
	for name, tc := range cases {
		_, err := svc.ApplyMatches(context.Background(), 1, 7, tc.matches)
		require.ErrorIs(t, err, shared.ErrMatchValidation, name)
		require.Contains(t, err.Error(), tc.index, name)
	}
	require.True(t, repo.available(SidePO, po).Equal(qty("10")))
	require.Empty(t, repo.matches)
}

func TestQuantityConservation(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	ids := []int64{repo.seedLine(SidePO, 3, "25"), repo.seedLine(SidePO, 3, "7.5")}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		batch := make([]MatchInput, rng.Intn(3)+1)
		for j := range batch {
			batch[j] = MatchInput{POLineID: ptr(ids[rng.Intn(len(ids))]), Qty: decimal.New(int64(rng.Intn(40)+1), -1)}
		}
		_, err := svc.ApplyMatches(context.Background(), 1, 7, batch)
		if err != nil {
			require.ErrorIs(t, err, shared.ErrMatchValidation)
		}
		for _, id := range ids {
			require.False(t, repo.available(SidePO, id).IsNegative())
		}
	}
}

func TestListAvailable(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	po := repo.seedLine(SidePO, 3, "4")
	repo.seedLine(SidePO, 4, "4")
	grn := repo.seedLine(SideGRN, 3, "4")
	_, err := svc.ApplyMatches(context.Background(), 1, 7, []MatchInput{{POLineID: ptr(po), GRNLineID: ptr(grn), Qty: qty("4")}})
	require.NoError(t, err)
	bill := repo.seedLine(SideBill, 3, "2")

	available, err := svc.ListAvailable(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Empty(t, available.POLines)
	require.Empty(t, available.GRNLines)
	require.Len(t, available.BillLines, 1)
	require.Equal(t, bill, available.BillLines[0].ID)
	require.True(t, available.BillLines[0].QtyAvailable.Equal(qty("2")))

	all, err := svc.ListAvailable(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, all.POLines, 1)

	repo.listErr[SideGRN] = errors.New("connection reset")
	_, err = svc.ListAvailable(context.Background(), 1, 3)
	require.ErrorContains(t, err, "grn_line")
}

func TestCreatePurchaseOrderAndReceipt(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	po, err := svc.CreatePurchaseOrder(ctx, 1, CreatePurchaseOrderInput{
		SupplierID: 3, Number: "PO-1", OrderDate: day,
		Lines: []POLineInput{{Description: "Widget", Qty: qty("10"), UnitPrice: 1500}},
	})
	require.NoError(t, err)
	require.Len(t, po.Lines, 1)

	_, err = svc.CreatePurchaseOrder(ctx, 1, CreatePurchaseOrderInput{
		SupplierID: 3, Number: "PO-1", Lines: []POLineInput{{Description: "Widget", Qty: qty("1")}},
	})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreatePurchaseOrder(ctx, 1, CreatePurchaseOrderInput{
		SupplierID: 3, Lines: []POLineInput{{Description: "Widget", Qty: decimal.Zero}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	grn, err := svc.CreateGoodsReceipt(ctx, 1, CreateGoodsReceiptInput{
		SupplierID: 3, POID: ptr(po.ID), Number: "GRN-1", ReceivedDate: day,
		Lines: []GRNLineInput{{POLineID: ptr(po.Lines[0].ID), Description: "Widget", Qty: qty("6")}},
	})
	require.NoError(t, err)
	require.True(t, repo.available(SideGRN, grn.Lines[0].ID).Equal(qty("6")))

	_, err = svc.CreateGoodsReceipt(ctx, 1, CreateGoodsReceiptInput{
		SupplierID: 4, POID: ptr(po.ID), Lines: []GRNLineInput{{Description: "Widget", Qty: qty("1")}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateGoodsReceipt(ctx, 1, CreateGoodsReceiptInput{
		SupplierID: 3, POID: ptr(po.ID), Lines: []GRNLineInput{{POLineID: ptr(999), Description: "Widget", Qty: qty("1")}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateGoodsReceipt(ctx, 1, CreateGoodsReceiptInput{
		SupplierID: 3, POID: ptr(12345), Lines: []GRNLineInput{{Description: "Widget", Qty: qty("1")}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, err := svc.GetGoodsReceipt(ctx, 1, grn.ID)
	require.NoError(t, err)
	require.Equal(t, "GRN-1", got.Number)
}
