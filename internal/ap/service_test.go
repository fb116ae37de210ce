package ap

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryAPRepo struct {
	mu            sync.Mutex
	bills         map[int64]Bill
	payments      map[int64]Payment
	paymentAllocs []paymentAlloc
	credits       map[int64]VendorCredit
	creditAllocs  []creditAlloc
	nextID        int64
}

type paymentAlloc struct {
	paymentID int64
	Allocation
}

type creditAlloc struct {
	creditID int64
	Allocation
}

func newMemoryAPRepo() *memoryAPRepo {
	return &memoryAPRepo{
		bills:    make(map[int64]Bill),
		payments: make(map[int64]Payment),
		credits:  make(map[int64]VendorCredit),
	}
}

func (r *memoryAPRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryAPRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bills := make(map[int64]Bill, len(r.bills))
	for k, v := range r.bills {
		bills[k] = v
	}
	payments := make(map[int64]Payment, len(r.payments))
	for k, v := range r.payments {
		payments[k] = v
	}
	credits := make(map[int64]VendorCredit, len(r.credits))
	for k, v := range r.credits {
		credits[k] = v
	}
	pa := append([]paymentAlloc(nil), r.paymentAllocs...)
	ca := append([]creditAlloc(nil), r.creditAllocs...)
	if err := fn(ctx, &memoryAPTx{repo: r}); err != nil {
		r.bills, r.payments, r.credits, r.paymentAllocs, r.creditAllocs = bills, payments, credits, pa, ca
		return err
	}
	return nil
}

func (r *memoryAPRepo) GetBill(ctx context.Context, tenantID, id int64) (Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bill, ok := r.bills[id]
	if !ok || bill.TenantID != tenantID {
		return Bill{}, ErrBillNotFound
	}
	return bill, nil
}

func (r *memoryAPRepo) settled(billID int64) (paid, credited money.Cents) {
	for _, a := range r.paymentAllocs {
		if a.BillID == billID {
			paid += a.Amount
		}
	}
	for _, a := range r.creditAllocs {
		if a.BillID == billID {
			credited += a.Amount
		}
	}
	return paid, credited
}

func (r *memoryAPRepo) Settled(ctx context.Context, billID int64) (money.Cents, money.Cents, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paid, credited := r.settled(billID)
	return paid, credited, nil
}

func (r *memoryAPRepo) ListOutstanding(ctx context.Context, tenantID, supplierID int64) ([]OutstandingBill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []OutstandingBill
	for _, b := range r.bills {
		if b.TenantID != tenantID || b.Status != BillStatusPosted || (supplierID != 0 && b.SupplierID != supplierID) {
			continue
		}
		paid, credited := r.settled(b.ID)
		if b.Total-paid-credited > 0 {
			out = append(out, OutstandingBill{ID: b.ID, SupplierID: b.SupplierID, InvoiceNumber: b.InvoiceNumber,
				DueDate: b.DueDate, Total: b.Total, Settled: paid + credited, Balance: b.Total - paid - credited})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryAPRepo) GetVendorCredit(ctx context.Context, tenantID, id int64) (VendorCredit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.credits[id]
	if !ok || c.TenantID != tenantID {
		return VendorCredit{}, ErrCreditNotFound
	}
	return c, nil
}

type memoryAPTx struct {
	repo *memoryAPRepo
}

func (t *memoryAPTx) InsertBill(ctx context.Context, bill Bill) (Bill, error) {
	for _, b := range t.repo.bills {
		if b.TenantID == bill.TenantID && b.SupplierID == bill.SupplierID && b.InvoiceNumber == bill.InvoiceNumber {
			return Bill{}, ErrDuplicateBill
		}
	}
	bill.ID = t.repo.id()
	t.repo.bills[bill.ID] = bill
	return bill, nil
}

func (t *memoryAPTx) InsertBillLines(ctx context.Context, tenantID, billID int64, lines []BillLine) ([]BillLine, error) {
	out := make([]BillLine, 0, len(lines))
	for _, l := range lines {
		l.ID = t.repo.id()
		l.DocumentID = billID
		out = append(out, l)
	}
	bill := t.repo.bills[billID]
	bill.Lines = out
	t.repo.bills[billID] = bill
	return out, nil
}

func (t *memoryAPTx) LockBill(ctx context.Context, tenantID, id int64) (Bill, error) {
	bill, ok := t.repo.bills[id]
	if !ok || bill.TenantID != tenantID {
		return Bill{}, ErrBillNotFound
	}
	return bill, nil
}

func (t *memoryAPTx) LockBills(ctx context.Context, tenantID int64, ids []int64) ([]Bill, error) {
	var out []Bill
	for _, id := range ids {
		if bill, ok := t.repo.bills[id]; ok && bill.TenantID == tenantID {
			out = append(out, bill)
		}
	}
	return out, nil
}

func (t *memoryAPTx) BillLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return t.repo.bills[billID].Lines, nil
}

func (t *memoryAPTx) SettledTotals(ctx context.Context, billIDs []int64) (map[int64]money.Cents, error) {
	out := make(map[int64]money.Cents, len(billIDs))
	for _, id := range billIDs {
		paid, credited := t.repo.settled(id)
		out[id] = paid + credited
	}
	return out, nil
}

func (t *memoryAPTx) UpdateBillStatus(ctx context.Context, id int64, status BillStatus, journalID *int64) error {
	bill := t.repo.bills[id]
	bill.Status = status
	if journalID != nil {
		bill.JournalEntryID = journalID
	}
	t.repo.bills[id] = bill
	return nil
}

func (t *memoryAPTx) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	p.ID = t.repo.id()
	t.repo.payments[p.ID] = p
	return p, nil
}

func (t *memoryAPTx) InsertPaymentAllocations(ctx context.Context, paymentID int64, allocations []Allocation) error {
	for _, a := range allocations {
		t.repo.paymentAllocs = append(t.repo.paymentAllocs, paymentAlloc{paymentID: paymentID, Allocation: a})
	}
	return nil
}

func (t *memoryAPTx) SetPaymentJournal(ctx context.Context, paymentID, journalID int64) error {
	p := t.repo.payments[paymentID]
	p.JournalEntryID = &journalID
	t.repo.payments[paymentID] = p
	return nil
}

func (t *memoryAPTx) InsertVendorCredit(ctx context.Context, c VendorCredit) (VendorCredit, error) {
	for _, existing := range t.repo.credits {
		if existing.TenantID == c.TenantID && existing.SupplierID == c.SupplierID && existing.CreditNumber == c.CreditNumber {
			return VendorCredit{}, ErrDuplicateCredit
		}
	}
	c.ID = t.repo.id()
	t.repo.credits[c.ID] = c
	return c, nil
}

func (t *memoryAPTx) InsertVendorCreditLines(ctx context.Context, creditID int64, lines []BillLine) ([]BillLine, error) {
	c := t.repo.credits[creditID]
	c.Lines = lines
	t.repo.credits[creditID] = c
	return lines, nil
}

func (t *memoryAPTx) SetCreditJournal(ctx context.Context, creditID, journalID int64) error {
	c := t.repo.credits[creditID]
	c.JournalEntryID = &journalID
	t.repo.credits[creditID] = c
	return nil
}

func (t *memoryAPTx) LockVendorCredit(ctx context.Context, tenantID, id int64) (VendorCredit, error) {
	c, ok := t.repo.credits[id]
	if !ok || c.TenantID != tenantID {
		return VendorCredit{}, ErrCreditNotFound
	}
	return c, nil
}

func (t *memoryAPTx) CreditApplied(ctx context.Context, creditID int64) (money.Cents, error) {
	var applied money.Cents
	for _, a := range t.repo.creditAllocs {
		if a.creditID == creditID {
			applied += a.Amount
		}
	}
	return applied, nil
}

func (t *memoryAPTx) InsertCreditAllocations(ctx context.Context, creditID, actorID int64, allocations []Allocation) error {
	for _, a := range allocations {
		t.repo.creditAllocs = append(t.repo.creditAllocs, creditAlloc{creditID: creditID, Allocation: a})
	}
	return nil
}

func (t *memoryAPTx) UpdateCreditStatus(ctx context.Context, id int64, status CreditStatus) error {
	c := t.repo.credits[id]
	c.Status = status
	t.repo.credits[id] = c
	return nil
}

// recordingLedger validates postings the way the journal service does and keeps them.
type recordingLedger struct {
	posted []journals.PostingInput
	fail   error
}

func (l *recordingLedger) Post(ctx context.Context, tenantID int64, in journals.PostingInput) (journals.JournalEntry, error) {
	if l.fail != nil {
		return journals.JournalEntry{}, l.fail
	}
	if err := in.Validate(); err != nil {
		return journals.JournalEntry{}, err
	}
	l.posted = append(l.posted, in)
	return journals.JournalEntry{ID: int64(len(l.posted))}, nil
}

type staticRoles map[mappings.Role]string

func (r staticRoles) ResolveRole(ctx context.Context, tenantID int64, role mappings.Role, fallback string) (string, error) {
	if code, ok := r[role]; ok {
		return code, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", shared.Errorf(shared.ErrConfiguration, "no mapping for %s", role)
}

var defaultRoles = staticRoles{
	mappings.RoleAccountsPayable: "2000",
	mappings.RoleVATInput:        "1410",
	mappings.RoleBank:            "1000",
}

func newTestService() (*Service, *memoryAPRepo, *recordingLedger) {
	repo := newMemoryAPRepo()
	ledger := &recordingLedger{}
	return NewService(repo, ledger, defaultRoles, nil, nil), repo, ledger
}

var issued = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func postedBill(t *testing.T, svc *Service, supplierID int64, number string, price money.Cents) Bill {
	t.Helper()
	ctx := context.Background()
	bill, err := svc.CreateBill(ctx, 1, CreateBillInput{
		SupplierID: supplierID, InvoiceNumber: number, IssueDate: issued,
		Lines: []LineInput{{Description: "Paper", Quantity: decimal.NewFromInt(1), UnitPrice: price, GLAccountCode: "6100"}},
	})
	require.NoError(t, err)
	bill, err = svc.PostBill(ctx, 1, bill.ID, 7)
	require.NoError(t, err)
	return bill
}

func TestCreateBillDerivesTotal(t *testing.T) {
	svc, _, _ := newTestService()
	bill, err := svc.CreateBill(context.Background(), 1, CreateBillInput{
		SupplierID: 3, InvoiceNumber: "INV-1", IssueDate: issued,
		Lines: []LineInput{
			{Description: "Toner", Quantity: decimal.NewFromInt(3), UnitPrice: 10000, Discount: 1000, TaxRate: decimal.NewFromInt(11), GLAccountCode: "6100"},
			{Description: "Delivery", Quantity: decimal.NewFromInt(1), UnitPrice: 2500, GLAccountCode: "6200"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, money.Cents(34690), bill.Total)
	require.Equal(t, BillStatusDraft, bill.Status)
	require.Equal(t, issued.AddDate(0, 0, 30), bill.DueDate)

	_, err = svc.CreateBill(context.Background(), 1, CreateBillInput{
		SupplierID: 3, InvoiceNumber: "INV-1", IssueDate: issued,
		Lines: []LineInput{{Quantity: decimal.NewFromInt(1), UnitPrice: 1, GLAccountCode: "6100"}},
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestBillWorkflow(t *testing.T) {
	svc, _, ledger := newTestService()
	ctx := context.Background()
	bill, err := svc.CreateBill(ctx, 1, CreateBillInput{
		SupplierID: 3, InvoiceNumber: "INV-2", IssueDate: issued,
		Lines: []LineInput{{Quantity: decimal.NewFromInt(1), UnitPrice: 1000, GLAccountCode: "6100"}},
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, 1, bill.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.SubmitForReview(ctx, 1, bill.ID, 7)
	require.NoError(t, err)
	_, err = svc.PostBill(ctx, 1, bill.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState, "review must be approved first")

	blocked, err := svc.Block(ctx, 1, bill.ID, 7)
	require.NoError(t, err)
	require.Equal(t, BillStatusBlocked, blocked.Status)
	_, err = svc.PostBill(ctx, 1, bill.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Unblock(ctx, 1, bill.ID, 7)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, 1, bill.ID, 7)
	require.NoError(t, err)
	posted, err := svc.PostBill(ctx, 1, bill.ID, 7)
	require.NoError(t, err)
	require.Equal(t, BillStatusPosted, posted.Status)
	require.NotNil(t, posted.JournalEntryID)
	require.Len(t, ledger.posted, 1)

	_, err = svc.Block(ctx, 1, bill.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.PostBill(ctx, 1, bill.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestPostBillJournal(t *testing.T) {
	svc, _, ledger := newTestService()
	ctx := context.Background()
	bill, err := svc.CreateBill(ctx, 1, CreateBillInput{
		SupplierID: 3, InvoiceNumber: "INV-3", IssueDate: issued,
		Lines: []LineInput{
			{Quantity: decimal.NewFromInt(3), UnitPrice: 10000, Discount: 1000, TaxRate: decimal.NewFromInt(11), GLAccountCode: "6100"},
			{Quantity: decimal.NewFromInt(1), UnitPrice: 2500, GLAccountCode: "6200"},
		},
	})
	require.NoError(t, err)
	_, err = svc.PostBill(ctx, 1, bill.ID, 7)
	require.NoError(t, err)

	entry := ledger.posted[0]
	require.Equal(t, issued, entry.Date)
	require.Equal(t, journals.SourceRef{Module: "ap", Type: "bill", ID: "1"}, entry.Source)
	require.Equal(t, []journals.PostingLineInput{
		journals.Debit("6100", 29000, "Bill INV-3"),
		journals.Debit("6200", 2500, "Bill INV-3"),
		journals.Debit("1410", 3190, "Input VAT"),
		journals.Credit("2000", 34690, "Accounts payable"),
	}, entry.Lines)
}

func TestPostBillRollsBackOnLedgerFailure(t *testing.T) {
	svc, repo, ledger := newTestService()
	ctx := context.Background()
	bill, err := svc.CreateBill(ctx, 1, CreateBillInput{
		SupplierID: 3, InvoiceNumber: "INV-4", IssueDate: issued,
		Lines: []LineInput{{Quantity: decimal.NewFromInt(1), UnitPrice: 1000, GLAccountCode: "6100"}},
	})
	require.NoError(t, err)
	ledger.fail = accshared.ErrPeriodLocked

	_, err = svc.PostBill(ctx, 1, bill.ID, 7)
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	require.Equal(t, BillStatusDraft, repo.bills[bill.ID].Status)
}

func TestPaymentCannotExceedBillBalance(t *testing.T) {
	svc, repo, ledger := newTestService()
	ctx := context.Background()
	bill := postedBill(t, svc, 3, "INV-5", 1000)

	_, err := svc.RecordPayment(ctx, 1, RecordPaymentInput{
		SupplierID: 3, Date: issued, Amount: 600, Allocations: []Allocation{{BillID: bill.ID, Amount: 600}},
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, 1, RecordPaymentInput{
		SupplierID: 3, Date: issued, Amount: 500, Allocations: []Allocation{{BillID: bill.ID, Amount: 500}},
	})
	require.ErrorIs(t, err, shared.ErrAllocationExceedsBalance)

	detail, err := svc.GetBill(ctx, 1, bill.ID)
	require.NoError(t, err)
	require.Equal(t, money.Cents(400), detail.Balance)
	require.Equal(t, money.Cents(600), detail.Paid)
	require.Len(t, repo.payments, 1)
	require.Len(t, ledger.posted, 2)
}

func TestPaymentJournalAndPaidStatus(t *testing.T) {
	svc, repo, ledger := newTestService()
	ctx := context.Background()
	first := postedBill(t, svc, 3, "INV-6", 1000)
	second := postedBill(t, svc, 3, "INV-7", 500)

	payment, err := svc.RecordPayment(ctx, 1, RecordPaymentInput{
		SupplierID: 3, Date: issued, Amount: 1500, BankAccountCode: "1010",
		Allocations: []Allocation{{BillID: second.ID, Amount: 500}, {BillID: first.ID, Amount: 400}, {BillID: first.ID, Amount: 600}},
	})
	require.NoError(t, err)
	require.Equal(t, []Allocation{{BillID: first.ID, Amount: 1000}, {BillID: second.ID, Amount: 500}}, payment.Allocations)
	require.Equal(t, BillStatusPaid, repo.bills[first.ID].Status)
	require.Equal(t, BillStatusPaid, repo.bills[second.ID].Status)

	entry := ledger.posted[len(ledger.posted)-1]
	require.Equal(t, []journals.PostingLineInput{
		journals.Debit("2000", 1500, "Accounts payable"),
		journals.Credit("1010", 1500, "Bank"),
	}, entry.Lines)

	_, err = svc.RecordPayment(ctx, 1, RecordPaymentInput{
		SupplierID: 3, Date: issued, Amount: 1, Allocations: []Allocation{{BillID: first.ID, Amount: 1}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestPaymentValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	bill := postedBill(t, svc, 3, "INV-8", 1000)
	draft, err := svc.CreateBill(ctx, 1, CreateBillInput{
		SupplierID: 3, InvoiceNumber: "INV-9", IssueDate: issued,
		Lines: []LineInput{{Quantity: decimal.NewFromInt(1), UnitPrice: 1000, GLAccountCode: "6100"}},
	})
	require.NoError(t, err)

	cases := map[string]struct {
		in   RecordPaymentInput
		kind error
	}{
		"zero amount":         {RecordPaymentInput{SupplierID: 3, Date: issued, Allocations: []Allocation{{BillID: bill.ID, Amount: 1}}}, shared.ErrValidation},
		"no allocations":      {RecordPaymentInput{SupplierID: 3, Date: issued, Amount: 10}, shared.ErrValidation},
		"negative allocation": {RecordPaymentInput{SupplierID: 3, Date: issued, Amount: 10, Allocations: []Allocation{{BillID: bill.ID, Amount: -1}}}, shared.ErrValidation},
		"allocated > amount":  {RecordPaymentInput{SupplierID: 3, Date: issued, Amount: 10, Allocations: []Allocation{{BillID: bill.ID, Amount: 11}}}, shared.ErrAllocationExceedsBalance},
		"other supplier":      {RecordPaymentInput{SupplierID: 4, Date: issued, Amount: 10, Allocations: []Allocation{{BillID: bill.ID, Amount: 10}}}, shared.ErrValidation},
		"unposted bill":       {RecordPaymentInput{SupplierID: 3, Date: issued, Amount: 10, Allocations: []Allocation{{BillID: draft.ID, Amount: 10}}}, shared.ErrInvalidState},
		"unknown bill":        {RecordPaymentInput{SupplierID: 3, Date: issued, Amount: 10, Allocations: []Allocation{{BillID: 999, Amount: 10}}}, shared.ErrNotFound},
	}
	for name, tc := range cases {
		_, err := svc.RecordPayment(ctx, 1, tc.in)
		require.ErrorIs(t, err, tc.kind, name)
	}
}

func TestVendorCreditLifecycle(t *testing.T) {
	svc, repo, ledger := newTestService()
	ctx := context.Background()
	bill := postedBill(t, svc, 3, "INV-10", 1000)

	credit, err := svc.RecordVendorCredit(ctx, 1, CreateVendorCreditInput{
		SupplierID: 3, CreditNumber: "CN-1", IssueDate: issued,
		Lines: []LineInput{{Quantity: decimal.NewFromInt(1), UnitPrice: 300, TaxRate: decimal.NewFromInt(10), GLAccountCode: "6100"}},
	})
	require.NoError(t, err)
	require.Equal(t, money.Cents(330), credit.Total)
	require.Equal(t, CreditStatusOpen, credit.Status)
	require.Equal(t, []journals.PostingLineInput{
		journals.Debit("2000", 330, "Accounts payable"),
		journals.Credit("6100", 300, "Credit CN-1"),
		journals.Credit("1410", 30, "Input VAT"),
	}, ledger.posted[len(ledger.posted)-1].Lines)

	remaining, err := svc.ApplyVendorCredit(ctx, 1, credit.ID, 7, []Allocation{{BillID: bill.ID, Amount: 200}})
	require.NoError(t, err)
	require.Equal(t, money.Cents(130), remaining)

	_, err = svc.ApplyVendorCredit(ctx, 1, credit.ID, 7, []Allocation{{BillID: bill.ID, Amount: 131}})
	require.ErrorIs(t, err, shared.ErrAllocationExceedsBalance)

	remaining, err = svc.ApplyVendorCredit(ctx, 1, credit.ID, 7, []Allocation{{BillID: bill.ID, Amount: 130}})
	require.NoError(t, err)
	require.Zero(t, remaining)
	require.Equal(t, CreditStatusApplied, repo.credits[credit.ID].Status)

	_, err = svc.ApplyVendorCredit(ctx, 1, credit.ID, 7, []Allocation{{BillID: bill.ID, Amount: 1}})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	detail, err := svc.GetBill(ctx, 1, bill.ID)
	require.NoError(t, err)
	require.Equal(t, money.Cents(330), detail.Credited)
	require.Equal(t, money.Cents(670), detail.Balance)
}

func TestCreditAndPaymentTogetherCannotOverpay(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	bill := postedBill(t, svc, 3, "INV-11", 1000)
	credit, err := svc.RecordVendorCredit(ctx, 1, CreateVendorCreditInput{
		SupplierID: 3, CreditNumber: "CN-2", IssueDate: issued,
		Lines: []LineInput{{Quantity: decimal.NewFromInt(1), UnitPrice: 500, GLAccountCode: "6100"}},
	})
	require.NoError(t, err)
	_, err = svc.ApplyVendorCredit(ctx, 1, credit.ID, 7, []Allocation{{BillID: bill.ID, Amount: 500}})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, 1, RecordPaymentInput{
		SupplierID: 3, Date: issued, Amount: 600, Allocations: []Allocation{{BillID: bill.ID, Amount: 600}},
	})
	require.ErrorIs(t, err, shared.ErrAllocationExceedsBalance)

	_, err = svc.RecordPayment(ctx, 1, RecordPaymentInput{
		SupplierID: 3, Date: issued, Amount: 500, Allocations: []Allocation{{BillID: bill.ID, Amount: 500}},
	})
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, repo.bills[bill.ID].Status)
}

func TestBalanceNeverNegative(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	bills := []Bill{
		postedBill(t, svc, 3, "INV-20", 1000),
		postedBill(t, svc, 3, "INV-21", 2500),
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		bill := bills[rng.Intn(len(bills))]
		amount := money.Cents(rng.Intn(400) + 1)
		_, _ = svc.RecordPayment(ctx, 1, RecordPaymentInput{
			SupplierID: 3, Date: issued, Amount: amount, Allocations: []Allocation{{BillID: bill.ID, Amount: amount}},
		})
		for _, b := range bills {
			detail, err := svc.GetBill(ctx, 1, b.ID)
			require.NoError(t, err)
			require.GreaterOrEqual(t, int64(detail.Balance), int64(0))
		}
	}
}

func TestAgingBuckets(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	bucket := bucketize([]OutstandingBill{
		{DueDate: asOf.AddDate(0, 0, 5), Balance: 100},
		{DueDate: asOf.AddDate(0, 0, -10), Balance: 200},
		{DueDate: asOf.AddDate(0, 0, -45), Balance: 300},
		{DueDate: asOf.AddDate(0, 0, -75), Balance: 400},
		{DueDate: asOf.AddDate(0, 0, -200), Balance: 500},
		{DueDate: asOf, Balance: 0},
	}, asOf)
	require.Equal(t, AgingBucket{Current: 100, Bucket30: 200, Bucket60: 300, Bucket90: 400, Bucket120: 500}, bucket)
	require.Equal(t, money.Cents(1500), bucket.Total())
}
