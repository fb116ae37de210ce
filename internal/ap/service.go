package ap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const sourceModule = "ap"

// Service is the accounts payable subledger.
type Service struct {
	repo     Repository
	ledger   Ledger
	accounts RoleResolver
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs the AP service.
func NewService(repo Repository, ledger Ledger, accounts RoleResolver, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, accounts: accounts, audit: audit, logger: logger}
}

// CreateBill records a draft bill with its lines.
func (s *Service) CreateBill(ctx context.Context, tenantID int64, input CreateBillInput) (Bill, error) {
	switch {
	case input.SupplierID <= 0:
		return Bill{}, shared.Errorf(shared.ErrValidation, "ap: supplier required")
	case strings.TrimSpace(input.InvoiceNumber) == "":
		return Bill{}, shared.Errorf(shared.ErrValidation, "ap: invoice number required")
	case input.IssueDate.IsZero():
		return Bill{}, shared.Errorf(shared.ErrValidation, "ap: issue date required")
	}
	if input.DueDate.IsZero() {
		input.DueDate = input.IssueDate.AddDate(0, 0, 30)
	}
	if input.DueDate.Before(input.IssueDate) {
		return Bill{}, shared.Errorf(shared.ErrValidation, "ap: due date before issue date")
	}
	if err := validateLines(input.Lines); err != nil {
		return Bill{}, err
	}
	lines, total := buildLines(input.Lines)

	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.InsertBill(ctx, Bill{
			TenantID:      tenantID,
			SupplierID:    input.SupplierID,
			InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
			IssueDate:     input.IssueDate,
			DueDate:       input.DueDate,
			Status:        BillStatusDraft,
			Total:         total,
			Notes:         input.Notes,
			CreatedBy:     input.CreatedBy,
		})
		if err != nil {
			return err
		}
		bill.Lines, err = tx.InsertBillLines(ctx, tenantID, bill.ID, lines)
		return err
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// SubmitForReview moves a draft bill to review.
func (s *Service) SubmitForReview(ctx context.Context, tenantID, billID, actorID int64) (Bill, error) {
	return s.transition(ctx, tenantID, billID, actorID, BillStatusReview, BillStatusDraft)
}

// Approve approves a bill under review.
func (s *Service) Approve(ctx context.Context, tenantID, billID, actorID int64) (Bill, error) {
	return s.transition(ctx, tenantID, billID, actorID, BillStatusApproved, BillStatusReview)
}

// Block holds a bill that has not been posted.
func (s *Service) Block(ctx context.Context, tenantID, billID, actorID int64) (Bill, error) {
	return s.transition(ctx, tenantID, billID, actorID, BillStatusBlocked, BillStatusDraft, BillStatusReview, BillStatusApproved)
}

// Unblock returns a blocked bill to review.
func (s *Service) Unblock(ctx context.Context, tenantID, billID, actorID int64) (Bill, error) {
	return s.transition(ctx, tenantID, billID, actorID, BillStatusReview, BillStatusBlocked)
}

func (s *Service) transition(ctx context.Context, tenantID, billID, actorID int64, target BillStatus, from ...BillStatus) (Bill, error) {
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.LockBill(ctx, tenantID, billID)
		if err != nil {
			return err
		}
		if !statusIn(bill.Status, from...) {
			return shared.Errorf(shared.ErrInvalidState, "ap: bill %s cannot move from %s to %s", bill.InvoiceNumber, bill.Status, target)
		}
		if err := tx.UpdateBillStatus(ctx, bill.ID, target, nil); err != nil {
			return err
		}
		previous := bill.Status
		bill.Status = target
		return s.record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actorID,
			Action:   "bill.status",
			Entity:   "ap_bill",
			EntityID: fmt.Sprintf("%d", bill.ID),
			Meta:     map[string]any{"from": string(previous), "to": string(target)},
		})
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// PostBill posts a draft or approved bill to the ledger: debit each line's GL
// account with its net, debit VAT input with the tax and credit accounts payable.
func (s *Service) PostBill(ctx context.Context, tenantID, billID, actorID int64) (Bill, error) {
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.LockBill(ctx, tenantID, billID)
		if err != nil {
			return err
		}
		if !statusIn(bill.Status, BillStatusDraft, BillStatusApproved) {
			return shared.Errorf(shared.ErrInvalidState, "ap: bill %s is %s and cannot be posted", bill.InvoiceNumber, bill.Status)
		}
		if bill.Total <= 0 {
			return shared.Errorf(shared.ErrValidation, "ap: bill %s has no amount to post", bill.InvoiceNumber)
		}
		bill.Lines, err = tx.BillLines(ctx, bill.ID)
		if err != nil {
			return err
		}
		payable, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleAccountsPayable, "")
		if err != nil {
			return err
		}
		net, tax := splitByAccount(bill.Lines)
		lines := make([]journals.PostingLineInput, 0, len(net)+2)
		for _, code := range sortedCodes(net) {
			lines = append(lines, journals.Debit(code, net[code], "Bill "+bill.InvoiceNumber))
		}
		if tax > 0 {
			vat, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleVATInput, "")
			if err != nil {
				return err
			}
			lines = append(lines, journals.Debit(vat, tax, "Input VAT"))
		}
		lines = append(lines, journals.Credit(payable, bill.Total, "Accounts payable"))

		entry, err := s.ledger.Post(ctx, tenantID, journals.PostingInput{
			Date:        bill.IssueDate,
			Reference:   bill.InvoiceNumber,
			Description: fmt.Sprintf("Supplier bill %s", bill.InvoiceNumber),
			Source:      journals.SourceRef{Module: sourceModule, Type: "bill", ID: fmt.Sprintf("%d", bill.ID)},
			CreatedBy:   actorID,
			Lines:       journals.NonZero(lines...),
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateBillStatus(ctx, bill.ID, BillStatusPosted, &entry.ID); err != nil {
			return err
		}
		bill.Status = BillStatusPosted
		bill.JournalEntryID = &entry.ID
		return s.record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actorID,
			Action:   "bill.post",
			Entity:   "ap_bill",
			EntityID: fmt.Sprintf("%d", bill.ID),
			Meta:     map[string]any{"total": int64(bill.Total), "journal_entry_id": entry.ID},
		})
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// RecordPayment records a supplier payment, allocates it to posted bills and posts
// debit accounts payable / credit bank. Bills whose balance reaches zero become PAID.
func (s *Service) RecordPayment(ctx context.Context, tenantID int64, input RecordPaymentInput) (Payment, error) {
	if input.SupplierID <= 0 {
		return Payment{}, shared.Errorf(shared.ErrValidation, "ap: supplier required")
	}
	if input.Date.IsZero() {
		return Payment{}, shared.Errorf(shared.ErrValidation, "ap: payment date required")
	}
	if input.Amount <= 0 {
		return Payment{}, shared.Errorf(shared.ErrValidation, "ap: amount must be positive")
	}
	perBill, allocated, err := groupAllocations(input.Allocations)
	if err != nil {
		return Payment{}, err
	}
	if allocated > input.Amount {
		return Payment{}, shared.Errorf(shared.ErrAllocationExceedsBalance, "ap: allocations %s exceed payment amount %s", allocated.Display(), input.Amount.Display())
	}

	var payment Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bills, err := s.lockForAllocation(ctx, tx, tenantID, input.SupplierID, perBill)
		if err != nil {
			return err
		}
		payable, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleAccountsPayable, "")
		if err != nil {
			return err
		}
		bank := strings.TrimSpace(input.BankAccountCode)
		if bank == "" {
			if bank, err = s.accounts.ResolveRole(ctx, tenantID, mappings.RoleBank, ""); err != nil {
				return err
			}
		}

		payment, err = tx.InsertPayment(ctx, Payment{
			TenantID:        tenantID,
			SupplierID:      input.SupplierID,
			Date:            input.Date,
			Method:          input.Method,
			BankAccountCode: bank,
			Reference:       input.Reference,
			Amount:          input.Amount,
			CreatedBy:       input.CreatedBy,
		})
		if err != nil {
			return err
		}
		payment.Allocations = allocationsOf(perBill)
		if err := tx.InsertPaymentAllocations(ctx, payment.ID, payment.Allocations); err != nil {
			return err
		}
		entry, err := s.ledger.Post(ctx, tenantID, journals.PostingInput{
			Date:        input.Date,
			Reference:   input.Reference,
			Description: fmt.Sprintf("Supplier payment %d", payment.ID),
			Source:      journals.SourceRef{Module: sourceModule, Type: "payment", ID: fmt.Sprintf("%d", payment.ID)},
			CreatedBy:   input.CreatedBy,
			Lines: []journals.PostingLineInput{
				journals.Debit(payable, input.Amount, "Accounts payable"),
				journals.Credit(bank, input.Amount, "Bank"),
			},
		})
		if err != nil {
			return err
		}
		if err := tx.SetPaymentJournal(ctx, payment.ID, entry.ID); err != nil {
			return err
		}
		payment.JournalEntryID = &entry.ID
		if err := markPaid(ctx, tx, bills, perBill); err != nil {
			return err
		}
		return s.record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  input.CreatedBy,
			Action:   "payment.record",
			Entity:   "ap_payment",
			EntityID: fmt.Sprintf("%d", payment.ID),
			Meta:     map[string]any{"amount": int64(input.Amount), "allocated": int64(allocated), "journal_entry_id": entry.ID},
		})
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// RecordVendorCredit records a supplier credit note and posts debit accounts
// payable / credit each line's GL account with its net and VAT input with the tax.
func (s *Service) RecordVendorCredit(ctx context.Context, tenantID int64, input CreateVendorCreditInput) (VendorCredit, error) {
	switch {
	case input.SupplierID <= 0:
		return VendorCredit{}, shared.Errorf(shared.ErrValidation, "ap: supplier required")
	case strings.TrimSpace(input.CreditNumber) == "":
		return VendorCredit{}, shared.Errorf(shared.ErrValidation, "ap: credit number required")
	case input.IssueDate.IsZero():
		return VendorCredit{}, shared.Errorf(shared.ErrValidation, "ap: issue date required")
	}
	if err := validateLines(input.Lines); err != nil {
		return VendorCredit{}, err
	}
	lines, total := buildLines(input.Lines)
	if total <= 0 {
		return VendorCredit{}, shared.Errorf(shared.ErrValidation, "ap: credit total must be positive")
	}

	var credit VendorCredit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		credit, err = tx.InsertVendorCredit(ctx, VendorCredit{
			TenantID:     tenantID,
			SupplierID:   input.SupplierID,
			CreditNumber: strings.TrimSpace(input.CreditNumber),
			IssueDate:    input.IssueDate,
			Status:       CreditStatusOpen,
			Total:        total,
			Notes:        input.Notes,
			CreatedBy:    input.CreatedBy,
		})
		if err != nil {
			return err
		}
		credit.Lines, err = tx.InsertVendorCreditLines(ctx, credit.ID, lines)
		if err != nil {
			return err
		}
		payable, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleAccountsPayable, "")
		if err != nil {
			return err
		}
		net, tax := splitByAccount(credit.Lines)
		postings := []journals.PostingLineInput{journals.Debit(payable, total, "Accounts payable")}
		for _, code := range sortedCodes(net) {
			postings = append(postings, journals.Credit(code, net[code], "Credit "+credit.CreditNumber))
		}
		if tax > 0 {
			vat, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleVATInput, "")
			if err != nil {
				return err
			}
			postings = append(postings, journals.Credit(vat, tax, "Input VAT"))
		}
		entry, err := s.ledger.Post(ctx, tenantID, journals.PostingInput{
			Date:        input.IssueDate,
			Reference:   credit.CreditNumber,
			Description: fmt.Sprintf("Vendor credit %s", credit.CreditNumber),
			Source:      journals.SourceRef{Module: sourceModule, Type: "vendor_credit", ID: fmt.Sprintf("%d", credit.ID)},
			CreatedBy:   input.CreatedBy,
			Lines:       journals.NonZero(postings...),
		})
		if err != nil {
			return err
		}
		if err := tx.SetCreditJournal(ctx, credit.ID, entry.ID); err != nil {
			return err
		}
		credit.JournalEntryID = &entry.ID
		return nil
	})
	if err != nil {
		return VendorCredit{}, err
	}
	return credit, nil
}

// ApplyVendorCredit allocates an open credit to posted bills of the same supplier.
// It returns the credit amount still unapplied.
func (s *Service) ApplyVendorCredit(ctx context.Context, tenantID, creditID, actorID int64, allocations []Allocation) (money.Cents, error) {
	perBill, requested, err := groupAllocations(allocations)
	if err != nil {
		return 0, err
	}
	var remaining money.Cents
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		credit, err := tx.LockVendorCredit(ctx, tenantID, creditID)
		if err != nil {
			return err
		}
		if credit.Status != CreditStatusOpen {
			return shared.Errorf(shared.ErrInvalidState, "ap: credit %s is %s", credit.CreditNumber, credit.Status)
		}
		applied, err := tx.CreditApplied(ctx, credit.ID)
		if err != nil {
			return err
		}
		if applied+requested > credit.Total {
			return shared.Errorf(shared.ErrAllocationExceedsBalance, "ap: credit %s has %s left, %s requested",
				credit.CreditNumber, (credit.Total - applied).Display(), requested.Display())
		}
		bills, err := s.lockForAllocation(ctx, tx, tenantID, credit.SupplierID, perBill)
		if err != nil {
			return err
		}
		if err := tx.InsertCreditAllocations(ctx, credit.ID, actorID, allocationsOf(perBill)); err != nil {
			return err
		}
		remaining = credit.Total - applied - requested
		if remaining == 0 {
			if err := tx.UpdateCreditStatus(ctx, credit.ID, CreditStatusApplied); err != nil {
				return err
			}
		}
		if err := markPaid(ctx, tx, bills, perBill); err != nil {
			return err
		}
		return s.record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actorID,
			Action:   "vendor_credit.apply",
			Entity:   "ap_vendor_credit",
			EntityID: fmt.Sprintf("%d", credit.ID),
			Meta:     map[string]any{"applied": int64(requested), "remaining": int64(remaining)},
		})
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// GetBill returns a bill with lines and its derived balance.
func (s *Service) GetBill(ctx context.Context, tenantID, billID int64) (BillDetail, error) {
	bill, err := s.repo.GetBill(ctx, tenantID, billID)
	if err != nil {
		return BillDetail{}, err
	}
	paid, credited, err := s.repo.Settled(ctx, bill.ID)
	if err != nil {
		return BillDetail{}, err
	}
	return BillDetail{Bill: bill, Paid: paid, Credited: credited, Balance: bill.Total - paid - credited}, nil
}

// GetVendorCredit returns a vendor credit with its lines.
func (s *Service) GetVendorCredit(ctx context.Context, tenantID, creditID int64) (VendorCredit, error) {
	return s.repo.GetVendorCredit(ctx, tenantID, creditID)
}

// ListOutstanding returns posted bills with an open balance, optionally for one supplier.
func (s *Service) ListOutstanding(ctx context.Context, tenantID, supplierID int64) ([]OutstandingBill, error) {
	return s.repo.ListOutstanding(ctx, tenantID, supplierID)
}

// Aging buckets open balances by days past due as of asOf.
func (s *Service) Aging(ctx context.Context, tenantID int64, asOf time.Time) (AgingBucket, error) {
	bills, err := s.repo.ListOutstanding(ctx, tenantID, 0)
	if err != nil {
		return AgingBucket{}, err
	}
	return bucketize(bills, asOf), nil
}

func bucketize(bills []OutstandingBill, asOf time.Time) AgingBucket {
	var bucket AgingBucket
	for _, bill := range bills {
		if bill.Balance <= 0 {
			continue
		}
		daysOverdue := int(asOf.Sub(bill.DueDate).Hours() / 24)
		switch {
		case daysOverdue <= 0:
			bucket.Current += bill.Balance
		case daysOverdue <= 30:
			bucket.Bucket30 += bill.Balance
		case daysOverdue <= 60:
			bucket.Bucket60 += bill.Balance
		case daysOverdue <= 90:
			bucket.Bucket90 += bill.Balance
		default:
			bucket.Bucket120 += bill.Balance
		}
	}
	return bucket
}

// lockForAllocation locks the target bills in id order and checks each can absorb
// its allocation without the balance going negative.
func (s *Service) lockForAllocation(ctx context.Context, tx TxRepository, tenantID, supplierID int64, perBill map[int64]money.Cents) (map[int64]billState, error) {
	ids := make([]int64, 0, len(perBill))
	for id := range perBill {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bills, err := tx.LockBills(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	if len(bills) != len(ids) {
		return nil, ErrBillNotFound
	}
	settled, err := tx.SettledTotals(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]billState, len(bills))
	for _, bill := range bills {
		if bill.SupplierID != supplierID {
			return nil, shared.Errorf(shared.ErrValidation, "ap: bill %s belongs to another supplier", bill.InvoiceNumber)
		}
		if bill.Status != BillStatusPosted {
			return nil, shared.Errorf(shared.ErrInvalidState, "ap: bill %s is %s, only posted bills accept allocations", bill.InvoiceNumber, bill.Status)
		}
		balance := bill.Total - settled[bill.ID]
		if perBill[bill.ID] > balance {
			return nil, shared.Errorf(shared.ErrAllocationExceedsBalance, "ap: bill %s balance %s, %s requested",
				bill.InvoiceNumber, balance.Display(), perBill[bill.ID].Display())
		}
		out[bill.ID] = billState{bill: bill, balance: balance}
	}
	return out, nil
}

type billState struct {
	bill    Bill
	balance money.Cents
}

func markPaid(ctx context.Context, tx TxRepository, bills map[int64]billState, perBill map[int64]money.Cents) error {
	for id, state := range bills {
		if state.balance-perBill[id] == 0 {
			if err := tx.UpdateBillStatus(ctx, id, BillStatusPaid, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func groupAllocations(allocations []Allocation) (map[int64]money.Cents, money.Cents, error) {
	if len(allocations) == 0 {
		return nil, 0, shared.Errorf(shared.ErrValidation, "ap: at least one allocation required")
	}
	perBill := make(map[int64]money.Cents, len(allocations))
	var total money.Cents
	for idx, a := range allocations {
		if a.BillID <= 0 {
			return nil, 0, shared.Errorf(shared.ErrValidation, "ap: allocation %d missing bill", idx+1)
		}
		if a.Amount <= 0 {
			return nil, 0, shared.Errorf(shared.ErrValidation, "ap: allocation %d amount must be positive", idx+1)
		}
		perBill[a.BillID] += a.Amount
		total += a.Amount
	}
	return perBill, total, nil
}

func allocationsOf(perBill map[int64]money.Cents) []Allocation {
	out := make([]Allocation, 0, len(perBill))
	for id, amount := range perBill {
		out = append(out, Allocation{BillID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillID < out[j].BillID })
	return out
}

func statusIn(status BillStatus, allowed ...BillStatus) bool {
	for _, a := range allowed {
		if status == a {
			return true
		}
	}
	return false
}

func sortedCodes(m map[string]money.Cents) []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, log)
}
