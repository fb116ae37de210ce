package ap

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes the AP subledger over JSON.
type Handler struct {
	service *Service
	decoder *httpx.Decoder
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, decoder: httpx.NewDecoder(), logger: logger}
}

// MountBillRoutes attaches /bills routes.
func (h *Handler) MountBillRoutes(r chi.Router) {
	r.Get("/", h.listOutstanding)
	r.Post("/", h.createBill)
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.getBill)
	r.Post("/{id}/submit", h.billAction(h.service.SubmitForReview))
	r.Post("/{id}/approve", h.billAction(h.service.Approve))
	r.Post("/{id}/block", h.billAction(h.service.Block))
	r.Post("/{id}/unblock", h.billAction(h.service.Unblock))
	r.Post("/{id}/post", h.billAction(h.service.PostBill))
}

// MountPaymentRoutes attaches /payments routes.
func (h *Handler) MountPaymentRoutes(r chi.Router) {
	r.Post("/", h.recordPayment)
}

// MountCreditRoutes attaches /vendor-credits routes.
func (h *Handler) MountCreditRoutes(r chi.Router) {
	r.Post("/", h.recordCredit)
	r.Get("/{id}", h.getCredit)
	r.Post("/{id}/apply", h.applyCredit)
}

type lineRequest struct {
	Description   string          `json:"description" validate:"required,max=256"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit" validate:"max=16"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	GLAccountCode string          `json:"gl_account_code" validate:"required"`
}

type createBillRequest struct {
	SupplierID    int64         `json:"supplier_id" validate:"required,gt=0"`
	InvoiceNumber string        `json:"invoice_number" validate:"required,max=64"`
	IssueDate     string        `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate       string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes         string        `json:"notes" validate:"max=512"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type allocationRequest struct {
	BillID int64           `json:"bill_id" validate:"required,gt=0"`
	Amount decimal.Decimal `json:"amount"`
}

type paymentRequest struct {
	SupplierID      int64               `json:"supplier_id" validate:"required,gt=0"`
	PaymentDate     string              `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Method          string              `json:"method" validate:"max=32"`
	BankAccountCode string              `json:"bank_account_code" validate:"max=32"`
	Reference       string              `json:"reference" validate:"max=64"`
	Amount          decimal.Decimal     `json:"amount"`
	Allocations     []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

type creditRequest struct {
	SupplierID   int64         `json:"supplier_id" validate:"required,gt=0"`
	CreditNumber string        `json:"credit_number" validate:"required,max=64"`
	IssueDate    string        `json:"issue_date" validate:"required,datetime=2006-01-02"`
	Notes        string        `json:"notes" validate:"max=512"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type applyCreditRequest struct {
	Allocations []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req createBillRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	lines, err := toLineInputs(req.Lines)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	issue, _ := time.Parse(time.DateOnly, req.IssueDate)
	var due time.Time
	if req.DueDate != "" {
		due, _ = time.Parse(time.DateOnly, req.DueDate)
	}
	bill, err := h.service.CreateBill(r.Context(), scope.TenantID, CreateBillInput{
		SupplierID:    req.SupplierID,
		InvoiceNumber: req.InvoiceNumber,
		IssueDate:     issue,
		DueDate:       due,
		Notes:         req.Notes,
		CreatedBy:     scope.UserID,
		Lines:         lines,
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, map[string]any{"bill_id": bill.ID, "total": bill.Total, "bill": bill})
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	detail, err := h.service.GetBill(r.Context(), scope.TenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, detail)
}

func (h *Handler) billAction(fn func(ctx context.Context, tenantID, billID, actorID int64) (Bill, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := httpx.Scope(r)
		if err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
		bill, err := fn(r.Context(), scope.TenantID, id, scope.UserID)
		if err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
		httpx.OK(w, http.StatusOK, map[string]any{"status": bill.Status, "journal_entry_id": bill.JournalEntryID})
	}
}

func (h *Handler) listOutstanding(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var supplierID int64
	if r.URL.Query().Get("supplier_id") != "" {
		if supplierID, err = httpx.QueryID(r, "supplier_id"); err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
	}
	bills, err := h.service.ListOutstanding(r.Context(), scope.TenantID, supplierID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, bills)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse(time.DateOnly, raw); err != nil {
			httpx.Fail(w, h.logger, shared.Errorf(shared.ErrValidation, "as_of must be YYYY-MM-DD"))
			return
		}
	}
	bucket, err := h.service.Aging(r.Context(), scope.TenantID, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"as_of": asOf.Format(time.DateOnly), "buckets": bucket, "total": bucket.Total()})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req paymentRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	amount, err := httpx.Cents(req.Amount, "amount")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	allocations, err := toAllocations(req.Allocations)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	date, _ := time.Parse(time.DateOnly, req.PaymentDate)
	payment, err := h.service.RecordPayment(r.Context(), scope.TenantID, RecordPaymentInput{
		SupplierID:      req.SupplierID,
		Date:            date,
		Method:          req.Method,
		BankAccountCode: req.BankAccountCode,
		Reference:       req.Reference,
		Amount:          amount,
		CreatedBy:       scope.UserID,
		Allocations:     allocations,
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, map[string]any{"payment_id": payment.ID, "journal_entry_id": payment.JournalEntryID})
}

func (h *Handler) recordCredit(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req creditRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	lines, err := toLineInputs(req.Lines)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	issue, _ := time.Parse(time.DateOnly, req.IssueDate)
	credit, err := h.service.RecordVendorCredit(r.Context(), scope.TenantID, CreateVendorCreditInput{
		SupplierID:   req.SupplierID,
		CreditNumber: req.CreditNumber,
		IssueDate:    issue,
		Notes:        req.Notes,
		CreatedBy:    scope.UserID,
		Lines:        lines,
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, map[string]any{"credit_id": credit.ID, "total": credit.Total})
}

func (h *Handler) getCredit(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	credit, err := h.service.GetVendorCredit(r.Context(), scope.TenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, credit)
}

func (h *Handler) applyCredit(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req applyCreditRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	allocations, err := toAllocations(req.Allocations)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	remaining, err := h.service.ApplyVendorCredit(r.Context(), scope.TenantID, id, scope.UserID, allocations)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"applied": len(allocations), "remaining": remaining})
}

func toLineInputs(reqs []lineRequest) ([]LineInput, error) {
	out := make([]LineInput, 0, len(reqs))
	for idx, l := range reqs {
		field := "lines[" + strconv.Itoa(idx) + "]"
		price, err := httpx.Cents(l.UnitPrice, field+".unit_price")
		if err != nil {
			return nil, err
		}
		discount, err := httpx.Cents(l.Discount, field+".discount")
		if err != nil {
			return nil, err
		}
		out = append(out, LineInput{
			Description:   l.Description,
			Quantity:      l.Quantity,
			Unit:          l.Unit,
			UnitPrice:     price,
			Discount:      discount,
			TaxRate:       l.TaxRate,
			GLAccountCode: l.GLAccountCode,
		})
	}
	return out, nil
}

func toAllocations(reqs []allocationRequest) ([]Allocation, error) {
	out := make([]Allocation, 0, len(reqs))
	for idx, a := range reqs {
		amount, err := httpx.Cents(a.Amount, "allocations["+strconv.Itoa(idx)+"].amount")
		if err != nil {
			return nil, err
		}
		out = append(out, Allocation{BillID: a.BillID, Amount: amount})
	}
	return out, nil
}
