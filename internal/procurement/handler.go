package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes purchase documents and three-way matching over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	decoder *httpx.Decoder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, decoder: httpx.NewDecoder()}
}

// MountMatchRoutes attaches /three-way routes.
func (h *Handler) MountMatchRoutes(r chi.Router) {
	r.Get("/", h.listAvailable)
	r.Post("/apply", h.applyMatches)
}

// MountPurchaseOrderRoutes attaches /purchase-orders routes.
func (h *Handler) MountPurchaseOrderRoutes(r chi.Router) {
	r.Post("/", h.createPO)
	r.Get("/{id}", h.getPO)
}

// MountGoodsReceiptRoutes attaches /goods-receipts routes.
func (h *Handler) MountGoodsReceiptRoutes(r chi.Router) {
	r.Post("/", h.createGRN)
	r.Get("/{id}", h.getGRN)
}

type matchRequest struct {
	POLineID   *int64          `json:"po_line_id" validate:"omitempty,gt=0"`
	GRNLineID  *int64          `json:"grn_line_id" validate:"omitempty,gt=0"`
	BillLineID *int64          `json:"bill_line_id" validate:"omitempty,gt=0"`
	Qty        decimal.Decimal `json:"qty"`
}

type applyRequest struct {
	Matches []matchRequest `json:"matches" validate:"required,min=1,dive"`
}

type poLineRequest struct {
	Description string          `json:"description" validate:"required,max=256"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type poRequest struct {
	SupplierID int64           `json:"supplier_id" validate:"required,gt=0"`
	Number     string          `json:"number" validate:"max=64"`
	OrderDate  string          `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	Lines      []poLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type grnLineRequest struct {
	POLineID    *int64          `json:"po_line_id" validate:"omitempty,gt=0"`
	Description string          `json:"description" validate:"required,max=256"`
	Qty         decimal.Decimal `json:"qty"`
}

type grnRequest struct {
	SupplierID   int64            `json:"supplier_id" validate:"required,gt=0"`
	POID         *int64           `json:"po_id" validate:"omitempty,gt=0"`
	Number       string           `json:"number" validate:"max=64"`
	ReceivedDate string           `json:"received_date" validate:"omitempty,datetime=2006-01-02"`
	Lines        []grnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
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
	available, err := h.service.ListAvailable(r.Context(), scope.TenantID, supplierID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, available)
}

func (h *Handler) applyMatches(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req applyRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	matches := make([]MatchInput, 0, len(req.Matches))
	for _, m := range req.Matches {
		matches = append(matches, MatchInput{POLineID: m.POLineID, GRNLineID: m.GRNLineID, BillLineID: m.BillLineID, Qty: m.Qty})
	}
	inserted, err := h.service.ApplyMatches(r.Context(), scope.TenantID, scope.UserID, matches)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int{"inserted": inserted})
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req poRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	input := CreatePurchaseOrderInput{SupplierID: req.SupplierID, Number: req.Number, CreatedBy: scope.UserID}
	if req.OrderDate != "" {
		input.OrderDate, _ = time.Parse(time.DateOnly, req.OrderDate)
	}
	for i, l := range req.Lines {
		price, err := httpx.Cents(l.UnitPrice, "lines["+strconv.Itoa(i)+"].unit_price")
		if err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
		input.Lines = append(input.Lines, POLineInput{Description: l.Description, Qty: l.Qty, UnitPrice: price})
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), scope.TenantID, input)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, map[string]any{"po_id": po.ID, "purchase_order": po})
}

func (h *Handler) getPO(w http.ResponseWriter, r *http.Request) {
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
	po, err := h.service.GetPurchaseOrder(r.Context(), scope.TenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) createGRN(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req grnRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	input := CreateGoodsReceiptInput{SupplierID: req.SupplierID, POID: req.POID, Number: req.Number, CreatedBy: scope.UserID}
	if req.ReceivedDate != "" {
		input.ReceivedDate, _ = time.Parse(time.DateOnly, req.ReceivedDate)
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, GRNLineInput{POLineID: l.POLineID, Description: l.Description, Qty: l.Qty})
	}
	grn, err := h.service.CreateGoodsReceipt(r.Context(), scope.TenantID, input)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, map[string]any{"grn_id": grn.ID, "goods_receipt": grn})
}

func (h *Handler) getGRN(w http.ResponseWriter, r *http.Request) {
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
	grn, err := h.service.GetGoodsReceipt(r.Context(), scope.TenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, grn)
}
