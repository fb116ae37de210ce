package fixedassets

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler serves the asset register, depreciation runs and disposals.
type Handler struct {
	service *Service
	decoder *httpx.Decoder
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, decoder: httpx.NewDecoder(), logger: logger}
}

// MountAssetRoutes attaches /fixed-assets routes.
func (h *Handler) MountAssetRoutes(r chi.Router) {
	r.Get("/", h.listAssets)
	r.Post("/", h.registerAsset)
	r.Post("/dispose", h.dispose)
	r.Get("/{id}", h.getAsset)
}

// MountDepreciationRoutes attaches /depreciation routes.
func (h *Handler) MountDepreciationRoutes(r chi.Router) {
	r.Post("/run", h.runMonth)
	r.Get("/runs", h.listRuns)
	r.Get("/runs/{id}", h.getRun)
}

type registerAssetRequest struct {
	Name                   string          `json:"name" validate:"required,max=128"`
	Category               string          `json:"category" validate:"max=64"`
	PurchaseDate           string          `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	Cost                   decimal.Decimal `json:"cost"`
	Salvage                decimal.Decimal `json:"salvage"`
	UsefulLifeMonths       int             `json:"useful_life_months" validate:"required,gt=0"`
	Method                 string          `json:"method" validate:"required,oneof=STRAIGHT_LINE DECLINING_BALANCE"`
	AssetAccountCode       string          `json:"asset_account_code" validate:"required"`
	ExpenseAccountCode     string          `json:"expense_account_code" validate:"required"`
	AccumulatedAccountCode string          `json:"accumulated_account_code" validate:"required"`
}

type runRequest struct {
	RunMonth string `json:"run_month" validate:"required,datetime=2006-01"`
}

type disposeRequest struct {
	AssetID      int64           `json:"asset_id" validate:"required,gt=0"`
	DisposalDate string          `json:"disposal_date" validate:"required,datetime=2006-01-02"`
	Proceeds     decimal.Decimal `json:"proceeds"`
	Notes        string          `json:"notes" validate:"max=512"`
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	assets, err := h.service.ListAssets(r.Context(), scope.TenantID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	page, perPage := httpx.PageParams(r)
	items, meta := shared.Paginate(assets, page, perPage)
	httpx.OK(w, http.StatusOK, map[string]any{"items": items, "pagination": meta})
}

func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request) {
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
	asset, err := h.service.GetAsset(r.Context(), scope.TenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, asset)
}

func (h *Handler) registerAsset(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req registerAssetRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	cost, err := httpx.Cents(req.Cost, "cost")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	salvage, err := httpx.Cents(req.Salvage, "salvage")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	purchased, _ := time.Parse(time.DateOnly, req.PurchaseDate)
	asset, err := h.service.RegisterAsset(r.Context(), scope.TenantID, RegisterAssetInput{
		Name:                   req.Name,
		Category:               req.Category,
		PurchaseDate:           purchased,
		Cost:                   cost,
		Salvage:                salvage,
		UsefulLifeMonths:       req.UsefulLifeMonths,
		Method:                 Method(req.Method),
		AssetAccountCode:       req.AssetAccountCode,
		ExpenseAccountCode:     req.ExpenseAccountCode,
		AccumulatedAccountCode: req.AccumulatedAccountCode,
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, map[string]any{"asset_id": asset.ID, "asset": asset})
}

func (h *Handler) dispose(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req disposeRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	proceeds, err := httpx.Cents(req.Proceeds, "proceeds")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	date, _ := time.Parse(time.DateOnly, req.DisposalDate)
	disposal, err := h.service.Dispose(r.Context(), scope.TenantID, DisposeInput{
		AssetID:  req.AssetID,
		Date:     date,
		Proceeds: proceeds,
		Notes:    req.Notes,
		ActorID:  scope.UserID,
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"journal_id": disposal.JournalEntryID,
		"gain":       disposal.Gain,
		"loss":       disposal.Loss,
		"book_value": disposal.BookValue,
	})
}

func (h *Handler) runMonth(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req runRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	month, _ := time.Parse("2006-01", req.RunMonth)
	result, err := h.service.RunMonth(r.Context(), scope.TenantID, month, scope.UserID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"run_id":           result.RunID,
		"journal_entry_id": result.JournalEntryID,
		"total":            result.Total,
		"total_display":    result.Total.Display(),
		"lines":            result.Lines,
	})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	runs, err := h.service.ListRuns(r.Context(), scope.TenantID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	page, perPage := httpx.PageParams(r)
	items, meta := shared.Paginate(runs, page, perPage)
	httpx.OK(w, http.StatusOK, map[string]any{"items": items, "pagination": meta})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
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
	run, err := h.service.GetRun(r.Context(), scope.TenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, run)
}
