package mappings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes role mappings over JSON.
type Handler struct {
	accounts *AccountsMap
	decoder  *httpx.Decoder
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, accounts *AccountsMap) *Handler {
	return &Handler{accounts: accounts, decoder: httpx.NewDecoder(), logger: logger}
}

// MountRoutes attaches mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/{role}", h.set)
}

type setRequest struct {
	AccountCode string `json:"account_code" validate:"required,max=32"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	list, err := h.accounts.List(r.Context(), scope.TenantID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req setRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	role := Role(chi.URLParam(r, "role"))
	if err := h.accounts.SetRole(r.Context(), scope.TenantID, role, req.AccountCode); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]string{"role": string(role), "account_code": req.AccountCode})
}
