package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes the chart of accounts over JSON.
type Handler struct {
	service *Service
	decoder *httpx.Decoder
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, decoder: httpx.NewDecoder(), logger: logger}
}

// MountRoutes attaches account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}/parent", h.move)
	r.Post("/{id}/active", h.setActive)
	r.Delete("/{id}", h.delete)
}

type createRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=200"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type moveRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	tree, err := h.service.Tree(r.Context(), scope.TenantID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, tree.Nested())
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req createRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	acct, err := h.service.Create(r.Context(), scope.TenantID, CreateInput{
		Code:     req.Code,
		Name:     req.Name,
		Type:     AccountType(req.Type),
		ParentID: req.ParentID,
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, acct)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
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
	var req moveRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := h.service.Move(r.Context(), scope.TenantID, id, req.ParentID); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "parent_id": req.ParentID})
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
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
	var req activeRequest
	if err := h.decoder.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if err := h.service.SetActive(r.Context(), scope.TenantID, id, req.Active); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "active": req.Active})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Delete(r.Context(), scope.TenantID, id); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
