package periods

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes the period lifecycle over JSON.
type Handler struct {
	service *Service
	decoder *httpx.Decoder
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, decoder: httpx.NewDecoder(), logger: logger}
}

// MountRoutes attaches period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}/close", h.close)
	r.Post("/{id}/lock", h.lock)
	r.Post("/{id}/reopen", h.reopen)
}

type createRequest struct {
	Code      string `json:"code" validate:"omitempty,max=16"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type reopenRequest struct {
	Override bool `json:"override"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	list, err := h.service.List(r.Context(), scope.TenantID)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
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
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	period, err := h.service.Create(r.Context(), scope.TenantID, CreateInput{Code: req.Code, StartDate: start, EndDate: end})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, period)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(scope shared.Scope, id int64) (Period, error) {
		return h.service.Close(r.Context(), scope.TenantID, id, scope.UserID)
	})
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(scope shared.Scope, id int64) (Period, error) {
		return h.service.Lock(r.Context(), scope.TenantID, id, scope.UserID)
	})
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	var req reopenRequest
	if r.ContentLength > 0 {
		if err := h.decoder.DecodeJSON(r, &req); err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
	}
	h.transition(w, r, func(scope shared.Scope, id int64) (Period, error) {
		return h.service.Reopen(r.Context(), scope.TenantID, id, scope.UserID, req.Override)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(shared.Scope, int64) (Period, error)) {
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
	period, err := fn(scope, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, period)
}
