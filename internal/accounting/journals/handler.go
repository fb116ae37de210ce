package journals

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes read access to journals and the reversal command.
type Handler struct {
	service *Service
	decoder *httpx.Decoder
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, decoder: httpx.NewDecoder()}
}

// MountRoutes attaches journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listBySource)
	r.Get("/{id}", h.get)
	r.Post("/{id}/reverse", h.reverse)
}

type reverseRequest struct {
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=256"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
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
	entry, err := h.service.Get(r.Context(), scope.TenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, entry)
}

func (h *Handler) listBySource(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	source := SourceRef{
		Module: strings.TrimSpace(q.Get("source_module")),
		Type:   strings.TrimSpace(q.Get("source_type")),
		ID:     strings.TrimSpace(q.Get("source_id")),
	}
	if source.Module == "" || source.Type == "" || source.ID == "" {
		httpx.Fail(w, h.logger, shared.Errorf(shared.ErrValidation, "source_module, source_type and source_id are required"))
		return
	}
	entries, err := h.service.ListBySource(r.Context(), scope.TenantID, source)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, entries)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
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
	var req reverseRequest
	if r.ContentLength > 0 {
		if err := h.decoder.DecodeJSON(r, &req); err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
	}
	input := ReverseInput{EntryID: id, ActorID: scope.UserID, Description: req.Description}
	if req.Date != "" {
		date, _ := time.Parse(time.DateOnly, req.Date)
		input.Date = &date
	}
	entry, err := h.service.Reverse(r.Context(), scope.TenantID, input)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, entry)
}
