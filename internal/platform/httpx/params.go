package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Scope returns the tenant scope installed by the gateway middleware.
func Scope(r *http.Request) (shared.Scope, error) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		return shared.Scope{}, ErrUnauthorized
	}
	return scope, nil
}

// IDParam parses a positive integer route parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	return parseID(chi.URLParam(r, name), name)
}

// QueryID parses a positive integer query parameter.
func QueryID(r *http.Request, name string) (int64, error) {
	return parseID(r.URL.Query().Get(name), name)
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Errorf(shared.ErrValidation, "%s must be a positive integer", name)
	}
	return id, nil
}

// PageParams reads page and per_page. Missing or malformed values fall back to defaults.
func PageParams(r *http.Request) (page, perPage int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	perPage, _ = strconv.Atoi(q.Get("per_page"))
	return page, perPage
}
