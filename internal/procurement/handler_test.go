package procurement

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newTestRouter(repo *memoryProcRepo) http.Handler {
	h := NewHandler(nil, NewService(repo, nil, nil))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithScope(r.Context(), shared.Scope{TenantID: 1, UserID: 5})))
		})
	})
	r.Route("/three-way", h.MountMatchRoutes)
	r.Route("/purchase-orders", h.MountPurchaseOrderRoutes)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerApplyMatches(t *testing.T) {
	repo := newMemoryProcRepo()
	po := repo.seedLine(SidePO, 3, "10")
	grn := repo.seedLine(SideGRN, 3, "10")
	router := newTestRouter(repo)

	body := fmt.Sprintf(`{"matches":[{"po_line_id":%d,"grn_line_id":%d,"qty":"4"}]}`, po, grn)
	rec := do(router, http.MethodPost, "/three-way/apply", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"ok":true,"data":{"inserted":1}}`, rec.Body.String())

	rec = do(router, http.MethodGet, "/three-way?supplier_id=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data struct {
			POLines []struct {
				ID int64 `json:"id"`
			} `json:"po_lines"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data.POLines, 1)
	require.Equal(t, po, env.Data.POLines[0].ID)
}

func TestHandlerRejectsOvercommit(t *testing.T) {
	repo := newMemoryProcRepo()
	po := repo.seedLine(SidePO, 3, "2")
	grn := repo.seedLine(SideGRN, 3, "10")
	router := newTestRouter(repo)

	body := fmt.Sprintf(`{"matches":[{"po_line_id":%d,"grn_line_id":%d,"qty":"5"}]}`, po, grn)
	rec := do(router, http.MethodPost, "/three-way/apply", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"match_validation_error"`)
	require.Empty(t, repo.matches)
}

func TestHandlerValidatesRequests(t *testing.T) {
	router := newTestRouter(newMemoryProcRepo())

	rec := do(router, http.MethodPost, "/three-way/apply", `{"matches":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/three-way?supplier_id=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/purchase-orders", `{"supplier_id":3,"lines":[{"description":"paper","qty":"1","unit_price":"1.234"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "lines[0].unit_price")
}

func TestHandlerCreatesPurchaseOrder(t *testing.T) {
	router := newTestRouter(newMemoryProcRepo())

	rec := do(router, http.MethodPost, "/purchase-orders", `{"supplier_id":3,"number":"PO-1","order_date":"2025-03-02","lines":[{"description":"paper","qty":"5","unit_price":"2.50"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env struct {
		Data struct {
			POID int64 `json:"po_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Positive(t, env.Data.POID)

	rec = do(router, http.MethodGet, fmt.Sprintf("/purchase-orders/%d", env.Data.POID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"PO-1"`)
}
