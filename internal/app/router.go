package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/ap"
	"github.com/odyssey-erp/odyssey-ledger/internal/fixedassets"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/procurement"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Metrics     *observability.Metrics
	Idempotency IdempotencyStore

	AccountsHandler    *accounts.Handler
	MappingsHandler    *mappings.Handler
	PeriodsHandler     *periods.Handler
	JournalsHandler    *journals.Handler
	FixedAssetsHandler *fixedassets.Handler
	APHandler          *ap.Handler
	ProcurementHandler *procurement.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(GatewayScope(params.Logger))
		r.Use(Idempotency(params.Idempotency, params.Logger))

		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.MappingsHandler != nil {
			r.Route("/account-mappings", params.MappingsHandler.MountRoutes)
		}
		if params.PeriodsHandler != nil {
			r.Route("/periods", params.PeriodsHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journals", params.JournalsHandler.MountRoutes)
		}
		if params.FixedAssetsHandler != nil {
			r.Route("/fixed-assets", params.FixedAssetsHandler.MountAssetRoutes)
			r.Route("/depreciation", params.FixedAssetsHandler.MountDepreciationRoutes)
		}
		if params.APHandler != nil {
			r.Route("/bills", params.APHandler.MountBillRoutes)
			r.Route("/payments", params.APHandler.MountPaymentRoutes)
			r.Route("/vendor-credits", params.APHandler.MountCreditRoutes)
		}
		if params.ProcurementHandler != nil {
			r.Route("/three-way", params.ProcurementHandler.MountMatchRoutes)
			r.Route("/purchase-orders", params.ProcurementHandler.MountPurchaseOrderRoutes)
			r.Route("/goods-receipts", params.ProcurementHandler.MountGoodsReceiptRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "not_found", "route not found")
	})

	return r
}
