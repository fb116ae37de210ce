package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/ap"
	"github.com/odyssey-erp/odyssey-ledger/internal/fixedassets"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/procurement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Services is the wired domain layer shared by the server, the worker and ledgerctl.
type Services struct {
	Accounts    *accounts.Service
	AccountsMap *mappings.AccountsMap
	Periods     *periods.Service
	Journals    *journals.Service
	FixedAssets *fixedassets.Service
	AP          *ap.Service
	Procurement *procurement.Service
	Idempotency *shared.IdempotencyStore
}

// NewServices builds every domain service on one pool. Account mappings are read
// through redis when a client is supplied.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient redis.UniversalClient, metrics *observability.Metrics, logger *slog.Logger) (*Services, error) {
	defaults, err := mappings.LoadDefaults(cfg.AccountRolesFile)
	if err != nil {
		return nil, fmt.Errorf("load account roles: %w", err)
	}

	runner := db.NewRunner(pool)
	audit := shared.NewAuditLogger(pool)

	var mappingRepo mappings.Repository = mappings.NewRepository(runner)
	if redisClient != nil {
		mappingRepo = mappings.NewCachedRepository(mappingRepo, redisClient, cfg.MappingCacheTTL)
	}
	accountService := accounts.NewService(accounts.NewRepository(runner))
	accountsMap := mappings.NewAccountsMap(mappingRepo, defaults)

	periodService := periods.NewService(periods.NewRepository(runner), audit, logger)
	journalService := journals.NewService(journals.NewRepository(runner), audit, periodService, logger)
	if metrics != nil {
		journalService = journalService.WithObserver(metrics)
	}

	return &Services{
		Accounts:    accountService,
		AccountsMap: accountsMap,
		Periods:     periodService,
		Journals:    journalService,
		FixedAssets: fixedassets.NewService(fixedassets.NewRepository(runner), journalService, accountsMap, audit, logger),
		AP:          ap.NewService(ap.NewRepository(runner), journalService, accountsMap, audit, logger),
		Procurement: procurement.NewService(procurement.NewRepository(runner), audit, logger),
		Idempotency: shared.NewIdempotencyStore(pool),
	}, nil
}

// Handlers builds the HTTP handlers for the services.
func (s *Services) Handlers(params RouterParams) RouterParams {
	params.AccountsHandler = accounts.NewHandler(params.Logger, s.Accounts)
	params.MappingsHandler = mappings.NewHandler(params.Logger, s.AccountsMap)
	params.PeriodsHandler = periods.NewHandler(params.Logger, s.Periods)
	params.JournalsHandler = journals.NewHandler(params.Logger, s.Journals)
	params.FixedAssetsHandler = fixedassets.NewHandler(params.Logger, s.FixedAssets)
	params.APHandler = ap.NewHandler(params.Logger, s.AP)
	params.ProcurementHandler = procurement.NewHandler(params.Logger, s.Procurement)
	params.Idempotency = s.Idempotency
	return params
}
