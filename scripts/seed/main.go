package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/fixedassets"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/procurement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	demoTenant   int64 = 1
	demoSupplier int64 = 100
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	services, err := app.NewServices(cfg, pool, nil, nil, logger)
	if err != nil {
		log.Fatalf("init services: %v", err)
	}

	fmt.Println("→ Seeding chart of accounts...")
	if err := seedAccounts(ctx, services); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}
	fmt.Println("→ Seeding account mappings...")
	if err := seedMappings(ctx, services); err != nil {
		log.Fatalf("seed mappings: %v", err)
	}
	fmt.Println("→ Seeding periods...")
	if err := seedPeriods(ctx, services); err != nil {
		log.Fatalf("seed periods: %v", err)
	}
	fmt.Println("→ Seeding fixed assets...")
	if err := seedAssets(ctx, services); err != nil {
		log.Fatalf("seed assets: %v", err)
	}
	fmt.Println("→ Seeding procurement...")
	if err := seedProcurement(ctx, services); err != nil {
		log.Fatalf("seed procurement: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// ignoreExisting lets the seed run repeatedly.
func ignoreExisting(err error) error {
	if errors.Is(err, shared.ErrConflict) {
		return nil
	}
	return err
}

func seedAccounts(ctx context.Context, s *app.Services) error {
	chart := []struct {
		code string
		name string
		typ  accounts.AccountType
	}{
		{"1000", "Bank", accounts.AccountTypeAsset},
		{"1410", "Input VAT", accounts.AccountTypeAsset},
		{"1500", "Equipment", accounts.AccountTypeAsset},
		{"1590", "Accumulated depreciation", accounts.AccountTypeAsset},
		{"2000", "Accounts payable", accounts.AccountTypeLiability},
		{"3000", "Retained earnings", accounts.AccountTypeEquity},
		{"4900", "Gain on disposal", accounts.AccountTypeRevenue},
		{"5100", "Purchases", accounts.AccountTypeExpense},
		{"6100", "Depreciation expense", accounts.AccountTypeExpense},
		{"6900", "Loss on disposal", accounts.AccountTypeExpense},
	}
	for _, a := range chart {
		_, err := s.Accounts.Create(ctx, demoTenant, accounts.CreateInput{Code: a.code, Name: a.name, Type: a.typ})
		if err := ignoreExisting(err); err != nil {
			return fmt.Errorf("account %s: %w", a.code, err)
		}
	}
	return nil
}

func seedMappings(ctx context.Context, s *app.Services) error {
	roles := map[mappings.Role]string{
		mappings.RoleDepreciationExpense:     "6100",
		mappings.RoleAccumulatedDepreciation: "1590",
	}
	for role, code := range roles {
		if err := s.AccountsMap.SetRole(ctx, demoTenant, role, code); err != nil {
			return fmt.Errorf("role %s: %w", role, err)
		}
	}
	return nil
}

func seedPeriods(ctx context.Context, s *app.Services) error {
	year := time.Now().UTC().Year()
	for m := time.January; m <= time.December; m++ {
		start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		_, err := s.Periods.Create(ctx, demoTenant, periods.CreateInput{
			Code:      start.Format("2006-01"),
			StartDate: start,
			EndDate:   start.AddDate(0, 1, -1),
		})
		if err := ignoreExisting(err); err != nil {
			return fmt.Errorf("period %s: %w", start.Format("2006-01"), err)
		}
	}
	return nil
}

func seedAssets(ctx context.Context, s *app.Services) error {
	existing, err := s.FixedAssets.ListAssets(ctx, demoTenant)
	if err != nil || len(existing) > 0 {
		return err
	}
	purchased := time.Date(time.Now().UTC().Year(), time.January, 15, 0, 0, 0, 0, time.UTC)
	assets := []fixedassets.RegisterAssetInput{
		{Name: "Delivery van", Category: "vehicles", PurchaseDate: purchased, Cost: 36_000_00, Salvage: 6_000_00, UsefulLifeMonths: 60, Method: fixedassets.MethodStraightLine},
		{Name: "Laptop fleet", Category: "it", PurchaseDate: purchased, Cost: 12_000_00, UsefulLifeMonths: 36, Method: fixedassets.MethodDecliningBalance},
	}
	for _, in := range assets {
		in.AssetAccountCode = "1500"
		in.ExpenseAccountCode = "6100"
		in.AccumulatedAccountCode = "1590"
		if _, err := s.FixedAssets.RegisterAsset(ctx, demoTenant, in); err != nil {
			return fmt.Errorf("asset %s: %w", in.Name, err)
		}
	}
	return nil
}

func seedProcurement(ctx context.Context, s *app.Services) error {
	for i := 1; i <= 2; i++ {
		_, err := s.Procurement.CreatePurchaseOrder(ctx, demoTenant, procurement.CreatePurchaseOrderInput{
			SupplierID: demoSupplier,
			Number:     "PO-DEMO-" + strconv.Itoa(i),
			OrderDate:  time.Now().UTC(),
			Lines: []procurement.POLineInput{
				{Description: "Printer paper (box)", Qty: decimal.NewFromInt(int64(10 * i)), UnitPrice: 25_00},
				{Description: "Toner cartridge", Qty: decimal.NewFromInt(int64(2 * i)), UnitPrice: 80_00},
			},
		})
		if err := ignoreExisting(err); err != nil {
			return fmt.Errorf("purchase order %d: %w", i, err)
		}
	}
	return nil
}
