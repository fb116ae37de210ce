package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountsMap resolves ledger roles and asset accounts to account codes.
type AccountsMap struct {
	repo     Repository
	defaults Defaults
}

// NewAccountsMap constructs the resolver.
func NewAccountsMap(repo Repository, defaults Defaults) *AccountsMap {
	return &AccountsMap{repo: repo, defaults: defaults}
}

// ResolveRole returns the tenant mapping for role, else fallbackCode, else the
// default table entry. A missing mapping only fails when no fallback exists at all.
func (m *AccountsMap) ResolveRole(ctx context.Context, tenantID int64, role Role, fallbackCode string) (string, error) {
	code, err := m.repo.Get(ctx, tenantID, role)
	switch {
	case err == nil && code != "":
		return code, nil
	case err != nil && !errors.Is(err, accshared.ErrMappingNotFound):
		return "", fmt.Errorf("mappings: resolve %s: %w", role, err)
	}
	if fallback := strings.TrimSpace(fallbackCode); fallback != "" {
		return fallback, nil
	}
	if code, ok := m.defaults.Lookup(role); ok {
		return code, nil
	}
	return "", shared.Errorf(shared.ErrConfiguration, "mappings: no account mapped for role %s", role)
}

// ResolveAssetAccounts checks that an asset carries all three account codes.
func (m *AccountsMap) ResolveAssetAccounts(assetID int64, codes AssetAccounts) (AssetAccounts, error) {
	var missing []string
	if strings.TrimSpace(codes.Asset) == "" {
		missing = append(missing, "asset")
	}
	if strings.TrimSpace(codes.Expense) == "" {
		missing = append(missing, "depreciation expense")
	}
	if strings.TrimSpace(codes.Accumulated) == "" {
		missing = append(missing, "accumulated depreciation")
	}
	if len(missing) > 0 {
		return AssetAccounts{}, shared.Errorf(shared.ErrConfiguration, "mappings: asset %d missing %s account", assetID, strings.Join(missing, ", "))
	}
	return codes, nil
}

// SetRole maps role to code for the tenant.
func (m *AccountsMap) SetRole(ctx context.Context, tenantID int64, role Role, code string) error {
	code = strings.TrimSpace(code)
	if role == "" || code == "" {
		return shared.Errorf(shared.ErrValidation, "mappings: role and account code required")
	}
	return m.repo.Upsert(ctx, AccountMapping{TenantID: tenantID, Role: role, AccountCode: code})
}

// List returns the tenant's explicit mappings.
func (m *AccountsMap) List(ctx context.Context, tenantID int64) ([]AccountMapping, error) {
	return m.repo.List(ctx, tenantID)
}
