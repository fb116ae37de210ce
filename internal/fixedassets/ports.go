package fixedassets

//go:generate mockgen -source=ports.go -destination=ledger_mock.go -package=fixedassets

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Ledger posts journal entries. Posting joins the transaction carried by ctx.
type Ledger interface {
	Post(ctx context.Context, tenantID int64, input journals.PostingInput) (journals.JournalEntry, error)
}

// AccountResolver resolves ledger roles and asset account codes.
type AccountResolver interface {
	ResolveRole(ctx context.Context, tenantID int64, role mappings.Role, fallbackCode string) (string, error)
	ResolveAssetAccounts(assetID int64, codes mappings.AssetAccounts) (mappings.AssetAccounts, error)
}

// AuditPort records asset activity.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
