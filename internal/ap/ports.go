package ap

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Ledger posts journal entries inside the caller's transaction.
type Ledger interface {
	Post(ctx context.Context, tenantID int64, input journals.PostingInput) (journals.JournalEntry, error)
}

// RoleResolver maps ledger roles to account codes.
type RoleResolver interface {
	ResolveRole(ctx context.Context, tenantID int64, role mappings.Role, fallbackCode string) (string, error)
}

// AuditPort records AP activity.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
