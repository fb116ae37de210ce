package mappings

import "time"

// Role names a ledger function resolved to an account code per tenant.
type Role string

const (
	RoleBank                    Role = "bank"
	RoleAccountsPayable         Role = "accounts-payable"
	RoleVATInput                Role = "vat-input"
	RoleGainOnDisposal          Role = "gain-on-disposal"
	RoleLossOnDisposal          Role = "loss-on-disposal"
	RoleDepreciationExpense     Role = "depreciation-expense"
	RoleAccumulatedDepreciation Role = "accumulated-depreciation"
)

// AccountMapping links a tenant role to a ledger account code.
type AccountMapping struct {
	TenantID    int64
	Role        Role
	AccountCode string
	UpdatedAt   time.Time
}

// AssetAccounts are the three accounts every fixed asset posts against.
type AssetAccounts struct {
	Asset       string
	Expense     string
	Accumulated string
}
