package fixedassets

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Method selects how an asset is depreciated.
type Method string

const (
	MethodStraightLine     Method = "STRAIGHT_LINE"
	MethodDecliningBalance Method = "DECLINING_BALANCE"
)

// Valid reports whether the method is known.
func (m Method) Valid() bool {
	return m == MethodStraightLine || m == MethodDecliningBalance
}

// AssetStatus enumerates asset lifecycle states. DISPOSED is terminal.
type AssetStatus string

const (
	AssetActive   AssetStatus = "ACTIVE"
	AssetDisposed AssetStatus = "DISPOSED"
)

// RunStatus enumerates depreciation run states.
type RunStatus string

const (
	RunDraft  RunStatus = "DRAFT"
	RunPosted RunStatus = "POSTED"
)

// Asset is a depreciable fixed asset.
type Asset struct {
	ID                     int64        `json:"id"`
	TenantID               int64        `json:"tenant_id"`
	Name                   string       `json:"name"`
	Category               string       `json:"category"`
	PurchaseDate           time.Time    `json:"purchase_date"`
	Cost                   money.Cents  `json:"cost_cents"`
	Salvage                money.Cents  `json:"salvage_cents"`
	UsefulLifeMonths       int          `json:"useful_life_months"`
	Method                 Method       `json:"method"`
	AssetAccountCode       string       `json:"asset_account_code"`
	ExpenseAccountCode     string       `json:"expense_account_code"`
	AccumulatedAccountCode string       `json:"accumulated_account_code"`
	Accumulated            money.Cents  `json:"accumulated_cents"`
	Status                 AssetStatus  `json:"status"`
	DisposalDate           *time.Time   `json:"disposal_date,omitempty"`
	DisposalProceeds       *money.Cents `json:"disposal_proceeds_cents,omitempty"`
	DisposalJournalID      *int64       `json:"disposal_journal_id,omitempty"`
}

// BookValue is cost less accumulated depreciation.
func (a Asset) BookValue() money.Cents {
	return a.Cost - a.Accumulated
}

// DepreciableBase is cost less salvage.
func (a Asset) DepreciableBase() money.Cents {
	return a.Cost - a.Salvage
}

// DepreciationRun is one tenant month of depreciation.
type DepreciationRun struct {
	ID             int64              `json:"id"`
	TenantID       int64              `json:"tenant_id"`
	RunMonth       time.Time          `json:"run_month"`
	Status         RunStatus          `json:"status"`
	Total          money.Cents        `json:"total_cents"`
	JournalEntryID *int64             `json:"journal_entry_id,omitempty"`
	CreatedBy      int64              `json:"created_by,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	PostedAt       *time.Time         `json:"posted_at,omitempty"`
	Lines          []DepreciationLine `json:"lines,omitempty"`
}

// DepreciationLine is the charge for one asset within a run.
type DepreciationLine struct {
	ID      int64       `json:"id"`
	RunID   int64       `json:"run_id"`
	AssetID int64       `json:"asset_id"`
	Amount  money.Cents `json:"amount_cents"`

	expenseCode     string
	accumulatedCode string
}

// RunResult summarises a completed depreciation run.
type RunResult struct {
	RunID          int64              `json:"run_id"`
	JournalEntryID int64              `json:"journal_entry_id"`
	Total          money.Cents        `json:"total_cents"`
	Lines          []DepreciationLine `json:"lines"`
}

// Disposal records the outcome of retiring an asset.
type Disposal struct {
	ID             int64       `json:"id"`
	TenantID       int64       `json:"tenant_id"`
	AssetID        int64       `json:"asset_id"`
	Date           time.Time   `json:"disposal_date"`
	Proceeds       money.Cents `json:"proceeds_cents"`
	BookValue      money.Cents `json:"book_value_cents"`
	Gain           money.Cents `json:"gain_cents"`
	Loss           money.Cents `json:"loss_cents"`
	Notes          string      `json:"notes"`
	JournalEntryID int64       `json:"journal_entry_id"`
	CreatedBy      int64       `json:"created_by,omitempty"`
}

// RegisterAssetInput captures a new asset.
type RegisterAssetInput struct {
	Name                   string
	Category               string
	PurchaseDate           time.Time
	Cost                   money.Cents
	Salvage                money.Cents
	UsefulLifeMonths       int
	Method                 Method
	AssetAccountCode       string
	ExpenseAccountCode     string
	AccumulatedAccountCode string
}

// Validate checks the asset attributes.
func (in RegisterAssetInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return shared.Errorf(shared.ErrValidation, "fixedassets: name required")
	case in.PurchaseDate.IsZero():
		return shared.Errorf(shared.ErrValidation, "fixedassets: purchase date required")
	case in.Cost <= 0:
		return shared.Errorf(shared.ErrValidation, "fixedassets: cost must be positive")
	case in.Salvage < 0 || in.Salvage > in.Cost:
		return shared.Errorf(shared.ErrValidation, "fixedassets: salvage must be between 0 and cost")
	case in.UsefulLifeMonths <= 0:
		return shared.Errorf(shared.ErrValidation, "fixedassets: useful life must be positive")
	case !in.Method.Valid():
		return shared.Errorf(shared.ErrValidation, "fixedassets: unknown method %q", in.Method)
	case strings.TrimSpace(in.AssetAccountCode) == "" || strings.TrimSpace(in.ExpenseAccountCode) == "" || strings.TrimSpace(in.AccumulatedAccountCode) == "":
		return shared.Errorf(shared.ErrValidation, "fixedassets: asset, expense and accumulated account codes required")
	}
	return nil
}

// DisposeInput captures a disposal request.
type DisposeInput struct {
	AssetID  int64
	Date     time.Time
	Proceeds money.Cents
	Notes    string
	ActorID  int64
}

// FirstOfMonth normalises t to the first day of its month in UTC.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// LastOfMonth returns the last day of t's month in UTC.
func LastOfMonth(t time.Time) time.Time {
	return FirstOfMonth(t).AddDate(0, 1, -1)
}
