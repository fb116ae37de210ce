package journals

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// SourceRef names the business document a journal entry was posted for. Each
// document is posted at most once per tenant.
type SourceRef struct {
	Module string `json:"module"`
	Type   string `json:"type"`
	ID     string `json:"id"`
}

// String renders the ref as module/type/id.
func (s SourceRef) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Module, s.Type, s.ID)
}

// JournalEntry captures posting metadata. Entries are immutable once written.
type JournalEntry struct {
	ID              int64         `json:"id"`
	TenantID        int64         `json:"tenant_id"`
	Number          int64         `json:"number"`
	Date            time.Time     `json:"date"`
	Reference       string        `json:"reference"`
	Description     string        `json:"description"`
	Source          SourceRef     `json:"source"`
	ReversesEntryID *int64        `json:"reverses_entry_id,omitempty"`
	CreatedBy       int64         `json:"created_by,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Lines           []JournalLine `json:"lines,omitempty"`
}

// Totals sums both sides of the entry.
func (e JournalEntry) Totals() (debit, credit money.Cents) {
	for _, l := range e.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	return debit, credit
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64       `json:"id"`
	EntryID     int64       `json:"entry_id"`
	LineNo      int         `json:"line_no"`
	AccountCode string      `json:"account_code"`
	Description string      `json:"description"`
	Debit       money.Cents `json:"debit"`
	Credit      money.Cents `json:"credit"`
}

// Imbalance is an entry found violating double-entry rules by the integrity scan.
type Imbalance struct {
	TenantID int64
	EntryID  int64
	Number   int64
	Debit    money.Cents
	Credit   money.Cents
	Lines    int
}
