package shared

import base "github.com/odyssey-erp/odyssey-ledger/internal/shared"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = base.Errorf(base.ErrUnbalancedEntry, "accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = base.Errorf(base.ErrUnbalancedEntry, "accounting: journal requires at least two lines")
	// ErrLineNotSingleSided indicates a line carrying both or neither side.
	ErrLineNotSingleSided = base.Errorf(base.ErrUnbalancedEntry, "accounting: journal line must carry exactly one positive side")
	// ErrPeriodLocked indicates locked period.
	ErrPeriodLocked = base.Errorf(base.ErrPeriodLocked, "accounting: period locked")
	// ErrSourceAlreadyPosted indicates the business document already has an entry.
	ErrSourceAlreadyPosted = base.Errorf(base.ErrConflict, "accounting: source already posted")
	// ErrAlreadyReversed indicates the entry already has a reversal.
	ErrAlreadyReversed = base.Errorf(base.ErrConflict, "accounting: entry already reversed")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = base.Errorf(base.ErrNotFound, "accounting: journal entry not found")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = base.Errorf(base.ErrNotFound, "accounting: account not found")
	// ErrPeriodNotFound indicates missing period.
	ErrPeriodNotFound = base.Errorf(base.ErrNotFound, "accounting: period not found")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = base.Errorf(base.ErrConfiguration, "accounting: account mapping not found")
)
