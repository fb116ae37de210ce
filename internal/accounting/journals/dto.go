package journals

import (
	"fmt"
	"strings"
	"time"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountCode string
	Description string
	Debit       money.Cents
	Credit      money.Cents
}

// Debit builds a debit line.
func Debit(code string, amount money.Cents, description string) PostingLineInput {
	return PostingLineInput{AccountCode: code, Debit: amount, Description: description}
}

// Credit builds a credit line.
func Credit(code string, amount money.Cents, description string) PostingLineInput {
	return PostingLineInput{AccountCode: code, Credit: amount, Description: description}
}

// NonZero drops lines whose amounts are not positive. Callers build their lines
// unconditionally and filter here before posting.
func NonZero(lines ...PostingLineInput) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, l := range lines {
		if l.Debit > 0 || l.Credit > 0 {
			out = append(out, l)
		}
	}
	return out
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Date        time.Time
	Reference   string
	Description string
	Source      SourceRef
	CreatedBy   int64
	Lines       []PostingLineInput
}

// Validate enforces the double-entry rules: two or more single-sided lines whose
// debits and credits are equal to the cent.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return shared.Errorf(shared.ErrValidation, "accounting: entry date required")
	}
	if in.Source.Module == "" || in.Source.Type == "" || in.Source.ID == "" {
		return shared.Errorf(shared.ErrValidation, "accounting: source module, type and id required")
	}
	if len(in.Lines) < 2 {
		return accshared.ErrTooFewLines
	}
	var debit, credit money.Cents
	for idx, line := range in.Lines {
		if strings.TrimSpace(line.AccountCode) == "" {
			return shared.Errorf(shared.ErrValidation, "accounting: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 || (line.Debit > 0) == (line.Credit > 0) {
			return fmt.Errorf("line %d: %w", idx, accshared.ErrLineNotSingleSided)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return fmt.Errorf("debit %s credit %s: %w", debit.Display(), credit.Display(), accshared.ErrUnbalanced)
	}
	return nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Date        *time.Time
	Description string
}
