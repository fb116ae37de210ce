package journals

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records ledger activity in the posting transaction.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PeriodGuard refuses postings dated inside a locked period.
type PeriodGuard interface {
	EnsureOpen(ctx context.Context, tenantID int64, date time.Time) error
}

// PostingObserver receives the outcome of every posting attempt.
type PostingObserver interface {
	ObservePosting(module string, err error)
}

// Service is the only writer of journal entries.
type Service struct {
	repo     Repository
	audit    AuditPort
	guard    PeriodGuard
	observer PostingObserver
	logger   *slog.Logger
}

// NewService constructs the posting service.
func NewService(repo Repository, audit AuditPort, guard PeriodGuard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, guard: guard, logger: logger}
}

// WithObserver installs a posting observer.
func (s *Service) WithObserver(observer PostingObserver) *Service {
	s.observer = observer
	return s
}

// Post validates and writes one balanced entry. When ctx carries a transaction the
// entry commits or rolls back with the caller's work.
func (s *Service) Post(ctx context.Context, tenantID int64, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		s.observe(input.Source.Module, err)
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.post(ctx, tx, tenantID, input, nil)
		return err
	})
	s.observe(input.Source.Module, err)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (s *Service) post(ctx context.Context, tx TxRepository, tenantID int64, input PostingInput, reverses *int64) (JournalEntry, error) {
	if s.guard != nil {
		if err := s.guard.EnsureOpen(ctx, tenantID, input.Date); err != nil {
			return JournalEntry{}, err
		}
	}
	codes := distinctCodes(input.Lines)
	active, err := tx.ActiveAccountCodes(ctx, tenantID, codes)
	if err != nil {
		return JournalEntry{}, err
	}
	for _, code := range codes {
		if isActive, ok := active[code]; !ok || !isActive {
			return JournalEntry{}, shared.Errorf(shared.ErrConfiguration, "accounting: account %s is missing or inactive", code)
		}
	}
	number, err := tx.NextNumber(ctx, tenantID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry, err := tx.InsertEntry(ctx, tenantID, number, input, reverses)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = tx.InsertLines(ctx, entry.ID, input.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	if s.audit != nil {
		debit, _ := entry.Totals()
		action := "journal.post"
		if reverses != nil {
			action = "journal.reverse"
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  input.CreatedBy,
			Action:   action,
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"number": entry.Number,
				"source": input.Source.String(),
				"amount": int64(debit),
			},
		}); err != nil {
			return JournalEntry{}, err
		}
	}
	return entry, nil
}

// Reverse posts the mirror image of an entry. Each entry can be reversed once and
// reversal entries themselves cannot be reversed.
func (s *Service) Reverse(ctx context.Context, tenantID int64, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, shared.Errorf(shared.ErrValidation, "accounting: entry id required")
	}
	var reversal JournalEntry
	var module string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetWithLines(ctx, tenantID, input.EntryID)
		if err != nil {
			return err
		}
		if original.ReversesEntryID != nil {
			return shared.Errorf(shared.ErrInvalidState, "accounting: entry %d is itself a reversal", original.Number)
		}
		module = original.Source.Module
		date := original.Date
		if input.Date != nil {
			date = *input.Date
		}
		posting := PostingInput{
			Date:        date,
			Reference:   original.Reference,
			Description: defaultReversalMemo(input.Description, original.Number),
			Source: SourceRef{
				Module: original.Source.Module,
				Type:   original.Source.Type + ".reversal",
				ID:     original.Source.ID,
			},
			CreatedBy: input.ActorID,
			Lines:     reverseLines(original.Lines),
		}
		if err := posting.Validate(); err != nil {
			return err
		}
		reversal, err = s.post(ctx, tx, tenantID, posting, &original.ID)
		return err
	})
	s.observe(module, err)
	if err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

// Get returns an entry with its lines.
func (s *Service) Get(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return s.repo.Get(ctx, tenantID, entryID)
}

// ListBySource returns the entry posted for a document and any reversal of it.
func (s *Service) ListBySource(ctx context.Context, tenantID int64, source SourceRef) ([]JournalEntry, error) {
	return s.repo.ListBySource(ctx, tenantID, source)
}

// CheckIntegrity reports entries created since the cutoff that break double-entry rules.
func (s *Service) CheckIntegrity(ctx context.Context, since time.Time) ([]Imbalance, error) {
	found, err := s.repo.FindUnbalanced(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, im := range found {
		s.logger.Error("ledger integrity violation",
			slog.Int64("tenant_id", im.TenantID),
			slog.Int64("entry_id", im.EntryID),
			slog.Int64("number", im.Number),
			slog.String("debit", im.Debit.String()),
			slog.String("credit", im.Credit.String()),
			slog.Int("lines", im.Lines),
			slog.Any("error", accshared.ErrUnbalanced),
		)
	}
	return found, nil
}

func (s *Service) observe(module string, err error) {
	if s.observer != nil {
		s.observer.ObservePosting(module, err)
	}
}

func distinctCodes(lines []PostingLineInput) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountCode]; ok {
			continue
		}
		seen[l.AccountCode] = struct{}{}
		out = append(out, l.AccountCode)
	}
	sort.Strings(out)
	return out
}

func reverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountCode: line.AccountCode,
			Description: line.Description,
			Debit:       line.Credit,
			Credit:      line.Debit,
		})
	}
	return out
}

func defaultReversalMemo(memo string, number int64) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of JE %d", number)
}
