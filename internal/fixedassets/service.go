package fixedassets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const sourceModule = "fixedassets"

// Service owns the asset register, the depreciation engine and disposals.
type Service struct {
	repo     Repository
	ledger   Ledger
	accounts AccountResolver
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs the fixed asset service.
func NewService(repo Repository, ledger Ledger, accounts AccountResolver, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, accounts: accounts, audit: audit, logger: logger}
}

// RegisterAsset adds an asset to the register.
func (s *Service) RegisterAsset(ctx context.Context, tenantID int64, in RegisterAssetInput) (Asset, error) {
	if err := in.Validate(); err != nil {
		return Asset{}, err
	}
	return s.repo.InsertAsset(ctx, tenantID, in)
}

// GetAsset returns one asset.
func (s *Service) GetAsset(ctx context.Context, tenantID, id int64) (Asset, error) {
	return s.repo.GetAsset(ctx, tenantID, id)
}

// ListAssets returns the tenant's asset register.
func (s *Service) ListAssets(ctx context.Context, tenantID int64) ([]Asset, error) {
	return s.repo.ListAssets(ctx, tenantID)
}

// ActiveTenants lists tenants with assets still depreciating.
func (s *Service) ActiveTenants(ctx context.Context) ([]int64, error) {
	return s.repo.ActiveTenants(ctx)
}

// ListRuns returns depreciation runs, newest month first.
func (s *Service) ListRuns(ctx context.Context, tenantID int64) ([]DepreciationRun, error) {
	return s.repo.ListRuns(ctx, tenantID)
}

// GetRun returns a run with its lines.
func (s *Service) GetRun(ctx context.Context, tenantID, runID int64) (DepreciationRun, error) {
	return s.repo.GetRun(ctx, tenantID, runID)
}

// RunMonth computes and posts depreciation for one month. A draft left by an earlier
// failed attempt is discarded and recomputed; a posted month fails with ErrDuplicateRun.
func (s *Service) RunMonth(ctx context.Context, tenantID int64, month time.Time, actorID int64) (RunResult, error) {
	month = FirstOfMonth(month)
	var run DepreciationRun
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockMonth(ctx, tenantID, month); err != nil {
			return err
		}
		existing, found, err := tx.RunForMonth(ctx, tenantID, month)
		if err != nil {
			return err
		}
		if found {
			if existing.Status == RunPosted {
				return shared.Errorf(shared.ErrDuplicateRun, "fixedassets: depreciation already posted for %s", month.Format("2006-01"))
			}
			if err := tx.DiscardDraft(ctx, existing.ID); err != nil {
				return err
			}
			s.logger.Info("discarded draft depreciation run",
				slog.Int64("tenant_id", tenantID), slog.Int64("run_id", existing.ID), slog.String("month", month.Format("2006-01")))
		}
		assets, err := tx.LockDepreciableAssets(ctx, tenantID, LastOfMonth(month))
		if err != nil {
			return err
		}
		var lines []DepreciationLine
		var total money.Cents
		for _, asset := range assets {
			charge := MonthlyCharge(asset, month)
			if charge <= 0 {
				continue
			}
			if _, _, err := s.depreciationAccounts(ctx, tenantID, asset.ExpenseAccountCode, asset.AccumulatedAccountCode); err != nil {
				return err
			}
			lines = append(lines, DepreciationLine{AssetID: asset.ID, Amount: charge})
			total += charge
		}
		if len(lines) == 0 {
			return shared.Errorf(shared.ErrNothingToDepreciate, "fixedassets: nothing to depreciate for %s", month.Format("2006-01"))
		}
		run, err = tx.InsertRun(ctx, DepreciationRun{TenantID: tenantID, RunMonth: month, Status: RunDraft, Total: total, CreatedBy: actorID})
		if err != nil {
			return err
		}
		run.Lines, err = tx.InsertLines(ctx, run.ID, lines)
		return err
	})
	if err != nil {
		return RunResult{}, err
	}

	journalID, err := s.postRun(ctx, tenantID, run.ID, actorID)
	if err != nil {
		var postErr *LedgerPostError
		if errors.As(err, &postErr) {
			s.logger.Warn("depreciation journal pending",
				slog.Int64("tenant_id", tenantID), slog.Int64("run_id", run.ID),
				slog.Bool("retryable", postErr.Retryable), slog.Any("error", postErr.Err))
		}
		return RunResult{}, err
	}
	s.logger.Info("depreciation posted",
		slog.Int64("tenant_id", tenantID), slog.Int64("run_id", run.ID),
		slog.String("month", month.Format("2006-01")), slog.String("total", run.Total.String()), slog.Int("assets", len(run.Lines)))
	return RunResult{RunID: run.ID, JournalEntryID: journalID, Total: run.Total, Lines: run.Lines}, nil
}

func (s *Service) postRun(ctx context.Context, tenantID, runID, actorID int64) (int64, error) {
	var journalID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		run, err := tx.LockRun(ctx, tenantID, runID)
		if err != nil {
			return err
		}
		if run.Status == RunPosted && run.JournalEntryID != nil {
			journalID = *run.JournalEntryID
			return nil
		}
		lines, err := tx.RunLines(ctx, runID)
		if err != nil {
			return err
		}
		for i := range lines {
			lines[i].expenseCode, lines[i].accumulatedCode, err = s.depreciationAccounts(ctx, tenantID, lines[i].expenseCode, lines[i].accumulatedCode)
			if err != nil {
				return wrapLedgerPostError(runID, err)
			}
		}
		entry, err := s.ledger.Post(ctx, tenantID, journals.PostingInput{
			Date:        LastOfMonth(run.RunMonth),
			Reference:   fmt.Sprintf("DEP-%s", run.RunMonth.Format("2006-01")),
			Description: fmt.Sprintf("Depreciation %s", run.RunMonth.Format("January 2006")),
			Source:      journals.SourceRef{Module: sourceModule, Type: "depreciation_run", ID: fmt.Sprintf("%d", run.ID)},
			CreatedBy:   actorID,
			Lines:       depreciationPostingLines(lines),
		})
		if err != nil {
			return wrapLedgerPostError(runID, err)
		}
		if err := tx.MarkRunPosted(ctx, runID, entry.ID); err != nil {
			return err
		}
		journalID = entry.ID
		return s.record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actorID,
			Action:   "depreciation.post",
			Entity:   "depreciation_run",
			EntityID: fmt.Sprintf("%d", runID),
			Meta:     map[string]any{"month": run.RunMonth.Format("2006-01"), "total": int64(run.Total), "journal_entry_id": entry.ID},
		})
	})
	return journalID, err
}

// depreciationPostingLines aggregates the charges per expense and accumulated account.
func depreciationPostingLines(lines []DepreciationLine) []journals.PostingLineInput {
	expense := map[string]money.Cents{}
	accumulated := map[string]money.Cents{}
	for _, l := range lines {
		expense[l.expenseCode] += l.Amount
		accumulated[l.accumulatedCode] += l.Amount
	}
	out := make([]journals.PostingLineInput, 0, len(expense)+len(accumulated))
	for _, code := range sortedKeys(expense) {
		out = append(out, journals.Debit(code, expense[code], "Depreciation expense"))
	}
	for _, code := range sortedKeys(accumulated) {
		out = append(out, journals.Credit(code, accumulated[code], "Accumulated depreciation"))
	}
	return out
}

// Dispose retires an asset and posts the disposal journal in one transaction.
func (s *Service) Dispose(ctx context.Context, tenantID int64, in DisposeInput) (Disposal, error) {
	if in.AssetID <= 0 {
		return Disposal{}, shared.Errorf(shared.ErrValidation, "fixedassets: asset id required")
	}
	if in.Date.IsZero() {
		return Disposal{}, shared.Errorf(shared.ErrValidation, "fixedassets: disposal date required")
	}
	if in.Proceeds < 0 {
		return Disposal{}, shared.Errorf(shared.ErrValidation, "fixedassets: proceeds cannot be negative")
	}
	var disposal Disposal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.LockAsset(ctx, tenantID, in.AssetID)
		if err != nil {
			return err
		}
		if asset.Status != AssetActive {
			return shared.Errorf(shared.ErrInvalidState, "fixedassets: asset %d is %s", asset.ID, asset.Status)
		}
		if in.Date.Before(asset.PurchaseDate) {
			return shared.Errorf(shared.ErrValidation, "fixedassets: disposal date before purchase date")
		}
		pending, err := tx.HasDraftLines(ctx, asset.ID)
		if err != nil {
			return err
		}
		if pending {
			return shared.Errorf(shared.ErrInvalidState, "fixedassets: asset %d has an unposted depreciation run", asset.ID)
		}
		codes, err := s.accounts.ResolveAssetAccounts(asset.ID, assetAccounts(asset))
		if err != nil {
			return err
		}
		bank, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleBank, "")
		if err != nil {
			return err
		}
		gainCode, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleGainOnDisposal, "")
		if err != nil {
			return err
		}
		lossCode, err := s.accounts.ResolveRole(ctx, tenantID, mappings.RoleLossOnDisposal, "")
		if err != nil {
			return err
		}

		bookValue := asset.BookValue()
		diff := in.Proceeds - bookValue
		gain := money.Max(diff, 0)
		loss := money.Max(-diff, 0)

		entry, err := s.ledger.Post(ctx, tenantID, journals.PostingInput{
			Date:        in.Date,
			Reference:   fmt.Sprintf("FA-%d", asset.ID),
			Description: fmt.Sprintf("Disposal of %s", asset.Name),
			Source:      journals.SourceRef{Module: sourceModule, Type: "disposal", ID: fmt.Sprintf("%d", asset.ID)},
			CreatedBy:   in.ActorID,
			Lines: journals.NonZero(
				journals.Debit(bank, in.Proceeds, "Disposal proceeds"),
				journals.Debit(codes.Accumulated, asset.Accumulated, "Accumulated depreciation"),
				journals.Debit(lossCode, loss, "Loss on disposal"),
				journals.Credit(codes.Asset, asset.Cost, "Asset cost"),
				journals.Credit(gainCode, gain, "Gain on disposal"),
			),
		})
		if err != nil {
			return err
		}
		if err := tx.MarkDisposed(ctx, asset.ID, in.Date, in.Proceeds, entry.ID); err != nil {
			return err
		}
		disposal, err = tx.InsertDisposal(ctx, Disposal{
			TenantID:       tenantID,
			AssetID:        asset.ID,
			Date:           in.Date,
			Proceeds:       in.Proceeds,
			BookValue:      bookValue,
			Gain:           gain,
			Loss:           loss,
			Notes:          in.Notes,
			JournalEntryID: entry.ID,
			CreatedBy:      in.ActorID,
		})
		if err != nil {
			return err
		}
		return s.record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  in.ActorID,
			Action:   "asset.dispose",
			Entity:   "fixed_asset",
			EntityID: fmt.Sprintf("%d", asset.ID),
			Meta: map[string]any{
				"proceeds":         int64(in.Proceeds),
				"book_value":       int64(bookValue),
				"gain":             int64(gain),
				"loss":             int64(loss),
				"journal_entry_id": entry.ID,
			},
		})
	})
	if err != nil {
		return Disposal{}, err
	}
	return disposal, nil
}

// depreciationAccounts falls back to the tenant's depreciation roles when an asset
// carries no expense or accumulated account of its own.
func (s *Service) depreciationAccounts(ctx context.Context, tenantID int64, expense, accumulated string) (string, string, error) {
	var err error
	if expense == "" {
		if expense, err = s.accounts.ResolveRole(ctx, tenantID, mappings.RoleDepreciationExpense, ""); err != nil {
			return "", "", err
		}
	}
	if accumulated == "" {
		if accumulated, err = s.accounts.ResolveRole(ctx, tenantID, mappings.RoleAccumulatedDepreciation, ""); err != nil {
			return "", "", err
		}
	}
	return expense, accumulated, nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, log)
}

func assetAccounts(a Asset) mappings.AssetAccounts {
	return mappings.AssetAccounts{
		Asset:       a.AssetAccountCode,
		Expense:     a.ExpenseAccountCode,
		Accumulated: a.AccumulatedAccountCode,
	}
}

func sortedKeys(m map[string]money.Cents) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
