package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/fixedassets"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	depTenant int64
	depMonth  string
	depActor  int64
)

var depreciationCmd = &cobra.Command{
	Use:   "depreciation",
	Short: "Run fixed asset depreciation",
}

var depreciationRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Depreciate one tenant for one month and post the journal",
	Long: `Computes and posts depreciation for every active asset of a tenant.

A month that is already posted is reported and left untouched. A draft left by a
failed posting is recomputed and posted again.

Example:
  ledgerctl depreciation run --tenant 1 --month 2025-03`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if depTenant <= 0 {
			return errors.New("--tenant is required")
		}
		month, err := time.Parse("2006-01", depMonth)
		if err != nil {
			return fmt.Errorf("--month must be YYYY-MM: %w", err)
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.services.FixedAssets.RunMonth(cmd.Context(), depTenant, month, depActor)
		var postErr *fixedassets.LedgerPostError
		switch {
		case errors.Is(err, shared.ErrDuplicateRun):
			fmt.Fprintf(cmd.OutOrStdout(), "%s already posted for tenant %d\n", depMonth, depTenant)
			return nil
		case errors.Is(err, shared.ErrNothingToDepreciate):
			fmt.Fprintf(cmd.OutOrStdout(), "nothing to depreciate for tenant %d in %s\n", depTenant, depMonth)
			return nil
		case errors.As(err, &postErr):
			return fmt.Errorf("run %d saved as draft: %w", postErr.RunID, err)
		case err != nil:
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %d posted as journal entry %d, total %s\n", result.RunID, result.JournalEntryID, result.Total.Display())
		for _, line := range result.Lines {
			fmt.Fprintf(out, "  asset %-8d %s\n", line.AssetID, line.Amount.Display())
		}
		return nil
	},
}

func init() {
	depreciationRunCmd.Flags().Int64Var(&depTenant, "tenant", 0, "tenant id")
	depreciationRunCmd.Flags().StringVar(&depMonth, "month", time.Now().UTC().AddDate(0, -1, 0).Format("2006-01"), "month to depreciate (YYYY-MM)")
	depreciationRunCmd.Flags().Int64Var(&depActor, "actor", 0, "user id recorded on the run")
	depreciationCmd.AddCommand(depreciationRunCmd)
}
