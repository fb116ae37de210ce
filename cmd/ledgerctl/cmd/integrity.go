package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sinceDays int

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check general ledger integrity",
}

var integrityCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "List journal entries whose debits and credits differ",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sinceDays <= 0 {
			return fmt.Errorf("--since-days must be positive")
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		since := time.Now().UTC().AddDate(0, 0, -sinceDays)
		found, err := e.services.Journals.CheckIntegrity(cmd.Context(), since)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no imbalances since %s\n", since.Format("2006-01-02"))
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TENANT\tENTRY\tNUMBER\tDEBIT\tCREDIT\tLINES")
		for _, im := range found {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%d\n", im.TenantID, im.EntryID, im.Number, im.Debit.Display(), im.Credit.Display(), im.Lines)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return fmt.Errorf("%d unbalanced journal entries", len(found))
	},
}

func init() {
	integrityCheckCmd.Flags().IntVar(&sinceDays, "since-days", 35, "days of entries to scan")
	integrityCmd.AddCommand(integrityCheckCmd)
}
