package cmd

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

var (
	triggerMonth     string
	triggerSinceDays int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and trigger background jobs",
}

var jobsTriggerCmd = &cobra.Command{
	Use:       "trigger [depreciation|integrity]",
	Short:     "Enqueue a job for the worker",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"depreciation", "integrity"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			return err
		}
		defer client.Close()

		var info *asynq.TaskInfo
		switch args[0] {
		case "depreciation":
			info, err = client.EnqueueDepreciationSweep(cmd.Context(), triggerMonth)
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				return fmt.Errorf("a depreciation sweep for %s is already queued", triggerMonth)
			}
		case "integrity":
			info, err = client.EnqueueGLIntegrity(cmd.Context(), triggerSinceDays)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return nil
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue depth for the default queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer inspector.Close()

		info, err := inspector.GetQueueInfo(jobs.QueueDefault)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "queue:     %s\n", info.Queue)
		fmt.Fprintf(out, "pending:   %d\n", info.Pending)
		fmt.Fprintf(out, "active:    %d\n", info.Active)
		fmt.Fprintf(out, "scheduled: %d\n", info.Scheduled)
		fmt.Fprintf(out, "retry:     %d\n", info.Retry)
		fmt.Fprintf(out, "archived:  %d\n", info.Archived)
		return nil
	},
}

func init() {
	jobsTriggerCmd.Flags().StringVar(&triggerMonth, "month", "", "depreciation month (YYYY-MM), defaults to last month")
	jobsTriggerCmd.Flags().IntVar(&triggerSinceDays, "since-days", 35, "integrity scan window in days")
	jobsCmd.AddCommand(jobsTriggerCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
}
