package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pinesagetechnology/filemonitor/internal/models"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and retry upload jobs",
	}
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueFailedCmd())
	cmd.AddCommand(newQueueRetryCmd())
	cmd.AddCommand(newQueueStatsCmd())
	return cmd
}

func newQueueListCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in a given state (default Pending)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			rows, err := svc.store.UploadJob.ListByState(ctx, models.UploadState(state))
			if err != nil {
				return err
			}
			printJobs(rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", string(models.StatePending), "Pending|InFlight|Succeeded|Failed")
	return cmd
}

func newQueueFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List jobs in the Failed state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			rows, err := svc.store.UploadJob.ListByState(ctx, models.StateFailed)
			if err != nil {
				return err
			}
			printJobs(rows)
			return nil
		},
	}
}

func newQueueRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Reset a Failed job to Pending with attempts=0, for the processor to pick up next tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.store.UploadJob.RequeueFailed(ctx, id); err != nil {
				return err
			}
			fmt.Printf("job %d requeued\n", id)
			return nil
		},
	}
}

func newQueueStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print job counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			counts, err := svc.store.UploadJob.Stats(ctx)
			if err != nil {
				return err
			}
			for _, state := range []models.UploadState{models.StatePending, models.StateInFlight, models.StateSucceeded, models.StateFailed} {
				fmt.Printf("%-10s %d\n", state, counts[state])
			}
			return nil
		},
	}
}

func printJobs(rows []models.UploadJob) {
	for _, j := range rows {
		fmt.Printf("%-6d %-10s attempts=%-2d %-20s %s -> %s/%s\n",
			j.ID, j.State, j.Attempts, j.DataSourceName, j.LocalPath, j.TargetContainer, j.TargetObjectName)
	}
}
