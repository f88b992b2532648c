package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Run a startup connectivity diagnostic against the configured blob uploader",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			status, err := svc.uploader.Probe(ctx)
			if err != nil {
				return fmt.Errorf("probe failed: %w", err)
			}
			fmt.Println(status)

			containers, err := svc.uploader.ListContainers(ctx)
			if err != nil {
				return fmt.Errorf("list containers: %w", err)
			}
			for _, c := range containers {
				fmt.Printf("  container: %s\n", c)
			}
			return nil
		},
	}
}
