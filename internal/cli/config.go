package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and adjust Configuration tunables",
	}
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigListCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			ok, err := svc.cfg.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Println(svc.cfg.GetString(ctx, args[0], ""))
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var category, description string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Upsert a configuration value, taking effect by the next supervisor tick",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			if args[0] == "Upload.ArchiveOnSuccess" || args[0] == "Upload.DeleteOnSuccess" {
				warnIfBothDispositionsWouldBeSet(ctx, svc, args[0], args[1])
			}

			if err := svc.cfg.Set(ctx, args[0], args[1], category, description); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "grouping label for this key")
	cmd.Flags().StringVar(&description, "description", "", "advisory description for this key")
	return cmd
}

// warnIfBothDispositionsWouldBeSet warns the operator that
// Upload.DeleteOnSuccess takes precedence over Upload.ArchiveOnSuccess when
// both end up true, per spec.md §9 open question 3.
func warnIfBothDispositionsWouldBeSet(ctx context.Context, svc *coreServices, key, newValue string) {
	if b, err := strconv.ParseBool(newValue); err != nil || !b {
		return
	}
	other := "Upload.ArchiveOnSuccess"
	if key == other {
		other = "Upload.DeleteOnSuccess"
	}
	if svc.cfg.GetBool(ctx, other, false) {
		fmt.Fprintf(os.Stderr, "warning: both Upload.ArchiveOnSuccess and Upload.DeleteOnSuccess are now true; delete takes precedence\n")
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configuration row",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			rows, err := svc.cfg.List(ctx)
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Printf("%-36s %-10s %s\n", r.Key, r.Value, r.Category)
			}
			return nil
		},
	}
}
