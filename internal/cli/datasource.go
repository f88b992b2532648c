package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDataSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasource",
		Aliases: []string{"ds"},
		Short:   "Declare and manage watched folders",
	}
	cmd.AddCommand(newDataSourceAddCmd())
	cmd.AddCommand(newDataSourceListCmd())
	cmd.AddCommand(newDataSourceEnableCmd())
	cmd.AddCommand(newDataSourceDisableCmd())
	cmd.AddCommand(newDataSourceRefreshCmd())
	cmd.AddCommand(newDataSourceRemoveCmd())
	return cmd
}

func newDataSourceAddCmd() *cobra.Command {
	var archive, pattern string
	cmd := &cobra.Command{
		Use:   "add <name> <folder-path>",
		Short: "Add (or replace) a data source, enabled and due for a watcher start",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.dataSources.Add(ctx, args[0], args[1], archive, pattern); err != nil {
				return err
			}
			fmt.Printf("data source %q added; effective by the next supervisor tick\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&archive, "archive", "", "folder to move successfully uploaded files into")
	cmd.Flags().StringVar(&pattern, "pattern", "*", "glob pattern for files to watch")
	return cmd
}

func newDataSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every data source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			rows, err := svc.dataSources.ListAll(ctx)
			if err != nil {
				return err
			}
			for _, ds := range rows {
				fmt.Printf("%-20s enabled=%-5v refresh=%-5v %s -> %s (%s)\n",
					ds.Name, ds.IsEnabled, ds.NeedsRefresh, ds.FolderPath, ds.ArchiveFolderPath, ds.EffectiveFilePattern())
			}
			return nil
		},
	}
}

func newDataSourceEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a data source and mark it for a watcher start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.dataSources.Enable(ctx, args[0])
		},
	}
}

func newDataSourceDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a data source; its watcher stops by the next tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.dataSources.Disable(ctx, args[0])
		},
	}
}

func newDataSourceRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <name>",
		Short: "Request a watcher restart without changing enabled state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.dataSources.Refresh(ctx, args[0])
		},
	}
}

func newDataSourceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a data source row; queued/in-flight jobs for it still drain",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.dataSources.Remove(ctx, args[0])
		},
	}
}
