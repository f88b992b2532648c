package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pinesagetechnology/filemonitor/internal/config"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/queue"
	"github.com/pinesagetechnology/filemonitor/internal/supervisor"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor loop in the foreground until interrupted",
		Long: `Starts one folder watcher per enabled data source, reconciles that set
against the data_sources table on every tick, and drives the upload
processor once per tick. Press Ctrl+C to stop; in-flight uploads are
allowed to finish or are reclaimed by the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			svc, err := bootstrap(ctx, dbPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			if seedFile != "" {
				if err := applySeedFile(ctx, svc, seedFile); err != nil {
					return fmt.Errorf("apply seed file: %w", err)
				}
			}

			if _, err := svc.uploader.Probe(ctx); err != nil {
				svc.log.Warn().Err(err).Str("code", "upload_transient").Msg("blob uploader probe failed at startup; uploads may fail until this is resolved")
			}

			proc := queue.New(svc.store.UploadJob, svc.store.DataSource, svc.uploader, svc.cfg, svc.clock, svc.bus)
			sup := supervisor.New(svc.dataSources, svc.store.UploadJob, svc.uploader, svc.cfg, proc, svc.clock, svc.bus)

			runLog := svc.log.Named("run_id", uuid.NewString())

			drain := events.NewLogDrain(svc.bus, runLog.Named("source", "events"))
			drain.Start()
			defer drain.Stop()

			runLog.Info().Str("db", dbPath).Msg("filemonitor starting")
			sup.Run(ctx)
			runLog.Info().Msg("filemonitor stopped")
			return nil
		},
	}
}

// applySeedFile loads an INI seed file and creates any data source it
// declares that doesn't already exist, leaving existing rows untouched —
// the bootstrap file contract is "seed missing rows", never overwrite.
func applySeedFile(ctx context.Context, svc *coreServices, path string) error {
	seed, err := config.LoadSeedFile(path)
	if err != nil {
		return err
	}
	for _, ds := range seed.DataSources {
		if _, ok, err := svc.dataSources.Get(ctx, ds.Name); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := svc.dataSources.Add(ctx, ds.Name, ds.FolderPath, ds.ArchiveFolderPath, ds.FilePattern); err != nil {
			return fmt.Errorf("seed data source %q: %w", ds.Name, err)
		}
		if !ds.IsEnabled {
			if err := svc.dataSources.Disable(ctx, ds.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
