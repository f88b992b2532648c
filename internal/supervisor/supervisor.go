// Package supervisor owns the dynamic watcher set: one folder watcher per
// enabled FileDataSource, reconciled against the DataSource table on every
// tick, and drives the upload processor once per tick after reconciling.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/pinesagetechnology/filemonitor/internal/blob"
	"github.com/pinesagetechnology/filemonitor/internal/clock"
	"github.com/pinesagetechnology/filemonitor/internal/config"
	"github.com/pinesagetechnology/filemonitor/internal/constants"
	"github.com/pinesagetechnology/filemonitor/internal/datasource"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/logging"
	"github.com/pinesagetechnology/filemonitor/internal/models"
	"github.com/pinesagetechnology/filemonitor/internal/queue"
	"github.com/pinesagetechnology/filemonitor/internal/store"
	"github.com/pinesagetechnology/filemonitor/internal/watcher"
)

// runningWatcher pairs a live watcher instance with the cancellation scope
// it was started under. A fresh scope is allocated for every instance —
// refreshing a data source never reuses the outer enumeration's scope (§9
// open question 2).
type runningWatcher struct {
	w      *watcher.Watcher
	cancel context.CancelFunc
}

// Supervisor is the sole owner of watcher lifecycles. The running-watcher
// map is plain, unexported state touched only from the tick goroutine; no
// other component ever reaches into it.
type Supervisor struct {
	dataSources *datasource.Service
	jobs        *store.UploadJobRepo
	uploader    blob.Uploader
	cfg         *config.Service
	processor   *queue.Processor
	clock       clock.Clock
	bus         *events.Bus
	log         *logging.Logger

	mu       sync.Mutex
	watchers map[string]*runningWatcher

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Supervisor. processor is invoked once per tick after
// watcher reconciliation.
func New(dataSources *datasource.Service, jobs *store.UploadJobRepo, uploader blob.Uploader, cfg *config.Service, processor *queue.Processor, clk clock.Clock, bus *events.Bus) *Supervisor {
	return &Supervisor{
		dataSources: dataSources,
		jobs:        jobs,
		uploader:    uploader,
		cfg:         cfg,
		processor:   processor,
		clock:       clk,
		bus:         bus,
		log:         logging.New("supervisor"),
		watchers:    make(map[string]*runningWatcher),
		stopCh:      make(chan struct{}),
	}
}

// Run blocks, reconciling watchers and driving the processor once per
// tick, until ctx is cancelled or Stop is called. The first tick runs
// immediately, matching the teacher's poll-loop shape.
func (s *Supervisor) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.tick(ctx)

	for {
		interval := s.tickInterval(ctx)
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.stopCh:
			s.shutdown()
			return
		case <-s.clock.After(interval):
			s.tick(ctx)
		}
	}
}

// Stop signals Run to exit and waits for every watcher to stop. Safe to
// call once; a second call is a no-op.
func (s *Supervisor) Stop() {
	select {
	case <-s.stopCh:
		return
	default:
		close(s.stopCh)
	}
	s.wg.Wait()
}

func (s *Supervisor) tickInterval(ctx context.Context) time.Duration {
	seconds := s.cfg.GetInt(ctx, "App.ProcessingIntervalSeconds", constants.DefaultProcessingIntervalSeconds)
	if seconds <= 0 {
		seconds = constants.DefaultProcessingIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// tick reconciles the running watcher set against the DataSource table and
// then advances the upload queue by one processor pass.
func (s *Supervisor) tick(ctx context.Context) {
	sources, err := s.dataSources.ListAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("code", "store_error").Msg("failed to list data sources, skipping this tick's reconciliation")
	} else {
		s.reconcile(ctx, sources)
	}

	interval := s.tickInterval(ctx)
	result, err := s.processor.Tick(ctx, interval)
	if err != nil {
		s.log.Error().Err(err).Str("code", "store_error").Msg("processor tick failed")
		return
	}

	s.mu.Lock()
	running := len(s.watchers)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(&events.SupervisorTickEvent{
			BaseEvent:       events.BaseEvent{EventType: events.EventSupervisorTick, Time: s.clock.Now()},
			WatchersRunning: running,
			JobsClaimed:     result.Claimed,
		})
	}
}

// reconcile starts a watcher for every enabled data source that doesn't
// have one, stops watchers for rows that were disabled or removed, and
// restarts any watcher whose row has needsRefresh set, clearing the flag
// once the restart has happened.
func (s *Supervisor) reconcile(ctx context.Context, sources []models.FileDataSource) {
	present := make(map[string]models.FileDataSource, len(sources))
	for _, ds := range sources {
		present[ds.Name] = ds
	}

	s.mu.Lock()
	var stale []string
	for name := range s.watchers {
		if _, ok := present[name]; !ok {
			stale = append(stale, name)
		}
	}
	s.mu.Unlock()
	for _, name := range stale {
		s.stopWatcher(name)
	}

	for _, ds := range sources {
		s.mu.Lock()
		rw, running := s.watchers[ds.Name]
		s.mu.Unlock()

		switch {
		case running && ds.NeedsRefresh:
			s.stopWatcher(ds.Name)
			if ds.IsEnabled {
				s.startWatcher(ctx, ds)
			}
			s.clearNeedsRefresh(ctx, ds.Name)
		case running && !ds.IsEnabled:
			s.stopWatcher(ds.Name)
		case !running && ds.IsEnabled:
			s.startWatcher(ctx, ds)
			if ds.NeedsRefresh {
				s.clearNeedsRefresh(ctx, ds.Name)
			}
		case !running && ds.NeedsRefresh:
			// Disabled and not running: no watcher to restart, but the flag
			// must still be cleared within one tick — a disabled source
			// isn't exempt from the operator-action invariant.
			s.clearNeedsRefresh(ctx, ds.Name)
		case running:
			_ = rw // already running, enabled, no refresh requested: nothing to do
		}
	}
}

func (s *Supervisor) clearNeedsRefresh(ctx context.Context, name string) {
	if err := s.dataSources.ClearNeedsRefresh(ctx, name); err != nil {
		s.log.Error().Err(err).Str("code", "store_error").Str("data_source", name).Msg("failed to clear needs_refresh flag")
	}
}

// startWatcher allocates a fresh cancellation scope and watcher instance
// for ds and registers it in the running set.
func (s *Supervisor) startWatcher(ctx context.Context, ds models.FileDataSource) {
	scopeCtx, cancel := context.WithCancel(ctx)

	maxFileSize := int64(s.cfg.GetInt(ctx, "Upload.MaxFileSizeMB", constants.DefaultMaxFileSizeMB)) * 1024 * 1024
	container := s.cfg.GetString(ctx, "Azure.DefaultContainer", constants.DefaultContainer)

	w := watcher.New(ds, watcher.Config{
		MaxFileSizeBytes: maxFileSize,
		TargetContainer:  container,
	}, s.jobs, s.clock, s.bus, func(err error) {
		s.log.Error().Err(err).Str("code", "watcher_error").Str("data_source", ds.Name).Msg("watcher reported an error")
	})

	if err := w.Start(scopeCtx); err != nil {
		s.log.Error().Err(err).Str("code", "watcher_error").Str("data_source", ds.Name).Msg("failed to start watcher")
		cancel()
		return
	}

	s.mu.Lock()
	s.watchers[ds.Name] = &runningWatcher{w: w, cancel: cancel}
	s.mu.Unlock()

	s.log.Info().Str("data_source", ds.Name).Str("folder", ds.FolderPath).Msg("watcher started")
}

func (s *Supervisor) stopWatcher(name string) {
	s.mu.Lock()
	rw, ok := s.watchers[name]
	if ok {
		delete(s.watchers, name)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := rw.w.Stop(); err != nil {
		s.log.Error().Err(err).Str("code", "watcher_error").Str("data_source", name).Msg("error stopping watcher")
	}
	rw.cancel()
	s.log.Info().Str("data_source", name).Msg("watcher stopped")
}

// shutdown stops every running watcher, collecting errors without
// aborting, then releases every scope. In-flight upload jobs are not
// cancelled; they finish or are reclaimed by a future run.
func (s *Supervisor) shutdown() {
	s.mu.Lock()
	names := make([]string, 0, len(s.watchers))
	for name := range s.watchers {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.stopWatcher(name)
	}
	s.log.Info().Msg("supervisor shut down")
}
