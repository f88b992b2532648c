// Package watcher observes one data source's folder for new files,
// confirms each candidate is quiescent (size-stable), and enqueues an
// UploadJob for it. One Watcher instance exists per running FileDataSource;
// the supervisor owns starting, stopping, and replacing instances.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
	"github.com/pinesagetechnology/filemonitor/internal/clock"
	"github.com/pinesagetechnology/filemonitor/internal/constants"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/models"
)

// Enqueuer is the subset of store.UploadJobRepo the watcher depends on,
// kept as an interface so tests can supply an in-memory fake.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.UploadJob) (int64, error)
	HasSucceeded(ctx context.Context, dataSourceName, localPath string) (bool, error)
}

// Config bundles watcher tuning knobs that would otherwise be read
// straight from internal/config on every tick; the supervisor resolves
// these once per watcher start so the watcher itself has no config
// dependency.
type Config struct {
	MaxFileSizeBytes int64
	TargetContainer  string
	QuiescenceWindow time.Duration
	PollInterval     time.Duration
}

// Watcher watches one FileDataSource's folder and enqueues UploadJob rows
// for files that go quiet.
type Watcher struct {
	dataSource models.FileDataSource
	cfg        Config
	enqueuer   Enqueuer
	clock      clock.Clock
	bus        *events.Bus
	onError    func(error)

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	seen    map[string]bool
	started bool
}

// New creates a Watcher for ds. onError is invoked once for each runtime
// error: a cold-start scan failure, an oversized file, or an fsnotify
// error. Only the fsnotify error ends the event loop, which exits right
// after onError returns; the other errors leave the watcher running.
func New(ds models.FileDataSource, cfg Config, enqueuer Enqueuer, clk clock.Clock, bus *events.Bus, onError func(error)) *Watcher {
	if cfg.QuiescenceWindow <= 0 {
		cfg.QuiescenceWindow = constants.QuiescenceWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.QuiescencePollInterval
	}
	return &Watcher{
		dataSource: ds,
		cfg:        cfg,
		enqueuer:   enqueuer,
		clock:      clk,
		bus:        bus,
		onError:    onError,
		stopCh:     make(chan struct{}),
		seen:       make(map[string]bool),
	}
}

// Start performs the cold-start scan for pre-existing matching files, then
// begins watching the folder for new ones. The returned error is non-nil
// only for setup failures (folder missing, fsnotify init failure); runtime
// errors are reported via onError instead. Calling Start twice on the same
// instance is an error — callers that want a fresh watch must create a new
// Watcher (the supervisor does this on every refresh).
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return &apperrors.WatcherError{DataSource: w.dataSource.Name, Err: fmt.Errorf("watcher already started")}
	}
	w.started = true
	w.mu.Unlock()

	if _, err := os.Stat(w.dataSource.FolderPath); err != nil {
		return &apperrors.WatcherError{DataSource: w.dataSource.Name, Err: fmt.Errorf("folder %q: %w", w.dataSource.FolderPath, err)}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return &apperrors.WatcherError{DataSource: w.dataSource.Name, Err: err}
	}
	if err := fsw.Add(w.dataSource.FolderPath); err != nil {
		fsw.Close()
		return &apperrors.WatcherError{DataSource: w.dataSource.Name, Err: err}
	}
	w.fsw = fsw

	w.coldStartScan(ctx)

	w.wg.Add(1)
	go w.eventLoop(ctx)

	if w.bus != nil {
		w.bus.Publish(&events.WatcherStartedEvent{
			BaseEvent:  events.BaseEvent{EventType: events.EventWatcherStarted, Time: w.clock.Now()},
			DataSource: w.dataSource.Name,
			FolderPath: w.dataSource.FolderPath,
		})
	}
	return nil
}

// Stop signals the event loop to exit and waits for it, and any
// in-progress quiescence checks, to finish. Must complete quickly per the
// supervisor's shutdown contract.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.wg.Wait()

	if w.bus != nil {
		w.bus.Publish(&events.WatcherStoppedEvent{
			BaseEvent:  events.BaseEvent{EventType: events.EventWatcherStopped, Time: w.clock.Now()},
			DataSource: w.dataSource.Name,
		})
	}
	return nil
}

func (w *Watcher) coldStartScan(ctx context.Context) {
	pattern := filepath.Join(w.dataSource.FolderPath, w.dataSource.EffectiveFilePattern())
	matches, err := filepath.Glob(pattern)
	if err != nil {
		w.reportError(fmt.Errorf("cold start glob %q: %w", pattern, err))
		return
	}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		done, err := w.enqueuer.HasSucceeded(ctx, w.dataSource.Name, path)
		if err != nil {
			w.reportError(fmt.Errorf("cold start dedup check %q: %w", path, err))
			continue
		}
		if done {
			continue
		}
		w.wg.Add(1)
		go w.awaitQuiescenceThenEnqueue(ctx, path)
	}
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.matchesPattern(ev.Name) {
				continue
			}
			w.wg.Add(1)
			go w.awaitQuiescenceThenEnqueue(ctx, ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(err)
			return
		}
	}
}

func (w *Watcher) matchesPattern(path string) bool {
	ok, err := filepath.Match(w.dataSource.EffectiveFilePattern(), filepath.Base(path))
	return err == nil && ok
}

// awaitQuiescenceThenEnqueue polls path's size until it is unchanged for a
// full QuiescenceWindow, then enqueues it. The event flag that triggered
// this call is not trusted beyond "something happened here" — size
// stability is the sole readiness signal, per the watcher's contract.
func (w *Watcher) awaitQuiescenceThenEnqueue(ctx context.Context, path string) {
	defer w.wg.Done()

	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	var lastSize int64 = -1
	stableSince := w.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.clock.After(w.cfg.PollInterval):
		}

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return // file moved/removed before it ever went quiet
			}
			continue
		}

		size := info.Size()
		if size != lastSize {
			lastSize = size
			stableSince = w.clock.Now()
			continue
		}

		if w.clock.Now().Sub(stableSince) >= w.cfg.QuiescenceWindow {
			w.enqueue(ctx, path, size)
			return
		}
	}
}

func (w *Watcher) enqueue(ctx context.Context, path string, size int64) {
	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	maxSize := w.cfg.MaxFileSizeBytes
	if maxSize > 0 && size > maxSize {
		w.reportError(fmt.Errorf("file %q (%d bytes) exceeds max file size %d bytes, skipped", path, size, maxSize))
		return
	}

	container := w.cfg.TargetContainer
	if container == "" {
		container = constants.DefaultContainer
	}
	objectName := filepath.ToSlash(filepath.Join(w.dataSource.Name, filepath.Base(path)))

	id, err := w.enqueuer.Enqueue(ctx, models.UploadJob{
		DataSourceName:   w.dataSource.Name,
		LocalPath:        path,
		TargetContainer:  container,
		TargetObjectName: objectName,
		SizeBytes:        size,
	})
	if err != nil {
		// A duplicate-key rejection means a job for this path is already
		// Pending/InFlight — not a failure worth reporting.
		return
	}

	if w.bus != nil {
		w.bus.Publish(&events.JobEnqueuedEvent{
			BaseEvent:  events.BaseEvent{EventType: events.EventJobEnqueued, Time: w.clock.Now()},
			JobID:      id,
			DataSource: w.dataSource.Name,
			LocalPath:  path,
			SizeBytes:  size,
		})
	}
}

func (w *Watcher) reportError(err error) {
	wrapped := &apperrors.WatcherError{DataSource: w.dataSource.Name, Err: err}
	if w.bus != nil {
		w.bus.Publish(&events.WatcherErrorEvent{
			BaseEvent:  events.BaseEvent{EventType: events.EventWatcherError, Time: w.clock.Now()},
			DataSource: w.dataSource.Name,
			Err:        wrapped,
		})
	}
	if w.onError != nil {
		w.onError(wrapped)
	}
}
