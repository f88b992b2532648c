package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pinesagetechnology/filemonitor/internal/blob/localstub"
	"github.com/pinesagetechnology/filemonitor/internal/clock"
	"github.com/pinesagetechnology/filemonitor/internal/config"
	"github.com/pinesagetechnology/filemonitor/internal/datasource"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/queue"
	"github.com/pinesagetechnology/filemonitor/internal/store"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *store.Store, *datasource.Service, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "filemonitor.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clk := clock.New()
	bus := events.NewBus(16)
	t.Cleanup(bus.Close)
	cfg := config.New(s.Config, clk, time.Millisecond, bus)
	if err := config.Bootstrap(context.Background(), cfg); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := cfg.Set(context.Background(), "App.ProcessingIntervalSeconds", "1", "", ""); err != nil {
		t.Fatalf("Set interval: %v", err)
	}

	uploader, err := localstub.New(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("localstub.New: %v", err)
	}

	ds := datasource.New(s.DataSource)
	proc := queue.New(s.UploadJob, s.DataSource, uploader, cfg, clk, bus)
	sup := New(ds, s.UploadJob, uploader, cfg, proc, clk, bus)
	return sup, s, ds, dir
}

func (s *Supervisor) watcherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// TestSupervisor_HonorsIsEnabled exercises the spec-mandated interpretation
// of §9 open question 1: a disabled data source never gets a running
// watcher, even though the source repository this module is modeled on
// was observed to start one regardless of isEnabled.
func TestSupervisor_HonorsIsEnabled(t *testing.T) {
	sup, _, ds, base := newTestSupervisor(t)

	enabledDir := filepath.Join(base, "enabled")
	disabledDir := filepath.Join(base, "disabled")
	if err := os.MkdirAll(enabledDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(disabledDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := ds.Add(ctx, "enabled-source", enabledDir, "", "*"); err != nil {
		t.Fatalf("Add enabled: %v", err)
	}
	if err := ds.Add(ctx, "disabled-source", disabledDir, "", "*"); err != nil {
		t.Fatalf("Add disabled: %v", err)
	}
	if err := ds.Disable(ctx, "disabled-source"); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	sup.tick(ctx)
	defer sup.shutdown()

	sup.mu.Lock()
	_, enabledRunning := sup.watchers["enabled-source"]
	_, disabledRunning := sup.watchers["disabled-source"]
	sup.mu.Unlock()

	if !enabledRunning {
		t.Error("expected a watcher running for the enabled source")
	}
	if disabledRunning {
		t.Error("expected no watcher running for the disabled source; spec.md §9 requires honoring isEnabled")
	}
}

// TestSupervisor_StartsDisabledSource_DocumentsSourceBehavior documents the
// alternative interpretation named in §9 open question 1 (start regardless
// of isEnabled) as an explicit, skipped test so both readings stay visible
// without the production supervisor adopting the unsafe one.
func TestSupervisor_StartsDisabledSource_DocumentsSourceBehavior(t *testing.T) {
	t.Skip("documents the non-isEnabled-honoring interpretation named in spec.md §9; production behavior honors isEnabled, see TestSupervisor_HonorsIsEnabled")
}

func TestSupervisor_NeedsRefresh_ReplacesWatcherIdentityAndClearsFlag(t *testing.T) {
	sup, _, ds, base := newTestSupervisor(t)
	dir := filepath.Join(base, "src")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := ds.Add(ctx, "s1", dir, "", "*"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	sup.tick(ctx)
	defer sup.shutdown()

	sup.mu.Lock()
	first := sup.watchers["s1"]
	sup.mu.Unlock()
	if first == nil {
		t.Fatal("expected a watcher running after first tick")
	}

	if err := ds.Refresh(ctx, "s1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	sup.tick(ctx)

	sup.mu.Lock()
	second := sup.watchers["s1"]
	sup.mu.Unlock()
	if second == nil {
		t.Fatal("expected a watcher running after refresh tick")
	}
	if second == first {
		t.Error("expected a new watcher instance after needsRefresh, not the same one")
	}

	row, ok, err := ds.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if row.NeedsRefresh {
		t.Error("expected needsRefresh to be cleared after the supervisor acted on it")
	}
}

// TestSupervisor_ClearsNeedsRefreshForDisabledNonRunningSource covers the
// reconcile branch added for a data source that is disabled (so it never
// has a running watcher) but still has needsRefresh set — e.g. disabling it
// a second time, or disabling then editing its folder path before it was
// ever enabled. The flag must still clear within one tick.
func TestSupervisor_ClearsNeedsRefreshForDisabledNonRunningSource(t *testing.T) {
	sup, _, ds, base := newTestSupervisor(t)
	dir := filepath.Join(base, "src")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := ds.Add(ctx, "never-started", dir, "", "*"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ds.Disable(ctx, "never-started"); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	sup.tick(ctx)
	defer sup.shutdown()

	if sup.watcherCount() != 0 {
		t.Fatalf("expected 0 running watchers for a disabled source, got %d", sup.watcherCount())
	}

	// Disabling again while already disabled re-sets needs_refresh without
	// ever starting a watcher to restart.
	if err := ds.Disable(ctx, "never-started"); err != nil {
		t.Fatalf("Disable again: %v", err)
	}

	row, ok, err := ds.Get(ctx, "never-started")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if !row.NeedsRefresh {
		t.Fatal("expected needsRefresh set after disabling a disabled source")
	}

	sup.tick(ctx)

	row, ok, err = ds.Get(ctx, "never-started")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if row.NeedsRefresh {
		t.Error("expected needsRefresh cleared for a disabled, non-running source within one tick")
	}
	if sup.watcherCount() != 0 {
		t.Fatalf("expected still 0 running watchers, got %d", sup.watcherCount())
	}
}

func TestSupervisor_RemovedDataSourceStopsItsWatcher(t *testing.T) {
	sup, _, ds, base := newTestSupervisor(t)
	dir := filepath.Join(base, "src")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := ds.Add(ctx, "gone-soon", dir, "", "*"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	sup.tick(ctx)
	defer sup.shutdown()

	if sup.watcherCount() != 1 {
		t.Fatalf("expected 1 running watcher, got %d", sup.watcherCount())
	}

	if err := ds.Remove(ctx, "gone-soon"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	sup.tick(ctx)

	if sup.watcherCount() != 0 {
		t.Fatalf("expected 0 running watchers after removal, got %d", sup.watcherCount())
	}
}

func TestSupervisor_ShutdownStopsAllWatchers(t *testing.T) {
	sup, _, ds, base := newTestSupervisor(t)
	for _, name := range []string{"a", "b"} {
		dir := filepath.Join(base, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := ds.Add(context.Background(), name, dir, "", "*"); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}

	sup.tick(context.Background())
	if sup.watcherCount() != 2 {
		t.Fatalf("expected 2 running watchers, got %d", sup.watcherCount())
	}

	sup.shutdown()
	if sup.watcherCount() != 0 {
		t.Fatalf("expected 0 running watchers after shutdown, got %d", sup.watcherCount())
	}
}

func TestSupervisor_RunRespectsContextCancellation(t *testing.T) {
	sup, _, ds, base := newTestSupervisor(t)
	dir := filepath.Join(base, "src")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ds.Add(context.Background(), "s1", dir, "", "*"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	// Give the first (immediate) tick a moment to start its watcher.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}

	if sup.watcherCount() != 0 {
		t.Fatalf("expected every watcher stopped after shutdown, got %d", sup.watcherCount())
	}
}
