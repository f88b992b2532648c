package datasource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pinesagetechnology/filemonitor/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "ds.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s.DataSource)
}

func TestService_AddGetListOrdering(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	if err := svc.Add(ctx, "zeta", dir, "", "*.csv"); err != nil {
		t.Fatalf("Add zeta: %v", err)
	}
	if err := svc.Add(ctx, "alpha", dir, "", "*.csv"); err != nil {
		t.Fatalf("Add alpha: %v", err)
	}

	all, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 || all[0].Name != "alpha" || all[1].Name != "zeta" {
		t.Fatalf("expected alpha-before-zeta ordering, got %+v", all)
	}

	got, ok, err := svc.Get(ctx, "alpha")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if !got.IsEnabled {
		t.Fatal("expected new data source enabled by default")
	}
}

func TestService_EnableDisableRefresh(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	if err := svc.Add(ctx, "source1", dir, "", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.ClearNeedsRefresh(ctx, "source1"); err != nil {
		t.Fatalf("ClearNeedsRefresh: %v", err)
	}

	if err := svc.Disable(ctx, "source1"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	ds, _, _ := svc.Get(ctx, "source1")
	if ds.IsEnabled || !ds.NeedsRefresh {
		t.Fatalf("expected disabled+needs_refresh, got %+v", ds)
	}

	if err := svc.ClearNeedsRefresh(ctx, "source1"); err != nil {
		t.Fatalf("ClearNeedsRefresh: %v", err)
	}
	if err := svc.Enable(ctx, "source1"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	ds, _, _ = svc.Get(ctx, "source1")
	if !ds.IsEnabled || !ds.NeedsRefresh {
		t.Fatalf("expected enabled+needs_refresh, got %+v", ds)
	}
}

func TestService_RemoveMissingIsError(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Remove(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected error removing a data source that doesn't exist")
	}
}

func TestService_AddRejectsEmptyFolderPath(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Add(context.Background(), "bad", "", "", ""); err == nil {
		t.Fatal("expected error for empty folder_path")
	}
}
