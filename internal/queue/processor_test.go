package queue

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
	"github.com/pinesagetechnology/filemonitor/internal/clock"
	"github.com/pinesagetechnology/filemonitor/internal/config"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/models"
	"github.com/pinesagetechnology/filemonitor/internal/store"
)

// fakeUploader lets tests script per-call outcomes by target object name.
type fakeUploader struct {
	mu      sync.Mutex
	results map[string]error // keyed by objectName
	calls   int
}

func (f *fakeUploader) Upload(ctx context.Context, container, objectName string, r io.Reader, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results[objectName]
}

func (f *fakeUploader) ListContainers(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeUploader) Probe(ctx context.Context) (string, error)            { return "ok", nil }

func newTestProcessor(t *testing.T) (*Processor, *store.Store, *fakeUploader, *clock.Fake) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "filemonitor.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewBus(16)
	t.Cleanup(bus.Close)
	cfg := config.New(s.Config, fake, time.Hour, bus)
	up := &fakeUploader{results: make(map[string]error)}

	p := New(s.UploadJob, s.DataSource, up, cfg, fake, bus)
	return p, s, up, fake
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestProcessor_ClaimBatchRespectsMaxConcurrentUploads(t *testing.T) {
	p, s, up, _ := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()

	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.MaxConcurrentUploads", Value: "2"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for i := 0; i < 3; i++ {
		path := writeFile(t, dir, fmt.Sprintf("f%d.txt", i), "data")
		obj := fmt.Sprintf("alpha/f%d.txt", i)
		if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
			DataSourceName: "alpha", LocalPath: path,
			TargetContainer: "uploads", TargetObjectName: obj, SizeBytes: 4,
		}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	result, err := p.Tick(ctx, time.Second)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Claimed != 2 {
		t.Fatalf("expected 2 claimed respecting MaxConcurrentUploads, got %d", result.Claimed)
	}
	if up.calls != 2 {
		t.Fatalf("expected 2 upload calls, got %d", up.calls)
	}
}

func TestProcessor_SuccessMarksSucceeded(t *testing.T) {
	p, s, _, _ := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
		DataSourceName: "alpha", LocalPath: path,
		TargetContainer: "uploads", TargetObjectName: "alpha/a.txt", SizeBytes: 5,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	result, err := p.Tick(ctx, time.Second)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("expected 1 succeeded, got %+v", result)
	}
	stats, _ := s.UploadJob.Stats(ctx)
	if stats[models.StateSucceeded] != 1 {
		t.Fatalf("expected succeeded in store, got %+v", stats)
	}
}

func TestProcessor_TransientErrorRetriesWithBackoff(t *testing.T) {
	p, s, up, fake := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.MaxRetries", Value: "5"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.RetryDelaySeconds", Value: "10"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	up.results["alpha/a.txt"] = &apperrors.UploadTransient{Err: fmt.Errorf("connection reset")}

	if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
		DataSourceName: "alpha", LocalPath: path,
		TargetContainer: "uploads", TargetObjectName: "alpha/a.txt", SizeBytes: 5,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	result, err := p.Tick(ctx, time.Second)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Retried != 1 {
		t.Fatalf("expected 1 retried, got %+v", result)
	}

	jobs, _ := s.UploadJob.ListByState(ctx, models.StatePending)
	if len(jobs) != 1 || jobs[0].Attempts != 1 {
		t.Fatalf("expected job back in Pending with attempts=1, got %+v", jobs)
	}
	wantNext := fake.Now().Add(10 * time.Second)
	if jobs[0].NextAttemptAt.Before(wantNext.Add(-time.Second)) || jobs[0].NextAttemptAt.After(wantNext.Add(time.Second)) {
		t.Fatalf("unexpected next_attempt_at: got %v, want ~%v", jobs[0].NextAttemptAt, wantNext)
	}
}

func TestProcessor_RetryBudgetExhaustedMarksFailed(t *testing.T) {
	p, s, up, _ := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.MaxRetries", Value: "1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	up.results["alpha/a.txt"] = &apperrors.UploadTransient{Err: fmt.Errorf("timeout")}

	if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
		DataSourceName: "alpha", LocalPath: path,
		TargetContainer: "uploads", TargetObjectName: "alpha/a.txt", SizeBytes: 5,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	result, err := p.Tick(ctx, time.Second)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failed once retry budget exhausted, got %+v", result)
	}
	jobs, _ := s.UploadJob.ListByState(ctx, models.StateFailed)
	if len(jobs) != 1 {
		t.Fatalf("expected job in Failed state, got %+v", jobs)
	}
}

func TestProcessor_PermanentErrorFailsImmediately(t *testing.T) {
	p, s, up, _ := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.MaxRetries", Value: "5"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	up.results["alpha/a.txt"] = &apperrors.UploadPermanent{Err: fmt.Errorf("403 forbidden")}

	if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
		DataSourceName: "alpha", LocalPath: path,
		TargetContainer: "uploads", TargetObjectName: "alpha/a.txt", SizeBytes: 5,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	result, err := p.Tick(ctx, time.Second)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Failed != 1 || result.Retried != 0 {
		t.Fatalf("expected immediate failure with no retry, got %+v", result)
	}
	jobs, _ := s.UploadJob.ListByState(ctx, models.StateFailed)
	if len(jobs) != 1 || jobs[0].Attempts != 1 {
		t.Fatalf("expected single attempt before permanent failure, got %+v", jobs)
	}
}

// TestProcessor_FreshInFlightJobIsNotReclaimed guards against an
// over-eager reclaim threshold: a row claimed moments ago by a (simulated)
// still-running worker must not be yanked back to Pending and re-claimed
// out from under it. The positive "a truly stale row gets reclaimed" path
// is covered at the store layer (store.TestUploadJobRepo_ReclaimStale),
// since the reclaim SQL keys off SQLite's own wall clock rather than the
// injected clock.Clock, making a deterministic positive case impractical
// to drive from here.
func TestProcessor_FreshInFlightJobIsNotReclaimed(t *testing.T) {
	p, s, up, _ := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
		DataSourceName: "alpha", LocalPath: path,
		TargetContainer: "uploads", TargetObjectName: "alpha/a.txt", SizeBytes: 5,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := s.UploadJob.ClaimBatch(ctx, 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimBatch: %v, claimed=%+v", err, claimed)
	}

	result, err := p.Tick(ctx, time.Second)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Reclaimed != 0 {
		t.Fatalf("expected the freshly-claimed row to survive reclaim, got %+v", result)
	}
	if result.Claimed != 0 {
		t.Fatalf("row was already InFlight, expected nothing new claimed, got %+v", result)
	}
	if up.calls != 0 {
		t.Fatalf("expected no upload attempt against the still-InFlight row, got %d calls", up.calls)
	}
}

func TestProcessor_DeleteOnSuccessTakesPrecedenceOverArchive(t *testing.T) {
	p, s, _, _ := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()
	archiveDir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	if err := s.DataSource.Upsert(ctx, models.FileDataSource{
		Name: "alpha", FolderPath: dir, ArchiveFolderPath: archiveDir, IsEnabled: true,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.ArchiveOnSuccess", Value: "true"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.DeleteOnSuccess", Value: "true"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
		DataSourceName: "alpha", LocalPath: path,
		TargetContainer: "uploads", TargetObjectName: "alpha/a.txt", SizeBytes: 5,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := p.Tick(ctx, time.Second); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected local file deleted, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(archiveDir, "a.txt")); !os.IsNotExist(err) {
		t.Fatal("expected archive NOT to receive the file when delete takes precedence")
	}
}

func TestProcessor_ArchiveOnSuccessMovesFile(t *testing.T) {
	p, s, _, _ := newTestProcessor(t)
	ctx := context.Background()
	dir := t.TempDir()
	archiveDir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	if err := s.DataSource.Upsert(ctx, models.FileDataSource{
		Name: "alpha", FolderPath: dir, ArchiveFolderPath: archiveDir, IsEnabled: true,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Config.Set(ctx, models.Configuration{Key: "Upload.ArchiveOnSuccess", Value: "true"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := s.UploadJob.Enqueue(ctx, models.UploadJob{
		DataSourceName: "alpha", LocalPath: path,
		TargetContainer: "uploads", TargetObjectName: "alpha/a.txt", SizeBytes: 5,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := p.Tick(ctx, time.Second); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected original file moved out of the watched folder")
	}
	if _, err := os.Stat(filepath.Join(archiveDir, "a.txt")); err != nil {
		t.Fatalf("expected archived copy to exist: %v", err)
	}
}

func TestBackoffDelay_ClampsAtMax(t *testing.T) {
	base := 5 * time.Second
	max := 20 * time.Second
	got := backoffDelay(base, max, 1)
	if got != 5*time.Second {
		t.Fatalf("attempt 1: got %v, want 5s", got)
	}
	got = backoffDelay(base, max, 2)
	if got != 10*time.Second {
		t.Fatalf("attempt 2: got %v, want 10s", got)
	}
	got = backoffDelay(base, max, 3)
	if got != 20*time.Second {
		t.Fatalf("attempt 3: got %v, want 20s (clamped)", got)
	}
	got = backoffDelay(base, max, 10)
	if got != max {
		t.Fatalf("attempt 10: got %v, want clamped to %v", got, max)
	}
}
