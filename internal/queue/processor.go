// Package queue implements the upload processor: reclaiming stranded
// in-flight jobs, atomically claiming a bounded batch of pending ones,
// uploading each through a worker pool, and applying retry/backoff or
// post-success disposition to the result.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
	"github.com/pinesagetechnology/filemonitor/internal/blob"
	"github.com/pinesagetechnology/filemonitor/internal/clock"
	"github.com/pinesagetechnology/filemonitor/internal/config"
	"github.com/pinesagetechnology/filemonitor/internal/constants"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/logging"
	"github.com/pinesagetechnology/filemonitor/internal/models"
	"github.com/pinesagetechnology/filemonitor/internal/store"
)

// Processor advances the upload queue by one tick at a time. A single
// Processor is shared across the supervisor's lifetime; it holds no
// per-tick state besides what Tick's locals need.
type Processor struct {
	jobs        *store.UploadJobRepo
	dataSources *store.DataSourceRepo
	uploader    blob.Uploader
	cfg         *config.Service
	clock       clock.Clock
	bus         *events.Bus
	log         *logging.Logger
}

// New creates a Processor. The supervisor's tick period is not fixed here:
// each Tick call receives it as an argument, since the operator may change
// App.ProcessingIntervalSeconds at runtime.
func New(jobs *store.UploadJobRepo, dataSources *store.DataSourceRepo, uploader blob.Uploader, cfg *config.Service, clk clock.Clock, bus *events.Bus) *Processor {
	return &Processor{
		jobs:        jobs,
		dataSources: dataSources,
		uploader:    uploader,
		cfg:         cfg,
		clock:       clk,
		bus:         bus,
		log:         logging.New("queue"),
	}
}

// TickResult summarizes one Tick invocation for the supervisor's
// SupervisorTickEvent.
type TickResult struct {
	Reclaimed int64
	Claimed   int
	Succeeded int
	Retried   int
	Failed    int
}

// Tick runs one reclaim -> claim -> upload -> resolve pass. tickInterval is
// the supervisor's current tick period (for sizing the reclaim window).
func (p *Processor) Tick(ctx context.Context, tickInterval time.Duration) (TickResult, error) {
	var result TickResult

	reclaimThresholdSeconds := int(tickInterval.Seconds()) * constants.ReclaimMultiplier
	if reclaimThresholdSeconds <= 0 {
		reclaimThresholdSeconds = constants.ReclaimMultiplier
	}
	reclaimed, err := p.jobs.ReclaimStale(ctx, reclaimThresholdSeconds)
	if err != nil {
		return result, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	result.Reclaimed = reclaimed

	maxConcurrent := p.cfg.GetInt(ctx, "Upload.MaxConcurrentUploads", constants.DefaultMaxConcurrentUploads)
	claimed, err := p.jobs.ClaimBatch(ctx, maxConcurrent)
	if err != nil {
		return result, fmt.Errorf("claim batch: %w", err)
	}
	result.Claimed = len(claimed)
	if len(claimed) == 0 {
		return result, nil
	}

	maxRetries := p.cfg.GetInt(ctx, "Upload.MaxRetries", constants.DefaultMaxRetries)
	baseDelay := time.Duration(p.cfg.GetInt(ctx, "Upload.RetryDelaySeconds", constants.DefaultRetryDelaySeconds)) * time.Second
	maxDelay := time.Duration(p.cfg.GetInt(ctx, "Upload.MaxRetryDelayMinutes", constants.DefaultMaxRetryDelayMinutes)) * time.Minute
	archiveOnSuccess := p.cfg.GetBool(ctx, "Upload.ArchiveOnSuccess", false)
	deleteOnSuccess := p.cfg.GetBool(ctx, "Upload.DeleteOnSuccess", false)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrent)

	for _, job := range claimed {
		job := job
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := p.uploadOne(ctx, job, maxRetries, baseDelay, maxDelay, archiveOnSuccess, deleteOnSuccess)

			mu.Lock()
			switch outcome {
			case outcomeSucceeded:
				result.Succeeded++
			case outcomeRetried:
				result.Retried++
			case outcomeFailed:
				result.Failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return result, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeRetried
	outcomeFailed
)

func (p *Processor) uploadOne(ctx context.Context, job models.UploadJob, maxRetries int, baseDelay, maxDelay time.Duration, archiveOnSuccess, deleteOnSuccess bool) outcome {
	jobLog := p.log.Named("job_id", fmt.Sprintf("%d", job.ID))

	err := p.upload(ctx, job)
	if err == nil {
		if err := p.jobs.MarkSucceeded(ctx, job.ID); err != nil {
			jobLog.Error().Err(err).Str("code", "store_error").Msg("failed to mark job succeeded")
		}
		p.publishStateChange(job, models.StateSucceeded, job.Attempts, "")
		p.applyDisposition(ctx, job, archiveOnSuccess, deleteOnSuccess, jobLog)
		return outcomeSucceeded
	}

	if isPermanent(err) {
		if markErr := p.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			jobLog.Error().Err(markErr).Str("code", "store_error").Msg("failed to mark job failed")
		}
		jobLog.Error().Err(err).Str("code", "upload_permanent").Msg("upload permanently failed")
		p.publishStateChange(job, models.StateFailed, job.Attempts+1, err.Error())
		return outcomeFailed
	}

	// Transient.
	nextAttempts := job.Attempts + 1
	if nextAttempts >= maxRetries {
		if markErr := p.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			jobLog.Error().Err(markErr).Str("code", "store_error").Msg("failed to mark job failed")
		}
		jobLog.Error().Err(err).Str("code", "upload_transient").Int("attempts", nextAttempts).Msg("retry budget exhausted")
		p.publishStateChange(job, models.StateFailed, nextAttempts, err.Error())
		return outcomeFailed
	}

	delay := backoffDelay(baseDelay, maxDelay, nextAttempts)
	nextAttemptAt := p.clock.Now().Add(delay)
	if markErr := p.jobs.MarkRetry(ctx, job.ID, err.Error(), nextAttemptAt.UTC().Format("2006-01-02 15:04:05")); markErr != nil {
		jobLog.Error().Err(markErr).Str("code", "store_error").Msg("failed to mark job for retry")
	}
	jobLog.Warn().Err(err).Str("code", "upload_transient").Int("attempts", nextAttempts).Dur("retry_in", delay).Msg("upload failed, will retry")
	p.publishStateChange(job, models.StatePending, nextAttempts, err.Error())
	return outcomeRetried
}

// isPermanent reports whether err should terminate a job immediately rather
// than be retried. Backends are expected to wrap their errors as
// *apperrors.UploadPermanent/*apperrors.UploadTransient before returning
// them (see blob.Uploader's contract), so those wrapped types decide first;
// blob.Classify is the fallback for any error that reaches here unwrapped.
func isPermanent(err error) bool {
	var permanent *apperrors.UploadPermanent
	if errors.As(err, &permanent) {
		return true
	}
	var transient *apperrors.UploadTransient
	if errors.As(err, &transient) {
		return false
	}
	return !blob.Classify(err)
}

// backoffDelay computes base * 2^(attempts-1), clamped at maxDelay.
func backoffDelay(base, maxDelay time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p *Processor) upload(ctx context.Context, job models.UploadJob) error {
	f, err := os.Open(job.LocalPath)
	if err != nil {
		return &apperrors.UploadPermanent{Err: fmt.Errorf("open %q: %w", job.LocalPath, err)}
	}
	defer f.Close()

	if err := p.uploader.Upload(ctx, job.TargetContainer, job.TargetObjectName, f, job.SizeBytes); err != nil {
		return err
	}
	return nil
}

// applyDisposition deletes or archives the local file after a successful
// upload. Delete takes precedence over archive when both are enabled,
// since the alternative (archiving, then immediately deleting the
// archived copy) leaves nothing for DeleteOnSuccess to mean.
func (p *Processor) applyDisposition(ctx context.Context, job models.UploadJob, archiveOnSuccess, deleteOnSuccess bool, jobLog *logging.Logger) {
	if !archiveOnSuccess && !deleteOnSuccess {
		return
	}
	if archiveOnSuccess && deleteOnSuccess {
		jobLog.Warn().Str("code", "disposition_error").Msg("both ArchiveOnSuccess and DeleteOnSuccess enabled; delete takes precedence")
	}

	action := "none"
	var dispErr error

	switch {
	case deleteOnSuccess:
		dispErr = os.Remove(job.LocalPath)
		action = "deleted"
	case archiveOnSuccess:
		ds, ok, err := p.dataSources.Get(ctx, job.DataSourceName)
		if err != nil || !ok || ds.ArchiveFolderPath == "" {
			return
		}
		dest := filepath.Join(ds.ArchiveFolderPath, filepath.Base(job.LocalPath))
		if err := os.MkdirAll(ds.ArchiveFolderPath, 0o755); err != nil {
			dispErr = err
		} else {
			dispErr = moveFile(job.LocalPath, dest)
		}
		action = "archived"
	}

	if dispErr != nil {
		jobLog.Error().Err(dispErr).Str("code", "disposition_error").Msg("post-success disposition failed")
	}
	if p.bus != nil {
		p.bus.Publish(&events.JobDispositionEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventJobDisposition, Time: p.clock.Now()},
			JobID:     job.ID,
			Action:    action,
			Err:       dispErr,
		})
	}
}

// moveFile renames src to dst, falling back to copy+remove across
// filesystem/device boundaries where os.Rename fails.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func (p *Processor) publishStateChange(job models.UploadJob, newState models.UploadState, attempts int, lastErr string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(&events.JobStateChangedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventJobStateChanged, Time: p.clock.Now()},
		JobID:     job.ID,
		OldState:  string(models.StateInFlight),
		NewState:  string(newState),
		Attempts:  attempts,
		LastError: lastErr,
	})
}
