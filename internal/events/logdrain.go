package events

import (
	"sync"

	"github.com/pinesagetechnology/filemonitor/internal/logging"
)

// LogDrain subscribes to every event on a Bus and logs each one through a
// *logging.Logger, replacing the GUI event bridge a desktop build would
// otherwise use to surface this activity to an operator.
type LogDrain struct {
	bus          *Bus
	log          *logging.Logger
	subscription <-chan Event

	stopC   chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewLogDrain creates a LogDrain forwarding bus's events to log.
func NewLogDrain(bus *Bus, log *logging.Logger) *LogDrain {
	return &LogDrain{
		bus:   bus,
		log:   log,
		stopC: make(chan struct{}),
	}
}

// Start begins draining the bus in a background goroutine. Calling Start
// twice is a no-op.
func (d *LogDrain) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	d.subscription = d.bus.SubscribeAll()

	d.wg.Add(1)
	go d.forwardLoop()
}

// Stop signals the drain goroutine to exit and waits for it.
func (d *LogDrain) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopC)
	d.wg.Wait()
}

func (d *LogDrain) forwardLoop() {
	defer d.wg.Done()
	for {
		select {
		case event, ok := <-d.subscription:
			if !ok {
				return
			}
			d.logEvent(event)
		case <-d.stopC:
			return
		}
	}
}

func (d *LogDrain) logEvent(event Event) {
	switch e := event.(type) {
	case *WatcherStartedEvent:
		d.log.Info().Str("data_source", e.DataSource).Str("folder", e.FolderPath).Msg("watcher started")
	case *WatcherStoppedEvent:
		d.log.Info().Str("data_source", e.DataSource).Msg("watcher stopped")
	case *WatcherErrorEvent:
		d.log.Error().Err(e.Err).Str("data_source", e.DataSource).Msg("watcher error")
	case *JobEnqueuedEvent:
		d.log.Info().Int64("job_id", e.JobID).Str("data_source", e.DataSource).
			Str("local_path", e.LocalPath).Int64("size_bytes", e.SizeBytes).Msg("job enqueued")
	case *JobStateChangedEvent:
		d.log.Info().Int64("job_id", e.JobID).Str("old_state", e.OldState).
			Str("new_state", e.NewState).Int("attempts", e.Attempts).Msg("job state changed")
	case *JobDispositionEvent:
		d.log.Info().Int64("job_id", e.JobID).Str("action", e.Action).Err(e.Err).Msg("job disposition")
	case *SupervisorTickEvent:
		d.log.Debug().Int("watchers_running", e.WatchersRunning).Int("jobs_claimed", e.JobsClaimed).Msg("supervisor tick")
	case *ConfigChangedEvent:
		d.log.Info().Str("key", e.Key).Msg("configuration changed")
	default:
		d.log.Debug().Str("event_type", string(event.Type())).Msg("event")
	}
}
