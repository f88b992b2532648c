// Package constants centralizes default values and thresholds shared across
// the store, configuration service, watcher, and upload queue.
package constants

import "time"

// Configuration defaults, used by config.Bootstrap to seed rows absent from
// the Configurations table on first run.
const (
	// DefaultProcessingIntervalSeconds - supervisor tick period.
	DefaultProcessingIntervalSeconds = 30

	// DefaultMaxFileSizeMB - files larger than this are not enqueued.
	DefaultMaxFileSizeMB = 512

	// DefaultMaxConcurrentUploads - processor worker count per tick.
	DefaultMaxConcurrentUploads = 4

	// DefaultMaxRetries - attempt cap before a job transitions to Failed.
	DefaultMaxRetries = 5

	// DefaultRetryDelaySeconds - base of the exponential backoff.
	DefaultRetryDelaySeconds = 5

	// DefaultMaxRetryDelayMinutes - upper clamp on backoff.
	DefaultMaxRetryDelayMinutes = 15

	// DefaultArchiveOnSuccess / DefaultDeleteOnSuccess control disposition;
	// represented as strings since Configuration.Value is always text.
	DefaultArchiveOnSuccess = "false"
	DefaultDeleteOnSuccess  = "false"

	// DefaultContainer is the seeded value of Azure.DefaultContainer and the
	// fallback when that key is missing or a watcher has no container set.
	DefaultContainer = "uploads"
)

// Watcher tuning.
const (
	// QuiescenceWindow is how long a file's size must remain unchanged
	// before it is considered stable and eligible for enqueue.
	QuiescenceWindow = 1 * time.Second

	// QuiescencePollInterval is how often the watcher re-stats a candidate
	// file while waiting for it to go quiet.
	QuiescencePollInterval = 250 * time.Millisecond
)

// Processor tuning.
const (
	// ReclaimMultiplier - an InFlight row idle longer than
	// ReclaimMultiplier * tick period is assumed to belong to a crashed
	// worker and is reset to Pending.
	ReclaimMultiplier = 10

	// ConfigCacheTTLFloor is the cache TTL the CLI passes to config.New.
	// config.New itself applies no minimum.
	ConfigCacheTTLFloor = 1 * time.Second
)

// EventBusDefaultBuffer is the default per-subscriber channel buffer size.
const EventBusDefaultBuffer = 256

// UploadChunkSize is the buffer size used when streaming a file's contents
// to blob storage.
const UploadChunkSize = 4 * 1024 * 1024 // 4 MB
