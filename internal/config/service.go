// Package config provides the live Configuration key/value service backing
// operator-adjustable tunables (tick interval, retry policy, disposition
// behavior, Azure connection settings). Values live in the store and are
// cached in-process for a bounded TTL, so repeated reads of a key within
// that TTL are served from memory.
package config

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pinesagetechnology/filemonitor/internal/clock"
	"github.com/pinesagetechnology/filemonitor/internal/events"
	"github.com/pinesagetechnology/filemonitor/internal/models"
	"github.com/pinesagetechnology/filemonitor/internal/store"
)

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// Service is the live configuration accessor used by the supervisor,
// watcher, and upload processor.
type Service struct {
	repo  *store.ConfigRepo
	clock clock.Clock
	ttl   time.Duration
	bus   *events.Bus

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates a Service reading through repo with the given cache TTL. A
// non-positive ttl disables caching, so every read goes to the store; bus
// may be nil if Set-change notifications aren't needed.
func New(repo *store.ConfigRepo, clk clock.Clock, ttl time.Duration, bus *events.Bus) *Service {
	return &Service{
		repo:  repo,
		clock: clk,
		ttl:   ttl,
		bus:   bus,
		cache: make(map[string]cacheEntry),
	}
}

// GetString returns the current string value for key, or def if the key is
// absent or a store error occurs reading through a cold cache.
func (s *Service) GetString(ctx context.Context, key, def string) string {
	v, ok := s.get(ctx, key)
	if !ok {
		return def
	}
	return v
}

// GetInt parses the value as an int, falling back to def on a missing key
// or parse failure.
func (s *Service) GetInt(ctx context.Context, key string, def int) int {
	v, ok := s.get(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetBool parses the value as a bool ("true"/"false"/"1"/"0"), falling
// back to def on a missing key or parse failure.
func (s *Service) GetBool(ctx context.Context, key string, def bool) bool {
	v, ok := s.get(ctx, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetDuration parses the value as a count of seconds, falling back to def
// on a missing key or parse failure.
func (s *Service) GetDuration(ctx context.Context, key string, def time.Duration) time.Duration {
	v, ok := s.get(ctx, key)
	if !ok {
		return def
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(seconds) * time.Second
}

// Exists reports whether key has a stored value, bypassing the cache.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	return s.repo.Exists(ctx, key)
}

// Set writes key's value, invalidates the cached entry, and publishes a
// ConfigChangedEvent so observers can react without polling.
func (s *Service) Set(ctx context.Context, key, value, category, description string) error {
	if err := s.repo.Set(ctx, models.Configuration{
		Key: key, Value: value, Category: category, Description: description,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(&events.ConfigChangedEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventConfigChanged, Time: s.clock.Now()},
			Key:       key,
		})
	}
	return nil
}

// List returns every Configuration row, read directly from the store.
func (s *Service) List(ctx context.Context) ([]models.Configuration, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) get(ctx context.Context, key string) (string, bool) {
	s.mu.Lock()
	entry, cached := s.cache[key]
	fresh := cached && s.clock.Now().Sub(entry.fetchedAt) < s.ttl
	s.mu.Unlock()

	if fresh {
		return entry.value, true
	}

	cfg, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		// A transient store read failure should not crash the caller; the
		// stale cached value (if any) is still better than nothing.
		if cached {
			return entry.value, true
		}
		return "", false
	}
	if !ok {
		return "", false
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{value: cfg.Value, fetchedAt: s.clock.Now()}
	s.mu.Unlock()

	return cfg.Value, true
}
