// Package errtrack rate-limits and deduplicates read-status failure reports.
package errtrack

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/logging"
)

// Default thresholds for surfacing a user-visible error.
const (
	defaultShowThreshold = 3
	defaultMinInterval   = 30 * time.Second
	defaultIdleExpiry    = 60 * time.Second
)

// Notifier surfaces a user-visible error for the failing entity.
type Notifier func(entityType, entityID string, cause error)

// Config controls aggregation thresholds.
type Config struct {
	// ShowThreshold is the occurrence count required before surfacing.
	ShowThreshold int

	// MinInterval is the minimum time between surfaced errors per key.
	MinInterval time.Duration

	// IdleExpiry removes a tracking entry after this quiet period.
	IdleExpiry time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ShowThreshold: defaultShowThreshold,
		MinInterval:   defaultMinInterval,
		IdleExpiry:    defaultIdleExpiry,
	}
}

type trackerKey struct {
	entityType string
	entityID   string
}

type trackerEntry struct {
	count       int
	lastShownAt time.Time
	cleanup     *time.Timer
}

// Aggregator prevents toast spam from repeated failures of the same logical
// operation. An error surfaces only once the occurrence count since the last
// surfaced error reaches the threshold and the minimum interval has elapsed.
// Idle entries expire to bound memory.
type Aggregator struct {
	mu      sync.Mutex
	entries map[trackerKey]*trackerEntry
	closed  bool

	config Config
	notify Notifier
	now    func() time.Time
	logger zerolog.Logger
}

// New creates an aggregator surfacing errors through notify.
func New(config Config, notify Notifier) *Aggregator {
	if config.ShowThreshold <= 0 {
		config.ShowThreshold = defaultShowThreshold
	}
	if config.MinInterval <= 0 {
		config.MinInterval = defaultMinInterval
	}
	if config.IdleExpiry <= 0 {
		config.IdleExpiry = defaultIdleExpiry
	}

	return &Aggregator{
		entries: make(map[trackerKey]*trackerEntry),
		config:  config,
		notify:  notify,
		now:     time.Now,
		logger:  logging.Component("errtrack"),
	}
}

// Report records a failure occurrence for the (entityType, entityID) key and
// surfaces it when the thresholds allow. Returns true when the error was
// surfaced.
func (a *Aggregator) Report(entityType, entityID string, cause error) bool {
	a.mu.Lock()

	if a.closed {
		a.mu.Unlock()
		return false
	}

	key := trackerKey{entityType: entityType, entityID: entityID}
	entry, ok := a.entries[key]
	if !ok {
		entry = &trackerEntry{}
		a.entries[key] = entry
	}
	entry.count++

	// Re-arm the idle cleanup on every occurrence. The timer passes itself
	// to expire so a stale timer that already fired, but lost the race for
	// the lock, cannot drop a re-armed entry.
	if entry.cleanup != nil {
		entry.cleanup.Stop()
	}
	var cleanup *time.Timer
	cleanup = time.AfterFunc(a.config.IdleExpiry, func() {
		a.expire(key, cleanup)
	})
	entry.cleanup = cleanup

	now := a.now()
	show := entry.count >= a.config.ShowThreshold &&
		(entry.lastShownAt.IsZero() || now.Sub(entry.lastShownAt) >= a.config.MinInterval)
	if show {
		entry.count = 0
		entry.lastShownAt = now
	}
	notify := a.notify
	a.mu.Unlock()

	if show {
		a.logger.Debug().
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Err(cause).
			Msg("surfacing aggregated error")
		if notify != nil {
			notify(entityType, entityID, cause)
		}
	}
	return show
}

// PendingCount returns the occurrence count since the last surfaced error for
// the key, 0 if untracked.
func (a *Aggregator) PendingCount(entityType, entityID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.entries[trackerKey{entityType: entityType, entityID: entityID}]
	if !ok {
		return 0
	}
	return entry.count
}

// TrackedKeys returns the number of live tracking entries.
func (a *Aggregator) TrackedKeys() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Close cancels all pending cleanup timers and stops accepting reports.
// Called on teardown so timers never leak across logout/login cycles.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	for _, entry := range a.entries {
		if entry.cleanup != nil {
			entry.cleanup.Stop()
		}
	}
	a.entries = make(map[trackerKey]*trackerEntry)
}

// expire removes the entry only while timer is still its armed cleanup.
func (a *Aggregator) expire(key trackerKey, timer *time.Timer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	entry, ok := a.entries[key]
	if !ok || entry.cleanup != timer {
		return
	}
	delete(a.entries, key)
}
