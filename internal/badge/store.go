// Package badge maintains per-conversation unread counts.
package badge

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/events"
	"github.com/versusfit/versus/internal/logging"
	"github.com/versusfit/versus/internal/models"
)

// Persister saves the badge mapping to durable local storage.
type Persister interface {
	Save(ctx context.Context, counts map[string]int) error
	Load(ctx context.Context) (map[string]int, error)
	Clear(ctx context.Context) error
}

// Store is the single source of truth for unread badge counts. An entry with
// count 0 is removed from the mapping, never retained as zero. Persistence is
// best effort: a write failure degrades to in-memory state for the session.
type Store struct {
	mu     sync.Mutex
	counts map[string]int
	total  int

	repo   Persister
	bus    *events.Bus
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister configures durable storage for the badge mapping.
func WithPersister(repo Persister) Option {
	return func(s *Store) {
		s.repo = repo
	}
}

// NewStore creates a badge store publishing changes on bus.
func NewStore(bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		counts: make(map[string]int),
		bus:    bus,
		logger: logging.Component("badge-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted mapping into memory without emitting events.
// Called once at session start, before Initialize replaces the mapping with
// authoritative backend counts.
func (s *Store) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	counts, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int, len(counts))
	s.total = 0
	for id, count := range counts {
		if count > 0 {
			s.counts[id] = count
			s.total += count
		}
	}
	return nil
}

// Get returns the unread count for a conversation, 0 if absent.
func (s *Store) Get(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[conversationID]
}

// Total returns the sum of all unread counts.
func (s *Store) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Counts returns a snapshot of the current mapping.
func (s *Store) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]int, len(s.counts))
	for id, count := range s.counts {
		snapshot[id] = count
	}
	return snapshot
}

// Set stores the count for a conversation, clamped to >= 0. A resulting count
// of 0 removes the entry. The mapping is persisted and a badge.updated event
// is emitted.
func (s *Store) Set(ctx context.Context, conversationID string, count int) {
	s.mu.Lock()
	count, total := s.setLocked(conversationID, count)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.emit(conversationID, count, total)
}

// Increment adds amount to the conversation's count. The read and the write
// happen under one lock so concurrent increments never lose an update.
func (s *Store) Increment(ctx context.Context, conversationID string, amount int) {
	s.mu.Lock()
	count, total := s.setLocked(conversationID, s.counts[conversationID]+amount)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.emit(conversationID, count, total)
}

// Reset clears the conversation's count.
func (s *Store) Reset(ctx context.Context, conversationID string) {
	s.Set(ctx, conversationID, 0)
}

// Initialize replaces the entire mapping atomically from authoritative backend
// counts and emits a badge.updated event with the "all" sentinel.
func (s *Store) Initialize(ctx context.Context, counts map[string]int) {
	s.mu.Lock()
	s.counts = make(map[string]int, len(counts))
	s.total = 0
	for id, count := range counts {
		if count > 0 {
			s.counts[id] = count
			s.total += count
		}
	}
	total := s.total
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.emit(models.BadgeAllConversations, 0, total)
}

// ClearAll empties the mapping and emits a badge.updated event with total 0.
// Called on logout.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	s.counts = make(map[string]int)
	s.total = 0
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to clear persisted badge state")
		}
	}
	s.emit(models.BadgeAllConversations, 0, 0)
}

// setLocked applies the clamped count to the mapping and returns the stored
// count and the new total; callers must hold s.mu.
func (s *Store) setLocked(conversationID string, count int) (int, int) {
	if count < 0 {
		count = 0
	}
	previous := s.counts[conversationID]
	if count == 0 {
		delete(s.counts, conversationID)
	} else {
		s.counts[conversationID] = count
	}
	s.total += count - previous
	return count, s.total
}

// snapshotLocked copies the mapping; callers must hold s.mu.
func (s *Store) snapshotLocked() map[string]int {
	snapshot := make(map[string]int, len(s.counts))
	for id, count := range s.counts {
		snapshot[id] = count
	}
	return snapshot
}

func (s *Store) persist(ctx context.Context, counts map[string]int) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, counts); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist badge state, continuing in memory")
	}
}

func (s *Store) emit(conversationID string, count, total int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewEvent(
		models.EventTypeBadgeUpdated,
		models.EntityTypeConversation,
		conversationID,
		models.BadgeUpdatedPayload{
			ConversationID: conversationID,
			Count:          count,
			TotalCount:     total,
		},
	))
}
