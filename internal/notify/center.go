// Package notify maintains the persisted account notification list.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/backend"
	"github.com/versusfit/versus/internal/events"
	"github.com/versusfit/versus/internal/logging"
	"github.com/versusfit/versus/internal/models"
	"github.com/versusfit/versus/internal/store"
)

// Center holds the notification records for the signed-in user. Records are
// persisted locally so the previously-displayed flag survives restarts and a
// notification never pops twice.
type Center struct {
	mu      sync.Mutex
	records []models.Notification

	repo   *store.NotificationRepository
	bus    *events.Bus
	logger zerolog.Logger
}

// NewCenter creates a notification center persisting through repo.
func NewCenter(repo *store.NotificationRepository, bus *events.Bus) *Center {
	return &Center{
		repo:   repo,
		bus:    bus,
		logger: logging.Component("notify"),
	}
}

// Load restores persisted records. Called once at session start.
func (c *Center) Load(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	records, err := c.repo.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()
	return nil
}

// Sync merges backend notification rows into the local list. Display flags of
// already-known records are preserved; new records arrive undisplayed.
func (c *Center) Sync(ctx context.Context, rows []backend.NotificationRow) {
	c.mu.Lock()
	known := make(map[string]models.Notification, len(c.records))
	for _, record := range c.records {
		known[record.ID] = record
	}

	merged := make([]models.Notification, 0, len(rows))
	for _, row := range rows {
		record := models.Notification{
			ID:        row.ID,
			Type:      models.NotificationType(row.Type),
			Read:      row.Read,
			CreatedAt: row.CreatedAt,
		}
		if existing, ok := known[row.ID]; ok {
			record.PreviouslyDisplayed = existing.PreviouslyDisplayed
			record.Payload = existing.Payload
		} else if row.Payload != nil {
			if data, err := json.Marshal(row.Payload); err == nil {
				record.Payload = data
			}
		}
		merged = append(merged, record)
	}
	c.records = merged
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.emit()
}

// Add appends a single notification, deduplicated by id.
func (c *Center) Add(ctx context.Context, record models.Notification) {
	c.mu.Lock()
	for _, existing := range c.records {
		if existing.ID == record.ID {
			c.mu.Unlock()
			return
		}
	}
	c.records = append(c.records, record)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.emit()
}

// MarkRead flags the notification as read.
func (c *Center) MarkRead(ctx context.Context, id string) {
	c.update(ctx, id, func(record *models.Notification) {
		record.Read = true
	})
}

// MarkDisplayed flags the notification as already surfaced, suppressing
// redisplay across sessions.
func (c *Center) MarkDisplayed(ctx context.Context, id string) {
	c.update(ctx, id, func(record *models.Notification) {
		record.PreviouslyDisplayed = true
	})
}

func (c *Center) update(ctx context.Context, id string, apply func(*models.Notification)) {
	c.mu.Lock()
	found := false
	for i := range c.records {
		if c.records[i].ID == id {
			apply(&c.records[i])
			found = true
			break
		}
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if !found {
		return
	}
	c.persist(ctx, snapshot)
	c.emit()
}

// Records returns a snapshot of all notifications.
func (c *Center) Records() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// UnreadCount returns the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, record := range c.records {
		if !record.Read {
			count++
		}
	}
	return count
}

// PendingDisplay returns notifications never surfaced to the user.
func (c *Center) PendingDisplay() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pending []models.Notification
	for _, record := range c.records {
		if !record.PreviouslyDisplayed {
			pending = append(pending, record)
		}
	}
	return pending
}

// Clear drops all records. Called on logout.
func (c *Center) Clear(ctx context.Context) {
	c.mu.Lock()
	c.records = nil
	c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.Clear(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("failed to clear persisted notifications")
		}
	}
	c.emit()
}

func (c *Center) snapshotLocked() []models.Notification {
	snapshot := make([]models.Notification, len(c.records))
	copy(snapshot, c.records)
	return snapshot
}

func (c *Center) persist(ctx context.Context, records []models.Notification) {
	if c.repo == nil {
		return
	}
	if err := c.repo.Save(ctx, records); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist notifications, continuing in memory")
	}
}

func (c *Center) emit() {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.NewEvent(
		models.EventTypeNotificationsUpdated,
		models.EntityTypeNotification,
		"",
		nil,
	))
}
