package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes in-process events on the bus.
type EventType string

const (
	// Badge events
	EventTypeBadgeUpdated EventType = "badge.updated"

	// Notification events
	EventTypeNotificationsUpdated EventType = "notifications.updated"

	// Unread invalidation without a full message payload
	EventTypeUnreadUpdated EventType = "unread.updated"

	// Conversation events
	EventTypeConversationCreated EventType = "conversation.created"

	// Read-status failures, surfaced via the error aggregator
	EventTypeReadStatusError EventType = "read_status.error"

	// Subscription lifecycle
	EventTypeSubscriptionStatus EventType = "subscription.status_changed"
)

// EntityType identifies what kind of entity an event relates to.
type EntityType string

const (
	EntityTypeConversation EntityType = "conversation"
	EntityTypeClub         EntityType = "club"
	EntityTypeUser         EntityType = "user"
	EntityTypeNotification EntityType = "notification"
	EntityTypeSubscription EntityType = "subscription"
	EntityTypeSystem       EntityType = "system"
)

// Event is a single in-process event. Consumers must tolerate delivery that is
// unordered relative to backend writes.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// BadgeUpdatedPayload is the payload for badge.updated events.
type BadgeUpdatedPayload struct {
	ConversationID string `json:"conversation_id"`
	Count          int    `json:"count"`
	TotalCount     int    `json:"total_count"`
}

// UnreadUpdatedPayload is the payload for unread.updated events.
type UnreadUpdatedPayload struct {
	ClubID string `json:"club_id"`
}

// ConversationCreatedPayload is the payload for conversation.created events.
type ConversationCreatedPayload struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// ReadStatusErrorPayload is the payload for read_status.error events.
type ReadStatusErrorPayload struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Error      string `json:"error,omitempty"`
}

// SubscriptionStatusPayload is the payload for subscription.status_changed events.
type SubscriptionStatusPayload struct {
	Channel   string `json:"channel"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}
