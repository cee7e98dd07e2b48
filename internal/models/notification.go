package models

import (
	"encoding/json"
	"time"
)

// NotificationType categorizes account notifications.
type NotificationType string

const (
	NotificationTypeMessage     NotificationType = "message"
	NotificationTypeMatchFound  NotificationType = "match_found"
	NotificationTypeMatchResult NotificationType = "match_result"
	NotificationTypeClubInvite  NotificationType = "club_invite"
	NotificationTypeSystem      NotificationType = "system"
)

// Notification is a persisted account notification record.
type Notification struct {
	// ID is the unique identifier for the notification.
	ID string `json:"id"`

	// Type categorizes the notification.
	Type NotificationType `json:"type"`

	// Read indicates the user has opened the notification.
	Read bool `json:"read"`

	// PreviouslyDisplayed indicates the notification was already surfaced
	// once; redisplay is suppressed across sessions.
	PreviouslyDisplayed bool `json:"previously_displayed"`

	// CreatedAt is when the notification was created.
	CreatedAt time.Time `json:"created_at"`

	// Payload carries type-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}
