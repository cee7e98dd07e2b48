// Package models defines the core data types for the Versus sync engine.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryState tracks a message through its send lifecycle.
type DeliveryState string

const (
	// DeliveryPending marks an optimistic message awaiting server confirmation.
	DeliveryPending DeliveryState = "pending"

	// DeliveryConfirmed marks a message acknowledged by the backend.
	DeliveryConfirmed DeliveryState = "confirmed"

	// DeliveryFailed marks a message whose send failed.
	DeliveryFailed DeliveryState = "failed"
)

// TempIDPrefix distinguishes client-assigned ids from server-assigned ones.
const TempIDPrefix = "temp-"

// Message is a chat message within a single conversation.
type Message struct {
	// ID is unique within the conversation. Server-assigned once confirmed;
	// a TempIDPrefix id until then.
	ID string `json:"id"`

	// ConversationID identifies the owning conversation.
	ConversationID string `json:"conversation_id"`

	// SenderID is the authoring user.
	SenderID string `json:"sender_id"`

	// Text is the message body.
	Text string `json:"text"`

	// Timestamp is server-authoritative once confirmed.
	Timestamp time.Time `json:"timestamp"`

	// Delivery is the send-lifecycle state.
	Delivery DeliveryState `json:"delivery,omitempty"`
}

// Optimistic reports whether the message is still awaiting confirmation.
func (m *Message) Optimistic() bool {
	return m.Delivery == DeliveryPending
}

// Validate checks required fields.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("message id is required")
	}
	if strings.TrimSpace(m.ConversationID) == "" {
		return errors.New("message conversation id is required")
	}
	if strings.TrimSpace(m.SenderID) == "" {
		return errors.New("message sender id is required")
	}
	return nil
}

// NewTempID generates a client-side message id.
func NewTempID() string {
	return fmt.Sprintf("%s%d-%s", TempIDPrefix, time.Now().UnixMilli(), uuid.New().String()[:8])
}

// IsTempID reports whether the id is a client-assigned temporary id.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
