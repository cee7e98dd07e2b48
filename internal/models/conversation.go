package models

import (
	"fmt"
	"time"
)

// ConversationType distinguishes direct threads from club channels.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationClub   ConversationType = "club"
)

// ConversationRef identifies a single conversation.
type ConversationRef struct {
	Type ConversationType `json:"type"`
	ID   string           `json:"id"`
}

// Key returns a stable map key for the conversation.
func (r ConversationRef) Key() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// ActiveConversation records the single conversation the user has open.
type ActiveConversation struct {
	Ref ConversationRef `json:"ref"`

	// Since is when the conversation view was opened or last refreshed.
	Since time.Time `json:"since"`
}

// BadgeAllConversations is the sentinel conversation id used when the whole
// badge mapping changes at once (initialize, clear).
const BadgeAllConversations = "all"
