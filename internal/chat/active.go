// Package chat maintains per-conversation message state and view tracking.
package chat

import (
	"sync"
	"time"

	"github.com/versusfit/versus/internal/models"
)

// Tracker records which single conversation the user currently has open.
// At most one conversation is active at a time; the merge engine consults it
// to suppress badge increments for the visible conversation.
type Tracker struct {
	mu     sync.Mutex
	active *models.ActiveConversation
	now    func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// SetActive replaces any previous active conversation.
func (t *Tracker) SetActive(convType models.ConversationType, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = &models.ActiveConversation{
		Ref:   models.ConversationRef{Type: convType, ID: id},
		Since: t.now(),
	}
}

// IsActive reports whether the given conversation is currently open.
func (t *Tracker) IsActive(convType models.ConversationType, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil && t.active.Ref.Type == convType && t.active.Ref.ID == id
}

// Clear removes the active conversation.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = nil
}

// RefreshTimestamp updates the active-since timestamp. No-op unless the given
// conversation is currently active.
func (t *Tracker) RefreshTimestamp(convType models.ConversationType, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil || t.active.Ref.Type != convType || t.active.Ref.ID != id {
		return
	}
	t.active.Since = t.now()
}

// Active returns a copy of the active conversation, or nil if none is open.
func (t *Tracker) Active() *models.ActiveConversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	copy := *t.active
	return &copy
}
