package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/logging"
	"github.com/versusfit/versus/internal/models"
)

// defaultReconcileWindow bounds how far apart an optimistic send and its
// realtime echo may be and still be collapsed into one entry.
const defaultReconcileWindow = 10 * time.Second

// BadgeCounter receives unread increments for conversations that are not in
// view.
type BadgeCounter interface {
	Increment(ctx context.Context, conversationID string, amount int)
}

// conversationState is the per-conversation message list plus its load guard.
type conversationState struct {
	messages []models.Message
	byID     map[string]struct{}
	loaded   bool
}

func newConversationState() *conversationState {
	return &conversationState{byID: make(map[string]struct{})}
}

// Engine merges optimistic sends, bulk fetches, and realtime push events into
// one ordered, deduplicated message list per conversation. All operations are
// pure state+event transitions: out-of-order application is idempotent, with
// dedup-by-id as the primary correctness guarantee.
type Engine struct {
	mu            sync.Mutex
	conversations map[string]*conversationState

	localUserID     string
	tracker         *Tracker
	badges          BadgeCounter
	reconcileWindow time.Duration
	logger          zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithReconcileWindow overrides the optimistic-reconciliation window.
func WithReconcileWindow(window time.Duration) EngineOption {
	return func(e *Engine) {
		if window > 0 {
			e.reconcileWindow = window
		}
	}
}

// NewEngine creates a merge engine for the given local user.
func NewEngine(localUserID string, tracker *Tracker, badges BadgeCounter, opts ...EngineOption) *Engine {
	e := &Engine{
		conversations:   make(map[string]*conversationState),
		localUserID:     localUserID,
		tracker:         tracker,
		badges:          badges,
		reconcileWindow: defaultReconcileWindow,
		logger:          logging.Component("merge-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AppendOptimistic inserts a locally-sent message immediately, before any
// network round trip. A temporary id and pending state are assigned if absent.
// Returns the stored message.
func (e *Engine) AppendOptimistic(conversationID string, msg models.Message) models.Message {
	if msg.ID == "" {
		msg.ID = models.NewTempID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.ConversationID = conversationID
	msg.Delivery = models.DeliveryPending

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state(conversationID)
	if _, exists := state.byID[msg.ID]; exists {
		return msg
	}
	state.insert(msg)
	return msg
}

// ConfirmSend replaces the temporary optimistic entry with the confirmed
// server message. If the realtime echo already delivered the confirmed row,
// the temporary entry is simply dropped. A missing temporary entry (already
// collapsed) is a no-op.
func (e *Engine) ConfirmSend(conversationID, tempID string, confirmed models.Message) {
	confirmed.ConversationID = conversationID
	confirmed.Delivery = models.DeliveryConfirmed

	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.conversations[conversationID]
	if !ok {
		return
	}

	state.remove(tempID)
	if _, exists := state.byID[confirmed.ID]; exists {
		return
	}
	state.insert(confirmed)
}

// FailSend removes the temporary optimistic entry after a failed send.
func (e *Engine) FailSend(conversationID, tempID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.conversations[conversationID]
	if !ok {
		return
	}
	state.remove(tempID)
}

// MergeFetched installs the bulk-fetched history for a conversation. The fetch
// applies at most once per open session: a second call for an already-loaded
// conversation is a no-op, so redundant view re-renders cost nothing. Pending
// optimistic entries survive the replace, since an in-flight send may complete
// after the fetch response arrives.
func (e *Engine) MergeFetched(conversationID string, fetched []models.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state(conversationID)
	if state.loaded {
		return false
	}

	var pending []models.Message
	for _, msg := range state.messages {
		if msg.Optimistic() {
			pending = append(pending, msg)
		}
	}

	fresh := newConversationState()
	fresh.loaded = true
	for _, msg := range fetched {
		if _, exists := fresh.byID[msg.ID]; exists {
			continue
		}
		msg.ConversationID = conversationID
		if msg.Delivery == "" {
			msg.Delivery = models.DeliveryConfirmed
		}
		fresh.insert(msg)
	}
	for _, msg := range pending {
		if _, exists := fresh.byID[msg.ID]; exists {
			continue
		}
		fresh.insert(msg)
	}

	e.conversations[conversationID] = fresh
	return true
}

// Loaded reports whether the conversation's history fetch already applied this
// session.
func (e *Engine) Loaded(conversationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.conversations[conversationID]
	return ok && state.loaded
}

// ApplyRealtimeInsert appends a pushed message unless one with the same id is
// already present. A pending optimistic entry from the same sender with the
// same text inside the reconcile window is collapsed into the confirmed row.
// The badge increments iff the sender is not the local user and the
// conversation is not currently in view; a visible conversation still shows
// the message but carries no unread marker.
func (e *Engine) ApplyRealtimeInsert(ctx context.Context, convType models.ConversationType, msg models.Message) bool {
	conversationID := msg.ConversationID
	msg.Delivery = models.DeliveryConfirmed

	e.mu.Lock()
	state := e.state(conversationID)
	if _, exists := state.byID[msg.ID]; exists {
		e.mu.Unlock()
		return false
	}

	if msg.SenderID == e.localUserID {
		if tempID, ok := state.matchPending(msg, e.reconcileWindow); ok {
			state.remove(tempID)
		}
	}
	state.insert(msg)
	e.mu.Unlock()

	if msg.SenderID != e.localUserID && !e.tracker.IsActive(convType, conversationID) {
		e.badges.Increment(ctx, conversationID, 1)
	}
	return true
}

// ApplyRealtimeDelete removes the message with the matching id. An absent id
// is a no-op, not an error.
func (e *Engine) ApplyRealtimeDelete(conversationID, messageID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.conversations[conversationID]
	if !ok {
		return false
	}
	return state.remove(messageID)
}

// Messages returns a snapshot of the conversation's messages in display order
// (ascending by timestamp).
func (e *Engine) Messages(conversationID string) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.conversations[conversationID]
	if !ok {
		return nil
	}
	snapshot := make([]models.Message, len(state.messages))
	copy(snapshot, state.messages)
	return snapshot
}

// LatestMessage returns the most recent message for conversation-list
// previews. Timestamp ties resolve to the entry encountered last.
func (e *Engine) LatestMessage(conversationID string) (models.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.conversations[conversationID]
	if !ok || len(state.messages) == 0 {
		return models.Message{}, false
	}

	latest := state.messages[0]
	for _, msg := range state.messages[1:] {
		if !msg.Timestamp.Before(latest.Timestamp) {
			latest = msg
		}
	}
	return latest, true
}

// Release discards the conversation's state when its view closes. The next
// open fetches history again. Events arriving for a released conversation
// recreate an unloaded entry and are harmless, since nothing reads it.
func (e *Engine) Release(conversationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conversations, conversationID)
}

func (e *Engine) state(conversationID string) *conversationState {
	state, ok := e.conversations[conversationID]
	if !ok {
		state = newConversationState()
		e.conversations[conversationID] = state
	}
	return state
}

// insert adds the message keeping ascending timestamp order. Stable sort keeps
// insertion order for equal timestamps.
func (s *conversationState) insert(msg models.Message) {
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = struct{}{}
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Timestamp.Before(s.messages[j].Timestamp)
	})
}

func (s *conversationState) remove(id string) bool {
	if _, exists := s.byID[id]; !exists {
		return false
	}
	delete(s.byID, id)
	for i, msg := range s.messages {
		if msg.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return true
}

// matchPending finds a pending optimistic entry matching the confirmed
// message by sender and text within the window.
func (s *conversationState) matchPending(confirmed models.Message, window time.Duration) (string, bool) {
	for _, msg := range s.messages {
		if !msg.Optimistic() {
			continue
		}
		if msg.SenderID != confirmed.SenderID || msg.Text != confirmed.Text {
			continue
		}
		delta := confirmed.Timestamp.Sub(msg.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			return msg.ID, true
		}
	}
	return "", false
}
