// Package realtime manages change-feed subscription lifecycles and routes
// incoming row events to the merge engine and badge store.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/backend"
	"github.com/versusfit/versus/internal/events"
	"github.com/versusfit/versus/internal/logging"
	"github.com/versusfit/versus/internal/models"
)

// Status is the lifecycle state of one subscription.
type Status string

const (
	StatusUnsubscribed Status = "unsubscribed"
	StatusSubscribing  Status = "subscribing"
	StatusSubscribed   Status = "subscribed"
	StatusFailed       Status = "failed"
)

// Manager errors.
var (
	ErrAlreadySubscribed = errors.New("channel already subscribed")
	ErrNotSubscribed     = errors.New("channel not subscribed")
)

// StatusListener observes subscription state transitions. The manager never
// auto-retries a failed channel; the listener decides what to do.
type StatusListener func(channel string, oldStatus, newStatus Status)

// MessageSink receives routed message events.
type MessageSink interface {
	ApplyRealtimeInsert(ctx context.Context, convType models.ConversationType, msg models.Message) bool
	ApplyRealtimeDelete(conversationID, messageID string) bool
}

// CountSink receives unread invalidation for conversations without an open
// message channel.
type CountSink interface {
	Increment(ctx context.Context, conversationID string, amount int)
}

// subscriptionState is one open channel and its lifecycle status.
type subscriptionState struct {
	handle backend.FeedHandle
	status Status
}

// Manager owns every open change-feed channel: one per club the user belongs
// to, one for the user's direct messages, and one global channel for account
// notifications and unread invalidation. Channels must be released on every
// exit path; a leaked channel redelivers events after re-subscribe.
type Manager struct {
	feed   backend.ChangeFeed
	sink   MessageSink
	counts CountSink
	bus    *events.Bus
	logger zerolog.Logger

	mu       sync.Mutex
	subs     map[string]*subscriptionState
	listener StatusListener
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStatusListener registers a listener for status transitions.
func WithStatusListener(listener StatusListener) ManagerOption {
	return func(m *Manager) {
		m.listener = listener
	}
}

// WithCountSink routes unread invalidation from the global channel into the
// badge counts for conversations whose message channel is closed.
func WithCountSink(counts CountSink) ManagerOption {
	return func(m *Manager) {
		m.counts = counts
	}
}

// NewManager creates a subscription manager routing into sink and bus.
func NewManager(feed backend.ChangeFeed, sink MessageSink, bus *events.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		feed:   feed,
		sink:   sink,
		bus:    bus,
		logger: logging.Component("realtime"),
		subs:   make(map[string]*subscriptionState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Channel keys.
func clubChannel(clubID string) string   { return "club:" + clubID }
func directChannel(userID string) string { return "direct:" + userID }
func globalChannel(userID string) string { return "global:" + userID }

// SubscribeClubMessages opens the change-feed channel for one club's chat,
// filtered server-side by club id. Each row event updates exactly that club's
// conversation.
func (m *Manager) SubscribeClubMessages(ctx context.Context, clubID string) error {
	return m.subscribe(ctx, clubChannel(clubID), backend.ChannelRequest{
		Table:  backend.TableClubMessages,
		Filter: "club_id=eq." + clubID,
		Handler: func(event backend.ChangeEvent) {
			m.routeClubEvent(event)
		},
	})
}

// SubscribeDirectMessages opens the channel for direct messages addressed to
// the user.
func (m *Manager) SubscribeDirectMessages(ctx context.Context, userID string) error {
	return m.subscribe(ctx, directChannel(userID), backend.ChannelRequest{
		Table:  backend.TableDirectMessages,
		Filter: "receiver_id=eq." + userID,
		Handler: func(event backend.ChangeEvent) {
			m.routeDirectEvent(event)
		},
	})
}

// SubscribeGlobal opens the cross-cutting channel for account notifications
// and unread-count invalidation.
func (m *Manager) SubscribeGlobal(ctx context.Context, userID string) error {
	return m.subscribe(ctx, globalChannel(userID), backend.ChannelRequest{
		Table:  backend.TableNotifications,
		Filter: "user_id=eq." + userID,
		Handler: func(event backend.ChangeEvent) {
			m.routeNotificationEvent(userID, event)
		},
	})
}

func (m *Manager) subscribe(ctx context.Context, key string, req backend.ChannelRequest) error {
	m.mu.Lock()
	if _, exists := m.subs[key]; exists {
		m.mu.Unlock()
		return ErrAlreadySubscribed
	}
	state := &subscriptionState{status: StatusUnsubscribed}
	m.subs[key] = state
	m.mu.Unlock()

	m.transition(key, state, StatusSubscribing)

	req.OnClosed = func(err error) {
		m.logger.Warn().Err(err).Str("channel", key).Msg("change feed channel closed")
		m.transition(key, state, StatusFailed)
	}

	handle, err := m.feed.Subscribe(ctx, req)
	if err != nil {
		m.transition(key, state, StatusFailed)
		m.mu.Lock()
		delete(m.subs, key)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	state.handle = handle
	m.mu.Unlock()
	m.transition(key, state, StatusSubscribed)
	return nil
}

// UnsubscribeClubMessages tears down one club channel.
func (m *Manager) UnsubscribeClubMessages(clubID string) error {
	return m.unsubscribe(clubChannel(clubID))
}

// UnsubscribeDirectMessages tears down the direct-message channel.
func (m *Manager) UnsubscribeDirectMessages(userID string) error {
	return m.unsubscribe(directChannel(userID))
}

// UnsubscribeGlobal tears down the global channel.
func (m *Manager) UnsubscribeGlobal(userID string) error {
	return m.unsubscribe(globalChannel(userID))
}

func (m *Manager) unsubscribe(key string) error {
	m.mu.Lock()
	state, exists := m.subs[key]
	if !exists {
		m.mu.Unlock()
		return ErrNotSubscribed
	}
	delete(m.subs, key)
	handle := state.handle
	m.mu.Unlock()

	if handle != nil {
		_ = handle.Close()
	}
	m.transition(key, state, StatusUnsubscribed)
	return nil
}

// ClubStatus returns the lifecycle state of a club channel.
func (m *Manager) ClubStatus(clubID string) Status {
	return m.status(clubChannel(clubID))
}

func (m *Manager) status(key string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, exists := m.subs[key]
	if !exists {
		return StatusUnsubscribed
	}
	return state.status
}

// OpenChannels returns the number of live subscriptions.
func (m *Manager) OpenChannels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close tears down every open channel. Called on logout and on every exit
// path of the owning scope.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*subscriptionState)
	m.mu.Unlock()

	for key, state := range subs {
		if state.handle != nil {
			_ = state.handle.Close()
		}
		m.transition(key, state, StatusUnsubscribed)
	}
}

func (m *Manager) transition(key string, state *subscriptionState, next Status) {
	m.mu.Lock()
	old := state.status
	state.status = next
	listener := m.listener
	m.mu.Unlock()

	if old == next {
		return
	}
	m.logger.Debug().
		Str("channel", key).
		Str("old_status", string(old)).
		Str("new_status", string(next)).
		Msg("subscription status changed")

	if m.bus != nil {
		m.bus.Publish(events.NewEvent(
			models.EventTypeSubscriptionStatus,
			models.EntityTypeSubscription,
			key,
			models.SubscriptionStatusPayload{
				Channel:   key,
				OldStatus: string(old),
				NewStatus: string(next),
			},
		))
	}
	if listener != nil {
		listener(key, old, next)
	}
}

// routeClubEvent maps a club_messages row change onto exactly one
// conversation, the row's club id.
func (m *Manager) routeClubEvent(event backend.ChangeEvent) {
	switch event.Action {
	case backend.ChangeInsert:
		var row backend.ClubMessageRow
		if err := json.Unmarshal(event.New, &row); err != nil {
			m.logger.Warn().Err(err).Msg("failed to parse club message row")
			return
		}
		m.sink.ApplyRealtimeInsert(context.Background(), models.ConversationClub, row.ToMessage())
	case backend.ChangeDelete:
		var row backend.ClubMessageRow
		if err := json.Unmarshal(event.Old, &row); err != nil {
			m.logger.Warn().Err(err).Msg("failed to parse deleted club message row")
			return
		}
		m.sink.ApplyRealtimeDelete(row.ClubID, row.ID)
	}
}

func (m *Manager) routeDirectEvent(event backend.ChangeEvent) {
	switch event.Action {
	case backend.ChangeInsert:
		var row backend.DirectMessageRow
		if err := json.Unmarshal(event.New, &row); err != nil {
			m.logger.Warn().Err(err).Msg("failed to parse direct message row")
			return
		}
		m.sink.ApplyRealtimeInsert(context.Background(), models.ConversationDirect, row.ToMessage())
	case backend.ChangeDelete:
		var row backend.DirectMessageRow
		if err := json.Unmarshal(event.Old, &row); err != nil {
			m.logger.Warn().Err(err).Msg("failed to parse deleted direct message row")
			return
		}
		m.sink.ApplyRealtimeDelete(row.ConversationID, row.ID)
	}
}

// routeNotificationEvent handles the lightweight global channel: notification
// inserts invalidate unread state without carrying a full message payload.
// Message notifications for a club whose channel is closed bump that club's
// badge directly; a subscribed club channel already feeds the merge engine,
// which owns the badge for its conversation.
func (m *Manager) routeNotificationEvent(userID string, event backend.ChangeEvent) {
	if event.Action != backend.ChangeInsert {
		return
	}

	var row backend.NotificationRow
	if err := json.Unmarshal(event.New, &row); err != nil {
		m.logger.Warn().Err(err).Msg("failed to parse notification row")
		return
	}

	if m.bus != nil {
		m.bus.Publish(events.NewEvent(
			models.EventTypeNotificationsUpdated,
			models.EntityTypeUser,
			userID,
			nil,
		))
	}

	if row.Type != string(models.NotificationTypeMessage) {
		return
	}
	var payload struct {
		ClubID string `json:"club_id"`
	}
	if raw, err := json.Marshal(row.Payload); err == nil {
		_ = json.Unmarshal(raw, &payload)
	}
	if payload.ClubID == "" {
		return
	}

	if m.counts != nil && m.status(clubChannel(payload.ClubID)) != StatusSubscribed {
		m.counts.Increment(context.Background(), payload.ClubID, 1)
	}
	if m.bus != nil {
		m.bus.Publish(events.NewEvent(
			models.EventTypeUnreadUpdated,
			models.EntityTypeClub,
			payload.ClubID,
			models.UnreadUpdatedPayload{ClubID: payload.ClubID},
		))
	}
}
