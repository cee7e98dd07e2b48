package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versusfit/versus/internal/backend"
	"github.com/versusfit/versus/internal/badge"
	"github.com/versusfit/versus/internal/events"
	"github.com/versusfit/versus/internal/models"
)

type fakeHandle struct {
	closed int
}

func (h *fakeHandle) Close() error {
	h.closed++
	return nil
}

type fakeFeed struct {
	mu       sync.Mutex
	requests map[string]backend.ChannelRequest
	handles  map[string]*fakeHandle
	err      error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		requests: make(map[string]backend.ChannelRequest),
		handles:  make(map[string]*fakeHandle),
	}
}

func (f *fakeFeed) Subscribe(ctx context.Context, req backend.ChannelRequest) (backend.FeedHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	handle := &fakeHandle{}
	f.requests[req.Table+":"+req.Filter] = req
	f.handles[req.Table+":"+req.Filter] = handle
	return handle, nil
}

func (f *fakeFeed) request(table, filter string) backend.ChannelRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[table+":"+filter]
}

func (f *fakeFeed) handle(table, filter string) *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[table+":"+filter]
}

type recordingSink struct {
	mu      sync.Mutex
	inserts []models.Message
	deletes [][2]string
}

func (s *recordingSink) ApplyRealtimeInsert(ctx context.Context, convType models.ConversationType, msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, msg)
	return true
}

func (s *recordingSink) ApplyRealtimeDelete(conversationID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, [2]string{conversationID, messageID})
	return true
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestSubscribeClubMessagesLifecycle(t *testing.T) {
	feed := newFakeFeed()
	manager := NewManager(feed, &recordingSink{}, events.NewBus())

	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))

	assert.Equal(t, StatusSubscribed, manager.ClubStatus("club-1"))
	assert.Equal(t, 1, manager.OpenChannels())
	req := feed.request(backend.TableClubMessages, "club_id=eq.club-1")
	assert.NotNil(t, req.Handler)

	assert.ErrorIs(t, manager.SubscribeClubMessages(context.Background(), "club-1"), ErrAlreadySubscribed)
}

func TestSubscribeFailureCleansUp(t *testing.T) {
	feed := newFakeFeed()
	feed.err = errors.New("dial failed")

	var transitions []Status
	manager := NewManager(feed, &recordingSink{}, events.NewBus(),
		WithStatusListener(func(channel string, oldStatus, newStatus Status) {
			transitions = append(transitions, newStatus)
		}))

	err := manager.SubscribeClubMessages(context.Background(), "club-1")
	require.Error(t, err)

	assert.Equal(t, []Status{StatusSubscribing, StatusFailed}, transitions)
	assert.Equal(t, 0, manager.OpenChannels(), "a failed subscribe leaves no channel behind")
	assert.Equal(t, StatusUnsubscribed, manager.ClubStatus("club-1"))

	// The caller decides on retries; a later attempt is allowed.
	feed.err = nil
	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))
	assert.Equal(t, StatusSubscribed, manager.ClubStatus("club-1"))
}

func TestChannelClosedMarksFailedWithoutRetry(t *testing.T) {
	feed := newFakeFeed()
	manager := NewManager(feed, &recordingSink{}, events.NewBus())

	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))

	req := feed.request(backend.TableClubMessages, "club_id=eq.club-1")
	require.NotNil(t, req.OnClosed)
	req.OnClosed(errors.New("connection reset"))

	assert.Equal(t, StatusFailed, manager.ClubStatus("club-1"))
	handle := feed.handle(backend.TableClubMessages, "club_id=eq.club-1")
	assert.Equal(t, 0, handle.closed, "the manager never re-dials on its own")
}

func TestStatusTransitionsPublishBusEvents(t *testing.T) {
	feed := newFakeFeed()
	bus := events.NewBus()

	var payloads []models.SubscriptionStatusPayload
	require.NoError(t, bus.Subscribe("test", events.Filter{
		EventTypes: []models.EventType{models.EventTypeSubscriptionStatus},
	}, func(event *models.Event) {
		var payload models.SubscriptionStatusPayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		payloads = append(payloads, payload)
	}))

	manager := NewManager(feed, &recordingSink{}, bus)
	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))

	require.Len(t, payloads, 2)
	assert.Equal(t, string(StatusSubscribing), payloads[0].NewStatus)
	assert.Equal(t, string(StatusSubscribed), payloads[1].NewStatus)
	assert.Equal(t, "club:club-1", payloads[1].Channel)
}

func TestUnsubscribeClosesHandle(t *testing.T) {
	feed := newFakeFeed()
	manager := NewManager(feed, &recordingSink{}, events.NewBus())

	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))
	require.NoError(t, manager.UnsubscribeClubMessages("club-1"))

	handle := feed.handle(backend.TableClubMessages, "club_id=eq.club-1")
	assert.Equal(t, 1, handle.closed)
	assert.Equal(t, StatusUnsubscribed, manager.ClubStatus("club-1"))
	assert.Equal(t, 0, manager.OpenChannels())

	assert.ErrorIs(t, manager.UnsubscribeClubMessages("club-1"), ErrNotSubscribed)
}

func TestCloseTearsDownAllChannels(t *testing.T) {
	feed := newFakeFeed()
	manager := NewManager(feed, &recordingSink{}, events.NewBus())

	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))
	require.NoError(t, manager.SubscribeDirectMessages(context.Background(), "me"))
	require.NoError(t, manager.SubscribeGlobal(context.Background(), "me"))
	require.Equal(t, 3, manager.OpenChannels())

	manager.Close()
	assert.Equal(t, 0, manager.OpenChannels())
	assert.Equal(t, 1, feed.handle(backend.TableClubMessages, "club_id=eq.club-1").closed)
	assert.Equal(t, 1, feed.handle(backend.TableDirectMessages, "receiver_id=eq.me").closed)
	assert.Equal(t, 1, feed.handle(backend.TableNotifications, "user_id=eq.me").closed)
}

func TestRouteClubInsertReachesSink(t *testing.T) {
	feed := newFakeFeed()
	sink := &recordingSink{}
	manager := NewManager(feed, sink, events.NewBus())

	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))

	req := feed.request(backend.TableClubMessages, "club_id=eq.club-1")
	req.Handler(backend.ChangeEvent{
		Table:  backend.TableClubMessages,
		Action: backend.ChangeInsert,
		New: mustJSON(t, backend.ClubMessageRow{
			ID:        "m1",
			ClubID:    "club-1",
			SenderID:  "other",
			Content:   "hello",
			CreatedAt: time.Now().UTC(),
		}),
	})

	require.Len(t, sink.inserts, 1)
	assert.Equal(t, "m1", sink.inserts[0].ID)
	assert.Equal(t, "club-1", sink.inserts[0].ConversationID)
	assert.Equal(t, "hello", sink.inserts[0].Text)
}

func TestRouteClubDeleteReachesSink(t *testing.T) {
	feed := newFakeFeed()
	sink := &recordingSink{}
	manager := NewManager(feed, sink, events.NewBus())

	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))

	req := feed.request(backend.TableClubMessages, "club_id=eq.club-1")
	req.Handler(backend.ChangeEvent{
		Table:  backend.TableClubMessages,
		Action: backend.ChangeDelete,
		Old:    mustJSON(t, backend.ClubMessageRow{ID: "m1", ClubID: "club-1"}),
	})

	require.Len(t, sink.deletes, 1)
	assert.Equal(t, [2]string{"club-1", "m1"}, sink.deletes[0])
}

func TestRouteDirectInsertReachesSink(t *testing.T) {
	feed := newFakeFeed()
	sink := &recordingSink{}
	manager := NewManager(feed, sink, events.NewBus())

	require.NoError(t, manager.SubscribeDirectMessages(context.Background(), "me"))

	req := feed.request(backend.TableDirectMessages, "receiver_id=eq.me")
	req.Handler(backend.ChangeEvent{
		Table:  backend.TableDirectMessages,
		Action: backend.ChangeInsert,
		New: mustJSON(t, backend.DirectMessageRow{
			ID:             "m1",
			ConversationID: "conv-1",
			SenderID:       "other",
			ReceiverID:     "me",
			Content:        "hey",
			CreatedAt:      time.Now().UTC(),
		}),
	})

	require.Len(t, sink.inserts, 1)
	assert.Equal(t, "conv-1", sink.inserts[0].ConversationID)
}

func TestRouteMalformedRowIsDropped(t *testing.T) {
	feed := newFakeFeed()
	sink := &recordingSink{}
	manager := NewManager(feed, sink, events.NewBus())

	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-1"))

	req := feed.request(backend.TableClubMessages, "club_id=eq.club-1")
	req.Handler(backend.ChangeEvent{
		Table:  backend.TableClubMessages,
		Action: backend.ChangeInsert,
		New:    json.RawMessage("not json"),
	})

	assert.Empty(t, sink.inserts)
}

func TestNotificationInsertInvalidatesUnread(t *testing.T) {
	feed := newFakeFeed()
	bus := events.NewBus()

	var notifEvents int
	var unread []models.UnreadUpdatedPayload
	require.NoError(t, bus.Subscribe("notif", events.Filter{
		EventTypes: []models.EventType{models.EventTypeNotificationsUpdated},
	}, func(event *models.Event) { notifEvents++ }))
	require.NoError(t, bus.Subscribe("unread", events.Filter{
		EventTypes: []models.EventType{models.EventTypeUnreadUpdated},
	}, func(event *models.Event) {
		var payload models.UnreadUpdatedPayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		unread = append(unread, payload)
	}))

	manager := NewManager(feed, &recordingSink{}, bus)
	require.NoError(t, manager.SubscribeGlobal(context.Background(), "me"))

	req := feed.request(backend.TableNotifications, "user_id=eq.me")
	req.Handler(backend.ChangeEvent{
		Table:  backend.TableNotifications,
		Action: backend.ChangeInsert,
		New: mustJSON(t, backend.NotificationRow{
			ID:      "n1",
			UserID:  "me",
			Type:    string(models.NotificationTypeMessage),
			Payload: map[string]string{"club_id": "club-7"},
		}),
	})

	assert.Equal(t, 1, notifEvents)
	require.Len(t, unread, 1)
	assert.Equal(t, "club-7", unread[0].ClubID)
}

func messageNotification(t *testing.T, clubID string) backend.ChangeEvent {
	t.Helper()
	return backend.ChangeEvent{
		Table:  backend.TableNotifications,
		Action: backend.ChangeInsert,
		New: mustJSON(t, backend.NotificationRow{
			ID:      "n1",
			UserID:  "me",
			Type:    string(models.NotificationTypeMessage),
			Payload: map[string]string{"club_id": clubID},
		}),
	}
}

func TestNotificationCountsUnreadForClosedClub(t *testing.T) {
	feed := newFakeFeed()
	badges := badge.NewStore(events.NewBus())
	manager := NewManager(feed, &recordingSink{}, events.NewBus(),
		WithCountSink(badges))

	require.NoError(t, manager.SubscribeGlobal(context.Background(), "me"))

	// club-9's chat is not open; its badge still moves.
	req := feed.request(backend.TableNotifications, "user_id=eq.me")
	req.Handler(messageNotification(t, "club-9"))

	assert.Equal(t, 1, badges.Get("club-9"))
	assert.Equal(t, 1, badges.Total())
}

func TestNotificationSkipsCountWhenClubChannelOpen(t *testing.T) {
	feed := newFakeFeed()
	badges := badge.NewStore(events.NewBus())
	manager := NewManager(feed, &recordingSink{}, events.NewBus(),
		WithCountSink(badges))

	require.NoError(t, manager.SubscribeGlobal(context.Background(), "me"))
	require.NoError(t, manager.SubscribeClubMessages(context.Background(), "club-9"))

	// The open club channel delivers the message row itself; counting the
	// notification too would double the badge.
	req := feed.request(backend.TableNotifications, "user_id=eq.me")
	req.Handler(messageNotification(t, "club-9"))

	assert.Equal(t, 0, badges.Get("club-9"))
	assert.Equal(t, 0, badges.Total())
}

func TestNotificationWithoutClubSkipsUnreadEvent(t *testing.T) {
	feed := newFakeFeed()
	bus := events.NewBus()

	var unreadEvents int
	require.NoError(t, bus.Subscribe("unread", events.Filter{
		EventTypes: []models.EventType{models.EventTypeUnreadUpdated},
	}, func(event *models.Event) { unreadEvents++ }))

	manager := NewManager(feed, &recordingSink{}, bus)
	require.NoError(t, manager.SubscribeGlobal(context.Background(), "me"))

	req := feed.request(backend.TableNotifications, "user_id=eq.me")
	req.Handler(backend.ChangeEvent{
		Table:  backend.TableNotifications,
		Action: backend.ChangeInsert,
		New: mustJSON(t, backend.NotificationRow{
			ID:     "n1",
			UserID: "me",
			Type:   string(models.NotificationTypeMatchFound),
		}),
	})

	assert.Equal(t, 0, unreadEvents)
}
