package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versusfit/versus/internal/models"
)

func TestFilterMatches(t *testing.T) {
	event := &models.Event{
		Type:       models.EventTypeBadgeUpdated,
		EntityType: models.EntityTypeConversation,
		EntityID:   "club-1",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches everything", Filter{}, true},
		{"matching event type", Filter{EventTypes: []models.EventType{models.EventTypeBadgeUpdated}}, true},
		{"non-matching event type", Filter{EventTypes: []models.EventType{models.EventTypeUnreadUpdated}}, false},
		{"matching entity type", Filter{EntityTypes: []models.EntityType{models.EntityTypeConversation}}, true},
		{"non-matching entity type", Filter{EntityTypes: []models.EntityType{models.EntityTypeUser}}, false},
		{"matching entity id", Filter{EntityID: "club-1"}, true},
		{"non-matching entity id", Filter{EntityID: "club-2"}, false},
		{
			"all criteria",
			Filter{
				EventTypes:  []models.EventType{models.EventTypeBadgeUpdated},
				EntityTypes: []models.EntityType{models.EntityTypeConversation},
				EntityID:    "club-1",
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(event))
		})
	}
}

func TestFilterNilEvent(t *testing.T) {
	filter := Filter{}
	assert.False(t, filter.Matches(nil))
}

func TestBusPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var badgeEvents, allEvents int
	require.NoError(t, bus.Subscribe("badges", Filter{
		EventTypes: []models.EventType{models.EventTypeBadgeUpdated},
	}, func(event *models.Event) { badgeEvents++ }))
	require.NoError(t, bus.Subscribe("all", Filter{}, func(event *models.Event) { allEvents++ }))

	bus.Publish(NewEvent(models.EventTypeBadgeUpdated, models.EntityTypeConversation, "club-1", nil))
	bus.Publish(NewEvent(models.EventTypeUnreadUpdated, models.EntityTypeClub, "club-1", nil))

	assert.Equal(t, 1, badgeEvents)
	assert.Equal(t, 2, allEvents)
}

func TestBusSubscribeValidation(t *testing.T) {
	bus := NewBus()

	assert.ErrorIs(t, bus.Subscribe("", Filter{}, func(event *models.Event) {}), ErrInvalidSubscriptionID)
	assert.ErrorIs(t, bus.Subscribe("sub", Filter{}, nil), ErrNilHandler)

	require.NoError(t, bus.Subscribe("sub", Filter{}, func(event *models.Event) {}))
	assert.ErrorIs(t, bus.Subscribe("sub", Filter{}, func(event *models.Event) {}), ErrSubscriptionExists)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var delivered int
	require.NoError(t, bus.Subscribe("sub", Filter{}, func(event *models.Event) { delivered++ }))
	require.NoError(t, bus.Unsubscribe("sub"))
	assert.ErrorIs(t, bus.Unsubscribe("sub"), ErrSubscriptionNotFound)

	bus.Publish(NewEvent(models.EventTypeBadgeUpdated, models.EntityTypeConversation, "club-1", nil))
	assert.Equal(t, 0, delivered)
}

func TestBusHandlerCanPublish(t *testing.T) {
	bus := NewBus()

	var secondary int
	require.NoError(t, bus.Subscribe("secondary", Filter{
		EventTypes: []models.EventType{models.EventTypeUnreadUpdated},
	}, func(event *models.Event) { secondary++ }))
	require.NoError(t, bus.Subscribe("primary", Filter{
		EventTypes: []models.EventType{models.EventTypeBadgeUpdated},
	}, func(event *models.Event) {
		bus.Publish(NewEvent(models.EventTypeUnreadUpdated, models.EntityTypeClub, "club-1", nil))
	}))

	bus.Publish(NewEvent(models.EventTypeBadgeUpdated, models.EntityTypeConversation, "club-1", nil))
	assert.Equal(t, 1, secondary)
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Subscribe("sub", Filter{}, func(event *models.Event) {}))

	bus.Close()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestNewEventMarshalsPayload(t *testing.T) {
	event := NewEvent(models.EventTypeBadgeUpdated, models.EntityTypeConversation, "club-1", models.BadgeUpdatedPayload{
		ConversationID: "club-1",
		Count:          2,
		TotalCount:     5,
	})

	require.NotEmpty(t, event.ID)
	require.False(t, event.Timestamp.IsZero())

	var payload models.BadgeUpdatedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, 5, payload.TotalCount)
}

func TestNewEventNilPayload(t *testing.T) {
	event := NewEvent(models.EventTypeNotificationsUpdated, models.EntityTypeNotification, "", nil)
	assert.Nil(t, event.Payload)
}
