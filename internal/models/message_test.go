package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTempID(t *testing.T) {
	first := NewTempID()
	second := NewTempID()

	assert.True(t, IsTempID(first))
	assert.NotEqual(t, first, second)
	assert.False(t, IsTempID("a1b2c3"), "server ids are not temporary")
}

func TestMessageOptimistic(t *testing.T) {
	msg := Message{Delivery: DeliveryPending}
	assert.True(t, msg.Optimistic())

	msg.Delivery = DeliveryConfirmed
	assert.False(t, msg.Optimistic())

	msg.Delivery = DeliveryFailed
	assert.False(t, msg.Optimistic())
}

func TestMessageValidate(t *testing.T) {
	valid := Message{ID: "m1", ConversationID: "club-1", SenderID: "u1"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{"missing id", func(m *Message) { m.ID = " " }},
		{"missing conversation", func(m *Message) { m.ConversationID = "" }},
		{"missing sender", func(m *Message) { m.SenderID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid
			tt.mutate(&msg)
			assert.Error(t, msg.Validate())
		})
	}
}

func TestConversationRefKey(t *testing.T) {
	assert.Equal(t, "club:1", ConversationRef{Type: ConversationClub, ID: "1"}.Key())
	assert.Equal(t, "direct:1", ConversationRef{Type: ConversationDirect, ID: "1"}.Key())
}
