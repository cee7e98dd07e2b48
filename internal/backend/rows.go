package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/versusfit/versus/internal/models"
)

// ClubMessageRow is a row in the club_messages table.
type ClubMessageRow struct {
	ID        string    `json:"id,omitempty"`
	ClubID    string    `json:"club_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UnreadBy  []string  `json:"unread_by,omitempty"`
}

// ToMessage converts the row to the engine's message type.
func (r ClubMessageRow) ToMessage() models.Message {
	return models.Message{
		ID:             r.ID,
		ConversationID: r.ClubID,
		SenderID:       r.SenderID,
		Text:           r.Content,
		Timestamp:      r.CreatedAt,
		Delivery:       models.DeliveryConfirmed,
	}
}

// DirectMessageRow is a row in the direct_messages table.
type DirectMessageRow struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	Read           bool      `json:"read,omitempty"`
}

// ToMessage converts the row to the engine's message type.
func (r DirectMessageRow) ToMessage() models.Message {
	return models.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Text:           r.Content,
		Timestamp:      r.CreatedAt,
		Delivery:       models.DeliveryConfirmed,
	}
}

// ConversationRow is a row in the conversations table.
type ConversationRow struct {
	ID        string    `json:"id,omitempty"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NotificationRow is a row in the notifications table.
type NotificationRow struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// MatchDistanceRow is a row in the match_distances table.
type MatchDistanceRow struct {
	ID       string    `json:"id,omitempty"`
	MatchID  string    `json:"match_id"`
	UserID   string    `json:"user_id"`
	Meters   float64   `json:"meters"`
	LoggedAt time.Time `json:"logged_at,omitempty"`
}

// InsertClubMessage creates a club chat message and returns the stored row.
func (c *Client) InsertClubMessage(ctx context.Context, clubID, senderID, content string) (ClubMessageRow, error) {
	var rows []ClubMessageRow
	err := c.InsertRow(ctx, TableClubMessages, ClubMessageRow{
		ClubID:   clubID,
		SenderID: senderID,
		Content:  content,
	}, &rows)
	if err != nil {
		return ClubMessageRow{}, err
	}
	if len(rows) == 0 {
		return ClubMessageRow{}, fmt.Errorf("insert into %s returned no row", TableClubMessages)
	}
	return rows[0], nil
}

// ListClubMessages fetches a club's message history, oldest first.
func (c *Client) ListClubMessages(ctx context.Context, clubID string, limit int) ([]ClubMessageRow, error) {
	query := url.Values{}
	query.Set("club_id", "eq."+clubID)
	query.Set("order", "created_at.asc")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []ClubMessageRow
	if err := c.SelectRows(ctx, TableClubMessages, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertDirectMessage creates a direct message and returns the stored row.
func (c *Client) InsertDirectMessage(ctx context.Context, conversationID, senderID, receiverID, content string) (DirectMessageRow, error) {
	var rows []DirectMessageRow
	err := c.InsertRow(ctx, TableDirectMessages, DirectMessageRow{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	}, &rows)
	if err != nil {
		return DirectMessageRow{}, err
	}
	if len(rows) == 0 {
		return DirectMessageRow{}, fmt.Errorf("insert into %s returned no row", TableDirectMessages)
	}
	return rows[0], nil
}

// ListDirectMessages fetches a conversation's history, oldest first.
func (c *Client) ListDirectMessages(ctx context.Context, conversationID string, limit int) ([]DirectMessageRow, error) {
	query := url.Values{}
	query.Set("conversation_id", "eq."+conversationID)
	query.Set("order", "created_at.asc")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []DirectMessageRow
	if err := c.SelectRows(ctx, TableDirectMessages, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateConversation creates a direct conversation between two users.
func (c *Client) CreateConversation(ctx context.Context, userA, userB string) (ConversationRow, error) {
	var rows []ConversationRow
	err := c.InsertRow(ctx, TableConversations, ConversationRow{
		UserA: userA,
		UserB: userB,
	}, &rows)
	if err != nil {
		return ConversationRow{}, err
	}
	if len(rows) == 0 {
		return ConversationRow{}, fmt.Errorf("insert into %s returned no row", TableConversations)
	}
	return rows[0], nil
}

// ListNotifications fetches a user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID string, limit int) ([]NotificationRow, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("order", "created_at.desc")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []NotificationRow
	if err := c.SelectRows(ctx, TableNotifications, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertMatchDistance records a distance contribution for a match.
func (c *Client) InsertMatchDistance(ctx context.Context, row MatchDistanceRow) (MatchDistanceRow, error) {
	var rows []MatchDistanceRow
	if err := c.InsertRow(ctx, TableMatchDistances, row, &rows); err != nil {
		return MatchDistanceRow{}, err
	}
	if len(rows) == 0 {
		return MatchDistanceRow{}, fmt.Errorf("insert into %s returned no row", TableMatchDistances)
	}
	return rows[0], nil
}
