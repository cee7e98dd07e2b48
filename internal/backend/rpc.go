package backend

import (
	"context"
	"net/http"
)

// Call invokes a remote procedure by name. args is marshalled as the JSON
// body; the scalar or structured result is decoded into out when non-nil.
func (c *Client) Call(ctx context.Context, fn string, args, out any) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, nil, args, out, nil)
}

// UnreadCounts returns the authoritative unread count per conversation for
// the user. A single aggregate round trip; used once per session to seed the
// badge store.
func (c *Client) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	counts := map[string]int{}
	err := c.Call(ctx, "unread_counts", map[string]string{"p_user_id": userID}, &counts)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// MarkClubMessagesRead clears the user from unread_by on all of the club's
// messages.
func (c *Client) MarkClubMessagesRead(ctx context.Context, clubID, userID string) error {
	return c.Call(ctx, "mark_club_messages_read", map[string]string{
		"p_club_id": clubID,
		"p_user_id": userID,
	}, nil)
}

// MarkDirectMessagesRead marks all messages in the conversation read for the
// user.
func (c *Client) MarkDirectMessagesRead(ctx context.Context, conversationID, userID string) error {
	return c.Call(ctx, "mark_direct_messages_read", map[string]string{
		"p_conversation_id": conversationID,
		"p_user_id":         userID,
	}, nil)
}

// WeeklyDistanceSum returns the user's aggregate logged distance in meters
// since the start of the current week.
func (c *Client) WeeklyDistanceSum(ctx context.Context, userID string) (float64, error) {
	var meters float64
	err := c.Call(ctx, "weekly_distance_sum", map[string]string{"p_user_id": userID}, &meters)
	if err != nil {
		return 0, err
	}
	return meters, nil
}
