package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/logging"
)

// ChangeAction is the kind of row change delivered by the feed.
type ChangeAction string

const (
	ChangeInsert ChangeAction = "INSERT"
	ChangeUpdate ChangeAction = "UPDATE"
	ChangeDelete ChangeAction = "DELETE"
)

// ChangeEvent is a single row-level change from the backend change feed.
type ChangeEvent struct {
	Table  string
	Action ChangeAction

	// New is the row after the change (insert/update).
	New json.RawMessage

	// Old is the row before the change (update/delete).
	Old json.RawMessage
}

// ChangeHandler receives change events for one channel.
type ChangeHandler func(event ChangeEvent)

// ChannelRequest describes one change-feed channel: a table, a server-side
// filter, and the handler receiving its events.
type ChannelRequest struct {
	// Table is the table to watch.
	Table string

	// Filter is a server-side row filter, e.g. "club_id=eq.42". Empty
	// watches the whole table.
	Filter string

	// Handler receives every change event on the channel.
	Handler ChangeHandler

	// OnClosed is invoked once when delivery stops for any reason other
	// than an explicit Close; nil error means the remote ended the channel.
	OnClosed func(err error)
}

// FeedHandle is an open change-feed channel. Close must be called on every
// exit path; a leaked handle delivers duplicate events after re-subscribe.
type FeedHandle interface {
	Close() error
}

// ChangeFeed opens change-feed channels against the backend.
type ChangeFeed interface {
	Subscribe(ctx context.Context, req ChannelRequest) (FeedHandle, error)
}

const (
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

// phoenixMessage is the wire frame of the realtime protocol.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload carries the row images inside INSERT/UPDATE/DELETE frames.
type changePayload struct {
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
}

// WebSocketFeed implements ChangeFeed over the backend's realtime websocket.
// Each channel holds its own connection, so tearing one down never disturbs
// the others.
type WebSocketFeed struct {
	wsURL   string
	apiKey  string
	tokenFn func() string
	dialer  *websocket.Dialer
	logger  zerolog.Logger
}

// NewWebSocketFeed creates a change feed client. tokenFn supplies the current
// access token per connection; nil falls back to the anon key.
func NewWebSocketFeed(wsURL, apiKey string, tokenFn func() string) *WebSocketFeed {
	return &WebSocketFeed{
		wsURL:   wsURL,
		apiKey:  apiKey,
		tokenFn: tokenFn,
		dialer:  websocket.DefaultDialer,
		logger:  logging.Component("changefeed"),
	}
}

// Subscribe dials the realtime endpoint and joins the channel topic for the
// requested table and filter.
func (f *WebSocketFeed) Subscribe(ctx context.Context, req ChannelRequest) (FeedHandle, error) {
	if req.Table == "" {
		return nil, fmt.Errorf("change feed table is required")
	}
	if req.Handler == nil {
		return nil, fmt.Errorf("change feed handler is required")
	}

	token := f.apiKey
	if f.tokenFn != nil {
		if t := f.tokenFn(); t != "" {
			token = t
		}
	}

	endpoint, err := url.Parse(f.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	query := endpoint.Query()
	query.Set("apikey", f.apiKey)
	query.Set("token", token)
	endpoint.RawQuery = query.Encode()

	conn, _, err := f.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	topic := "realtime:public:" + req.Table
	if req.Filter != "" {
		topic += ":" + req.Filter
	}

	ch := &feedChannel{
		conn:   conn,
		topic:  topic,
		req:    req,
		logger: f.logger.With().Str("topic", topic).Logger(),
		done:   make(chan struct{}),
	}

	if err := ch.write(phoenixMessage{Topic: topic, Event: "phx_join", Payload: json.RawMessage(`{}`), Ref: ch.nextRef()}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to join channel: %w", err)
	}

	go ch.readLoop()
	go ch.heartbeatLoop()

	f.logger.Debug().Str("topic", topic).Msg("change feed channel opened")
	return ch, nil
}

// feedChannel is one joined topic on its own connection.
type feedChannel struct {
	conn   *websocket.Conn
	topic  string
	req    ChannelRequest
	logger zerolog.Logger

	writeMu   sync.Mutex
	refSeq    atomic.Int64
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

func (c *feedChannel) nextRef() string {
	return fmt.Sprintf("%d", c.refSeq.Add(1))
}

func (c *feedChannel) write(msg phoenixMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *feedChannel) readLoop() {
	for {
		var msg phoenixMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.finish(err)
			return
		}

		switch msg.Event {
		case string(ChangeInsert), string(ChangeUpdate), string(ChangeDelete):
			var payload changePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.logger.Warn().Err(err).Msg("failed to parse change payload")
				continue
			}
			c.req.Handler(ChangeEvent{
				Table:  c.req.Table,
				Action: ChangeAction(msg.Event),
				New:    payload.Record,
				Old:    payload.OldRecord,
			})
		case "phx_reply", "heartbeat":
			// Join/heartbeat acknowledgements carry no row data.
		case "phx_error", "phx_close":
			c.finish(nil)
			return
		}
	}
}

func (c *feedChannel) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			msg := phoenixMessage{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`), Ref: c.nextRef()}
			if err := c.write(msg); err != nil {
				c.logger.Warn().Err(err).Msg("heartbeat failed")
				c.finish(err)
				return
			}
		}
	}
}

// finish tears the channel down after a read error or remote close.
func (c *feedChannel) finish(err error) {
	if c.closed.Load() {
		return
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.conn.Close()
		if c.req.OnClosed != nil {
			c.req.OnClosed(err)
		}
	})
}

// Close leaves the topic and closes the connection. Idempotent.
func (c *feedChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.write(phoenixMessage{Topic: c.topic, Event: "phx_leave", Payload: json.RawMessage(`{}`), Ref: c.nextRef()})
		_ = c.conn.Close()
	})
	return nil
}
