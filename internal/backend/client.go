// Package backend is the client for the managed backend service: row CRUD,
// remote procedure calls, file storage, and the realtime change feed.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/logging"
)

// Table names exposed by the backend.
const (
	TableUsers          = "users"
	TableClubs          = "clubs"
	TableClubMembers    = "club_members"
	TableClubMessages   = "club_messages"
	TableConversations  = "conversations"
	TableDirectMessages = "direct_messages"
	TableNotifications  = "notifications"
	TableMatchQueue     = "matchmaking_queue"
	TableMatchDistances = "match_distances"
)

const defaultRequestTimeout = 15 * time.Second

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend request failed: status %d: %s", e.Status, e.Message)
}

// Client talks to the backend's REST surface. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger

	session sessionToken
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

// NewClient creates a backend client for the given project URL and anon key.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		logger:  logging.Component("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectRows fetches rows from a table with PostgREST-style query filters.
func (c *Client) SelectRows(ctx context.Context, table string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, "/rest/v1/"+table, query, nil, out, nil)
}

// InsertRow inserts a single row and decodes the returned representation.
func (c *Client) InsertRow(ctx context.Context, table string, row any, out any) error {
	headers := map[string]string{"Prefer": "return=representation"}
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, row, out, headers)
}

// UpdateRows applies a patch to all rows matching the query.
func (c *Client) UpdateRows(ctx context.Context, table string, query url.Values, patch any) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/"+table, query, patch, nil, nil)
}

// DeleteRows deletes all rows matching the query.
func (c *Client) DeleteRows(ctx context.Context, table string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+table, query, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, headers map[string]string) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.authToken())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// authToken returns the session access token, or the anon key before sign-in.
func (c *Client) authToken() string {
	if token := c.session.accessToken(); token != "" {
		return token
	}
	return c.apiKey
}
