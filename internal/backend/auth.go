package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth errors.
var (
	ErrNoSession    = errors.New("no active session")
	ErrInvalidToken = errors.New("invalid access token")
)

// sessionToken holds the current access token and its decoded claims.
type sessionToken struct {
	mu     sync.RWMutex
	token  string
	userID string
	expiry time.Time
}

func (s *sessionToken) accessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetSession installs an access token. The token is decoded (not verified —
// verification is the backend's job, the client only needs subject and expiry)
// to extract the user id and expiration.
func (c *Client) SetSession(accessToken string) error {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return ErrInvalidToken
	}
	if claims.Subject == "" {
		return ErrInvalidToken
	}

	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	c.session.token = accessToken
	c.session.userID = claims.Subject
	if claims.ExpiresAt != nil {
		c.session.expiry = claims.ExpiresAt.Time
	} else {
		c.session.expiry = time.Time{}
	}
	return nil
}

// ClearSession drops the access token. Subsequent requests fall back to the
// anon key.
func (c *Client) ClearSession() {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	c.session.token = ""
	c.session.userID = ""
	c.session.expiry = time.Time{}
}

// AccessToken returns the current session token, or "" when signed out.
func (c *Client) AccessToken() string {
	return c.session.accessToken()
}

// UserID returns the authenticated user's id.
func (c *Client) UserID() (string, error) {
	c.session.mu.RLock()
	defer c.session.mu.RUnlock()
	if c.session.userID == "" {
		return "", ErrNoSession
	}
	return c.session.userID, nil
}

// TokenExpiresWithin reports whether the session token expires inside d.
// Tokens without an expiry never report true.
func (c *Client) TokenExpiresWithin(d time.Duration) bool {
	c.session.mu.RLock()
	defer c.session.mu.RUnlock()
	if c.session.token == "" || c.session.expiry.IsZero() {
		return false
	}
	return time.Until(c.session.expiry) <= d
}
