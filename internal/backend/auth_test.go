package backend

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsignedToken builds a JWT without a signature, which is all the client
// needs since it only decodes claims and never verifies.
func unsignedToken(t *testing.T, sub string, exp int64) string {
	t.Helper()

	header := map[string]string{"alg": "none", "typ": "JWT"}
	claims := map[string]any{}
	if sub != "" {
		claims["sub"] = sub
	}
	if exp > 0 {
		claims["exp"] = exp
	}

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	claimsJSON, err := json.Marshal(claims)
	require.NoError(t, err)

	encode := base64.RawURLEncoding.EncodeToString
	return encode(headerJSON) + "." + encode(claimsJSON) + "."
}

func TestSetSessionExtractsUserID(t *testing.T) {
	client := NewClient("https://example.test", "anon-key")

	require.NoError(t, client.SetSession(unsignedToken(t, "user-1", 0)))

	userID, err := client.UserID()
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestSetSessionRejectsGarbage(t *testing.T) {
	client := NewClient("https://example.test", "anon-key")

	assert.ErrorIs(t, client.SetSession("not-a-jwt"), ErrInvalidToken)
	assert.ErrorIs(t, client.SetSession(""), ErrInvalidToken)
}

func TestSetSessionRequiresSubject(t *testing.T) {
	client := NewClient("https://example.test", "anon-key")

	assert.ErrorIs(t, client.SetSession(unsignedToken(t, "", 0)), ErrInvalidToken)
}

func TestClearSessionDropsToken(t *testing.T) {
	client := NewClient("https://example.test", "anon-key")
	require.NoError(t, client.SetSession(unsignedToken(t, "user-1", 0)))

	client.ClearSession()

	_, err := client.UserID()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, client.AccessToken())
}

func TestAccessToken(t *testing.T) {
	client := NewClient("https://example.test", "anon-key")
	assert.Empty(t, client.AccessToken())

	token := unsignedToken(t, "user-1", 0)
	require.NoError(t, client.SetSession(token))
	assert.Equal(t, token, client.AccessToken())
}

func TestTokenExpiresWithin(t *testing.T) {
	client := NewClient("https://example.test", "anon-key")

	assert.False(t, client.TokenExpiresWithin(time.Hour), "no session means nothing to refresh")

	require.NoError(t, client.SetSession(unsignedToken(t, "user-1", time.Now().Add(30*time.Minute).Unix())))
	assert.True(t, client.TokenExpiresWithin(time.Hour))
	assert.False(t, client.TokenExpiresWithin(time.Minute))

	require.NoError(t, client.SetSession(unsignedToken(t, "user-1", 0)))
	assert.False(t, client.TokenExpiresWithin(time.Hour), "tokens without an expiry never report true")
}
