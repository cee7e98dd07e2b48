package session

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versusfit/versus/internal/config"
	"github.com/versusfit/versus/internal/health"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Global.DataDir = dir
	cfg.Global.ConfigDir = dir
	cfg.Database.Path = filepath.Join(dir, "state.db")
	cfg.Backend.URL = "https://project.example.test"
	cfg.Backend.AnonKey = "anon-key"
	return cfg
}

func TestNewBuildsInfrastructure(t *testing.T) {
	sess, err := New(testConfig(t))
	require.NoError(t, err)
	defer sess.Close(context.Background())

	assert.NotNil(t, sess.Bus())
	assert.NotNil(t, sess.Badges())
	assert.NotNil(t, sess.Notifications())
	assert.NotNil(t, sess.Backend())
}

func TestUserScopedOperationsRequireStart(t *testing.T) {
	sess, err := New(testConfig(t))
	require.NoError(t, err)
	defer sess.Close(context.Background())

	ctx := context.Background()

	_, err = sess.OpenClubChat(ctx, "club-1")
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = sess.SendClubMessage(ctx, "club-1", "hi")
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = sess.StartDirectConversation(ctx, "other")
	assert.ErrorIs(t, err, ErrNotStarted)

	// Teardown before start is harmless.
	sess.CloseClubChat("club-1")
	sess.Logout(ctx)
}

func TestStartRejectsInvalidToken(t *testing.T) {
	sess, err := New(testConfig(t))
	require.NoError(t, err)
	defer sess.Close(context.Background())

	assert.Error(t, sess.Start(context.Background(), "not-a-jwt"))
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"me"}`))
	return header + "." + claims + "."
}

// startedSession signs a session in against a stub backend that answers every
// RPC with an empty object and every row query with an empty list.
func startedSession(t *testing.T, mutate func(*config.Config)) *Session {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/rest/v1/rpc/") {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	cfg := testConfig(t)
	cfg.Backend.URL = server.URL
	if mutate != nil {
		mutate(cfg)
	}

	sess, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close(context.Background()) })
	require.NoError(t, sess.Start(context.Background(), unsignedToken(t)))
	return sess
}

type fakeProvider struct{}

func (fakeProvider) IsAvailable(ctx context.Context) error { return nil }

func (fakeProvider) RequestAuthorization(ctx context.Context, scopes health.Scopes) error {
	return nil
}

func (fakeProvider) QuerySamples(ctx context.Context, query health.SampleQuery) (health.SampleResult, error) {
	return health.SampleResult{}, nil
}

func TestStartDistanceSyncRequiresStart(t *testing.T) {
	sess, err := New(testConfig(t))
	require.NoError(t, err)
	defer sess.Close(context.Background())

	err = sess.StartDistanceSync(context.Background(), fakeProvider{}, "match-1")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStartDistanceSyncDisabledByConfig(t *testing.T) {
	sess := startedSession(t, nil)

	err := sess.StartDistanceSync(context.Background(), fakeProvider{}, "match-1")
	assert.ErrorIs(t, err, ErrHealthSyncDisabled)
}

func TestDistanceSyncLifecycle(t *testing.T) {
	sess := startedSession(t, func(cfg *config.Config) {
		cfg.Health.Enabled = true
	})
	ctx := context.Background()

	require.NoError(t, sess.StartDistanceSync(ctx, fakeProvider{}, "match-1"))
	assert.ErrorIs(t, sess.StartDistanceSync(ctx, fakeProvider{}, "match-1"),
		health.ErrSyncAlreadyRunning)

	sess.StopDistanceSync()
	require.NoError(t, sess.StartDistanceSync(ctx, fakeProvider{}, "match-1"))

	// Logout halts the loop with the rest of the user-scoped engine.
	sess.Logout(ctx)
	assert.ErrorIs(t, sess.StartDistanceSync(ctx, fakeProvider{}, "match-1"), ErrNotStarted)
}
