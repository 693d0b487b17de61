package arambo

import (
	"context"
	"sync"
	"testing"

	"github.com/arambo/backoffice/internal/arambo/arambotest"
	"github.com/arambo/backoffice/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testUsername = "arambo-admin"
	testPassword = "s3cr3t"
)

// staticTokens is a trivial TokenSource for tests.
type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *staticTokens) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func newTestClient(t *testing.T) (*arambotest.Server, *Client, *staticTokens) {
	t.Helper()
	server := arambotest.NewServer(testUsername, testPassword)
	t.Cleanup(server.Close)

	tokens := &staticTokens{}
	client := NewClient(server.URL(), server.HTTP.Client(), tokens, metrics.NewTestManager())
	return server, client, tokens
}

func TestClient_Login(t *testing.T) {
	server, client, _ := newTestClient(t)

	result, err := client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "15m", result.ExpiresIn)
	assert.Equal(t, testUsername, result.Admin.Username)
	assert.Equal(t, 1, server.SessionCount())
}

func TestClient_LoginInvalidCredentials(t *testing.T) {
	_, client, _ := newTestClient(t)

	result, err := client.Login(context.Background(), testUsername, "nope")
	require.Nil(t, result)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "Invalid username or password.")
}

func TestClient_LoginRateLimited(t *testing.T) {
	_, client, _ := newTestClient(t)

	for range 5 {
		_, err := client.Login(context.Background(), testUsername, "nope")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// even the correct password is rejected once the limiter trips
	_, err := client.Login(context.Background(), testUsername, testPassword)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "Too many login attempts.")
}

func TestClient_Verify(t *testing.T) {
	_, client, _ := newTestClient(t)

	result, err := client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)

	admin, err := client.Verify(context.Background(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testUsername, admin.Username)

	_, err = client.Verify(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_Logout(t *testing.T) {
	server, client, _ := newTestClient(t)

	result, err := client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, 1, server.SessionCount())

	require.NoError(t, client.Logout(context.Background(), result.AccessToken))
	assert.Zero(t, server.SessionCount())

	_, err = client.Verify(context.Background(), result.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_UnauthorizedHook(t *testing.T) {
	server, client, tokens := newTestClient(t)

	result, err := client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	tokens.set(result.AccessToken)

	hookCalls := 0
	client.OnUnauthorized(func() { hookCalls++ })

	id := server.SeedProperty(map[string]any{"name": "Villa Sunset"})
	_, err = client.UpdateProperty(context.Background(), id, map[string]any{"notes": "checked"})
	require.NoError(t, err)
	assert.Zero(t, hookCalls)

	server.RevokeAllSessions()
	_, err = client.UpdateProperty(context.Background(), id, map[string]any{"notes": "again"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, hookCalls)
}
