package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arambo/backoffice/internal/arambo"
	"github.com/arambo/backoffice/internal/arambo/arambotest"
	"github.com/arambo/backoffice/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testAuthAPI is a scripted AuthAPI, in the spirit of a hand-written test
// checker: set the fields, count the calls.
type testAuthAPI struct {
	mu          sync.Mutex
	loginResult *arambo.LoginResult
	loginErr    error
	verifyAdmin *arambo.Admin
	verifyErr   error
	logoutErr   error

	loginCalls  int
	verifyCalls int
	logoutCalls int
}

func (a *testAuthAPI) Login(_ context.Context, _, _ string) (*arambo.LoginResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginCalls++
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return a.loginResult, nil
}

func (a *testAuthAPI) Verify(_ context.Context, _ string) (*arambo.Admin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifyCalls++
	if a.verifyErr != nil {
		return nil, a.verifyErr
	}
	return a.verifyAdmin, nil
}

func (a *testAuthAPI) Logout(_ context.Context, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logoutCalls++
	return a.logoutErr
}

func (a *testAuthAPI) calls() (login, verify, logout int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginCalls, a.verifyCalls, a.logoutCalls
}

type testNotifier struct {
	mu          sync.Mutex
	succeeded   int
	failed      int
	rateLimited int
	connFailed  int
	expired     int
	loggedOut   int
	lastMessage string
}

func (n *testNotifier) LoginSucceeded(_, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded++
}

func (n *testNotifier) LoginFailed(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed++
	n.lastMessage = message
}

func (n *testNotifier) RateLimited(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rateLimited++
	n.lastMessage = message
}

func (n *testNotifier) ConnectionFailed() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connFailed++
}

func (n *testNotifier) SessionExpired() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
}

func (n *testNotifier) LoggedOut() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loggedOut++
}

func (n *testNotifier) counts() (succeeded, failed, rateLimited, connFailed, expired, loggedOut int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.succeeded, n.failed, n.rateLimited, n.connFailed, n.expired, n.loggedOut
}

type testNavigator struct {
	navigations atomic.Int64
}

func (n *testNavigator) NavigateToLogin() {
	n.navigations.Add(1)
}

// testClock is a settable time source for the credential store.
type testClock struct {
	base   time.Time
	offset atomic.Int64
}

func newTestClock() *testClock {
	return &testClock{base: time.Now()}
}

func (c *testClock) now() time.Time {
	return c.base.Add(time.Duration(c.offset.Load()))
}

func (c *testClock) advance(d time.Duration) {
	c.offset.Add(int64(d))
}

func newTestController(api *testAuthAPI) (*Controller, *Store, *testNotifier, *testNavigator) {
	store := NewStore(NewMemoryBackend())
	notifier := &testNotifier{}
	navigator := &testNavigator{}
	controller := NewController(store, api, notifier, navigator, metrics.NewTestManager())
	controller.TickInterval = 10 * time.Millisecond
	controller.SweepInterval = 10 * time.Millisecond
	return controller, store, notifier, navigator
}

func testAdmin() *arambo.Admin {
	return &arambo.Admin{ID: "admin-1", Username: "admin"}
}

func TestController_FreshLoadNoCredential(t *testing.T) {
	api := &testAuthAPI{}
	controller, _, _, _ := newTestController(api)
	defer controller.Close()

	require.True(t, controller.Snapshot().IsLoading)
	require.Equal(t, StateUnknown, controller.Snapshot().State)

	controller.Run(context.Background())

	snap := controller.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.Admin)

	// no credential means no network call
	_, verifyCalls, _ := api.calls()
	assert.Zero(t, verifyCalls)
}

func TestController_RestoreStoredSession(t *testing.T) {
	api := &testAuthAPI{verifyAdmin: testAdmin()}
	controller, store, _, _ := newTestController(api)
	defer controller.Close()
	defer controller.Logout(context.Background())

	store.SetCredential("stored-token", "2h")
	controller.Run(context.Background())

	snap := controller.Snapshot()
	require.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "admin", snap.Admin.Username)
	assert.Equal(t, "2h", snap.DurationLabel)
	assert.False(t, snap.IsLoading)

	_, verifyCalls, _ := api.calls()
	assert.Equal(t, 1, verifyCalls)
}

func TestController_VerifyFailureClearsStore(t *testing.T) {
	api := &testAuthAPI{verifyErr: errors.New("verify rejected")}
	controller, store, _, _ := newTestController(api)
	defer controller.Close()

	store.SetCredential("stale-token", "2h")
	controller.Run(context.Background())

	snap := controller.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.False(t, snap.IsLoading)

	_, ok := store.Token()
	assert.False(t, ok)
}

func TestController_ExpiredCredentialSkipsVerify(t *testing.T) {
	clock := newTestClock()
	api := &testAuthAPI{verifyAdmin: testAdmin()}
	controller, store, _, _ := newTestController(api)
	defer controller.Close()
	store.NowFunc = clock.now

	store.SetCredential("old-token", "15m")
	clock.advance(16 * time.Minute)

	assert.False(t, controller.CheckAuth(context.Background()))
	_, verifyCalls, _ := api.calls()
	assert.Zero(t, verifyCalls)
}

func TestController_LoginSuccess(t *testing.T) {
	clock := newTestClock()
	api := &testAuthAPI{
		loginResult: &arambo.LoginResult{
			AccessToken: "fresh-token",
			ExpiresIn:   "15m",
			Admin:       *testAdmin(),
		},
	}
	controller, store, notifier, _ := newTestController(api)
	defer controller.Close()
	store.NowFunc = clock.now

	controller.Run(context.Background())
	require.True(t, controller.Login(context.Background(), "admin", "secret"))

	snap := controller.Snapshot()
	require.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "15m", snap.DurationLabel)
	assert.Equal(t, "15m 0s", snap.Remaining)

	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "fresh-token", token)

	succeeded, _, _, _, _, _ := notifier.counts()
	assert.Equal(t, 1, succeeded)

	// the ticker keeps the displayed remaining time in sync with the clock
	clock.advance(61 * time.Second)
	require.Eventually(t, func() bool {
		return controller.Snapshot().Remaining == "13m 59s"
	}, 2*time.Second, 5*time.Millisecond)

	controller.Logout(context.Background())
}

func TestController_LoginInvalidCredentials(t *testing.T) {
	api := &testAuthAPI{
		loginErr: fmt.Errorf("%w: Invalid username or password.", arambo.ErrInvalidCredentials),
	}
	controller, store, notifier, _ := newTestController(api)
	defer controller.Close()

	controller.Run(context.Background())
	assert.False(t, controller.Login(context.Background(), "admin", "wrong"))

	// the store stays untouched on a failed login
	_, ok := store.Token()
	assert.False(t, ok)
	assert.Equal(t, StateUnauthenticated, controller.Snapshot().State)

	_, failed, _, _, _, _ := notifier.counts()
	assert.Equal(t, 1, failed)
	assert.Contains(t, notifier.lastMessage, "Invalid username or password.")
}

func TestController_LoginRateLimited(t *testing.T) {
	api := &testAuthAPI{
		loginErr: fmt.Errorf("%w: Too many login attempts.", arambo.ErrRateLimited),
	}
	controller, _, notifier, _ := newTestController(api)
	defer controller.Close()

	assert.False(t, controller.Login(context.Background(), "admin", "secret"))
	_, _, rateLimited, _, _, _ := notifier.counts()
	assert.Equal(t, 1, rateLimited)
}

func TestController_LoginTransportFailure(t *testing.T) {
	api := &testAuthAPI{loginErr: errors.New("dial tcp: connection refused")}
	controller, _, notifier, _ := newTestController(api)
	defer controller.Close()

	assert.False(t, controller.Login(context.Background(), "admin", "secret"))
	_, _, _, connFailed, _, _ := notifier.counts()
	assert.Equal(t, 1, connFailed)
}

func TestController_LogoutIdempotent(t *testing.T) {
	api := &testAuthAPI{
		loginResult: &arambo.LoginResult{
			AccessToken: "fresh-token",
			ExpiresIn:   "15m",
			Admin:       *testAdmin(),
		},
	}
	controller, store, notifier, navigator := newTestController(api)
	defer controller.Close()

	controller.Run(context.Background())
	require.True(t, controller.Login(context.Background(), "admin", "secret"))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			controller.Logout(context.Background())
		}()
	}
	wg.Wait()
	controller.Logout(context.Background()) // and once more for good measure

	snap := controller.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	_, ok := store.Token()
	assert.False(t, ok)

	_, _, _, _, _, loggedOut := notifier.counts()
	assert.Equal(t, 1, loggedOut)
	assert.Equal(t, int64(1), navigator.navigations.Load())

	// a losing goroutine may clear the store before the winner reads the
	// token for the server call, so the server sees at most one logout
	_, _, logoutCalls := api.calls()
	assert.LessOrEqual(t, logoutCalls, 1)
}

func TestController_LogoutServerFailureStillTearsDown(t *testing.T) {
	api := &testAuthAPI{
		loginResult: &arambo.LoginResult{
			AccessToken: "fresh-token",
			ExpiresIn:   "15m",
			Admin:       *testAdmin(),
		},
		logoutErr: errors.New("server unreachable"),
	}
	controller, store, notifier, navigator := newTestController(api)
	defer controller.Close()

	require.True(t, controller.Login(context.Background(), "admin", "secret"))
	controller.Logout(context.Background())

	_, _, logoutCalls := api.calls()
	assert.Equal(t, 1, logoutCalls)
	assert.Equal(t, StateUnauthenticated, controller.Snapshot().State)
	_, ok := store.Token()
	assert.False(t, ok)
	_, _, _, _, _, loggedOut := notifier.counts()
	assert.Equal(t, 1, loggedOut)
	assert.Equal(t, int64(1), navigator.navigations.Load())
}

func TestController_ExpirySweepForcesLogout(t *testing.T) {
	clock := newTestClock()
	api := &testAuthAPI{
		loginResult: &arambo.LoginResult{
			AccessToken: "fresh-token",
			ExpiresIn:   "15m",
			Admin:       *testAdmin(),
		},
	}
	controller, store, notifier, navigator := newTestController(api)
	defer controller.Close()
	store.NowFunc = clock.now

	controller.Run(context.Background())
	require.True(t, controller.Login(context.Background(), "admin", "secret"))

	clock.advance(16 * time.Minute)

	require.Eventually(t, func() bool {
		return controller.Snapshot().State == StateUnauthenticated
	}, 2*time.Second, 5*time.Millisecond)

	_, ok := store.Token()
	assert.False(t, ok)

	_, _, _, _, expired, loggedOut := notifier.counts()
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, loggedOut)
	assert.Equal(t, int64(1), navigator.navigations.Load())
}

func TestController_ConcurrentUnauthorizedTeardown(t *testing.T) {
	api := &testAuthAPI{
		loginResult: &arambo.LoginResult{
			AccessToken: "fresh-token",
			ExpiresIn:   "15m",
			Admin:       *testAdmin(),
		},
	}
	controller, store, notifier, navigator := newTestController(api)
	defer controller.Close()

	controller.Run(context.Background())
	require.True(t, controller.Login(context.Background(), "admin", "secret"))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			controller.HandleUnauthorized()
		}()
	}
	wg.Wait()

	snap := controller.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Admin)
	_, ok := store.Token()
	assert.False(t, ok)
	assert.Equal(t, int64(1), navigator.navigations.Load())

	// the server already dropped the session: no logout call, no
	// logged-out notification
	_, _, logoutCalls := api.calls()
	assert.Zero(t, logoutCalls)
	_, _, _, _, _, loggedOut := notifier.counts()
	assert.Zero(t, loggedOut)
}

func TestController_UnauthorizedResourceCallsTearDownOnce(t *testing.T) {
	server := arambotest.NewServer("admin", "secret")
	t.Cleanup(server.Close)

	store := NewStore(NewMemoryBackend())
	notifier := &testNotifier{}
	navigator := &testNavigator{}
	manager := metrics.NewTestManager()
	client := arambo.NewClient(server.URL(), server.HTTP.Client(), store, manager)
	controller := NewController(store, client, notifier, navigator, manager)
	controller.TickInterval = 10 * time.Millisecond
	controller.SweepInterval = 10 * time.Millisecond
	defer controller.Close()
	client.OnUnauthorized(controller.HandleUnauthorized)

	controller.Run(context.Background())
	require.True(t, controller.Login(context.Background(), "admin", "secret"))

	id := server.SeedProperty(map[string]any{"propertyName": "Villa Sunset"})
	server.RevokeAllSessions()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.UpdateProperty(context.Background(), id, map[string]any{"notes": "checked"})
			assert.ErrorIs(t, err, arambo.ErrUnauthorized)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateUnauthenticated, controller.Snapshot().State)
	_, ok := store.Token()
	assert.False(t, ok)
	assert.Equal(t, int64(1), navigator.navigations.Load())
}

func TestController_SubscribePublishesTransitions(t *testing.T) {
	api := &testAuthAPI{
		loginResult: &arambo.LoginResult{
			AccessToken: "fresh-token",
			ExpiresIn:   "15m",
			Admin:       *testAdmin(),
		},
	}
	controller, _, _, _ := newTestController(api)
	defer controller.Close()

	snapshots, cancel := controller.Subscribe()
	defer cancel()

	// primed with the current state
	first := <-snapshots
	assert.Equal(t, StateUnknown, first.State)
	assert.True(t, first.IsLoading)

	controller.Run(context.Background())
	require.True(t, controller.Login(context.Background(), "admin", "secret"))

	require.Eventually(t, func() bool {
		select {
		case snap := <-snapshots:
			return snap.IsAuthenticated()
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	controller.Logout(context.Background())
	require.Eventually(t, func() bool {
		select {
		case snap := <-snapshots:
			return snap.State == StateUnauthenticated
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestController_RequireAuth(t *testing.T) {
	api := &testAuthAPI{
		loginResult: &arambo.LoginResult{
			AccessToken: "fresh-token",
			ExpiresIn:   "15m",
			Admin:       *testAdmin(),
		},
	}
	controller, _, _, navigator := newTestController(api)
	defer controller.Close()

	ran := false
	// still loading: neither runs nor navigates
	assert.False(t, controller.RequireAuth(func() { ran = true }))
	assert.False(t, ran)
	assert.Equal(t, int64(0), navigator.navigations.Load())

	controller.Run(context.Background())
	// unauthenticated: redirected to the login surface
	assert.False(t, controller.RequireAuth(func() { ran = true }))
	assert.False(t, ran)
	assert.Equal(t, int64(1), navigator.navigations.Load())

	require.True(t, controller.Login(context.Background(), "admin", "secret"))
	assert.True(t, controller.RequireAuth(func() { ran = true }))
	assert.True(t, ran)

	controller.Logout(context.Background())
}
