package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arambo/backoffice/internal/arambo"
	"github.com/arambo/backoffice/internal/telemetry/metrics"
	"github.com/arambo/backoffice/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type State int

const (
	// StateUnknown - application just started, the stored credential has
	// not been checked against the server yet
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

const (
	DefaultTickInterval  = time.Second
	DefaultSweepInterval = time.Minute
)

// AuthAPI is the server side of the session lifecycle, implemented by
// arambo.Client.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*arambo.LoginResult, error)
	Verify(ctx context.Context, token string) (*arambo.Admin, error)
	Logout(ctx context.Context, token string) error
}

// Snapshot is one observable point of the session state, published to
// subscribers on every transition and on every ticker update.
type Snapshot struct {
	State         State
	Admin         *arambo.Admin
	IsLoading     bool
	DurationLabel string
	Remaining     string
}

func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

// Controller owns the authentication state machine. It is the only writer of
// the session state; everything else observes it through Subscribe/Snapshot
// and triggers transitions exclusively through Login, Logout and CheckAuth.
//
// While authenticated, two repeating jobs run in a single background
// goroutine: a per-second refresh of the displayed remaining time, and a
// coarser expiry sweep that forces a logout once the credential's absolute
// expiry has passed. Both stop, unconditionally, on any transition out of
// the authenticated state.
type Controller struct {
	// TickInterval and SweepInterval are set before first use; tests
	// shrink them to keep the clock honest without waiting a minute
	TickInterval  time.Duration
	SweepInterval time.Duration

	store     *Store
	api       AuthAPI
	notifier  Notifier
	navigator Navigator
	metrics   *metrics.Manager

	mu            sync.Mutex
	state         State
	admin         *arambo.Admin
	loading       bool
	durationLabel string
	remaining     string
	timerStop     chan struct{}

	subscribers map[int]chan Snapshot
	nextSubID   int
}

func NewController(
	store *Store,
	api AuthAPI,
	notifier Notifier,
	navigator Navigator,
	metricsManager *metrics.Manager,
) *Controller {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if navigator == nil {
		navigator = NopNavigator{}
	}
	return &Controller{
		TickInterval:  DefaultTickInterval,
		SweepInterval: DefaultSweepInterval,
		store:         store,
		api:           api,
		notifier:      notifier,
		navigator:     navigator,
		metrics:       metricsManager,
		state:         StateUnknown,
		loading:       true,
		subscribers:   make(map[int]chan Snapshot),
	}
}

// Run resolves the initial Unknown state: check the stored credential
// against the server, restore the display duration label on success, and
// mark loading complete either way. Called once per application start.
func (c *Controller) Run(ctx context.Context) {
	c.CheckAuth(ctx)

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	c.publish()
}

// CheckAuth reports whether a stored, unexpired and server-confirmed
// credential exists. An invalid or expired local credential short-circuits
// without a network call; any verify failure clears the store. This is the
// only path that promotes Unknown to Authenticated on (re)load.
func (c *Controller) CheckAuth(ctx context.Context) bool {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.checkAuth")
	defer span.End()

	token, ok := c.store.Token()
	if !ok || c.store.IsExpired() {
		span.SetStatus(codes.Ok, "no-credential")
		c.resolveUnauthenticated()
		return false
	}

	admin, err := c.api.Verify(ctx, token)
	if err != nil {
		log.Debugf("auth check: verify failed: %s", err)
		span.SetStatus(codes.Error, "verify-failed")
		c.store.Clear()
		c.resolveUnauthenticated()
		return false
	}

	span.SetStatus(codes.Ok, "authenticated")
	c.enterAuthenticated(admin)
	return true
}

// Login authenticates against the server. On success the credential is
// persisted before any observable state changes. On failure the store is
// left untouched, and the notifier distinguishes rate-limiting from plain
// rejection from connectivity problems.
func (c *Controller) Login(ctx context.Context, username, password string) bool {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.login")
	defer span.End()

	result, err := c.api.Login(ctx, username, password)
	if err != nil {
		span.SetStatus(codes.Error, "login-failed")
		switch {
		case errors.Is(err, arambo.ErrRateLimited):
			c.metrics.CounterLogins.WithLabelValues("rate_limited").Inc()
			c.notifier.RateLimited(err.Error())
		case errors.Is(err, arambo.ErrInvalidCredentials):
			c.metrics.CounterLogins.WithLabelValues("invalid").Inc()
			c.notifier.LoginFailed(err.Error())
		default:
			log.Errorf("login: %s", err)
			c.metrics.CounterLogins.WithLabelValues("error").Inc()
			c.notifier.ConnectionFailed()
		}
		return false
	}

	c.store.SetCredential(result.AccessToken, result.ExpiresIn)

	span.SetStatus(codes.Ok, "logged-in")
	c.metrics.CounterLogins.WithLabelValues("success").Inc()
	c.enterAuthenticated(&result.Admin)
	c.notifier.LoginSucceeded(result.Admin.Username, result.ExpiresIn)
	return true
}

// Logout tears the session down: best-effort server call, then an
// unconditional local cleanup and a switch to the login surface. Safe to
// call repeatedly; only the first effective call notifies and navigates.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateUnauthenticated {
		c.mu.Unlock()
		// repeated logout: make sure nothing lingers, then bail
		c.store.Clear()
		return
	}
	c.clearSessionLocked()
	c.mu.Unlock()

	if token, ok := c.store.Token(); ok {
		if err := c.api.Logout(ctx, token); err != nil {
			log.Errorf("server logout: %s", err)
		}
	}
	c.store.Clear()

	c.publish()
	c.notifier.LoggedOut()
	c.navigator.NavigateToLogin()
}

// HandleUnauthorized is the teardown hook for authenticated resource calls
// that come back with HTTP 401. No server logout (the server has already
// spoken), no logged-out notification; just local cleanup and the redirect.
// Concurrent failing calls trigger the teardown exactly once.
func (c *Controller) HandleUnauthorized() {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.clearSessionLocked()
	c.mu.Unlock()

	c.store.Clear()
	c.publish()
	c.navigator.NavigateToLogin()
}

// Close stops background work and drops all subscriptions without touching
// the persisted credential. For orderly process shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
	clear(c.subscribers)
}

// Subscribe returns a channel receiving state snapshots, primed with the
// current one, plus a cancel func. Slow consumers never block the
// controller: a pending snapshot is replaced by the newer one.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Snapshot, 1)
	ch <- c.snapshotLocked()
	c.subscribers[id] = ch

	// the channel is never closed; after cancel it simply stops receiving,
	// so a concurrent publish can never hit a closed channel
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
	return ch, cancel
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// RequireAuth is the route-guard equivalent: run fn only for an
// authenticated session. While the initial check is still loading nothing
// happens; when unauthenticated the navigator is pointed at the login
// surface instead.
func (c *Controller) RequireAuth(fn func()) bool {
	snap := c.Snapshot()
	if snap.IsLoading {
		return false
	}
	if !snap.IsAuthenticated() {
		c.navigator.NavigateToLogin()
		return false
	}
	fn()
	return true
}

func (c *Controller) enterAuthenticated(admin *arambo.Admin) {
	label, _ := c.store.DurationLabel()

	c.mu.Lock()
	c.state = StateAuthenticated
	c.admin = admin
	c.durationLabel = label
	c.remaining = c.store.FormattedRemaining()
	c.startTimersLocked()
	c.mu.Unlock()

	c.metrics.GaugeSessionActive.Set(1)
	c.publish()
}

// resolveUnauthenticated settles a failed auth check. Also stops timers in
// case an authenticated session just failed re-verification.
func (c *Controller) resolveUnauthenticated() {
	c.mu.Lock()
	if c.state == StateUnauthenticated {
		c.mu.Unlock()
		return
	}
	c.clearSessionLocked()
	c.mu.Unlock()
	c.publish()
}

// clearSessionLocked resets the in-memory session and stops background work.
// Callers hold c.mu and handle store cleanup and publication themselves.
func (c *Controller) clearSessionLocked() {
	c.stopTimersLocked()
	c.state = StateUnauthenticated
	c.admin = nil
	c.durationLabel = ""
	c.remaining = ""
	c.metrics.GaugeSessionActive.Set(0)
}

func (c *Controller) startTimersLocked() {
	if c.timerStop != nil {
		return
	}
	stop := make(chan struct{})
	c.timerStop = stop
	go c.runTimers(stop)
}

func (c *Controller) stopTimersLocked() {
	if c.timerStop != nil {
		close(c.timerStop)
		c.timerStop = nil
	}
}

// runTimers owns both repeating jobs of an authenticated session. The sweep
// is deliberately independent of the display ticker, so expiry is enforced
// even when nobody watches the countdown.
func (c *Controller) runTimers(stop chan struct{}) {
	ticker := time.NewTicker(c.TickInterval)
	defer ticker.Stop()
	sweep := time.NewTicker(c.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.refreshRemaining()
		case <-sweep.C:
			if c.store.IsExpired() {
				log.Warnln("expiry sweep: credential expired, forcing logout")
				c.metrics.CounterSessionExpired.Inc()
				c.notifier.SessionExpired()
				c.Logout(context.Background())
				return
			}
		}
	}
}

func (c *Controller) refreshRemaining() {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.remaining = c.store.FormattedRemaining()
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:         c.state,
		Admin:         c.admin,
		IsLoading:     c.loading,
		DurationLabel: c.durationLabel,
		Remaining:     c.remaining,
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	channels := make([]chan Snapshot, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- snap:
		default:
			// replace the stale pending snapshot with the fresh one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
