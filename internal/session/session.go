// Package session owns the authenticated-session state: login, logout,
// refresh and profile operations, plus the signals the rest of the
// application observes. The Coordinator is the only writer of session state;
// everything else reads snapshots or subscribes to events.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"pipewatch.org/internal/access"
	"pipewatch.org/internal/apiclient"
	"pipewatch.org/internal/credentials"
	"pipewatch.org/internal/obs"
	"pipewatch.org/internal/token"
)

// Status is the exclusive authentication status.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// UserProfile is the authenticated identity. It is replaced wholesale on
// profile updates, never patched in place.
type UserProfile struct {
	ID          string
	Email       string
	Username    string
	FirstName   string
	LastName    string
	Role        access.Role
	Permissions []string
}

func fromAPIUser(u apiclient.User) *UserProfile {
	return &UserProfile{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        access.Role(u.Role),
		Permissions: u.Permissions,
	}
}

// State is a snapshot of the session. Status == Authenticated exactly when
// User is non-nil.
type State struct {
	User        *UserProfile
	Status      Status
	Err         string
	Initialized bool
}

// Coordinator orchestrates the session lifecycle. Construct it once at
// application start and pass it down; all methods are safe for concurrent
// use.
type Coordinator struct {
	client          *apiclient.Client
	selector        *credentials.Selector
	sessionStore    credentials.Store
	persistentStore credentials.Store
	deviceID        string

	mu             sync.Mutex
	state          State
	gen            uint64
	initStarted    bool
	suppressExpiry bool

	events  *broadcaster
	limiter *rate.Limiter
	skew    time.Duration
	clock   func() time.Time
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithRefreshSkew sets how long before expiry the auto-refresh loop treats
// an access token as lapsed.
func WithRefreshSkew(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.skew = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.clock = fn
		}
	}
}

// WithRefreshLimit throttles background refresh attempts.
func WithRefreshLimit(limit rate.Limit, burst int) Option {
	return func(c *Coordinator) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// New wires a coordinator over the API client and the two credential
// backends. The selector must be the store the client reads through, so
// refreshed pairs land in whichever backend the last login selected.
func New(client *apiclient.Client, selector *credentials.Selector, sessionStore, persistentStore credentials.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:          client,
		selector:        selector,
		sessionStore:    sessionStore,
		persistentStore: persistentStore,
		deviceID:        uuid.NewString(),
		events:          newBroadcaster(),
		limiter:         rate.NewLimiter(rate.Every(30*time.Second), 2),
		skew:            token.DefaultSkew,
		clock:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	client.OnSessionExpired(c.expire)
	return c
}

// State returns a snapshot of the current session state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe delivers session events until ctx ends.
func (c *Coordinator) Subscribe(ctx context.Context) <-chan Event {
	return c.events.subscribe(ctx)
}

// Evaluator returns a permission evaluator for the current user. The zero
// evaluator (denies everything) is returned when unauthenticated.
func (c *Coordinator) Evaluator() access.Evaluator {
	c.mu.Lock()
	user := c.state.User
	c.mu.Unlock()
	if user == nil {
		return access.Evaluator{}
	}
	return access.NewEvaluator(user.Role, user.Permissions)
}

// Initialize validates any stored credential pair and settles the initial
// session state. It runs at most once per coordinator lifetime; later calls
// are no-ops. Initialized becomes true regardless of the outcome.
func (c *Coordinator) Initialize(ctx context.Context) {
	c.mu.Lock()
	if c.initStarted {
		c.mu.Unlock()
		return
	}
	c.initStarted = true
	c.mu.Unlock()

	if !c.adoptStoredBackend() {
		c.mu.Lock()
		c.state.Initialized = true
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.setStatusLocked(Authenticating)
	gen := c.gen
	c.mu.Unlock()

	user, err := c.client.Profile(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Initialized = true
	if c.gen != gen {
		// A logout or expiry already settled the state; do not resurrect.
		return
	}
	if err != nil {
		c.state.User = nil
		c.setStatusLocked(Unauthenticated)
		c.clearStores()
		return
	}
	c.state.User = fromAPIUser(user)
	c.state.Err = ""
	c.setStatusLocked(Authenticated)
}

// adoptStoredBackend points the selector at whichever backend holds a pair,
// preferring the persistent one. Reports whether a pair was found.
func (c *Coordinator) adoptStoredBackend() bool {
	for _, backend := range []credentials.Store{c.persistentStore, c.sessionStore} {
		if backend == nil {
			continue
		}
		pair, ok, err := backend.Load()
		if err != nil {
			obs.Warn("credential load failed", map[string]any{"err": err.Error()})
			continue
		}
		if ok && !pair.IsZero() {
			c.selector.Use(backend)
			return true
		}
	}
	return false
}

// Login authenticates and persists the credential pair in the backend
// selected by rememberMe. A failed login never disturbs a pre-existing
// session or its stored credentials; the failure is surfaced through the
// state's Err field (and returned for validation and network failures).
func (c *Coordinator) Login(ctx context.Context, email, password string, rememberMe bool) error {
	c.mu.Lock()
	prev := c.state
	if prev.Status != Authenticated {
		c.setStatusLocked(Authenticating)
	}
	gen := c.gen
	c.mu.Unlock()

	result, err := c.client.Login(ctx, apiclient.LoginParams{
		Email:    email,
		Password: password,
		DeviceID: c.deviceID,
	})
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			// A failed login never disturbs whatever session existed
			// before the attempt.
			restored := prev
			restored.Initialized = c.state.Initialized
			if c.state.Status != restored.Status {
				obs.RecordTransition(restored.Status.String())
			}
			c.state = restored
		}
		// A logout or expiry that won the race keeps its settled state;
		// only the failure message lands.
		c.state.Err = userMessage(err)
		c.mu.Unlock()
		var authErr *apiclient.AuthenticationError
		if errors.As(err, &authErr) {
			// Bad credentials surface through the state's Err field.
			return nil
		}
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	active := c.sessionStore
	if rememberMe && c.persistentStore != nil {
		active = c.persistentStore
	}
	c.selector.Use(active)
	if err := c.selector.Save(result.Pair); err != nil {
		c.state = prev
		c.state.Err = "could not persist credentials"
		c.mu.Unlock()
		return err
	}
	c.state.User = fromAPIUser(result.User)
	c.state.Err = ""
	c.setStatusLocked(Authenticated)
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventLogin, At: c.clock()})
	return nil
}

// Register creates an account. It does not authenticate.
func (c *Coordinator) Register(ctx context.Context, params apiclient.RegisterParams) (apiclient.User, error) {
	return c.client.Register(ctx, params)
}

// Logout ends the session. The remote call is best-effort; client-side state
// and stored credentials are always cleared.
func (c *Coordinator) Logout(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.suppressExpiry = true
	c.mu.Unlock()

	if err := c.client.Logout(ctx); err != nil {
		obs.Warn("remote logout failed", map[string]any{"err": err.Error()})
	}

	c.mu.Lock()
	c.suppressExpiry = false
	c.state.User = nil
	c.state.Err = ""
	c.setStatusLocked(Unauthenticated)
	c.clearStores()
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventLogout, At: c.clock()})
}

// Refresh rotates the credential pair. A network failure is returned with
// the session intact; any other failure ends the session the same way an
// expiry does. Validation failures still reach the caller after the expiry
// is handled so the UI can render them.
func (c *Coordinator) Refresh(ctx context.Context) error {
	err := c.client.Refresh(ctx)
	if err == nil {
		return nil
	}
	var netErr *apiclient.NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	c.expire()
	var valErr *apiclient.ValidationError
	if errors.As(err, &valErr) {
		return err
	}
	return nil
}

// UpdateProfile replaces the user wholesale on success. A stale response
// that lands after a logout or expiry is discarded.
func (c *Coordinator) UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	user, err := c.client.UpdateProfile(ctx, update)
	if err != nil {
		return c.recoverAuthError(err)
	}

	c.mu.Lock()
	if c.gen == gen && c.state.Status == Authenticated {
		c.state.User = fromAPIUser(user)
	}
	c.mu.Unlock()
	return nil
}

// ChangePassword rotates the account password.
func (c *Coordinator) ChangePassword(ctx context.Context, current, next string) error {
	return c.recoverAuthError(c.client.ChangePassword(ctx, current, next))
}

// ForgotPassword starts a password reset flow.
func (c *Coordinator) ForgotPassword(ctx context.Context, email string) error {
	return c.client.ForgotPassword(ctx, email)
}

// ResetPassword completes a password reset flow.
func (c *Coordinator) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return c.client.ResetPassword(ctx, resetToken, newPassword)
}

// VerifyEmail confirms an email verification token.
func (c *Coordinator) VerifyEmail(ctx context.Context, verificationToken string) error {
	return c.client.VerifyEmail(ctx, verificationToken)
}

// StartAutoRefresh rotates the pair shortly before the access token expires.
// The loop stops when ctx ends.
func (c *Coordinator) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.maybeRefresh(ctx)
			}
		}
	}()
}

func (c *Coordinator) maybeRefresh(ctx context.Context) {
	c.mu.Lock()
	authed := c.state.Status == Authenticated
	c.mu.Unlock()
	if !authed {
		return
	}
	pair, ok, err := c.selector.Load()
	if err != nil || !ok {
		return
	}
	if !token.IsExpired(pair.AccessToken, c.skew) {
		return
	}
	if !c.limiter.Allow() {
		return
	}

	err = c.client.Refresh(ctx)
	if err == nil {
		return
	}
	var netErr *apiclient.NetworkError
	if errors.As(err, &netErr) {
		// Transient failures get one retry before the session is given up.
		if err = c.client.Refresh(ctx); err == nil {
			return
		}
	}
	obs.Warn("background refresh failed", map[string]any{"err": err.Error()})
	c.expire()
}

// expire is the bridge from transport-level refresh failure to application
// state: the session ends even though no Logout was called.
func (c *Coordinator) expire() {
	c.mu.Lock()
	if c.suppressExpiry {
		c.mu.Unlock()
		return
	}
	if c.state.Status == Unauthenticated && c.state.User == nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.state.User = nil
	c.state.Err = "session expired, please sign in again"
	c.setStatusLocked(Unauthenticated)
	c.clearStores()
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventSessionExpired, At: c.clock()})
}

func (c *Coordinator) setStatusLocked(to Status) {
	if c.state.Status != to {
		obs.RecordTransition(to.String())
	}
	c.state.Status = to
}

func (c *Coordinator) clearStores() {
	for _, backend := range []credentials.Store{c.sessionStore, c.persistentStore} {
		if backend == nil {
			continue
		}
		if err := backend.Clear(); err != nil {
			obs.Warn("credential clear failed", map[string]any{"err": err.Error()})
		}
	}
}

// recoverAuthError absorbs AuthenticationError from an authenticated
// operation. The error means the refresh-and-replay already ran out of
// road, so the session ends here exactly like an expiry; expire is
// idempotent when the client's refresh-failure signal already settled the
// state. Validation and network errors pass through for field- or
// toast-level feedback.
func (c *Coordinator) recoverAuthError(err error) error {
	if err == nil {
		return nil
	}
	var authErr *apiclient.AuthenticationError
	if errors.As(err, &authErr) {
		c.expire()
		return nil
	}
	return err
}

// userMessage formats a failure for the state's Err field.
func userMessage(err error) string {
	var (
		authErr *apiclient.AuthenticationError
		valErr  *apiclient.ValidationError
		netErr  *apiclient.NetworkError
		srvErr  *apiclient.ServerError
	)
	switch {
	case errors.As(err, &authErr):
		return "invalid email or password"
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.As(err, &netErr):
		return "network error, please try again"
	case errors.As(err, &srvErr):
		return "server error, please try again later"
	default:
		return err.Error()
	}
}
