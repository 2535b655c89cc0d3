// Package session implements the client-side authentication state machine
// for the Apporte API.
//
// A Manager moves between three states:
//
//	unauthenticated --login--> authenticated
//	unauthenticated --login--> awaiting_second_factor --verify--> authenticated
//	authenticated --logout or any 401--> unauthenticated
//
// The bearer token itself lives in a tokenstore.Store shared with the HTTP
// client; the Manager owns the identity, the permission set and the pending
// second-factor challenge.
package session

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/log"
	"github.com/felixgeelhaar/apporte/internal/platform"
	"github.com/felixgeelhaar/apporte/internal/tokenstore"
	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

// SuperRole satisfies every permission and role check.
const SuperRole = "super_admin"

// State is the authentication state of a Manager.
type State int

const (
	Unauthenticated State = iota
	AwaitingSecondFactor
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingSecondFactor:
		return "awaiting_second_factor"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// AuthAPI is the part of the API the Manager talks to.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*platform.LoginResponse, error)
	VerifyTwoFactor(ctx context.Context, userID int64, code string) (*platform.VerifyTwoFactorResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*platform.MeResponse, error)
}

// LoginResult tells the caller whether a second factor is needed.
type LoginResult struct {
	RequiresTwoFactor bool
	UserID            int64
}

// Manager is the auth session. It is safe for concurrent use, but callers
// should still avoid submitting the same action twice.
type Manager struct {
	api    AuthAPI
	tokens *tokenstore.Store
	logger *log.Logger

	mu          sync.RWMutex
	state       State
	user        *types.User
	permissions map[string]struct{}
	pendingUser int64
	hasPending  bool
	loading     bool
	subscribers []func(State)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for session transitions.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a Manager in the unauthenticated, loading state. Call
// CheckAuth to resolve a stored token into a session.
func New(api AuthAPI, tokens *tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:     api,
		tokens:  tokens,
		state:   Unauthenticated,
		loading: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.DefaultLogger()
	}
	return m
}

// NewWithClient creates a Manager over client and subscribes it to the
// client's unauthorized signal, so any 401 ends the session.
func NewWithClient(client *platform.Client, opts ...Option) *Manager {
	m := New(client, client.Tokens(), opts...)
	client.OnUnauthorized(m.Expire)
	return m
}

// Login submits credentials. When the API asks for a second factor the
// Manager enters AwaitingSecondFactor and returns the pending user id; no
// token is stored in that case. API failures are returned unchanged so
// the server's message reaches the caller.
func (m *Manager) Login(ctx context.Context, email, password string) (LoginResult, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.logger.WithError(err).DebugContext(ctx, "login failed")
		return LoginResult{}, err
	}

	if resp.RequiresTwoFactor {
		m.mu.Lock()
		m.pendingUser = resp.UserID
		m.hasPending = true
		m.user = nil
		m.permissions = nil
		m.loading = false
		changed := m.setStateLocked(AwaitingSecondFactor)
		m.mu.Unlock()

		m.logger.InfoContext(ctx, "second factor required", "user_id", resp.UserID)
		m.notify(changed)
		return LoginResult{RequiresTwoFactor: true, UserID: resp.UserID}, nil
	}

	if resp.AccessToken == "" {
		return LoginResult{}, apperrors.New(apperrors.ErrCodeMissingAccessToken, "login response carried no access token")
	}

	m.establish(ctx, resp.AccessToken, resp.User, resp.Permissions)
	return LoginResult{}, nil
}

// VerifyTwoFactor answers the challenge for userID. On success the
// session becomes Authenticated and the challenge is cleared. On failure
// nothing changes and the caller may retry with another code.
//
// A pending challenge is not required: a challenge issued to another
// process can be answered here.
func (m *Manager) VerifyTwoFactor(ctx context.Context, userID int64, code string) error {
	resp, err := m.api.VerifyTwoFactor(ctx, userID, code)
	if err != nil {
		m.logger.WithError(err).DebugContext(ctx, "second factor rejected", "user_id", userID)
		return err
	}

	if resp.AccessToken == "" {
		return apperrors.New(apperrors.ErrCodeMissingAccessToken, "verification response carried no access token")
	}

	permissions := resp.Permissions
	if permissions == nil && resp.User != nil && resp.User.Role != nil {
		permissions = resp.User.Role.Permissions
	}

	m.establish(ctx, resp.AccessToken, resp.User, permissions)
	return nil
}

// Logout ends the session. The server call is best effort: its failure is
// logged and local state is cleared regardless.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Logout(ctx); err != nil {
		m.logger.WithError(err).WarnContext(ctx, "server logout failed; clearing local session anyway")
	}

	m.clearToken(ctx)
	m.reset()
	m.logger.InfoContext(ctx, "logged out")
}

// CheckAuth resolves the stored token into an identity. Without a token it
// settles to Unauthenticated without network I/O. Any API failure clears
// the token and is returned. Loading is false afterwards.
//
// Cancellation of ctx is returned without touching the token.
func (m *Manager) CheckAuth(ctx context.Context) error {
	if m.tokens == nil || m.tokens.Token() == "" {
		m.reset()
		return nil
	}

	resp, err := m.api.Me(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			m.mu.Lock()
			m.loading = false
			m.mu.Unlock()
			return ctxErr
		}

		m.logger.WithError(err).InfoContext(ctx, "stored session rejected")
		m.clearToken(ctx)
		m.reset()
		return err
	}

	m.mu.Lock()
	m.user = resp.User
	m.permissions = toSet(resp.Permissions)
	m.hasPending = false
	m.pendingUser = 0
	m.loading = false
	changed := m.setStateLocked(Authenticated)
	m.mu.Unlock()

	m.notify(changed)
	return nil
}

// Expire drops the local session after the API rejected the token. The
// token store has already been cleared by the HTTP client.
func (m *Manager) Expire() {
	m.logger.Debug("session expired")
	m.reset()
}

// CancelChallenge abandons a pending second-factor challenge.
func (m *Manager) CancelChallenge() {
	m.mu.Lock()
	m.hasPending = false
	m.pendingUser = 0
	var changed bool
	if m.state == AwaitingSecondFactor {
		changed = m.setStateLocked(Unauthenticated)
	}
	m.mu.Unlock()

	m.notify(changed)
}

// HasPermission reports whether the session grants permission. The super
// role satisfies every check; no session satisfies none.
func (m *Manager) HasPermission(permission string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return false
	}
	if m.user.RoleName() == SuperRole {
		return true
	}
	_, ok := m.permissions[permission]
	return ok
}

// HasRole reports whether the session's role is role. The super role
// satisfies every check; a user without a role satisfies none.
func (m *Manager) HasRole(role string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil || m.user.Role == nil {
		return false
	}
	name := m.user.RoleName()
	return name == SuperRole || name == role
}

// User returns a copy of the identity, or nil.
func (m *Manager) User() *types.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Permissions returns the permission set in sorted order.
func (m *Manager) Permissions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perms := make([]string, 0, len(m.permissions))
	for p := range m.permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated reports whether an identity is held.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == Authenticated
}

// PendingChallenge returns the user id awaiting a second factor.
func (m *Manager) PendingChallenge() (userID int64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pendingUser, m.hasPending
}

// Loading is true until the first CheckAuth or login settles.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Subscribe registers fn to receive every state change. It returns a
// function that removes the registration.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers = append(m.subscribers, fn)
	idx := len(m.subscribers) - 1

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subscribers[idx] = nil
	}
}

func (m *Manager) establish(ctx context.Context, token string, user *types.User, permissions []string) {
	if m.tokens != nil {
		if err := m.tokens.Set(ctx, token); err != nil {
			m.logger.WithError(err).WarnContext(ctx, "session will not survive this process")
		}
	}

	m.mu.Lock()
	m.user = user
	m.permissions = toSet(permissions)
	m.hasPending = false
	m.pendingUser = 0
	m.loading = false
	changed := m.setStateLocked(Authenticated)
	m.mu.Unlock()

	args := []any{"token_fp", tokenstore.Fingerprint(token)}
	if user != nil {
		args = append(args, "user_id", user.ID, "role", user.RoleName())
	}
	m.logger.InfoContext(ctx, "authenticated", args...)
	m.notify(changed)
}

func (m *Manager) clearToken(ctx context.Context) {
	if m.tokens == nil {
		return
	}
	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.WithError(err).WarnContext(ctx, "failed to remove stored token")
	}
}

// reset drops identity, permissions and challenge and settles loading.
func (m *Manager) reset() {
	m.mu.Lock()
	m.user = nil
	m.permissions = nil
	m.hasPending = false
	m.pendingUser = 0
	m.loading = false
	changed := m.setStateLocked(Unauthenticated)
	m.mu.Unlock()

	m.notify(changed)
}

// setStateLocked must be called with mu held. It reports whether the state
// changed.
func (m *Manager) setStateLocked(s State) bool {
	if m.state == s {
		return false
	}
	m.state = s
	return true
}

func (m *Manager) notify(changed bool) {
	if !changed {
		return
	}

	m.mu.RLock()
	state := m.state
	subs := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		if fn != nil {
			subs = append(subs, fn)
		}
	}
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(state)
	}
}

func toSet(perms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
