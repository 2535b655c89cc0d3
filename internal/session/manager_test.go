package session

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/apporte/internal/apitest"
	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/log"
	"github.com/felixgeelhaar/apporte/internal/platform"
	"github.com/felixgeelhaar/apporte/internal/tokenstore"
)

type harness struct {
	api     *apitest.Server
	client  *platform.Client
	tokens  *tokenstore.Store
	manager *Manager
}

func newHarness(t *testing.T, initialToken string) *harness {
	t.Helper()

	ctx := context.Background()
	storage := tokenstore.NewMemoryStorage()
	if initialToken != "" {
		require.NoError(t, storage.Save(ctx, tokenstore.Key, initialToken))
	}

	api := apitest.New(t)
	tokens := tokenstore.New(ctx, storage, tokenstore.WithLogger(log.Nop()))
	client := platform.NewClient(api.URL(), tokens, platform.WithLogger(log.Nop()))

	return &harness{
		api:     api,
		client:  client,
		tokens:  tokens,
		manager: NewWithClient(client, WithLogger(log.Nop())),
	}
}

func TestNewManager(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, Unauthenticated, h.manager.State())
	assert.True(t, h.manager.Loading())
	assert.Nil(t, h.manager.User())
	assert.Empty(t, h.manager.Permissions())
}

func TestCheckAuthWithoutTokenSkipsNetwork(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.manager.CheckAuth(context.Background()))

	assert.Equal(t, 0, h.api.TotalCalls())
	assert.Equal(t, Unauthenticated, h.manager.State())
	assert.False(t, h.manager.Loading())
}

func TestCheckAuthWithValidToken(t *testing.T) {
	h := newHarness(t, "tok-stored")
	user := apitest.User(3, "ops@apporte.test", "dispatcher")
	h.api.Handle(apitest.RouteMe, apitest.RequireBearer("tok-stored",
		apitest.JSONHandler(http.StatusOK, apitest.SessionBody("", user, []string{"orders.assign"}))))

	require.NoError(t, h.manager.CheckAuth(context.Background()))

	assert.True(t, h.manager.IsAuthenticated())
	assert.False(t, h.manager.Loading())
	assert.Equal(t, int64(3), h.manager.User().ID)
	assert.Equal(t, []string{"orders.assign"}, h.manager.Permissions())
	assert.Equal(t, "tok-stored", h.tokens.Token())
}

func TestCheckAuthFailureClearsToken(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "tok-stale")
			h.api.Respond(apitest.RouteMe, tt.status, map[string]string{"message": "nope"})

			err := h.manager.CheckAuth(context.Background())
			require.Error(t, err)

			assert.Empty(t, h.tokens.Token())
			assert.Equal(t, Unauthenticated, h.manager.State())
			assert.False(t, h.manager.Loading())
		})
	}
}

func TestCheckAuthCanceledKeepsToken(t *testing.T) {
	h := newHarness(t, "tok-stored")
	h.api.Respond(apitest.RouteMe, http.StatusOK, map[string]any{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.manager.CheckAuth(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "tok-stored", h.tokens.Token())
	assert.False(t, h.manager.Loading())
}

func TestLoginWithChallengeStoresNoToken(t *testing.T) {
	h := newHarness(t, "")
	h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.ChallengeBody(42))

	result, err := h.manager.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, LoginResult{RequiresTwoFactor: true, UserID: 42}, result)
	assert.Empty(t, h.tokens.Token())
	assert.Equal(t, AwaitingSecondFactor, h.manager.State())

	userID, ok := h.manager.PendingChallenge()
	assert.True(t, ok)
	assert.Equal(t, int64(42), userID)
	assert.Nil(t, h.manager.User())
}

func TestLoginDirect(t *testing.T) {
	h := newHarness(t, "")
	user := apitest.User(9, "admin@apporte.test", "admin", "users.view")
	h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.SessionBody("tok-direct", user, []string{"users.view", "users.suspend"}))

	result, err := h.manager.Login(context.Background(), "admin@apporte.test", "pw")
	require.NoError(t, err)

	assert.False(t, result.RequiresTwoFactor)
	assert.Equal(t, "tok-direct", h.tokens.Token())
	assert.Equal(t, Authenticated, h.manager.State())

	got := h.manager.User()
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, "admin", got.RoleName())
	assert.Equal(t, []string{"users.suspend", "users.view"}, h.manager.Permissions())
}

func TestLoginFailureSurfacesServerMessage(t *testing.T) {
	h := newHarness(t, "")
	h.api.Respond(apitest.RouteLogin, http.StatusUnprocessableEntity, map[string]string{"message": "These credentials do not match our records."})

	_, err := h.manager.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)

	assert.Equal(t, "These credentials do not match our records.", err.Error())
	assert.Equal(t, Unauthenticated, h.manager.State())
	assert.Empty(t, h.tokens.Token())
}

func TestLoginWithoutAccessToken(t *testing.T) {
	h := newHarness(t, "")
	h.api.Respond(apitest.RouteLogin, http.StatusOK, map[string]any{"user": apitest.User(1, "a@b.com", "admin")})

	_, err := h.manager.Login(context.Background(), "a@b.com", "pw")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingAccessToken))
	assert.Equal(t, Unauthenticated, h.manager.State())
}

func TestVerifyTwoFactor(t *testing.T) {
	t.Run("correct code", func(t *testing.T) {
		h := newHarness(t, "")
		h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.ChallengeBody(42))
		h.api.Respond(apitest.RouteVerify, http.StatusOK, map[string]any{
			"access_token": "tok-1",
			"user":         apitest.User(42, "a@b.com", "branch_manager", "orders.view"),
		})

		_, err := h.manager.Login(context.Background(), "a@b.com", "secret")
		require.NoError(t, err)
		require.Equal(t, AwaitingSecondFactor, h.manager.State())

		require.NoError(t, h.manager.VerifyTwoFactor(context.Background(), 42, "000000"))

		assert.Equal(t, Authenticated, h.manager.State())
		assert.Equal(t, "tok-1", h.tokens.Token())
		_, pending := h.manager.PendingChallenge()
		assert.False(t, pending)
		assert.Equal(t, []string{"orders.view"}, h.manager.Permissions(), "falls back to role permissions")
	})

	t.Run("incorrect code", func(t *testing.T) {
		h := newHarness(t, "")
		h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.ChallengeBody(42))
		h.api.Respond(apitest.RouteVerify, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid verification code"})

		_, err := h.manager.Login(context.Background(), "a@b.com", "secret")
		require.NoError(t, err)

		err = h.manager.VerifyTwoFactor(context.Background(), 42, "111111")
		require.Error(t, err)
		assert.Equal(t, "Invalid verification code", err.Error())

		assert.Empty(t, h.tokens.Token())
		assert.Equal(t, AwaitingSecondFactor, h.manager.State())
		userID, pending := h.manager.PendingChallenge()
		assert.True(t, pending)
		assert.Equal(t, int64(42), userID)

		// retries are unlimited
		err = h.manager.VerifyTwoFactor(context.Background(), 42, "222222")
		require.Error(t, err)
		assert.Equal(t, 2, h.api.Calls(apitest.RouteVerify))
	})

	t.Run("explicit permissions win", func(t *testing.T) {
		h := newHarness(t, "")
		h.api.Respond(apitest.RouteVerify, http.StatusOK, map[string]any{
			"access_token": "tok-2",
			"user":         apitest.User(5, "a@b.com", "rider", "deliveries.view"),
			"permissions":  []string{"deliveries.update"},
		})

		require.NoError(t, h.manager.VerifyTwoFactor(context.Background(), 5, "123456"))
		assert.Equal(t, []string{"deliveries.update"}, h.manager.Permissions())
	})
}

func TestExampleScenario(t *testing.T) {
	h := newHarness(t, "")
	h.api.Respond(apitest.RouteLogin, http.StatusOK, map[string]any{"requires_2fa": true, "user_id": 42})
	h.api.Respond(apitest.RouteVerify, http.StatusOK, map[string]any{
		"access_token": "tok-1",
		"user":         map[string]any{"id": 42, "name": "A", "email": "a@b.com", "status": "active"},
	})

	result, err := h.manager.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, LoginResult{RequiresTwoFactor: true, UserID: 42}, result)

	require.NoError(t, h.manager.VerifyTwoFactor(context.Background(), 42, "000000"))
	assert.Equal(t, "tok-1", h.tokens.Token())

	req, ok := h.api.LastRequest(apitest.RouteLogin)
	require.True(t, ok)
	var creds map[string]string
	require.NoError(t, req.Decode(&creds))
	assert.Equal(t, map[string]string{"email": "a@b.com", "password": "secret"}, creds)
}

func TestAnyUnauthorizedResponseEndsSession(t *testing.T) {
	h := newHarness(t, "")
	user := apitest.User(1, "a@b.com", "admin", "users.view")
	h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.SessionBody("tok-live", user, []string{"users.view"}))
	h.api.Respond(apitest.RouteUsers, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})

	_, err := h.manager.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	require.True(t, h.manager.IsAuthenticated())

	var states []State
	h.manager.Subscribe(func(s State) { states = append(states, s) })

	_, err = h.client.ListUsers(context.Background(), platform.UserFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrUnauthorized))

	assert.Empty(t, h.tokens.Token())
	assert.Equal(t, Unauthenticated, h.manager.State())
	assert.Nil(t, h.manager.User())
	assert.False(t, h.manager.HasPermission("users.view"))
	assert.Equal(t, []State{Unauthenticated}, states)
}

type stubAPI struct {
	logoutErr error
	logouts   int
}

func (s *stubAPI) Login(context.Context, string, string) (*platform.LoginResponse, error) {
	user := apitest.User(1, "a@b.com", "admin")
	return &platform.LoginResponse{AccessToken: "tok-stub", User: &user, Permissions: []string{"users.view"}}, nil
}

func (s *stubAPI) VerifyTwoFactor(context.Context, int64, string) (*platform.VerifyTwoFactorResponse, error) {
	return nil, errors.New("not used")
}

func (s *stubAPI) Logout(context.Context) error {
	s.logouts++
	return s.logoutErr
}

func (s *stubAPI) Me(context.Context) (*platform.MeResponse, error) {
	return nil, errors.New("not used")
}

func TestLogoutAlwaysClearsLocalState(t *testing.T) {
	tests := []struct {
		name      string
		logoutErr error
	}{
		{name: "server accepts", logoutErr: nil},
		{name: "server fails", logoutErr: &platform.APIError{StatusCode: 500, Message: "boom"}},
		{name: "network down", logoutErr: &platform.APIError{Message: "An error occurred", Cause: errors.New("connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			api := &stubAPI{logoutErr: tt.logoutErr}
			tokens := tokenstore.New(ctx, tokenstore.NewMemoryStorage(), tokenstore.WithLogger(log.Nop()))
			m := New(api, tokens, WithLogger(log.Nop()))

			_, err := m.Login(ctx, "a@b.com", "pw")
			require.NoError(t, err)
			require.Equal(t, "tok-stub", tokens.Token())

			m.Logout(ctx)

			assert.Equal(t, 1, api.logouts)
			assert.Empty(t, tokens.Token())
			assert.Nil(t, m.User())
			assert.Empty(t, m.Permissions())
			assert.Equal(t, Unauthenticated, m.State())
		})
	}
}

func TestLogoutOverHTTP(t *testing.T) {
	h := newHarness(t, "tok-old")
	h.api.Respond(apitest.RouteLogout, http.StatusOK, map[string]string{"message": "Logged out"})

	h.manager.Logout(context.Background())

	req, ok := h.api.LastRequest(apitest.RouteLogout)
	require.True(t, ok)
	assert.Equal(t, "Bearer tok-old", req.Header.Get("Authorization"))
	assert.Empty(t, h.tokens.Token())
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name        string
		role        string
		permissions []string
		check       string
		want        bool
	}{
		{name: "granted", role: "dispatcher", permissions: []string{"orders.view"}, check: "orders.view", want: true},
		{name: "not granted", role: "dispatcher", permissions: []string{"orders.view"}, check: "orders.delete", want: false},
		{name: "empty set", role: "rider", permissions: nil, check: "orders.view", want: false},
		{name: "super role any", role: SuperRole, permissions: nil, check: "anything.at.all", want: true},
		{name: "super role empty name", role: SuperRole, permissions: nil, check: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			user := apitest.User(1, "a@b.com", tt.role)
			h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.SessionBody("tok", user, tt.permissions))

			_, err := h.manager.Login(context.Background(), "a@b.com", "pw")
			require.NoError(t, err)

			assert.Equal(t, tt.want, h.manager.HasPermission(tt.check))
		})
	}
}

func TestChecksWhenUnauthenticated(t *testing.T) {
	h := newHarness(t, "")

	for _, perm := range []string{"", "orders.view", SuperRole} {
		assert.False(t, h.manager.HasPermission(perm))
		assert.False(t, h.manager.HasRole(perm))
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		role  string
		check string
		want  bool
	}{
		{role: "rider", check: "rider", want: true},
		{role: "rider", check: "admin", want: false},
		{role: SuperRole, check: "admin", want: true},
		{role: SuperRole, check: SuperRole, want: true},
		{role: "", check: "", want: false},
		{role: "", check: "rider", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.check, func(t *testing.T) {
			h := newHarness(t, "")
			user := apitest.User(1, "a@b.com", tt.role)
			if tt.role == "" {
				user.Role, user.RoleID = nil, nil
			}
			h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.SessionBody("tok", user, nil))

			_, err := h.manager.Login(context.Background(), "a@b.com", "pw")
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.manager.HasRole(tt.check))
		})
	}
}

func TestCancelChallenge(t *testing.T) {
	h := newHarness(t, "")
	h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.ChallengeBody(8))

	_, err := h.manager.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	h.manager.CancelChallenge()

	assert.Equal(t, Unauthenticated, h.manager.State())
	_, pending := h.manager.PendingChallenge()
	assert.False(t, pending)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, "")
	h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.ChallengeBody(42))
	h.api.Respond(apitest.RouteVerify, http.StatusOK, apitest.SessionBody("tok-1", apitest.User(42, "a@b.com", "admin"), nil))
	h.api.Respond(apitest.RouteLogout, http.StatusOK, nil)

	var mu sync.Mutex
	var got []State
	unsubscribe := h.manager.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})

	ctx := context.Background()
	_, err := h.manager.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)
	require.NoError(t, h.manager.VerifyTwoFactor(ctx, 42, "000000"))
	h.manager.Logout(ctx)

	unsubscribe()
	h.api.Respond(apitest.RouteLogin, http.StatusOK, apitest.ChallengeBody(42))
	_, err = h.manager.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{AwaitingSecondFactor, Authenticated, Unauthenticated}, got)
}

func TestSessionSurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")

	api := apitest.New(t)
	user := apitest.User(4, "a@b.com", "admin")
	api.Respond(apitest.RouteLogin, http.StatusOK, apitest.SessionBody("tok-persist", user, nil))
	api.Handle(apitest.RouteMe, apitest.RequireBearer("tok-persist",
		apitest.JSONHandler(http.StatusOK, apitest.SessionBody("", user, []string{"users.view"}))))

	first := tokenstore.New(ctx, tokenstore.NewFileStorage(path), tokenstore.WithLogger(log.Nop()))
	m1 := NewWithClient(platform.NewClient(api.URL(), first, platform.WithLogger(log.Nop())), WithLogger(log.Nop()))
	_, err := m1.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	second := tokenstore.New(ctx, tokenstore.NewFileStorage(path), tokenstore.WithLogger(log.Nop()))
	assert.Equal(t, "tok-persist", second.Token())

	m2 := NewWithClient(platform.NewClient(api.URL(), second, platform.WithLogger(log.Nop())), WithLogger(log.Nop()))
	require.NoError(t, m2.CheckAuth(ctx))
	assert.True(t, m2.IsAuthenticated())
	assert.True(t, m2.HasPermission("users.view"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "awaiting_second_factor", AwaitingSecondFactor.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unknown", State(9).String())
}
