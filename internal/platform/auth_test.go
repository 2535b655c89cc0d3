package platform

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/apporte/internal/apitest"
	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

func TestLogin(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		api := apitest.New(t)
		user := apitest.User(7, "ops@apporte.test", "branch_manager", "orders.view")
		api.Respond(apitest.RouteLogin, http.StatusOK, apitest.SessionBody("tok-7", user, []string{"orders.view", "riders.view"}))

		client := newTestClient(t, api.URL(), "")
		resp, err := client.Login(context.Background(), "ops@apporte.test", "pw")
		require.NoError(t, err)

		assert.Equal(t, "tok-7", resp.AccessToken)
		assert.False(t, resp.RequiresTwoFactor)
		require.NotNil(t, resp.User)
		assert.Equal(t, int64(7), resp.User.ID)
		assert.Equal(t, "branch_manager", resp.User.RoleName())
		assert.Equal(t, []string{"orders.view", "riders.view"}, resp.Permissions)
		assert.Empty(t, client.Tokens().Token(), "Login must not store the token itself")

		req, _ := api.LastRequest(apitest.RouteLogin)
		var body LoginRequest
		require.NoError(t, req.Decode(&body))
		assert.Equal(t, LoginRequest{Email: "ops@apporte.test", Password: "pw"}, body)
	})

	t.Run("challenge", func(t *testing.T) {
		api := apitest.New(t)
		api.Respond(apitest.RouteLogin, http.StatusOK, apitest.ChallengeBody(42))

		client := newTestClient(t, api.URL(), "")
		resp, err := client.Login(context.Background(), "a@b.com", "secret")
		require.NoError(t, err)

		assert.True(t, resp.RequiresTwoFactor)
		assert.Equal(t, int64(42), resp.UserID)
		assert.Empty(t, resp.AccessToken)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		api := apitest.New(t)
		api.Respond(apitest.RouteLogin, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid credentials"})

		client := newTestClient(t, api.URL(), "")
		_, err := client.Login(context.Background(), "a@b.com", "wrong")
		require.Error(t, err)
		assert.Equal(t, "Invalid credentials", err.Error())
	})
}

func TestVerifyTwoFactor(t *testing.T) {
	api := apitest.New(t)
	user := apitest.User(42, "a@b.com", "admin", "users.view")
	api.Respond(apitest.RouteVerify, http.StatusOK, map[string]any{"access_token": "tok-1", "user": user})

	client := newTestClient(t, api.URL(), "")
	resp, err := client.VerifyTwoFactor(context.Background(), 42, "000000")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.AccessToken)
	assert.Nil(t, resp.Permissions)

	req, _ := api.LastRequest(apitest.RouteVerify)
	var body VerifyTwoFactorRequest
	require.NoError(t, req.Decode(&body))
	assert.Equal(t, VerifyTwoFactorRequest{UserID: 42, Code: "000000"}, body)
}

func TestResetPassword(t *testing.T) {
	api := apitest.New(t)
	api.Respond(apitest.RouteResetPassword, http.StatusOK, map[string]string{"message": "Password reset"})

	client := newTestClient(t, api.URL(), "")
	err := client.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:                "reset-tok",
		Email:                "a@b.com",
		Password:             "n3w-pass",
		PasswordConfirmation: "n3w-pass",
	})
	require.NoError(t, err)

	req, _ := api.LastRequest(apitest.RouteResetPassword)
	var body map[string]string
	require.NoError(t, req.Decode(&body))
	assert.Equal(t, "reset-tok", body["token"])
	assert.Equal(t, "n3w-pass", body["password_confirmation"])
}

func TestUserFilterParams(t *testing.T) {
	tests := []struct {
		name   string
		filter UserFilter
		want   string
	}{
		{name: "defaults", filter: UserFilter{}, want: "page=1&per_page=15"},
		{name: "all set", filter: UserFilter{Page: 3, PerPage: 50, Search: "ada", Role: "rider", Status: types.UserStatusSuspended},
			want: "page=3&per_page=50&role=rider&search=ada&status=suspended"},
		{name: "negative page", filter: UserFilter{Page: -1}, want: "page=1&per_page=15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Params().Encode())
		})
	}
}

func TestListUsers(t *testing.T) {
	api := apitest.New(t)
	api.Respond(apitest.RouteUsers, http.StatusOK, types.Page[types.User]{
		Data:        []types.User{apitest.User(1, "a@b.com", "admin"), apitest.User(2, "c@d.com", "rider")},
		CurrentPage: 2,
		LastPage:    4,
		PerPage:     2,
		Total:       8,
	})

	client := newTestClient(t, api.URL(), "tok")
	page, err := client.ListUsers(context.Background(), UserFilter{Page: 2, PerPage: 2, Role: "rider"})
	require.NoError(t, err)

	assert.Len(t, page.Data, 2)
	assert.True(t, page.HasNext())
	assert.True(t, page.HasPrev())

	req, _ := api.LastRequest(apitest.RouteUsers)
	assert.Equal(t, "2", req.Query.Get("page"))
	assert.Equal(t, "rider", req.Query.Get("role"))
	assert.Empty(t, req.Query.Get("search"))
}

func TestListRoles(t *testing.T) {
	api := apitest.New(t)
	api.Respond(apitest.RouteRoles, http.StatusOK, []types.Role{
		{ID: 1, Name: "super_admin", DisplayName: "Super Admin"},
		{ID: 2, Name: "rider", DisplayName: "Rider"},
	})

	client := newTestClient(t, api.URL(), "tok")
	roles, err := client.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "super_admin", roles[0].Name)
}

func TestSuspendAndActivateUser(t *testing.T) {
	api := apitest.New(t)
	api.Respond(apitest.RouteSuspend, http.StatusOK, map[string]string{"message": "suspended"})
	api.Respond(apitest.RouteActivate, http.StatusOK, map[string]string{"message": "activated"})

	client := newTestClient(t, api.URL(), "tok")
	require.NoError(t, client.SuspendUser(context.Background(), 12))
	require.NoError(t, client.ActivateUser(context.Background(), 12))

	req, _ := api.LastRequest(apitest.RouteSuspend)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "12", req.Vars["id"])

	req, _ = api.LastRequest(apitest.RouteActivate)
	assert.Equal(t, "/api/v1/admin/users/12/activate", req.Path)
}
