package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserDecodesAPIPayload(t *testing.T) {
	payload := `{
		"id": 7,
		"name": "Ada Obi",
		"email": "ada@apporte.test",
		"phone": null,
		"avatar": null,
		"status": "active",
		"role_id": 1,
		"branch_id": null,
		"role": {"id": 1, "name": "dispatcher", "display_name": "Dispatcher", "permissions": ["waybills.view"]},
		"created_at": "2026-02-01T10:00:00Z",
		"last_login_at": null
	}`

	var user User
	require.NoError(t, json.Unmarshal([]byte(payload), &user))

	assert.Equal(t, int64(7), user.ID)
	assert.Nil(t, user.Phone)
	assert.Nil(t, user.BranchID)
	require.NotNil(t, user.RoleID)
	assert.Equal(t, int64(1), *user.RoleID)
	assert.Equal(t, "dispatcher", user.RoleName())
	assert.Equal(t, []string{"waybills.view"}, user.Role.Permissions)
	assert.NoError(t, user.Status.Validate())
}

func TestRoleNameWithoutRole(t *testing.T) {
	var nilUser *User
	assert.Equal(t, "", nilUser.RoleName())
	assert.Equal(t, "", (&User{}).RoleName())
}

func TestUserStatusValidate(t *testing.T) {
	for _, s := range []UserStatus{UserStatusActive, UserStatusInactive, UserStatusSuspended} {
		assert.NoError(t, s.Validate())
	}
	assert.Error(t, UserStatus("banned").Validate())
}

func TestPageNavigation(t *testing.T) {
	tests := []struct {
		name     string
		page     *Page[User]
		wantNext bool
		wantPrev bool
	}{
		{"nil page", nil, false, false},
		{"single page", &Page[User]{CurrentPage: 1, LastPage: 1}, false, false},
		{"first of three", &Page[User]{CurrentPage: 1, LastPage: 3}, true, false},
		{"middle", &Page[User]{CurrentPage: 2, LastPage: 3}, true, true},
		{"last", &Page[User]{CurrentPage: 3, LastPage: 3}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantNext, tt.page.HasNext())
			assert.Equal(t, tt.wantPrev, tt.page.HasPrev())
		})
	}
}
