package apitest

import (
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

// User builds a user fixture with the given role and role permissions.
func User(id int64, email, role string, permissions ...string) types.User {
	roleID := id
	return types.User{
		ID:        id,
		Name:      "User " + strings.Split(email, "@")[0],
		Email:     email,
		Status:    types.UserStatusActive,
		RoleID:    &roleID,
		Role:      &types.Role{ID: roleID, Name: role, DisplayName: role, Permissions: permissions},
		CreatedAt: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

// SessionBody is the payload of a successful login, verification or /me.
func SessionBody(token string, user types.User, permissions []string) map[string]any {
	body := map[string]any{
		"user":        user,
		"permissions": permissions,
	}
	if token != "" {
		body["access_token"] = token
	}
	return body
}

// ChallengeBody is the payload of a login that requires a second factor.
func ChallengeBody(userID int64) map[string]any {
	return map[string]any{"requires_2fa": true, "user_id": userID}
}

// RequireBearer answers 401 unless the request carries token, and
// delegates to next otherwise.
func RequireBearer(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		next(w, r)
	}
}

// JSONHandler answers with status and body.
func JSONHandler(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	}
}
