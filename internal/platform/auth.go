package platform

import (
	"context"

	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

// LoginRequest is the credentials payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is either a direct login (AccessToken set) or a
// second-factor challenge (RequiresTwoFactor and UserID set).
type LoginResponse struct {
	AccessToken       string      `json:"access_token,omitempty"`
	User              *types.User `json:"user,omitempty"`
	Permissions       []string    `json:"permissions,omitempty"`
	RequiresTwoFactor bool        `json:"requires_2fa,omitempty"`
	UserID            int64       `json:"user_id,omitempty"`
}

// VerifyTwoFactorRequest answers a second-factor challenge
type VerifyTwoFactorRequest struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

// VerifyTwoFactorResponse carries the session issued after a challenge.
// Permissions is optional; the API may omit it.
type VerifyTwoFactorResponse struct {
	AccessToken string      `json:"access_token"`
	User        *types.User `json:"user"`
	Permissions []string    `json:"permissions,omitempty"`
}

// MeResponse is the current identity
type MeResponse struct {
	User        *types.User `json:"user"`
	Permissions []string    `json:"permissions"`
}

// ResetPasswordRequest completes a password reset started by ForgotPassword
type ResetPasswordRequest struct {
	Token                string `json:"token"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Login submits credentials. It does not touch the token store; storing
// the returned token is the session manager's job.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.Post(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyTwoFactor answers the challenge for userID with code.
func (c *Client) VerifyTwoFactor(ctx context.Context, userID int64, code string) (*VerifyTwoFactorResponse, error) {
	var resp VerifyTwoFactorResponse
	req := VerifyTwoFactorRequest{UserID: userID, Code: code}
	if err := c.Post(ctx, "/auth/2fa/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, "/auth/logout", nil, nil)
}

// Me fetches the identity behind the current token.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var resp MeResponse
	if err := c.Get(ctx, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForgotPassword asks the API to send a reset link to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.Post(ctx, "/auth/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.Post(ctx, "/auth/reset-password", req, nil)
}
