package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken is returned by InspectToken for tokens that are not JWTs.
var ErrOpaqueToken = errors.New("token is not a JWT")

// TokenInfo holds the claims of a JWT bearer token. The signature is never
// checked; the API remains the only judge of validity.
type TokenInfo struct {
	Subject   string
	Issuer    string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the token carries an expiry before now.
func (i *TokenInfo) Expired(now time.Time) bool {
	return i != nil && i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// InspectToken decodes the claims of token for display.
func InspectToken(token string) (*TokenInfo, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return nil, errors.Join(ErrOpaqueToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, ErrOpaqueToken
	}

	info := &TokenInfo{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		info.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		info.ExpiresAt = &t
	}
	return info, nil
}
