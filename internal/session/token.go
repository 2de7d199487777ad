package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrOpaque is returned by Inspect for tokens that are not JWTs.
	ErrOpaque = errors.New("session: opaque token")
	// ErrExpired marks a token whose exp claim is in the past.
	ErrExpired = errors.New("session: token expired")
)

// Info is what can be read from a token without its signing key.
type Info struct {
	Subject   string     `json:"subject,omitempty"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the token had an expiry before now.
func (i Info) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Inspect decodes the claims of a JWT without verifying its signature.
// Verification is the backend's job; the dashboard only needs the subject
// and expiry to decide whether a stored token is worth rehydrating.
func Inspect(token string) (Info, error) {
	c := &claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, c); err != nil {
		return Info{}, fmt.Errorf("session.Inspect: %w: %w", ErrOpaque, err)
	}

	info := Info{Subject: c.Subject, Email: c.Email, Role: c.Role}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.Time
		info.ExpiresAt = &exp
	}
	return info, nil
}
