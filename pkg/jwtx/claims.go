package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by every session token. The registered claims supply sub,
// jti, iat, exp, nbf and iss; Role and Scope are ours.
type Claims struct {
	jwt.RegisteredClaims

	// Role names the user collection the subject lives in (student, teacher,
	// admin). Lookups after decode go to this collection only.
	Role string `json:"role,omitempty"`

	// Scope is the set of granted permission strings, e.g. "grades:read".
	Scope []string `json:"scope,omitempty"`
}

// NewJTI returns a random UUIDv4 for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks the iss claim. An empty expectation disables the check.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateRequired makes sure the claims we rely on downstream are present.
// A token without jti cannot be revoked and one without exp never dies, so
// both are rejected outright.
func (c *Claims) ValidateRequired() error {
	if c.ID == "" {
		return ErrInvalidClaim
	}
	if _, err := uuid.Parse(c.ID); err != nil {
		return ErrInvalidClaim
	}
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if c.Subject == "" {
		return ErrInvalidClaim
	}
	return nil
}

// ValidateTimes checks exp and nbf against now. The token is expired once
// now reaches exp plus leeway.
func (c *Claims) ValidateTimes(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}

// ExpiresAtTime is ExpiresAt as a plain time, zero when unset.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
