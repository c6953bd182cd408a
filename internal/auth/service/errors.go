package service

import (
	"errors"
	"fmt"
)

// Categories. Every error returned by Authority wraps exactly one of these
// so callers can branch with errors.Is without knowing the specifics.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInfrastructure = errors.New("infrastructure")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenRevoked       = fmt.Errorf("%w: token revoked", ErrUnauthorized)
	ErrUnknownSubject     = fmt.Errorf("%w: unknown subject", ErrUnauthorized)

	ErrInsufficientScope = fmt.Errorf("%w: insufficient scope", ErrForbidden)
	ErrInvalidScope      = fmt.Errorf("%w: invalid scope", ErrForbidden)

	ErrRevocationUnavailable = fmt.Errorf("%w: revocation store unavailable", ErrInfrastructure)
	ErrDirectoryUnavailable  = fmt.Errorf("%w: user directory unavailable", ErrInfrastructure)
	ErrSigningFailed         = fmt.Errorf("%w: signing failed", ErrInfrastructure)
)

// Errors from user management. These are caller mistakes, not auth failures.
var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrUserExists     = errors.New("user_exists")
)

// Outcome names the category of err for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInfrastructure):
		return "unavailable"
	default:
		return "error"
	}
}
