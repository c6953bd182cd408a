package jwtx

import "errors"

// Verifier validates a JWT and hands back its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	// ErrDecode wraps every decode failure so callers can match the whole
	// class with one errors.Is.
	ErrDecode = errors.New("jwtx: decode failed")

	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
	ErrInvalidTTL   = errors.New("jwtx: ttl must be positive")
)
