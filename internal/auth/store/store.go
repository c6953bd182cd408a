package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/domain"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrAlreadyExists     = errors.New("store: already exists")
	ErrUnknownCollection = errors.New("store: unknown collection")
	ErrEmptyJTI          = errors.New("store: empty jti")

	// ErrExpired is returned by RevokeIfAbsent when the token's lifetime has
	// already ended and there is nothing left to guard.
	ErrExpired = errors.New("store: token already expired")
)

// Directory is the user directory. The collection is always explicit so no
// call depends on state left behind by an earlier one.
type Directory interface {
	// FindBySubject returns the user in collection whose id or email equals
	// subject, or ErrNotFound.
	FindBySubject(ctx context.Context, collection domain.Role, subject string) (domain.User, error)

	// VerifyPassword checks plaintext against the user's stored hash.
	VerifyPassword(u domain.User, plaintext string) bool

	// CreateUser inserts u. The caller provides the id and hash.
	CreateUser(ctx context.Context, u domain.User) error

	// CountUsers returns the number of users in collection.
	CountUsers(ctx context.Context, collection domain.Role) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Revocations is the token blacklist. Entries live exactly as long as the
// token they revoke and disappear afterwards.
type Revocations interface {
	// Revoke records jti until expiresAt. It returns false without writing
	// when expiresAt has already passed. Repeating the call is harmless.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)

	// RevokeIfAbsent records jti only if no entry exists yet and reports
	// whether this call created it. Exactly one concurrent caller wins.
	RevokeIfAbsent(ctx context.Context, jti string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether jti has an entry. Errors must never be
	// read as "not revoked".
	IsRevoked(ctx context.Context, jti string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
