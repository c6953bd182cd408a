package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

// Revocations is an in-process blacklist. Entries are dropped lazily on
// lookup and in bulk by Prune. It only suits a single instance since
// nothing is shared across processes.
type Revocations struct {
	mu      sync.Mutex
	entries map[string]time.Time // jti -> expiry
	now     func() time.Time
	log     *slog.Logger
}

var _ store.Revocations = (*Revocations)(nil)

// Option configures Revocations.
type Option func(*Revocations)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Revocations) { r.now = now }
}

// WithLogger sets the logger used for no-op revocations.
func WithLogger(l *slog.Logger) Option {
	return func(r *Revocations) { r.log = l }
}

// New returns an empty blacklist.
func New(opts ...Option) *Revocations {
	r := &Revocations{
		entries: make(map[string]time.Time),
		now:     time.Now,
		log:     slogx.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke records jti until expiresAt, overwriting any earlier entry.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if jti == "" {
		return false, store.ErrEmptyJTI
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.now().Before(expiresAt) {
		r.log.Warn("revocation skipped, token already expired", "jti", jti, "exp", expiresAt)
		return false, nil
	}

	r.entries[jti] = expiresAt
	return true, nil
}

// RevokeIfAbsent records jti only when it has no live entry.
func (r *Revocations) RevokeIfAbsent(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if jti == "" {
		return false, store.ErrEmptyJTI
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !now.Before(expiresAt) {
		return false, store.ErrExpired
	}

	if exp, ok := r.entries[jti]; ok && now.Before(exp) {
		return false, nil
	}

	r.entries[jti] = expiresAt
	return true, nil
}

// IsRevoked reports whether jti has a live entry.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.entries[jti]
	if !ok {
		return false, nil
	}
	if !r.now().Before(exp) {
		delete(r.entries, jti)
		return false, nil
	}
	return true, nil
}

// Prune drops every entry whose token has expired by now and returns how
// many went.
func (r *Revocations) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for jti, exp := range r.entries {
		if !now.Before(exp) {
			delete(r.entries, jti)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Revocations) Ping(ctx context.Context) error { return ctx.Err() }
func (r *Revocations) Close() error                   { return nil }
