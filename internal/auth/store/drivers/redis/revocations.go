package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/pkg/slogx"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written by this driver.
const DefaultNamespace = "campus"

// Config for Revocations.
type Config struct {
	// Namespace keys look like <Namespace>:blacklist:<jti>.
	Namespace string
	Logger    *slog.Logger

	// Now is only overridden by tests.
	Now func() time.Time
}

// Revocations keeps the blacklist in Redis with one expiring key per jti.
type Revocations struct {
	rdb goredis.UniversalClient
	ns  string
	log *slog.Logger
	now func() time.Time
}

var _ store.Revocations = (*Revocations)(nil)

// New wraps an existing client. Closing Revocations closes the client.
func New(rdb goredis.UniversalClient, cfg Config) *Revocations {
	r := &Revocations{
		rdb: rdb,
		ns:  cfg.Namespace,
		log: cfg.Logger,
		now: cfg.Now,
	}
	if r.ns == "" {
		r.ns = DefaultNamespace
	}
	if r.log == nil {
		r.log = slogx.Discard()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Key returns the Redis key holding jti's entry.
func (r *Revocations) Key(jti string) string {
	return fmt.Sprintf("%s:blacklist:%s", r.ns, jti)
}

// ttl is the remaining lifetime rounded down to whole milliseconds, which
// is the resolution Redis stores.
func (r *Revocations) ttl(expiresAt time.Time) time.Duration {
	return expiresAt.Sub(r.now()).Truncate(time.Millisecond)
}

// Revoke is SET key 1 PX ttl. Nothing is written once the token is dead.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if jti == "" {
		return false, store.ErrEmptyJTI
	}

	ttl := r.ttl(expiresAt)
	if ttl <= 0 {
		r.log.Warn("revocation skipped, token already expired", "jti", jti, "exp", expiresAt)
		return false, nil
	}

	if err := r.rdb.Set(ctx, r.Key(jti), "1", ttl).Err(); err != nil {
		return false, fmt.Errorf("redis: revoke: %w", err)
	}
	return true, nil
}

// RevokeIfAbsent is SET key 1 NX PX ttl, so Redis picks the single winner.
func (r *Revocations) RevokeIfAbsent(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if jti == "" {
		return false, store.ErrEmptyJTI
	}

	ttl := r.ttl(expiresAt)
	if ttl <= 0 {
		return false, store.ErrExpired
	}

	created, err := r.rdb.SetNX(ctx, r.Key(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: revoke if absent: %w", err)
	}
	return created, nil
}

// IsRevoked is EXISTS key.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.Key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: is revoked: %w", err)
	}
	return n > 0, nil
}

func (r *Revocations) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Revocations) Close() error {
	return r.rdb.Close()
}
