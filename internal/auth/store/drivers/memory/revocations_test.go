package memory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/internal/auth/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRevocations() (*memory.Revocations, *clock) {
	c := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return memory.New(memory.WithClock(c.Now)), c
}

func TestRevokeAndExpire(t *testing.T) {
	ctx := context.Background()
	r, c := newRevocations()

	ok, err := r.Revoke(ctx, "jti-1", c.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// Idempotent.
	ok, err = r.Revoke(ctx, "jti-1", c.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, r.Len())

	c.Advance(time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
	require.Zero(t, r.Len(), "expired entry is dropped on lookup")
}

func TestRevokeExpiredWritesNothing(t *testing.T) {
	ctx := context.Background()
	r, c := newRevocations()

	for _, exp := range []time.Time{c.Now(), c.Now().Add(-time.Second), {}} {
		ok, err := r.Revoke(ctx, "jti-old", exp)
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Zero(t, r.Len())

	_, err := r.Revoke(ctx, "", c.Now().Add(time.Minute))
	require.ErrorIs(t, err, store.ErrEmptyJTI)
}

func TestRevokeIfAbsent(t *testing.T) {
	ctx := context.Background()
	r, c := newRevocations()
	exp := c.Now().Add(time.Minute)

	ok, err := r.RevokeIfAbsent(ctx, "jti-1", exp)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.RevokeIfAbsent(ctx, "jti-1", exp)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = r.RevokeIfAbsent(ctx, "jti-2", c.Now())
	require.ErrorIs(t, err, store.ErrExpired)
	require.Equal(t, 1, r.Len())
}

func TestRevokeIfAbsentSingleWinner(t *testing.T) {
	ctx := context.Background()
	r, c := newRevocations()
	exp := c.Now().Add(time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.RevokeIfAbsent(ctx, "contested", exp)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	r, c := newRevocations()

	for i := range 10 {
		_, err := r.Revoke(ctx, fmt.Sprintf("jti-%d", i), c.Now().Add(time.Duration(i+1)*time.Second))
		require.NoError(t, err)
	}

	require.Equal(t, 5, r.Prune(c.Now().Add(5*time.Second)))
	require.Equal(t, 5, r.Len())
	require.Zero(t, r.Prune(c.Now()))
}

func TestCancelledContext(t *testing.T) {
	r, c := newRevocations()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.IsRevoked(ctx, "jti")
	require.ErrorIs(t, err, context.Canceled)
	_, err = r.Revoke(ctx, "jti", c.Now().Add(time.Minute))
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, r.Ping(ctx), context.Canceled)
}
