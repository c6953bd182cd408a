package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/campus/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newMemoryRevocations() store.Revocations { return memory.New() }

func TestHousekeepingPrunes(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	revs := memory.New()

	_, err := revs.Revoke(ctx, "short", now.Add(50*time.Millisecond))
	require.NoError(t, err)
	_, err = revs.Revoke(ctx, "long", now.Add(time.Hour))
	require.NoError(t, err)

	hk := service.NewHousekeepingService(revs, slogx.Discard(), 10*time.Millisecond)
	hk.Start()
	t.Cleanup(hk.Stop)

	require.Eventually(t, func() bool { return revs.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHousekeepingRunOnce(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	revs := memory.New(memory.WithClock(func() time.Time { return base }))

	for _, jti := range []string{"a", "b", "c"} {
		_, err := revs.Revoke(ctx, jti, base.Add(time.Minute))
		require.NoError(t, err)
	}

	hk := service.NewHousekeepingService(revs, slogx.Discard(), 0)
	require.Equal(t, time.Minute, hk.Interval)

	hk.Now = func() time.Time { return base }
	require.Zero(t, hk.RunOnce())

	hk.Now = func() time.Time { return base.Add(time.Minute) }
	require.Equal(t, 3, hk.RunOnce())
}
