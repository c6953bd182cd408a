//go:build e2e

package auth_test

import (
	"sync"
	"testing"

	"github.com/aussiebroadwan/campus/pkg/authsdk"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	client, _ := setupService(t, nil)
	admin := loginAdmin(t, client)
	createUser(t, admin, "teacher", "grace@campus.test", "cobol-forever")

	s, err := client.Login(t.Context(), authsdk.LoginRequest{
		Collection: "teacher",
		Username:   "grace@campus.test",
		Password:   "cobol-forever",
		Scopes:     []string{"profile:read", "grades:write"},
	})
	require.NoError(t, err)
	require.True(t, s.HasScope("grades:write"))
	require.False(t, s.HasScope("grades:read"))

	me, err := s.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "teacher", me.Collection)

	old := s.AccessToken()
	require.NoError(t, s.Refresh(t.Context()))

	_, err = client.RefreshToken(t.Context(), old)
	require.True(t, authsdk.IsUnauthorized(err))

	require.NoError(t, s.Logout(t.Context()))
	require.NoError(t, s.Logout(t.Context()))

	_, err = s.Me(t.Context())
	require.True(t, authsdk.IsUnauthorized(err))
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	client, _ := setupService(t, nil)
	admin := loginAdmin(t, client)
	createUser(t, admin, "student", "ada@campus.test", "analytical")

	tok, err := client.LoginToken(t.Context(), authsdk.LoginRequest{
		Collection: "student",
		Username:   "ada@campus.test",
		Password:   "analytical",
	})
	require.NoError(t, err)

	const n = 100
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			next, err := client.RefreshToken(t.Context(), tok.AccessToken)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, next.AccessToken)
				return
			}
			if authsdk.IsUnauthorized(err) {
				losers++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	require.Equal(t, n-1, losers)

	successor := client.NewSessionFromToken(winners[0], tok.Scope, 900)
	_, err = successor.Me(t.Context())
	require.NoError(t, err)
}

func TestRevocationsLiveInNamespace(t *testing.T) {
	client, namespace := setupService(t, nil)
	admin := loginAdmin(t, client)
	require.NoError(t, admin.Logout(t.Context()))

	rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	t.Cleanup(func() { _ = rdb.Close() })

	keys, err := rdb.Keys(t.Context(), namespace+":blacklist:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	ttl, err := rdb.TTL(t.Context(), keys[0]).Result()
	require.NoError(t, err)
	require.Positive(t, ttl)
}

func TestHealthAndJWKS(t *testing.T) {
	client, _ := setupService(t, nil)

	ready, err := client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, &authsdk.HealthChecks{Database: "ok", Cache: "ok", Signer: "ok"}, ready.Checks)

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
}

func TestLoginRateLimit(t *testing.T) {
	client, _ := setupService(t, map[string]string{
		"RATELIMIT_STRICT_REQUESTS": "3",
		"RATELIMIT_STRICT_BURST":    "3",
	})

	req := authsdk.LoginRequest{Collection: "student", Username: "mallory@campus.test", Password: "guess"}
	for range 3 {
		_, err := client.Login(t.Context(), req)
		require.True(t, authsdk.IsUnauthorized(err))
	}
	_, err := client.Login(t.Context(), req)
	require.True(t, authsdk.IsRateLimited(err))
}
