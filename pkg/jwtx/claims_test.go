package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "campus-auth",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("campus-auth"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("grades-service"), jwtx.ErrIssuer)
	})
}

func TestValidateTimes(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("valid window", func(t *testing.T) {
		c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
		}}
		require.NoError(t, c.ValidateTimes(now, 0))
	})

	t.Run("expired", func(t *testing.T) {
		c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
		}}
		require.ErrorIs(t, c.ValidateTimes(now, 0), jwtx.ErrExpired)
	})

	t.Run("expired exactly at exp", func(t *testing.T) {
		c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now),
		}}
		require.ErrorIs(t, c.ValidateTimes(now, 0), jwtx.ErrExpired)
	})

	t.Run("leeway covers recent expiry", func(t *testing.T) {
		c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		}}
		require.NoError(t, c.ValidateTimes(now, 30*time.Second))
	})

	t.Run("not yet valid", func(t *testing.T) {
		c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
		require.ErrorIs(t, c.ValidateTimes(now, 0), jwtx.ErrNotYetValid)
	})
}

func TestValidateRequired(t *testing.T) {
	full := func() *jwtx.Claims {
		return &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "s-100",
			ID:        jwtx.NewJTI(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
	}

	require.NoError(t, full().ValidateRequired())

	c := full()
	c.ID = ""
	require.ErrorIs(t, c.ValidateRequired(), jwtx.ErrInvalidClaim)

	c = full()
	c.ID = "not-a-uuid"
	require.ErrorIs(t, c.ValidateRequired(), jwtx.ErrInvalidClaim)

	c = full()
	c.ExpiresAt = nil
	require.ErrorIs(t, c.ValidateRequired(), jwtx.ErrInvalidClaim)

	c = full()
	c.Subject = ""
	require.ErrorIs(t, c.ValidateRequired(), jwtx.ErrInvalidClaim)
}

func TestNewJTIIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		id := jwtx.NewJTI()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
