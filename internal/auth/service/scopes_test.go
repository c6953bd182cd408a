package service

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/aussiebroadwan/campus/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestHasScopes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		granted  []string
		required []string
		want     bool
	}{
		{"empty requirement", []string{"a"}, nil, true},
		{"empty both", nil, nil, true},
		{"exact", []string{"a", "b"}, []string{"b", "a"}, true},
		{"subset", []string{"a", "b", "c"}, []string{"c"}, true},
		{"duplicates", []string{"a"}, []string{"a", "a"}, true},
		{"missing one", []string{"a", "b"}, []string{"a", "z"}, false},
		{"nothing granted", nil, []string{"a"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HasScopes(tc.granted, tc.required))
		})
	}
}

func TestHasScopesMatchesSubsetRandomly(t *testing.T) {
	t.Parallel()

	universe := domain.AllScopes()
	rng := rand.New(rand.NewPCG(1, 2))
	pick := func() []string {
		var out []string
		for _, s := range universe {
			if rng.IntN(2) == 0 {
				out = append(out, s)
			}
		}
		return out
	}

	for range 500 {
		granted, required := pick(), pick()

		want := true
		for _, s := range required {
			if !slices.Contains(granted, s) {
				want = false
				break
			}
		}
		require.Equal(t, want, HasScopes(granted, required), "granted=%v required=%v", granted, required)
	}
}

func TestGrantScopes(t *testing.T) {
	t.Parallel()

	held := []string{"profile:read", "grades:read", "profile:read"}

	t.Run("empty request grants all", func(t *testing.T) {
		got, err := grantScopes(held, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"profile:read", "grades:read"}, got)
	})

	t.Run("narrows request", func(t *testing.T) {
		got, err := grantScopes(held, []string{"grades:read", "users:write"})
		require.NoError(t, err)
		require.Equal(t, []string{"grades:read"}, got)
	})

	t.Run("nothing in common", func(t *testing.T) {
		_, err := grantScopes(held, []string{"users:write"})
		require.ErrorIs(t, err, ErrInvalidScope)
		require.ErrorIs(t, err, ErrForbidden)
	})
}

func TestErrorCategories(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrInvalidCredentials, ErrInvalidToken, ErrTokenRevoked, ErrUnknownSubject} {
		require.ErrorIs(t, err, ErrUnauthorized)
		require.Equal(t, "unauthorized", Outcome(err))
	}
	for _, err := range []error{ErrInsufficientScope, ErrInvalidScope} {
		require.ErrorIs(t, err, ErrForbidden)
		require.NotErrorIs(t, err, ErrUnauthorized)
	}
	for _, err := range []error{ErrRevocationUnavailable, ErrDirectoryUnavailable, ErrSigningFailed} {
		require.ErrorIs(t, err, ErrInfrastructure)
		require.Equal(t, "unavailable", Outcome(err))
	}
	require.Equal(t, "ok", Outcome(nil))
	require.Equal(t, "error", Outcome(ErrInvalidRequest))
}
