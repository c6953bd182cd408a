package domain_test

import (
	"testing"

	"github.com/aussiebroadwan/campus/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range domain.Roles() {
		got, err := domain.ParseRole(string(r))
		require.NoError(t, err)
		require.Equal(t, r, got)
	}

	_, err := domain.ParseRole("students; DROP TABLE users")
	require.Error(t, err)
	_, err = domain.ParseRole("")
	require.Error(t, err)
}

func TestDefaultScopes(t *testing.T) {
	student := domain.DefaultScopes(domain.RoleStudent)
	teacher := domain.DefaultScopes(domain.RoleTeacher)
	admin := domain.DefaultScopes(domain.RoleAdmin)

	require.Subset(t, teacher, student)
	require.Subset(t, admin, teacher)
	require.Contains(t, admin, domain.ScopeUsersWrite)
	require.NotContains(t, teacher, domain.ScopeUsersWrite)
	require.Nil(t, domain.DefaultScopes("janitor"))

	// Callers may append to the result without affecting later calls.
	_ = append(domain.DefaultScopes(domain.RoleStudent), "x")
	require.Len(t, domain.DefaultScopes(domain.RoleStudent), 3)
}
