package domain

import (
	"fmt"
	"slices"
)

// Role names a user collection.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Scopes understood by the system.
const (
	ScopeProfileRead   = "profile:read"
	ScopeGradesRead    = "grades:read"
	ScopeGradesWrite   = "grades:write"
	ScopeScheduleRead  = "schedule:read"
	ScopeStudentsRead  = "students:read"
	ScopeScheduleWrite = "schedule:write"
	ScopeUsersWrite    = "users:write"
)

// Roles lists every known collection.
func Roles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleAdmin}
}

// ParseRole validates s against the known collections.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !slices.Contains(Roles(), r) {
		return "", fmt.Errorf("domain: unknown role %q", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// DefaultScopes returns the scopes granted to a new user of role r.
func DefaultScopes(r Role) []string {
	student := []string{ScopeProfileRead, ScopeGradesRead, ScopeScheduleRead}
	switch r {
	case RoleStudent:
		return student
	case RoleTeacher:
		return append(student, ScopeGradesWrite, ScopeStudentsRead)
	case RoleAdmin:
		return AllScopes()
	default:
		return nil
	}
}

// AllScopes is every scope the system issues.
func AllScopes() []string {
	return []string{
		ScopeProfileRead,
		ScopeGradesRead,
		ScopeGradesWrite,
		ScopeScheduleRead,
		ScopeScheduleWrite,
		ScopeStudentsRead,
		ScopeUsersWrite,
	}
}
