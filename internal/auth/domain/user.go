package domain

import "time"

// User is a directory record. Collection doubles as the role claim.
type User struct {
	ID           string
	Collection   Role
	Email        string
	DisplayName  string
	PasswordHash string   // argon2id PHC string
	Scopes       []string // stored space delimited
	MFASecret    *string  // base32 TOTP secret, nil when MFA is off
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MFAEnabled reports whether login must present a TOTP code.
func (u User) MFAEnabled() bool {
	return u.MFASecret != nil && *u.MFASecret != ""
}
