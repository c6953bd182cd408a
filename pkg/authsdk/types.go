package authsdk

import (
	"time"

	"github.com/aussiebroadwan/campus/pkg/jwtx"
)

// ErrorResponse is the JSON error body every endpoint returns.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// LoginRequest is the form posted to /v1/auth/login.
type LoginRequest struct {
	// Collection is the role the user belongs to: student, teacher or admin.
	Collection string

	// Username is the user id or email address.
	Username string
	Password string

	// OTP is the current TOTP code for users with MFA enabled.
	OTP string

	// Scopes narrows the token. Empty means every scope the user holds.
	Scopes []string
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// UserResponse is the caller's directory record from GET /v1/me.
type UserResponse struct {
	ID          string    `json:"id"`
	Collection  string    `json:"collection"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Scopes      []string  `json:"scopes"`
	MFAEnabled  bool      `json:"mfa_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateUserRequest is the body of POST /v1/admin/users.
type CreateUserRequest struct {
	Collection  string   `json:"collection"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name,omitempty"`
	Password    string   `json:"password"`
	Scopes      []string `json:"scopes,omitempty"`
	MFA         bool     `json:"mfa,omitempty"`
}

// CreateUserResponse carries the new id and, when MFA was requested, the
// otpauth:// URL to enrol an authenticator app with.
type CreateUserResponse struct {
	ID         string `json:"id"`
	OTPAuthURL string `json:"otpauth_url,omitempty"`
}

// HealthResponse is returned by /livez and /readyz. Checks is only set by
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency as "ok" or "error: ...".
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Signer   string `json:"signer"`
}

// JWKSResponse is the public key set tokens are signed with.
type JWKSResponse jwtx.JWKS
