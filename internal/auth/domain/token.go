package domain

import "time"

// TokenType is the OAuth2 token_type we hand out.
const TokenType = "bearer"

// TokenResponse is the body of login and refresh responses.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
	Scope       string `json:"scope,omitempty"`
}

// NewTokenResponse builds a TokenResponse from a signed token.
func NewTokenResponse(token string, expiresAt, now time.Time, scope string) TokenResponse {
	return TokenResponse{
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   int64(expiresAt.Sub(now).Round(time.Second) / time.Second),
		Scope:       scope,
	}
}
