package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the campus session service.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// RefreshBefore is how long before expiry a Session swaps its token.
	RefreshBefore time.Duration
}

// NewSDKClient returns a client with a 10s request timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		RefreshBefore: 30 * time.Second,
	}
}

// Login authenticates and returns a Session holding the access token.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	tokenResp, err := c.LoginToken(ctx, req)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromToken wraps a token obtained elsewhere.
func (c *SDKClient) NewSessionFromToken(accessToken, scope string, expiresIn int64) *Session {
	return newSession(c, &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
		Scope:       scope,
	})
}
