package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// LoginToken posts credentials and returns the raw token response.
func (c *SDKClient) LoginToken(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	data := url.Values{
		"collection": {req.Collection},
		"username":   {req.Username},
		"password":   {req.Password},
	}
	if req.OTP != "" {
		data.Set("otp", req.OTP)
	}
	if len(req.Scopes) > 0 {
		data.Set("scope", strings.Join(req.Scopes, " "))
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// RefreshToken exchanges accessToken for a successor. accessToken is
// revoked by the call whether or not the response reaches the caller.
func (c *SDKClient) RefreshToken(ctx context.Context, accessToken string) (*TokenResponse, error) {
	resp, err := c.doBearerRequest(ctx, http.MethodPost, "/v1/auth/refresh", accessToken, nil, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// RevokeToken logs accessToken out. Revoking twice is not an error.
func (c *SDKClient) RevokeToken(ctx context.Context, accessToken string) error {
	resp, err := c.doBearerRequest(ctx, http.MethodPost, "/v1/auth/logout", accessToken, nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
