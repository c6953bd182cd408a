package authsdk

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnknownKey is returned by VerificationKey when the service does not
// publish the requested kid.
var ErrUnknownKey = errors.New("authsdk: unknown signing key")

// GetJWKS fetches the public keys access tokens are signed with.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// VerificationKey returns the RSA public key published under kid, for
// services that check campus tokens offline.
func (c *SDKClient) VerificationKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	jwks, err := c.GetJWKS(ctx)
	if err != nil {
		return nil, err
	}

	for _, k := range jwks.Keys {
		if k.Kid != kid {
			continue
		}
		pub, err := k.RSAPublicKey()
		if err != nil {
			return nil, fmt.Errorf("authsdk: key %q: %w", kid, err)
		}
		return pub, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
}
