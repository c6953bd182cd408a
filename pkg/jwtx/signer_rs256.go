package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// RS256Signer implements Signer using RSA SHA-256.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
	pub *rsa.PublicKey
}

// newRS256Signer loads an RSA private key from PKCS1 or PKCS8 PEM.
func newRS256Signer(kid string, pemKey []byte) (*RS256Signer, error) {
	if kid == "" {
		return nil, errors.New("jwtx: kid is required")
	}

	key, err := cryptox.ParseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load RSA key: %w", err)
	}

	return &RS256Signer{kid: kid, key: key, pub: &key.PublicKey}, nil
}

func (s *RS256Signer) Alg() string               { return jwt.SigningMethodRS256.Alg() }
func (s *RS256Signer) KID() string               { return s.kid }
func (s *RS256Signer) PublicKey() *rsa.PublicKey { return s.pub }

// Sign serialises claims into a compact JWS with the kid header set.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns the verification half for publishing in a JWKS.
func (s *RS256Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, "sig", s.Alg(), s.pub)
}

// Validate checks the key is present and big enough.
func (s *RS256Signer) Validate() error {
	if s.key == nil || s.pub == nil {
		return errors.New("jwtx: nil RSA key")
	}
	if s.pub.N.BitLen() < cryptox.MinRSABits {
		return cryptox.ErrWeakKey
	}
	return nil
}
