package jwtx

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec issues and decodes session tokens with a single KeyProvider.
type Codec struct {
	provider *KeyProvider
	verifier *RS256Verifier
	issuer   string
	now      func() time.Time
}

// CodecOption tweaks a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source. Tests use it to move past exp.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec over p. issuer is stamped into and required on
// every token; an empty issuer skips both.
func NewCodec(p *KeyProvider, issuer string, opts ...CodecOption) *Codec {
	c := &Codec{
		provider: p,
		verifier: NewVerifierRS256(p.KeySet(), issuer),
		issuer:   issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue stamps iss, iat, nbf, exp and a fresh jti onto claims and signs
// them. Only Subject, Role and Scope are read from the input.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 {
		return "", Claims{}, ErrInvalidTTL
	}

	now := c.now()
	out := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   claims.Subject,
			ID:        NewJTI(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  claims.Role,
		Scope: slices.Clone(claims.Scope),
	}

	token, err := c.provider.SigningKey().Sign(out)
	if err != nil {
		return "", Claims{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return token, out, nil
}

// Decode verifies the signature and the time claims with no leeway.
func (c *Codec) Decode(token string) (Claims, error) {
	return c.DecodeWithLeeway(token, 0)
}

// DecodeWithLeeway is Decode with extra tolerance on exp and nbf. Every
// error wraps ErrDecode as well as the specific cause.
func (c *Codec) DecodeWithLeeway(token string, leeway time.Duration) (Claims, error) {
	claims, err := c.verifier.VerifyAt(token, c.now(), leeway)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return *claims, nil
}

// Rotate re-issues a token for the same subject, role and scope with a new
// jti and fresh times.
func (c *Codec) Rotate(claims Claims, ttl time.Duration) (string, Claims, error) {
	return c.Issue(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: claims.Subject},
		Role:             claims.Role,
		Scope:            claims.Scope,
	}, ttl)
}

// Now exposes the codec's clock so callers compute TTLs consistently.
func (c *Codec) Now() time.Time { return c.now() }
