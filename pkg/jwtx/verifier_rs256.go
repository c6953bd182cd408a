package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates JWTs signed using RS256.
type RS256Verifier struct {
	keys   *KeySet
	issuer string
	parser *jwt.Parser
}

// NewVerifierRS256 creates a verifier over a KeySet of RSA public keys.
func NewVerifierRS256(keys *KeySet, issuer string) *RS256Verifier {
	return &RS256Verifier{
		keys:   keys,
		issuer: issuer,
		// Time based claims are checked by us so leeway and the clock stay
		// under our control.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Verify implements Verifier using the wall clock and no leeway.
func (v *RS256Verifier) Verify(tokenStr string) (Claims, error) {
	c, err := v.VerifyAt(tokenStr, time.Now(), 0)
	if err != nil {
		return Claims{}, err
	}
	return *c, nil
}

// VerifyAt validates the signature, then the claims as of now.
func (v *RS256Verifier) VerifyAt(tokenStr string, now time.Time, leeway time.Duration) (*Claims, error) {
	token, err := v.parser.ParseWithClaims(tokenStr, &Claims{}, v.keyFunc)
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}

	if err := claims.ValidateRequired(); err != nil {
		return nil, err
	}
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateTimes(now, leeway); err != nil {
		return nil, err
	}

	return claims, nil
}

func (v *RS256Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
	}

	pub, err := v.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrUnknownKID, kid, err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("jwtx: invalid RSA key type")
	}
	return rsaPub, nil
}

// classifyParseError folds golang-jwt's error zoo into our sentinels while
// keeping the original in the chain.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
