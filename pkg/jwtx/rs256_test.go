package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "campus-auth"

func newTestSigner(t *testing.T, kid string) jwtx.Signer {
	t.Helper()

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privKey),
	})

	signer, err := jwtx.NewSignerRS256(kid, privPEM)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	return signer
}

func testClaims(now time.Time, ttl time.Duration) jwtx.Claims {
	return jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    exampleIssuer,
			Subject:   "s-100",
			ID:        jwtx.NewJTI(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  "student",
		Scope: []string{"profile:read", "grades:read"},
	}
}

func TestRS256SignAndVerify(t *testing.T) {
	signer := newTestSigner(t, "test-key")
	require.Equal(t, "RS256", signer.Alg())

	claims := testClaims(time.Now(), 2*time.Minute)
	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	verifier := jwtx.NewVerifierRS256(keyset, exampleIssuer)
	parsed, err := verifier.Verify(token)
	require.NoError(t, err)

	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, claims.ID, parsed.ID)
	require.Equal(t, claims.Role, parsed.Role)
	require.ElementsMatch(t, claims.Scope, parsed.Scope)
}

func TestRS256VerifyFailures(t *testing.T) {
	signer := newTestSigner(t, "test-key")
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := signer.Sign(testClaims(time.Now(), time.Minute))
		require.NoError(t, err)

		_, err = jwtx.NewVerifierRS256(keyset, "someone-else").Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := signer.Sign(testClaims(time.Now().Add(-time.Hour), time.Minute))
		require.NoError(t, err)

		_, err = jwtx.NewVerifierRS256(keyset, exampleIssuer).Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("unknown kid", func(t *testing.T) {
		other := newTestSigner(t, "other-key")
		token, err := other.Sign(testClaims(time.Now(), time.Minute))
		require.NoError(t, err)

		_, err = jwtx.NewVerifierRS256(keyset, exampleIssuer).Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
		require.ErrorIs(t, err, jwtx.ErrNoKey)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := signer.Sign(testClaims(time.Now(), time.Minute))
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)

		forged := testClaims(time.Now(), time.Minute)
		forged.Role = "admin"
		forgedToken, err := signer.Sign(forged)
		require.NoError(t, err)
		parts[1] = strings.Split(forgedToken, ".")[1]

		_, err = jwtx.NewVerifierRS256(keyset, exampleIssuer).Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := jwtx.NewVerifierRS256(keyset, exampleIssuer).Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("alg none rejected", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims(time.Now(), time.Minute))
		unsigned.Header["kid"] = signer.KID()
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = jwtx.NewVerifierRS256(keyset, exampleIssuer).Verify(token)
		require.Error(t, err)
	})

	t.Run("missing jti", func(t *testing.T) {
		c := testClaims(time.Now(), time.Minute)
		c.ID = ""
		token, err := signer.Sign(c)
		require.NoError(t, err)

		_, err = jwtx.NewVerifierRS256(keyset, exampleIssuer).Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
	})
}

func TestKeySetResetFromJWKS(t *testing.T) {
	a := newTestSigner(t, "a")
	b := newTestSigner(t, "b")

	source := jwtx.NewKeySet()
	require.NoError(t, source.AddSigner(a))
	require.NoError(t, source.AddSigner(b))

	mirror := jwtx.NewKeySet()
	require.False(t, mirror.IsReady())
	require.NoError(t, mirror.ResetFromJWKS(source.PublicJWKS()))
	require.True(t, mirror.IsReady())

	_, err := mirror.Get("a")
	require.NoError(t, err)
	_, err = mirror.Get("b")
	require.NoError(t, err)
	_, err = mirror.Get("c")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	err = mirror.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{{Kty: "OKP", Kid: "x"}}})
	require.Error(t, err)
	_, err = mirror.Get("a")
	require.NoError(t, err, "failed reset must leave old keys in place")
}
