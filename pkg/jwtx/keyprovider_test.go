package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestKeyProviderGenerates(t *testing.T) {
	p, err := jwtx.NewKeyProvider(jwtx.KeyProviderOptions{})
	require.NoError(t, err)

	require.True(t, p.IsReady())
	require.True(t, p.Ephemeral())
	require.True(t, strings.HasPrefix(p.KID(), "campus-"))
	require.GreaterOrEqual(t, p.VerificationKey().N.BitLen(), cryptox.MinRSABits)

	jwks := p.KeySet().PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, p.KID(), jwks.Keys[0].Kid)
	require.Equal(t, "RS256", jwks.Keys[0].Alg)
}

func TestKeyProviderRejectsWeakKeys(t *testing.T) {
	_, err := jwtx.NewKeyProvider(jwtx.KeyProviderOptions{RSABits: 1024})
	require.ErrorIs(t, err, cryptox.ErrWeakKey)
}

func TestKeyProviderLoadsPEM(t *testing.T) {
	pemKey, err := cryptox.GenerateRSAKeyPKCS8(2048)
	require.NoError(t, err)

	p, err := jwtx.NewKeyProvider(jwtx.KeyProviderOptions{PrivateKeyPEM: pemKey, KeyID: "fixed"})
	require.NoError(t, err)
	require.False(t, p.Ephemeral())
	require.Equal(t, "fixed", p.KID())
	require.Equal(t, "fixed", p.SigningKey().KID())
}

func TestKeyProviderDerivesStableKID(t *testing.T) {
	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	a, err := jwtx.NewKeyProvider(jwtx.KeyProviderOptions{PrivateKeyPEM: pemKey})
	require.NoError(t, err)
	b, err := jwtx.NewKeyProvider(jwtx.KeyProviderOptions{PrivateKeyPEM: pemKey})
	require.NoError(t, err)

	require.NotEmpty(t, a.KID())
	require.Equal(t, a.KID(), b.KID())
	require.Equal(t, a.SigningKey().PublicJWK().Thumbprint(), a.KID())

	// Two instances sharing the key accept each other's tokens.
	token, _, err := jwtx.NewCodec(a, "campus").Issue(jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, time.Minute)
	require.NoError(t, err)
	_, err = jwtx.NewCodec(b, "campus").Decode(token)
	require.NoError(t, err)
}

func TestKeyProviderRejectsGarbagePEM(t *testing.T) {
	_, err := jwtx.NewKeyProvider(jwtx.KeyProviderOptions{PrivateKeyPEM: []byte("nope")})
	require.Error(t, err)
}
