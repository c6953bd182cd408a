package jwtx

import (
	"crypto/rsa"
	"fmt"

	"github.com/aussiebroadwan/campus/pkg/cryptox"
)

// KeyProviderOptions configure the process signing key.
type KeyProviderOptions struct {
	// RSABits is the modulus size used when a key is generated. Zero means
	// cryptox.MinRSABits.
	RSABits int

	// PrivateKeyPEM, when set, is used instead of generating a key.
	PrivateKeyPEM []byte

	// KeyID overrides the kid. Without it a loaded key gets its RFC 7638
	// thumbprint and a generated key gets a random id.
	KeyID string
}

// KeyProvider owns the single RSA key pair used for the lifetime of the
// process. It is created once at startup and shared by reference.
type KeyProvider struct {
	signer    *RS256Signer
	keys      *KeySet
	ephemeral bool
}

// NewKeyProvider loads or generates the signing key. Keys smaller than
// cryptox.MinRSABits are rejected.
func NewKeyProvider(opts KeyProviderOptions) (*KeyProvider, error) {
	kid := opts.KeyID
	pemKey := opts.PrivateKeyPEM
	ephemeral := len(pemKey) == 0

	if kid == "" && ephemeral {
		suffix, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate kid: %w", err)
		}
		kid = "campus-" + suffix
	}

	if ephemeral {
		bits := opts.RSABits
		if bits == 0 {
			bits = cryptox.MinRSABits
		}
		if bits < cryptox.MinRSABits {
			return nil, cryptox.ErrWeakKey
		}

		generated, err := cryptox.GenerateRSAKey(bits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key: %w", err)
		}
		pemKey = generated
	}

	if kid == "" {
		key, err := cryptox.ParseRSAPrivateKey(pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: load RSA key: %w", err)
		}
		kid = NewRSAJWK("", "", "", &key.PublicKey).Thumbprint()
	}

	signer, err := newRS256Signer(kid, pemKey)
	if err != nil {
		return nil, err
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}

	keys := NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, err
	}

	return &KeyProvider{signer: signer, keys: keys, ephemeral: ephemeral}, nil
}

// SigningKey returns the active signer.
func (p *KeyProvider) SigningKey() Signer { return p.signer }

// VerificationKey returns the RSA public key matching SigningKey.
func (p *KeyProvider) VerificationKey() *rsa.PublicKey { return p.signer.PublicKey() }

// KeySet returns the verification key set published at the JWKS endpoint.
func (p *KeyProvider) KeySet() *KeySet { return p.keys }

// KID returns the key id stamped on every token.
func (p *KeyProvider) KID() string { return p.signer.KID() }

// Ephemeral is true when the key was generated in memory at startup.
func (p *KeyProvider) Ephemeral() bool { return p.ephemeral }

// IsReady reports whether the provider can sign and verify.
func (p *KeyProvider) IsReady() bool {
	return p != nil && p.signer != nil && p.keys.IsReady()
}
