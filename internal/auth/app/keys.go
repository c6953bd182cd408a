package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/jwtx"
)

// InitKeyProvider loads the signing key from PrivateKeyFile, or generates
// an ephemeral one. Tokens signed by an ephemeral key die with the process,
// and every instance of a multi-instance deployment must share the file.
func InitKeyProvider(cfg Config, logger *slog.Logger) (*jwtx.KeyProvider, error) {
	opts := jwtx.KeyProviderOptions{
		RSABits: cfg.RSABits,
		KeyID:   cfg.KeyID,
	}

	if cfg.PrivateKeyFile != "" {
		pemBytes, err := cryptox.ReadRSAKeyFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		opts.PrivateKeyPEM = pemBytes
	}

	provider, err := jwtx.NewKeyProvider(opts)
	if err != nil {
		return nil, err
	}

	if provider.Ephemeral() {
		logger.Warn("using ephemeral signing key, tokens will not survive a restart",
			"kid", provider.KID(),
			"bits", cfg.RSABits,
		)
	} else {
		logger.Info("signing key loaded", "kid", provider.KID(), "path", cfg.PrivateKeyFile)
	}

	return provider, nil
}
