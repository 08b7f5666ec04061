package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
)

// tokenLeeway absorbs small clock differences between replicas.
const tokenLeeway = 30 * time.Second

// InitSigningKeys builds the token manager from configured key material.
//
// Key sources, in order:
//   - AUTH_SIGNING_SECRET: HS256 with a shared secret of at least 32 bytes.
//   - AUTH_SIGNING_KEY_FILE: EdDSA or ES256 from a PKCS8 PEM file.
//   - nothing, with ENV=dev: an ephemeral Ed25519 key. Tokens do not survive
//     a restart.
//
// Outside dev, missing key material is a startup error. AUTH_PREVIOUS_KEY_FILE
// keeps a retired key trusted for verification while its tokens expire.
func InitSigningKeys(cfg Config, logger *slog.Logger) (*jwtx.Manager, error) {
	signer, err := currentSigner(cfg, logger)
	if err != nil {
		return nil, err
	}

	manager, err := jwtx.NewManager(signer, jwtx.Options{Issuer: cfg.Issuer, Leeway: tokenLeeway})
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	if cfg.PreviousKeyFile != "" {
		previous, err := signerFromFile(cfg.PreviousAlgorithm, cfg.PreviousKeyID, cfg.PreviousKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous signing key: %w", err)
		}
		if previous.KID() == signer.KID() {
			return nil, errors.New("previous signing key has the same kid as the current key")
		}
		manager.Trust(previous)
		logger.Info("trusting previous signing key", "kid", previous.KID(), "algorithm", previous.Alg())
	}

	logger.Info("signing key loaded", "kid", signer.KID(), "algorithm", signer.Alg(), "issuer", cfg.Issuer)
	return manager, nil
}

func currentSigner(cfg Config, logger *slog.Logger) (jwtx.Signer, error) {
	switch {
	case cfg.SigningSecret != "" && cfg.SigningKeyFile != "":
		return nil, errors.New("set only one of AUTH_SIGNING_SECRET and AUTH_SIGNING_KEY_FILE")

	case cfg.SigningSecret != "":
		kid := cfg.SigningKeyID
		if kid == "" {
			kid = deriveKID([]byte(cfg.SigningSecret))
		}
		signer, err := jwtx.NewSignerHS256(kid, []byte(cfg.SigningSecret))
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_SIGNING_SECRET: %w", err)
		}
		return signer, nil

	case cfg.SigningKeyFile != "":
		signer, err := signerFromFile(cfg.SigningAlgorithm, cfg.SigningKeyID, cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		return signer, nil

	case cfg.Env == "dev":
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		logger.Warn("no signing key configured, generated an ephemeral key; tokens will not survive a restart")
		return jwtx.NewSignerEdDSA(deriveKID(pemKey), pemKey)

	default:
		return nil, errors.New("no signing key configured: set AUTH_SIGNING_SECRET or AUTH_SIGNING_KEY_FILE")
	}
}

func signerFromFile(alg, kid, path string) (jwtx.Signer, error) {
	pemKey, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	if kid == "" {
		kid = deriveKID(pemKey)
	}
	return jwtx.NewSignerFromPEM(alg, kid, pemKey)
}

// deriveKID names a key by a prefix of its fingerprint so the same key
// always gets the same kid across restarts and replicas.
func deriveKID(material []byte) string {
	return cryptox.FingerprintToken(string(material))[:16]
}
