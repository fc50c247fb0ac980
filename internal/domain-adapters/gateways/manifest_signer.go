package gateways

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"

	"github.com/ochairo/crucible/internal/domain/entities"
	"github.com/ochairo/crucible/internal/external-adapters/gpg"
)

// SignatureSuffix is appended to the manifest name for its detached signature
const SignatureSuffix = ".sig"

// ManifestSigner wraps the OpenPGP adapter for checksum manifests
type ManifestSigner struct {
	getenv func(string) string
}

// NewManifestSigner creates a signer that reads passphrases from the environment
func NewManifestSigner() *ManifestSigner {
	return &ManifestSigner{getenv: os.Getenv}
}

// signingSecret holds key material that must never reach the logs
type signingSecret struct {
	KeyFile    string
	Passphrase string `masq:"secret"`
}

// Sign writes manifestPath+".sig" and returns its path
func (m *ManifestSigner) Sign(ctx context.Context, cfg entities.SignConfig, manifestPath string) (string, error) {
	secret := signingSecret{KeyFile: cfg.KeyFile}
	if cfg.PassphraseEnv != "" {
		secret.Passphrase = m.getenv(cfg.PassphraseEnv)
	}
	ctxlog.From(ctx).Debug("loading signing key", slog.Any("key", secret))

	signer, err := gpg.NewSignerFromFile(secret.KeyFile, []byte(secret.Passphrase))
	if err != nil {
		return "", fmt.Errorf("failed to load signing key: %w", err)
	}

	sigPath := manifestPath + SignatureSuffix
	if err := signer.SignFile(manifestPath, sigPath); err != nil {
		return "", err
	}

	ctxlog.From(ctx).Info("signed checksums", slog.String("fingerprint", signer.Fingerprint()))
	return sigPath, nil
}

// Verify checks sigPath over manifestPath with the public key at keyPath and returns the signer fingerprint
func (m *ManifestSigner) Verify(_ context.Context, keyPath, manifestPath, sigPath string) (string, error) {
	verifier := gpg.NewVerifier()
	if err := verifier.ImportKeyFromFile(keyPath); err != nil {
		return "", err
	}
	return verifier.VerifySignatureFromFile(manifestPath, sigPath)
}
