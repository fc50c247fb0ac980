// Package gpg signs and verifies release manifests with OpenPGP.
package gpg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE-----"

// Verifier checks detached signatures using ProtonMail's go-crypto,
// a maintained fork of golang.org/x/crypto/openpgp
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a new verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
	}
}

// ImportKey reads armored or binary public keys
func (v *Verifier) ImportKey(data []byte) error {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// ImportKeyFromFile imports keys from an armored or binary key file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is user-provided for key import
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	return v.ImportKey(data)
}

// Verify checks a detached signature, armored or binary, over data.
// It returns the fingerprint of the signing key.
func (v *Verifier) Verify(data io.Reader, signature []byte) (string, error) {
	if len(v.keyring) == 0 {
		return "", fmt.Errorf("no keys imported, call ImportKeyFromFile first")
	}

	var signer *openpgp.Entity
	var err error
	if bytes.HasPrefix(bytes.TrimSpace(signature), []byte(armoredSignaturePrefix)) {
		signer, err = openpgp.CheckArmoredDetachedSignature(v.keyring, data, bytes.NewReader(signature), nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(v.keyring, data, bytes.NewReader(signature), nil)
	}
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

// VerifySignatureFromFile verifies a detached signature file over a data file
func (v *Verifier) VerifySignatureFromFile(filePath, sigPath string) (string, error) {
	//nolint:gosec // G304: sigPath is user-provided for verification
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature file: %w", err)
	}

	//nolint:gosec // G304: filePath is user-provided for verification
	dataFile, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	return v.Verify(dataFile, sig)
}

// GetKeyringSize returns the number of keys in the keyring
func (v *Verifier) GetKeyringSize() int {
	return len(v.keyring)
}

// ClearKeyring clears all imported keys
func (v *Verifier) ClearKeyring() {
	v.keyring = make(openpgp.EntityList, 0)
}
