package gpg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Signer produces armored detached signatures with a private key
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner reads an armored private key and unlocks it with passphrase when it is encrypted
func NewSigner(key []byte, passphrase []byte) (*Signer, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	for _, entity := range entities {
		if entity.PrivateKey == nil {
			continue
		}
		if err := unlock(entity, passphrase); err != nil {
			return nil, err
		}
		return &Signer{entity: entity}, nil
	}

	return nil, fmt.Errorf("no private key found")
}

// NewSignerFromFile reads the private key from keyPath
func NewSignerFromFile(keyPath string, passphrase []byte) (*Signer, error) {
	//nolint:gosec // G304: key path comes from the pipeline definition
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	return NewSigner(key, passphrase)
}

func unlock(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return fmt.Errorf("private key is encrypted and no passphrase was given")
		}
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to decrypt private key: %w", err)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("failed to decrypt private subkey: %w", err)
			}
		}
	}
	return nil
}

// Fingerprint returns the primary key fingerprint in upper-case hex
func (s *Signer) Fingerprint() string {
	return fmt.Sprintf("%X", s.entity.PrimaryKey.Fingerprint)
}

// Sign writes an armored detached signature of message to w
func (s *Signer) Sign(w io.Writer, message io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, message, nil); err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	return nil
}

// SignFile writes an armored detached signature of filePath to sigPath
func (s *Signer) SignFile(filePath, sigPath string) error {
	//nolint:gosec // G304: filePath is the manifest being released
	data, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer data.Close()

	var sig bytes.Buffer
	if err := s.Sign(&sig, data); err != nil {
		return err
	}

	if err := os.WriteFile(sigPath, sig.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}
	return nil
}
