package gateways

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/ctxlog"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// ManifestEntry is one line of a checksum manifest
type ManifestEntry struct {
	Checksum string
	Name     string
}

// Checksummer computes and verifies archive checksums
type Checksummer struct {
	algorithm string
}

// NewChecksummer creates a checksummer for sha256 (default) or sha512
func NewChecksummer(algorithm string) (*Checksummer, error) {
	switch strings.ToLower(algorithm) {
	case "", "sha256":
		return &Checksummer{algorithm: "sha256"}, nil
	case "sha512":
		return &Checksummer{algorithm: "sha512"}, nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %s", algorithm)
	}
}

// Algorithm returns the configured hash name
func (c *Checksummer) Algorithm() string {
	return c.algorithm
}

func (c *Checksummer) newHash() hash.Hash {
	if c.algorithm == "sha512" {
		return sha512.New()
	}
	return sha256.New()
}

// CalculateChecksum returns the hex digest of a file
func (c *Checksummer) CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: file path comes from the release directory
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := c.newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum compares a file's digest with the expected hex digest
func (c *Checksummer) VerifyChecksum(_ context.Context, filePath, expectedSum string) error {
	actualSum, err := c.CalculateChecksum(filePath)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actualSum, expectedSum) {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, filepath.Base(filePath), expectedSum, actualSum)
	}

	return nil
}

// WriteManifest hashes every archive, stores the digest on it, and writes
// "<hex>  <name>" lines sorted by name
func (c *Checksummer) WriteManifest(ctx context.Context, manifestPath string, archives []*entities.Archive) error {
	entries := make([]ManifestEntry, 0, len(archives))
	for _, archive := range archives {
		sum, err := c.CalculateChecksum(archive.Path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", archive.Filename(), err)
		}
		archive.Checksum = sum
		entries = append(entries, ManifestEntry{Checksum: sum, Name: archive.Filename()})
	}

	if err := os.WriteFile(manifestPath, FormatManifest(entries), 0600); err != nil {
		return fmt.Errorf("failed to write checksum manifest: %w", err)
	}

	ctxlog.From(ctx).Info("wrote checksums",
		slog.String("manifest", filepath.Base(manifestPath)),
		slog.String("algorithm", c.algorithm),
		slog.Int("entries", len(entries)))
	return nil
}

// FormatManifest renders entries sorted by name
func FormatManifest(entries []ManifestEntry) []byte {
	sorted := append([]ManifestEntry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s  %s\n", e.Checksum, e.Name)
	}
	return buf.Bytes()
}

// ParseManifest reads "<hex>  <name>" lines; a "*" binary-mode marker before the name is accepted.
// Everything after the separator is the name, so names may contain spaces.
func ParseManifest(data []byte) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		sum, rest, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("malformed checksum manifest line %d: %q", line, text)
		}
		name := rest
		if strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, "*") {
			name = rest[1:]
		}
		if sum == "" || name == "" {
			return nil, fmt.Errorf("malformed checksum manifest line %d: %q", line, text)
		}
		if _, err := hex.DecodeString(sum); err != nil {
			return nil, fmt.Errorf("malformed checksum on line %d: %w", line, err)
		}
		entries = append(entries, ManifestEntry{
			Checksum: strings.ToLower(sum),
			Name:     name,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checksum manifest: %w", err)
	}
	return entries, nil
}

// VerifyManifest checks every entry against files next to the manifest
func (c *Checksummer) VerifyManifest(ctx context.Context, manifestPath string) ([]ManifestEntry, error) {
	//nolint:gosec // G304: manifest path is chosen by the user
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checksum manifest: %w", err)
	}

	entries, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(manifestPath)
	for _, entry := range entries {
		if err := c.VerifyChecksum(ctx, filepath.Join(dir, entry.Name), entry.Checksum); err != nil {
			return entries, err
		}
		ctxlog.From(ctx).Debug("checksum ok", slog.String("file", entry.Name))
	}
	return entries, nil
}
