package gateways

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/m-mizutani/ctxlog"

	"github.com/ochairo/crucible/internal/domain/entities"
	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
)

// Archiver packages built binaries into distributable archives
type Archiver struct {
	workingDir string
}

// NewArchiver creates an archiver. Extra file patterns are resolved relative to workingDir.
func NewArchiver(workingDir string) *Archiver {
	return &Archiver{workingDir: workingDir}
}

// ArchiveRequest describes one archive to produce
type ArchiveRequest = domainGateways.ArchiveRequest

type archiveEntry struct {
	source string
	name   string
}

// Archive writes the archive for one target and returns its description
func (a *Archiver) Archive(ctx context.Context, req ArchiveRequest) (*entities.Archive, error) {
	if err := os.MkdirAll(req.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	binaryName := req.BinaryName
	if binaryName == "" {
		binaryName = filepath.Base(req.Binary.Path)
	}

	archive := &entities.Archive{
		ProjectName: req.ProjectName,
		OS:          req.Binary.Target.OS,
		Arch:        req.Binary.Target.Arch,
		Format:      req.Format,
		Name:        req.Name,
	}
	archive.Path = filepath.Join(req.OutputDir, archive.Filename())

	entries := []archiveEntry{{source: req.Binary.Path, name: binaryName}}
	extra, err := a.resolveFiles(req.Files)
	if err != nil {
		return nil, err
	}
	entries = append(entries, extra...)

	switch req.Format {
	case entities.FormatTarGz:
		err = a.writeTar(archive.Path, entries, func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		})
	case entities.FormatTarZst:
		err = a.writeTar(archive.Path, entries, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	case entities.FormatZip:
		err = a.writeZip(archive.Path, entries)
	case entities.FormatBinary:
		err = copyFile(req.Binary.Path, archive.Path)
	default:
		err = fmt.Errorf("unsupported archive format: %s", req.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", archive.Filename(), err)
	}

	info, err := os.Stat(archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	archive.Size = info.Size()

	ctxlog.From(ctx).Info("archived",
		slog.String("archive", archive.Filename()),
		slog.Int64("size", archive.Size),
		slog.Int("files", len(entries)))

	return archive, nil
}

// resolveFiles expands glob patterns into archive entries, keeping paths relative to workingDir
func (a *Archiver) resolveFiles(patterns []string) ([]archiveEntry, error) {
	seen := make(map[string]bool)
	var entries []archiveEntry

	for _, pattern := range patterns {
		full := pattern
		if !filepath.IsAbs(full) && a.workingDir != "" {
			full = filepath.Join(a.workingDir, pattern)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, fmt.Errorf("invalid archive file pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("archive file pattern %q matched nothing", pattern)
		}
		sort.Strings(matches)

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", match, err)
			}
			if info.IsDir() {
				continue
			}
			name := match
			if a.workingDir != "" {
				if rel, err := filepath.Rel(a.workingDir, match); err == nil {
					name = rel
				}
			}
			name = filepath.ToSlash(name)
			if seen[name] {
				continue
			}
			seen[name] = true
			entries = append(entries, archiveEntry{source: match, name: name})
		}
	}

	return entries, nil
}

// writeTar creates a compressed tar archive using the given compressor
func (a *Archiver) writeTar(path string, entries []archiveEntry, compressor func(io.Writer) (io.WriteCloser, error)) error {
	//nolint:gosec // G304: path is constructed for release output
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer file.Close()

	compressed, err := compressor(file)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	tarWriter := tar.NewWriter(compressed)

	for _, entry := range entries {
		if err := addTarEntry(tarWriter, entry); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return file.Close()
}

func addTarEntry(tw *tar.Writer, entry archiveEntry) error {
	//nolint:gosec // G304: entry sources come from the build output and configured files
	src, err := os.Open(entry.source)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header: %w", err)
	}
	header.Name = entry.name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("failed to write file to tar: %w", err)
	}
	return nil
}

// writeZip creates a deflate-compressed zip archive
func (a *Archiver) writeZip(path string, entries []archiveEntry) error {
	//nolint:gosec // G304: path is constructed for release output
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer file.Close()

	zw := zip.NewWriter(file)
	for _, entry := range entries {
		if err := addZipEntry(zw, entry); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip archive: %w", err)
	}
	return file.Close()
}

func addZipEntry(zw *zip.Writer, entry archiveEntry) error {
	//nolint:gosec // G304: entry sources come from the build output and configured files
	src, err := os.Open(entry.source)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header: %w", err)
	}
	header.Name = entry.name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write file to zip: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	//nolint:gosec // G304: src is the build output
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	//nolint:gosec // G302: release binaries keep their executable bits
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return out.Close()
}
