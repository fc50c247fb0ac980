package gateways

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/ochairo/crucible/internal/domain/entities"
)

func setupArchiveSources(t *testing.T) (string, *entities.Artifact) {
	t.Helper()
	workDir := t.TempDir()

	binDir := filepath.Join(workDir, "target", "x86_64-unknown-linux-gnu", "release")
	if err := os.MkdirAll(binDir, 0750); err != nil {
		t.Fatal(err)
	}
	binaryPath := filepath.Join(binDir, "oxidizr")
	//nolint:gosec // G306: test executable needs exec bits
	if err := os.WriteFile(binaryPath, []byte("fake binary"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"README.md", "LICENSE-MIT", "LICENSE-APACHE"} {
		if err := os.WriteFile(filepath.Join(workDir, name), []byte(name), 0600); err != nil {
			t.Fatal(err)
		}
	}

	return workDir, &entities.Artifact{
		Name:   "oxidizr",
		Target: entities.BuildTarget{OS: "linux", Arch: "amd64"},
		Path:   binaryPath,
		Type:   "binary",
	}
}

func readTar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	files := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read tar: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		files[header.Name] = string(content)
	}
	return files
}

func TestArchiver_Archive_Formats(t *testing.T) {
	want := map[string]string{
		"oxidizr":        "fake binary",
		"README.md":      "README.md",
		"LICENSE-APACHE": "LICENSE-APACHE",
		"LICENSE-MIT":    "LICENSE-MIT",
	}

	tests := []struct {
		format   string
		filename string
		read     func(t *testing.T, path string) map[string]string
	}{
		{
			format:   entities.FormatTarGz,
			filename: "oxidizr_linux_x86_64.tar.gz",
			read: func(t *testing.T, path string) map[string]string {
				//nolint:gosec // G304: test file
				f, err := os.Open(path)
				if err != nil {
					t.Fatal(err)
				}
				defer f.Close()
				gz, err := gzip.NewReader(f)
				if err != nil {
					t.Fatal(err)
				}
				return readTar(t, gz)
			},
		},
		{
			format:   entities.FormatTarZst,
			filename: "oxidizr_linux_x86_64.tar.zst",
			read: func(t *testing.T, path string) map[string]string {
				//nolint:gosec // G304: test file
				f, err := os.Open(path)
				if err != nil {
					t.Fatal(err)
				}
				defer f.Close()
				dec, err := zstd.NewReader(f)
				if err != nil {
					t.Fatal(err)
				}
				defer dec.Close()
				return readTar(t, dec)
			},
		},
		{
			format:   entities.FormatZip,
			filename: "oxidizr_linux_x86_64.zip",
			read: func(t *testing.T, path string) map[string]string {
				zr, err := zip.OpenReader(path)
				if err != nil {
					t.Fatal(err)
				}
				defer zr.Close()
				files := make(map[string]string)
				for _, f := range zr.File {
					rc, err := f.Open()
					if err != nil {
						t.Fatal(err)
					}
					content, _ := io.ReadAll(rc)
					_ = rc.Close()
					files[f.Name] = string(content)
				}
				return files
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			workDir, binary := setupArchiveSources(t)
			outDir := filepath.Join(t.TempDir(), "dist")
			archiver := NewArchiver(workDir)

			archive, err := archiver.Archive(context.Background(), ArchiveRequest{
				ProjectName: "oxidizr",
				Binary:      binary,
				BinaryName:  "oxidizr",
				Name:        "oxidizr_linux_x86_64",
				Format:      tt.format,
				Files:       []string{"README.md", "LICENSE*"},
				OutputDir:   outDir,
			})
			if err != nil {
				t.Fatalf("Archive() error = %v", err)
			}

			if archive.Filename() != tt.filename {
				t.Errorf("Filename() = %q, want %q", archive.Filename(), tt.filename)
			}
			if archive.Path != filepath.Join(outDir, tt.filename) {
				t.Errorf("Path = %q", archive.Path)
			}
			if archive.Size <= 0 {
				t.Errorf("Size = %d", archive.Size)
			}
			if archive.OS != "linux" || archive.Arch != "amd64" {
				t.Errorf("archive target = %s/%s", archive.OS, archive.Arch)
			}

			if diff := cmp.Diff(want, tt.read(t, archive.Path)); diff != "" {
				t.Errorf("archive contents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestArchiver_Archive_Binary(t *testing.T) {
	workDir, binary := setupArchiveSources(t)
	outDir := t.TempDir()

	archive, err := NewArchiver(workDir).Archive(context.Background(), ArchiveRequest{
		ProjectName: "oxidizr",
		Binary:      binary,
		Name:        "oxidizr_linux_x86_64",
		Format:      entities.FormatBinary,
		OutputDir:   outDir,
	})
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	if filepath.Base(archive.Path) != "oxidizr_linux_x86_64" {
		t.Errorf("Path = %q", archive.Path)
	}
	info, err := os.Stat(archive.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("binary lost its executable bit: %v", info.Mode())
	}
}

func TestArchiver_Archive_MissingExtraFile(t *testing.T) {
	workDir, binary := setupArchiveSources(t)

	_, err := NewArchiver(workDir).Archive(context.Background(), ArchiveRequest{
		Binary:    binary,
		Name:      "x",
		Format:    entities.FormatTarGz,
		Files:     []string{"CHANGELOG.md"},
		OutputDir: t.TempDir(),
	})
	if err == nil {
		t.Fatal("Archive() should fail when an extra file is missing")
	}
}

func TestArchiver_Archive_UnknownFormat(t *testing.T) {
	workDir, binary := setupArchiveSources(t)

	_, err := NewArchiver(workDir).Archive(context.Background(), ArchiveRequest{
		Binary:    binary,
		Name:      "x",
		Format:    "rar",
		OutputDir: t.TempDir(),
	})
	if err == nil {
		t.Fatal("Archive() should reject unknown formats")
	}
}

func TestArchiver_ResolveFiles_Deduplicates(t *testing.T) {
	workDir, _ := setupArchiveSources(t)

	entries, err := NewArchiver(workDir).resolveFiles([]string{"LICENSE*", "LICENSE-MIT"})
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	if diff := cmp.Diff([]string{"LICENSE-APACHE", "LICENSE-MIT"}, names); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}
