package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ochairo/crucible/internal/domain/entities"
	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
	"github.com/ochairo/crucible/internal/domain/services"
)

type mockToolchain struct {
	pinned []string
	err    error
}

func (m *mockToolchain) Pin(_ context.Context, cfg entities.ToolchainConfig) error {
	m.pinned = append(m.pinned, cfg.Version)
	return m.err
}

type mockBuilder struct {
	// failing targets return an error immediately; every other target waits for cancellation when block is set
	failing map[string]bool
	block   bool

	mu    sync.Mutex
	built []string
}

func (m *mockBuilder) Build(ctx context.Context, req domainGateways.BuildRequest) (*entities.Artifact, error) {
	key := req.Target.Key()
	if m.failing[key] {
		return nil, fmt.Errorf("cross build failed for %s", key)
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	m.built = append(m.built, key)
	m.mu.Unlock()
	return &entities.Artifact{Name: req.Config.Binary, Version: req.Version, Target: req.Target, Path: "/build/" + key, Type: "binary"}, nil
}

type mockArchiver struct{}

func (m *mockArchiver) Archive(_ context.Context, req domainGateways.ArchiveRequest) (*entities.Archive, error) {
	archive := &entities.Archive{
		ProjectName: req.ProjectName,
		OS:          req.Binary.Target.OS,
		Arch:        req.Binary.Target.Arch,
		Format:      req.Format,
		Name:        req.Name,
	}
	archive.Path = filepath.Join(req.OutputDir, archive.Filename())
	if err := os.WriteFile(archive.Path, []byte(req.Name), 0600); err != nil {
		return nil, err
	}
	archive.Size = int64(len(req.Name))
	return archive, nil
}

type mockChecksummer struct{}

func (m *mockChecksummer) WriteManifest(_ context.Context, path string, archives []*entities.Archive) error {
	var lines []string
	for _, a := range archives {
		a.Checksum = "sum-" + a.Name
		lines = append(lines, a.Checksum+"  "+a.Filename())
	}
	sort.Strings(lines)
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600)
}

type mockSigner struct {
	err error
}

func (m *mockSigner) Sign(_ context.Context, _ entities.SignConfig, manifestPath string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	sig := manifestPath + ".sig"
	return sig, os.WriteFile(sig, []byte("signature"), 0600)
}

type mockChangelog struct {
	latest  string
	entries []entities.ChangelogEntry
	err     error
}

func (m *mockChangelog) PreviousTag(_ context.Context, _ string) string {
	return m.latest
}

func (m *mockChangelog) Entries(_ context.Context, _ string) ([]entities.ChangelogEntry, error) {
	return m.entries, m.err
}

func testPipeline() *entities.Pipeline {
	return &entities.Pipeline{
		ProjectName: "oxidizr",
		Release: entities.ReleaseConfig{
			Toolchain: entities.ToolchainConfig{Version: "1.82.0"},
			Build: entities.BuildConfig{
				Binary: "oxidizr",
				Targets: []entities.BuildTarget{
					{OS: "linux", Arch: "amd64"},
					{OS: "linux", Arch: "arm64"},
				},
			},
			Archive:    entities.ArchiveConfig{Format: entities.FormatTarGz},
			Checksum:   entities.ChecksumConfig{NameTemplate: "checksums.txt", Algorithm: "sha256"},
			Footer:     "Thanks for using oxidizr.",
			Prerelease: "auto",
		},
	}
}

type releaseFixture struct {
	toolchain *mockToolchain
	builder   *mockBuilder
	signer    *mockSigner
	changelog *mockChangelog
	dist      string
}

func newReleaseFixture(t *testing.T) *releaseFixture {
	return &releaseFixture{
		toolchain: &mockToolchain{},
		builder:   &mockBuilder{},
		signer:    &mockSigner{},
		changelog: &mockChangelog{},
		dist:      filepath.Join(t.TempDir(), "dist"),
	}
}

func (f *releaseFixture) orchestrator(p *entities.Pipeline) *ReleaseOrchestrator {
	o := NewReleaseOrchestrator(p, f.toolchain, f.builder, &mockArchiver{}, &mockChecksummer{}, f.signer, f.changelog,
		ReleaseOrchestratorConfig{DistDir: f.dist})
	o.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return o
}

func listDist(t *testing.T, dist string) []string {
	t.Helper()
	entries, err := os.ReadDir(dist)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestReleaseOrchestrator_Release_Success(t *testing.T) {
	f := newReleaseFixture(t)
	f.changelog.entries = []entities.ChangelogEntry{
		{Hash: "2222222222", Subject: "fix: second", Time: time.Unix(200, 0)},
		{Hash: "1111111111", Subject: "feat: first", Time: time.Unix(100, 0)},
		{Hash: "3333333333", Subject: "ci: tweak runner", Time: time.Unix(150, 0)},
	}
	p := testPipeline()
	p.Release.Sign = entities.SignConfig{KeyFile: "release.asc"}

	result, err := f.orchestrator(p).Release(context.Background(), ReleaseOptions{Version: "v1.2.3"})
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	want := []string{
		NotesFileName,
		"checksums.txt",
		"checksums.txt.sig",
		MetadataFileName,
		"oxidizr_linux_aarch64.tar.gz",
		"oxidizr_linux_x86_64.tar.gz",
	}
	if diff := cmp.Diff(want, listDist(t, f.dist)); diff != "" {
		t.Errorf("dist contents mismatch (-want +got):\n%s", diff)
	}

	meta := result.Metadata
	if meta.Version != "1.2.3" || meta.Tag != "v1.2.3" || meta.Prerelease || meta.Snapshot {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.SignatureFile != "checksums.txt.sig" {
		t.Errorf("SignatureFile = %q", meta.SignatureFile)
	}
	if len(meta.Archives) != 2 || meta.Archives[0].Path != filepath.Join(f.dist, "oxidizr_linux_x86_64.tar.gz") {
		t.Errorf("Archives = %+v", meta.Archives)
	}
	if meta.Archives[1].Checksum != "sum-oxidizr_linux_aarch64" {
		t.Errorf("archive checksum = %q", meta.Archives[1].Checksum)
	}

	var subjects []string
	for _, e := range meta.Changelog {
		subjects = append(subjects, e.Subject)
	}
	if diff := cmp.Diff([]string{"feat: first", "fix: second"}, subjects); diff != "" {
		t.Errorf("changelog mismatch (-want +got):\n%s", diff)
	}

	//nolint:gosec // G304: test file
	notes, err := os.ReadFile(result.NotesPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, fragment := range []string{"## Changelog", "* 1111111 feat: first", "---", "Thanks for using oxidizr."} {
		if !strings.Contains(string(notes), fragment) {
			t.Errorf("release notes missing %q:\n%s", fragment, notes)
		}
	}

	//nolint:gosec // G304: test file
	data, err := os.ReadFile(result.MetadataPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded entities.ReleaseMetadata
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Tag != "v1.2.3" || !decoded.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("decoded metadata = %+v", decoded)
	}

	if diff := cmp.Diff([]string{"1.82.0"}, f.toolchain.pinned); diff != "" {
		t.Errorf("toolchain pins mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(result.GetSummary(), "Release assembled!") {
		t.Errorf("summary = %q", result.GetSummary())
	}
}

func TestReleaseOrchestrator_Release_BuildFailureAbortsEverything(t *testing.T) {
	f := newReleaseFixture(t)
	f.builder.failing = map[string]bool{"linux-arm64": true}
	f.builder.block = true

	_, err := f.orchestrator(testPipeline()).Release(context.Background(), ReleaseOptions{Version: "1.0.0"})
	if err == nil {
		t.Fatal("Release() should fail when one target fails")
	}
	if !strings.Contains(err.Error(), "build failed") {
		t.Errorf("error = %v", err)
	}

	if got := listDist(t, f.dist); len(got) != 0 {
		t.Errorf("dist must stay empty after a failed release, got %v", got)
	}
}

func TestReleaseOrchestrator_Release_SignFailureRemovesStaging(t *testing.T) {
	f := newReleaseFixture(t)
	f.signer.err = errors.New("bad passphrase")
	p := testPipeline()
	p.Release.Sign = entities.SignConfig{KeyFile: "release.asc"}

	if _, err := f.orchestrator(p).Release(context.Background(), ReleaseOptions{Version: "1.0.0"}); err == nil {
		t.Fatal("Release() should fail when signing fails")
	}
	if got := listDist(t, f.dist); len(got) != 0 {
		t.Errorf("dist must stay empty after a failed release, got %v", got)
	}
}

func TestReleaseOrchestrator_Release_ToolchainFailure(t *testing.T) {
	f := newReleaseFixture(t)
	f.toolchain.err = errors.New("rustup missing")

	if _, err := f.orchestrator(testPipeline()).Release(context.Background(), ReleaseOptions{Version: "1.0.0"}); err == nil {
		t.Fatal("Release() should fail when the toolchain cannot be pinned")
	}
	if len(f.builder.built) != 0 {
		t.Error("nothing should be built without a toolchain")
	}
}

func TestReleaseOrchestrator_Release_AmbiguousArchiveNames(t *testing.T) {
	f := newReleaseFixture(t)
	p := testPipeline()
	p.Release.Archive.NameTemplate = "{{ .ProjectName }}_{{ .Os }}"

	_, err := f.orchestrator(p).Release(context.Background(), ReleaseOptions{Version: "1.0.0"})
	if !errors.Is(err, services.ErrDuplicateArchiveName) {
		t.Fatalf("Release() error = %v, want ErrDuplicateArchiveName", err)
	}
	if len(f.builder.built) != 0 {
		t.Error("nothing should be built when names collide")
	}
}

func TestReleaseOrchestrator_Release_UnsafeArchiveName(t *testing.T) {
	f := newReleaseFixture(t)
	p := testPipeline()
	p.Release.Archive.NameTemplate = "../{{ .ProjectName }}_{{ .Os }}_{{ .Arch }}"

	_, err := f.orchestrator(p).Release(context.Background(), ReleaseOptions{Version: "1.0.0"})
	if !errors.Is(err, services.ErrInvalidArchiveName) {
		t.Fatalf("Release() error = %v, want ErrInvalidArchiveName", err)
	}
	if len(f.builder.built) != 0 {
		t.Error("nothing should be built for an unsafe archive name")
	}
	if got := listDist(t, f.dist); len(got) != 0 {
		t.Errorf("dist = %v, want empty", got)
	}
}

func TestReleaseOrchestrator_Release_UnsignedRemovesStaleSignature(t *testing.T) {
	tests := []struct {
		name string
		opts ReleaseOptions
		sign entities.SignConfig
	}{
		{"signing disabled", ReleaseOptions{Version: "1.1.0"}, entities.SignConfig{}},
		{"build only", ReleaseOptions{Version: "1.1.0", BuildOnly: true}, entities.SignConfig{KeyFile: "release.asc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReleaseFixture(t)
			p := testPipeline()
			p.Release.Sign = tt.sign

			if err := os.MkdirAll(f.dist, 0750); err != nil {
				t.Fatal(err)
			}
			stale := filepath.Join(f.dist, "checksums.txt.sig")
			if err := os.WriteFile(stale, []byte("old signature"), 0600); err != nil {
				t.Fatal(err)
			}

			result, err := f.orchestrator(p).Release(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Release() error = %v", err)
			}
			if result.Metadata.SignatureFile != "" {
				t.Errorf("SignatureFile = %q, want empty", result.Metadata.SignatureFile)
			}
			if _, err := os.Stat(stale); !os.IsNotExist(err) {
				t.Errorf("stale signature still present: %v", err)
			}
		})
	}
}

func TestReleaseOrchestrator_Release_Snapshot(t *testing.T) {
	f := newReleaseFixture(t)
	f.changelog.latest = "v1.2.3"

	result, err := f.orchestrator(testPipeline()).Release(context.Background(), ReleaseOptions{Snapshot: true})
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	meta := result.Metadata
	if meta.Version != "1.2.4-next" || meta.Tag != "v1.2.4-next" {
		t.Errorf("version = %s, tag = %s", meta.Version, meta.Tag)
	}
	if !meta.Snapshot || !meta.Prerelease {
		t.Errorf("snapshot = %v, prerelease = %v", meta.Snapshot, meta.Prerelease)
	}
}

func TestReleaseOrchestrator_Release_BuildOnly(t *testing.T) {
	f := newReleaseFixture(t)
	p := testPipeline()
	p.Release.Sign = entities.SignConfig{KeyFile: "release.asc"}

	result, err := f.orchestrator(p).Release(context.Background(), ReleaseOptions{Version: "2.0.0-rc.1", BuildOnly: true})
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	want := []string{"checksums.txt", "oxidizr_linux_aarch64.tar.gz", "oxidizr_linux_x86_64.tar.gz"}
	if diff := cmp.Diff(want, listDist(t, f.dist)); diff != "" {
		t.Errorf("dist contents mismatch (-want +got):\n%s", diff)
	}
	if !result.Metadata.Prerelease {
		t.Error("2.0.0-rc.1 should be detected as a pre-release")
	}
}

func TestReleaseOrchestrator_Release_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *entities.Pipeline)
		opts    ReleaseOptions
		wantErr error
	}{
		{"missing version", func(*entities.Pipeline) {}, ReleaseOptions{}, services.ErrInvalidVersion},
		{"bad version", func(*entities.Pipeline) {}, ReleaseOptions{Version: "one"}, services.ErrInvalidVersion},
		{"no targets", func(p *entities.Pipeline) { p.Release.Build.Targets = nil }, ReleaseOptions{Version: "1.0.0"}, ErrNoTargets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReleaseFixture(t)
			p := testPipeline()
			tt.mutate(p)

			_, err := f.orchestrator(p).Release(context.Background(), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Release() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReleaseOrchestrator_Release_ChangelogErrorIsNotFatal(t *testing.T) {
	f := newReleaseFixture(t)
	f.changelog.err = errors.New("not a git repository")

	result, err := f.orchestrator(testPipeline()).Release(context.Background(), ReleaseOptions{Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if len(result.Metadata.Changelog) != 0 {
		t.Errorf("Changelog = %v, want empty", result.Metadata.Changelog)
	}
}
