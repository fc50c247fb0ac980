package pipelinefile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ochairo/crucible/internal/domain/entities"
	"github.com/ochairo/crucible/internal/domain/services"
)

// DefaultFileNames are searched in order when no explicit path is given
var DefaultFileNames = []string{"crucible.yml", "crucible.yaml", "crucible.toml", ".crucible.yml"}

// Defaults applied to pipeline files
const (
	DefaultDist             = "dist"
	DefaultBuildCommand     = "cross build --release --target {{ .Target.Triple }}"
	DefaultBuildOutput      = "target/{{ .Target.Triple }}/release/{{ .Binary }}"
	DefaultToolchainCommand = "rustup default {{ .Version }}"
	DefaultChecksumName     = "checksums.txt"
	DefaultChecksumAlgo     = "sha256"
)

var (
	// ErrPipelineNotFound is returned when no pipeline file exists
	ErrPipelineNotFound = errors.New("pipeline file not found")
	// ErrInvalidPipeline wraps every validation failure
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

// Repository implements repositories.PipelineRepository on top of a file
type Repository struct {
	path   string
	dir    string
	parser *Parser
}

// NewRepository creates a repository. An empty path searches dir for DefaultFileNames.
func NewRepository(path, dir string) *Repository {
	if dir == "" {
		dir = "."
	}
	return &Repository{path: path, dir: dir, parser: NewParser()}
}

// Path resolves the pipeline file location
func (r *Repository) Path() (string, error) {
	if r.path != "" {
		if _, err := os.Stat(r.path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrPipelineNotFound, r.path)
		}
		return r.path, nil
	}

	for _, name := range DefaultFileNames {
		candidate := filepath.Join(r.dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrPipelineNotFound, r.dir, strings.Join(DefaultFileNames, ", "))
}

// GetPipeline loads, defaults and validates the pipeline definition
func (r *Repository) GetPipeline(_ context.Context) (*entities.Pipeline, error) {
	path, err := r.Path()
	if err != nil {
		return nil, err
	}

	pipeline, err := r.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}

	projectDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	ApplyDefaults(pipeline, filepath.Base(projectDir))
	if err := Validate(pipeline); err != nil {
		return nil, err
	}
	return pipeline, nil
}

// ApplyDefaults fills every unset field that has a default
func ApplyDefaults(p *entities.Pipeline, fallbackName string) {
	if p.ProjectName == "" {
		p.ProjectName = fallbackName
	}
	if p.Dist == "" {
		p.Dist = DefaultDist
	}
	if p.Matrix.Command == "" {
		p.Matrix.Command = services.DefaultTestCommand
	}

	rel := &p.Release
	if rel.Toolchain.Version != "" && rel.Toolchain.Command == "" {
		rel.Toolchain.Command = DefaultToolchainCommand
	}
	if rel.Build.Binary == "" {
		rel.Build.Binary = p.ProjectName
	}
	if rel.Build.Command == "" {
		rel.Build.Command = DefaultBuildCommand
	}
	if rel.Build.Output == "" {
		rel.Build.Output = DefaultBuildOutput
	}
	if rel.Archive.Format == "" {
		rel.Archive.Format = entities.FormatTarGz
	}
	if rel.Archive.NameTemplate == "" {
		rel.Archive.NameTemplate = services.DefaultArchiveNameTemplate
	}
	if rel.Checksum.NameTemplate == "" {
		rel.Checksum.NameTemplate = DefaultChecksumName
	}
	if rel.Checksum.Algorithm == "" {
		rel.Checksum.Algorithm = DefaultChecksumAlgo
	}
	if rel.Snapshot.VersionTemplate == "" {
		rel.Snapshot.VersionTemplate = services.DefaultSnapshotTemplate
	}
	if rel.Prerelease == "" {
		rel.Prerelease = "auto"
	}
}

// Validate reports every configuration problem at once
func Validate(p *entities.Pipeline) error {
	var problems []string

	if p.Matrix.Concurrency < 0 {
		problems = append(problems, "matrix.concurrency must not be negative")
	}
	if p.Matrix.TimeoutMinutes < 0 {
		problems = append(problems, "matrix.timeout_minutes must not be negative")
	}

	commands := []struct{ field, text string }{
		{"matrix.command", p.Matrix.Command},
		{"release.build.command", p.Release.Build.Command},
		{"release.build.output", p.Release.Build.Output},
	}
	for _, c := range commands {
		if strings.TrimSpace(c.text) == "" {
			problems = append(problems, c.field+" is empty")
			continue
		}
		if err := services.CheckTemplate(c.field, c.text); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", c.field, err))
		}
	}

	rel := p.Release
	seen := make(map[string]bool, len(rel.Build.Targets))
	for i, t := range rel.Build.Targets {
		if t.OS == "" || t.Arch == "" {
			problems = append(problems, fmt.Sprintf("release.build.targets[%d]: os and arch are required", i))
			continue
		}
		if seen[t.Key()] {
			problems = append(problems, fmt.Sprintf("release.build.targets[%d]: duplicate target %s", i, t.Key()))
		}
		seen[t.Key()] = true
	}
	if rel.Build.Parallelism < 0 {
		problems = append(problems, "release.build.parallelism must not be negative")
	}

	formats := []string{entities.FormatTarGz, entities.FormatTarZst, entities.FormatZip, entities.FormatBinary}
	if !slices.Contains(formats, rel.Archive.Format) {
		problems = append(problems, fmt.Sprintf("release.archive.format %q is not one of %s", rel.Archive.Format, strings.Join(formats, ", ")))
	}
	if rel.Archive.Format == entities.FormatBinary && len(rel.Archive.Files) > 0 {
		problems = append(problems, "release.archive.files cannot be used with the binary format")
	}
	if !slices.Contains([]string{"sha256", "sha512"}, rel.Checksum.Algorithm) {
		problems = append(problems, fmt.Sprintf("release.checksum.algorithm %q is not sha256 or sha512", rel.Checksum.Algorithm))
	}
	if !slices.Contains([]string{"", "asc", "desc"}, strings.ToLower(rel.Changelog.Sort)) {
		problems = append(problems, fmt.Sprintf("release.changelog.sort %q is not asc or desc", rel.Changelog.Sort))
	}
	if !slices.Contains([]string{"auto", "true", "false"}, strings.ToLower(rel.Prerelease)) {
		problems = append(problems, fmt.Sprintf("release.prerelease %q is not auto, true or false", rel.Prerelease))
	}
	if rel.Sign.PassphraseEnv != "" && rel.Sign.KeyFile == "" {
		problems = append(problems, "release.sign.passphrase_env requires release.sign.key_file")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidPipeline, strings.Join(problems, "\n  - "))
	}
	return nil
}
