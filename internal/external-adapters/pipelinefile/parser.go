// Package pipelinefile parses crucible.yml and crucible.toml pipeline definitions.
package pipelinefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// Supported file formats
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// filePipeline represents the raw file structure
type filePipeline struct {
	ProjectName string        `yaml:"project_name" toml:"project_name"`
	Dist        string        `yaml:"dist" toml:"dist"`
	Matrix      fileMatrix    `yaml:"matrix" toml:"matrix"`
	Provision   fileProvision `yaml:"provision" toml:"provision"`
	Release     fileRelease   `yaml:"release" toml:"release"`
}

type fileMatrix struct {
	Tests          []string          `yaml:"tests" toml:"tests"`
	Command        string            `yaml:"command" toml:"command"`
	Concurrency    int               `yaml:"concurrency" toml:"concurrency"`
	TimeoutMinutes int               `yaml:"timeout_minutes" toml:"timeout_minutes"`
	Env            map[string]string `yaml:"env" toml:"env"`
}

type fileProvision struct {
	Packages    []string `yaml:"packages" toml:"packages"`
	Environment string   `yaml:"environment" toml:"environment"`
	Runtime     string   `yaml:"runtime" toml:"runtime"`
	WorkingDir  string   `yaml:"working_dir" toml:"working_dir"`
}

type fileRelease struct {
	Toolchain  fileToolchain `yaml:"toolchain" toml:"toolchain"`
	Build      fileBuild     `yaml:"build" toml:"build"`
	Archive    fileArchive   `yaml:"archive" toml:"archive"`
	Checksum   fileChecksum  `yaml:"checksum" toml:"checksum"`
	Sign       fileSign      `yaml:"sign" toml:"sign"`
	Snapshot   fileSnapshot  `yaml:"snapshot" toml:"snapshot"`
	Changelog  fileChangelog `yaml:"changelog" toml:"changelog"`
	Footer     string        `yaml:"footer" toml:"footer"`
	Prerelease string        `yaml:"prerelease" toml:"prerelease"`
}

type fileToolchain struct {
	Version string `yaml:"version" toml:"version"`
	Command string `yaml:"command" toml:"command"`
}

type fileBuild struct {
	Binary         string            `yaml:"binary" toml:"binary"`
	Command        string            `yaml:"command" toml:"command"`
	Output         string            `yaml:"output" toml:"output"`
	Targets        []fileTarget      `yaml:"targets" toml:"targets"`
	Parallelism    int               `yaml:"parallelism" toml:"parallelism"`
	TimeoutMinutes int               `yaml:"timeout_minutes" toml:"timeout_minutes"`
	Env            map[string]string `yaml:"env" toml:"env"`
}

type fileTarget struct {
	OS     string `yaml:"os" toml:"os"`
	Arch   string `yaml:"arch" toml:"arch"`
	Triple string `yaml:"triple" toml:"triple"`
}

type fileArchive struct {
	Format       string   `yaml:"format" toml:"format"`
	NameTemplate string   `yaml:"name_template" toml:"name_template"`
	Files        []string `yaml:"files" toml:"files"`
}

type fileChecksum struct {
	NameTemplate string `yaml:"name_template" toml:"name_template"`
	Algorithm    string `yaml:"algorithm" toml:"algorithm"`
}

type fileSign struct {
	KeyFile       string `yaml:"key_file" toml:"key_file"`
	PassphraseEnv string `yaml:"passphrase_env" toml:"passphrase_env"`
}

type fileSnapshot struct {
	VersionTemplate string `yaml:"version_template" toml:"version_template"`
}

type fileChangelog struct {
	Sort    string   `yaml:"sort" toml:"sort"`
	Exclude []string `yaml:"exclude" toml:"exclude"`
	Disable bool     `yaml:"disable" toml:"disable"`
}

// Parser parses pipeline files
type Parser struct{}

// NewParser creates a new pipeline parser
func NewParser() *Parser {
	return &Parser{}
}

// FormatFromPath picks the decoder from the file extension
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported pipeline file extension: %s", path)
	}
}

// ParseFile parses a pipeline file into a Pipeline entity
func (p *Parser) ParseFile(filePath string) (*entities.Pipeline, error) {
	format, err := FormatFromPath(filePath)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // G304: filePath is the pipeline definition chosen by the user
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data, format)
}

// Parse parses YAML or TOML bytes into a Pipeline entity
func (p *Parser) Parse(data []byte, format string) (*entities.Pipeline, error) {
	var doc filePipeline

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported pipeline format: %s", format)
	}

	return &entities.Pipeline{
		ProjectName: doc.ProjectName,
		Dist:        doc.Dist,
		Matrix:      convertMatrix(doc.Matrix),
		Provision:   convertProvision(doc.Provision),
		Release:     convertRelease(doc.Release),
	}, nil
}

func convertMatrix(fm fileMatrix) entities.MatrixConfig {
	return entities.MatrixConfig{
		Tests:          fm.Tests,
		Command:        fm.Command,
		Concurrency:    fm.Concurrency,
		TimeoutMinutes: fm.TimeoutMinutes,
		Env:            fm.Env,
	}
}

func convertProvision(fp fileProvision) entities.ProvisionConfig {
	return entities.ProvisionConfig{
		Packages:    fp.Packages,
		Environment: fp.Environment,
		Runtime:     fp.Runtime,
		WorkingDir:  fp.WorkingDir,
	}
}

func convertRelease(fr fileRelease) entities.ReleaseConfig {
	targets := make([]entities.BuildTarget, 0, len(fr.Build.Targets))
	for _, t := range fr.Build.Targets {
		targets = append(targets, entities.BuildTarget{
			OS:     strings.TrimSpace(t.OS),
			Arch:   strings.TrimSpace(t.Arch),
			Triple: strings.TrimSpace(t.Triple),
		})
	}

	return entities.ReleaseConfig{
		Toolchain: entities.ToolchainConfig{
			Version: fr.Toolchain.Version,
			Command: fr.Toolchain.Command,
		},
		Build: entities.BuildConfig{
			Binary:         fr.Build.Binary,
			Command:        fr.Build.Command,
			Output:         fr.Build.Output,
			Targets:        targets,
			Parallelism:    fr.Build.Parallelism,
			TimeoutMinutes: fr.Build.TimeoutMinutes,
			Env:            fr.Build.Env,
		},
		Archive: entities.ArchiveConfig{
			Format:       fr.Archive.Format,
			NameTemplate: fr.Archive.NameTemplate,
			Files:        fr.Archive.Files,
		},
		Checksum: entities.ChecksumConfig{
			NameTemplate: fr.Checksum.NameTemplate,
			Algorithm:    fr.Checksum.Algorithm,
		},
		Sign: entities.SignConfig{
			KeyFile:       fr.Sign.KeyFile,
			PassphraseEnv: fr.Sign.PassphraseEnv,
		},
		Snapshot: entities.SnapshotConfig{
			VersionTemplate: fr.Snapshot.VersionTemplate,
		},
		Changelog: entities.ChangelogConfig{
			Sort:    fr.Changelog.Sort,
			Exclude: fr.Changelog.Exclude,
			Disable: fr.Changelog.Disable,
		},
		Footer:     fr.Footer,
		Prerelease: fr.Prerelease,
	}
}
