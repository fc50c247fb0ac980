package services

import (
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// DefaultArchiveNameTemplate names archives project_os_arch
const DefaultArchiveNameTemplate = "{{ .ProjectName }}_{{ .Os }}_{{ archname .Arch }}"

// ArchName maps Go-style architecture names to the names used in release archives
func ArchName(arch string) string {
	switch arch {
	case "amd64":
		return "x86_64"
	case "arm64", "aarch64":
		return "aarch64"
	case "386":
		return "i386"
	default:
		return arch
	}
}

// ArchiveNameData is the data available to the archive name template
type ArchiveNameData struct {
	ProjectName string
	Version     string
	Os          string
	Arch        string
	Triple      string
}

// ArchiveNamer renders archive names from a template
type ArchiveNamer struct {
	template string
}

// NewArchiveNamer creates a namer; an empty template selects the default
func NewArchiveNamer(nameTemplate string) *ArchiveNamer {
	if nameTemplate == "" {
		nameTemplate = DefaultArchiveNameTemplate
	}
	return &ArchiveNamer{template: nameTemplate}
}

// Name renders the archive name for one target. Same input, same output.
func (n *ArchiveNamer) Name(projectName, version string, target entities.BuildTarget) (string, error) {
	return RenderTemplate("archive.name_template", n.template, ArchiveNameData{
		ProjectName: projectName,
		Version:     version,
		Os:          target.OS,
		Arch:        target.Arch,
		Triple:      target.CompilerTriple(),
	})
}

// validateArchiveName requires a single path element free of whitespace,
// which keeps archives inside dist and checksum lines unambiguous.
func validateArchiveName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidArchiveName
	case strings.ContainsAny(name, `/\`):
		return ErrInvalidArchiveName
	case strings.ContainsFunc(name, unicode.IsSpace):
		return ErrInvalidArchiveName
	}
	return nil
}

// NameAll renders names for every target and fails if two targets collapse to one name
func (n *ArchiveNamer) NameAll(projectName, version string, targets []entities.BuildTarget) (map[string]string, error) {
	names := make(map[string]string, len(targets))
	owners := make(map[string]string, len(targets))

	for _, target := range targets {
		if _, dup := names[target.Key()]; dup {
			return nil, goerr.Wrap(ErrDuplicateTarget, "invalid build targets", goerr.V("target", target.Key()))
		}

		name, err := n.Name(projectName, version, target)
		if err != nil {
			return nil, err
		}
		if err := validateArchiveName(name); err != nil {
			return nil, goerr.Wrap(err, "archive name template produced an unusable name",
				goerr.V("name", name), goerr.V("target", target.Key()))
		}
		if owner, taken := owners[name]; taken {
			return nil, goerr.Wrap(ErrDuplicateArchiveName, "archive name template is ambiguous",
				goerr.V("name", name), goerr.V("targets", []string{owner, target.Key()}))
		}

		owners[name] = target.Key()
		names[target.Key()] = name
	}

	return names, nil
}
