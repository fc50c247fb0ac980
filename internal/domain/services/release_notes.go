package services

import (
	"fmt"
	"strings"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// RenderReleaseNotes builds the markdown release description
func RenderReleaseNotes(meta *entities.ReleaseMetadata) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s\n\n", meta.ProjectName, meta.Tag)
	if meta.Prerelease {
		b.WriteString("> This is a pre-release.\n\n")
	}

	b.WriteString("## Changelog\n\n")
	if len(meta.Changelog) == 0 {
		b.WriteString("No notable changes.\n")
	}
	for _, e := range meta.Changelog {
		fmt.Fprintf(&b, "* %s %s\n", e.ShortHash(), strings.TrimSpace(e.Subject))
	}

	if len(meta.Archives) > 0 {
		b.WriteString("\n## Artifacts\n\n")
		b.WriteString("| Archive | OS | Arch | SHA |\n|---|---|---|---|\n")
		for _, a := range meta.Archives {
			fmt.Fprintf(&b, "| %s | %s | %s | `%s` |\n", a.Filename(), a.OS, a.Arch, a.Checksum)
		}
	}

	if footer := strings.TrimSpace(meta.Footer); footer != "" {
		b.WriteString("\n---\n\n")
		b.WriteString(footer)
		b.WriteString("\n")
	}

	return b.String()
}
