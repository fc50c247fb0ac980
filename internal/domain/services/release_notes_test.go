package services

import (
	"strings"
	"testing"

	"github.com/ochairo/crucible/internal/domain/entities"
)

func TestRenderReleaseNotes(t *testing.T) {
	meta := &entities.ReleaseMetadata{
		ProjectName: "oxidizr",
		Tag:         "v1.2.4-next",
		Prerelease:  true,
		Changelog: []entities.ChangelogEntry{
			{Hash: "0123456789abcdef", Subject: "feat: first"},
			{Hash: "fedcba9876543210", Subject: "fix: second "},
		},
		Archives: []entities.Archive{
			{Name: "oxidizr_linux_x86_64", Format: "tar.gz", OS: "linux", Arch: "amd64", Checksum: "abc"},
		},
		Footer: "Released by crucible.",
	}

	notes := RenderReleaseNotes(meta)

	for _, want := range []string{
		"# oxidizr v1.2.4-next",
		"pre-release",
		"* 0123456 feat: first\n* fedcba9 fix: second\n",
		"| oxidizr_linux_x86_64.tar.gz | linux | amd64 | `abc` |",
		"---\n\nReleased by crucible.\n",
	} {
		if !strings.Contains(notes, want) {
			t.Errorf("release notes missing %q:\n%s", want, notes)
		}
	}

	if first, second := strings.Index(notes, "feat: first"), strings.Index(notes, "fix: second"); first > second {
		t.Error("changelog order not preserved")
	}
}

func TestRenderReleaseNotes_Empty(t *testing.T) {
	notes := RenderReleaseNotes(&entities.ReleaseMetadata{ProjectName: "x", Tag: "v1.0.0"})

	if !strings.Contains(notes, "No notable changes.") {
		t.Errorf("expected placeholder, got:\n%s", notes)
	}
	if strings.Contains(notes, "---") || strings.Contains(notes, "pre-release") {
		t.Errorf("unexpected sections:\n%s", notes)
	}
}
