package services

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ochairo/crucible/internal/domain/entities"
)

func entry(hash, subject string, minute int) entities.ChangelogEntry {
	return entities.ChangelogEntry{
		Hash:    hash,
		Subject: subject,
		Time:    time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC),
	}
}

func subjects(entries []entities.ChangelogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Subject)
	}
	return out
}

func TestChangelogService_Filter(t *testing.T) {
	entries := []entities.ChangelogEntry{
		entry("a1", "feat: add sudo-rs experiment", 1),
		entry("a2", "test: cover backup names", 2),
		entry("a3", "ci: bump action versions", 3),
		entry("a4", "fix: restore files on disable", 4),
		entry("a5", "testing harness rewrite", 5),
		entry("a6", "docs: mention ci usage", 6),
	}

	got := NewChangelogService(entities.ChangelogConfig{}).Filter(entries)

	want := []string{
		"feat: add sudo-rs experiment",
		"fix: restore files on disable",
		"docs: mention ci usage",
	}
	if diff := cmp.Diff(want, subjects(got)); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}

func TestChangelogService_Filter_SortsAscendingStable(t *testing.T) {
	entries := []entities.ChangelogEntry{
		entry("c", "third", 9),
		entry("a", "first", 1),
		entry("b1", "second-a", 5),
		entry("b2", "second-b", 5),
	}

	got := NewChangelogService(entities.ChangelogConfig{}).Filter(entries)

	want := []string{"first", "second-a", "second-b", "third"}
	if diff := cmp.Diff(want, subjects(got)); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}

	desc := NewChangelogService(entities.ChangelogConfig{Sort: "desc"}).Filter(entries)
	if desc[0].Subject != "third" {
		t.Errorf("desc Filter()[0] = %q, want third", desc[0].Subject)
	}
}

func TestChangelogService_CustomExclude(t *testing.T) {
	svc := NewChangelogService(entities.ChangelogConfig{Exclude: []string{"chore"}})

	if svc.Excluded("test: x") {
		t.Error("custom exclude list should replace the defaults")
	}
	if !svc.Excluded("  chore: deps") {
		t.Error("leading whitespace should not hide an excluded prefix")
	}

	none := NewChangelogService(entities.ChangelogConfig{Exclude: []string{}})
	if none.Excluded("ci: anything") {
		t.Error("empty exclude list should keep everything")
	}
}
