package services

import (
	"slices"
	"strings"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// DefaultChangelogExclude drops test and CI housekeeping commits
var DefaultChangelogExclude = []string{"test", "ci"}

// ChangelogService filters and orders commits for release notes
type ChangelogService struct {
	exclude    []string
	descending bool
}

// NewChangelogService creates a changelog service. A nil exclude list selects the defaults;
// an empty, non-nil list disables filtering.
func NewChangelogService(cfg entities.ChangelogConfig) *ChangelogService {
	exclude := cfg.Exclude
	if exclude == nil {
		exclude = DefaultChangelogExclude
	}
	return &ChangelogService{
		exclude:    exclude,
		descending: strings.EqualFold(cfg.Sort, "desc"),
	}
}

// Excluded reports whether a subject starts with one of the deny prefixes
func (s *ChangelogService) Excluded(subject string) bool {
	subject = strings.TrimSpace(subject)
	for _, prefix := range s.exclude {
		if prefix != "" && strings.HasPrefix(subject, prefix) {
			return true
		}
	}
	return false
}

// Filter drops excluded entries and sorts the rest by commit time.
// The sort is stable, so entries with equal times keep their input order.
func (s *ChangelogService) Filter(entries []entities.ChangelogEntry) []entities.ChangelogEntry {
	kept := make([]entities.ChangelogEntry, 0, len(entries))
	for _, e := range entries {
		if s.Excluded(e.Subject) {
			continue
		}
		kept = append(kept, e)
	}

	slices.SortStableFunc(kept, func(a, b entities.ChangelogEntry) int {
		return a.Time.Compare(b.Time)
	})
	if s.descending {
		slices.Reverse(kept)
	}

	return kept
}
