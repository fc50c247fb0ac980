package services

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// Platform identifies a build target by its os-arch key
type Platform string

// ReleaseStatus represents the readiness status of a release
type ReleaseStatus string

// Release validation statuses
const (
	StatusReady               ReleaseStatus = "ready"
	StatusNoArtifacts         ReleaseStatus = "no_artifacts"
	StatusPlatformMismatch    ReleaseStatus = "platform_mismatch"
	StatusUnexpectedPlatforms ReleaseStatus = "unexpected_platforms"
)

// ReleaseValidation contains the validation result for a release directory
type ReleaseValidation struct {
	Status             ReleaseStatus
	ExpectedPlatforms  []Platform
	AvailablePlatforms []Platform
	MissingPlatforms   []Platform
	UnexpectedArchives []string
	ExpectedCount      int
	AvailableCount     int
}

// IsReady returns true if every configured target has its archive
func (rv *ReleaseValidation) IsReady() bool {
	return rv.Status == StatusReady
}

// ErrorMessage returns a human-readable error message if not ready
func (rv *ReleaseValidation) ErrorMessage() string {
	switch rv.Status {
	case StatusReady:
		return ""
	case StatusNoArtifacts:
		return fmt.Sprintf("No archives found (expected: %d targets)", rv.ExpectedCount)
	case StatusPlatformMismatch:
		msg := fmt.Sprintf("Target count mismatch (expected: %d, have: %d)", rv.ExpectedCount, rv.AvailableCount)
		if len(rv.MissingPlatforms) > 0 {
			msg += fmt.Sprintf("\n   Missing: %s", platformsToString(rv.MissingPlatforms))
		}
		if len(rv.UnexpectedArchives) > 0 {
			msg += fmt.Sprintf("\n   Unexpected: %s", strings.Join(rv.UnexpectedArchives, ", "))
		}
		return msg
	case StatusUnexpectedPlatforms:
		return fmt.Sprintf("Unexpected archives found: %s", strings.Join(rv.UnexpectedArchives, ", "))
	default:
		return "Unknown status"
	}
}

// ReleaseService handles release validation logic
type ReleaseService struct {
	namer *ArchiveNamer
}

// NewReleaseService creates a new release service
func NewReleaseService(namer *ArchiveNamer) *ReleaseService {
	if namer == nil {
		namer = NewArchiveNamer("")
	}
	return &ReleaseService{namer: namer}
}

// ValidateRelease checks that dist holds exactly one archive per configured target
func (s *ReleaseService) ValidateRelease(pipeline *entities.Pipeline, version string, artifactPaths []string) (*ReleaseValidation, error) {
	validation := &ReleaseValidation{}

	expected, err := s.expectedArchives(pipeline, version)
	if err != nil {
		return nil, err
	}
	for platform := range expected {
		validation.ExpectedPlatforms = append(validation.ExpectedPlatforms, platform)
	}
	slices.Sort(validation.ExpectedPlatforms)
	validation.ExpectedCount = len(validation.ExpectedPlatforms)

	byFilename := make(map[string]Platform, len(expected))
	for platform, filename := range expected {
		byFilename[filename] = platform
	}

	available := make(map[Platform]bool)
	for _, path := range artifactPaths {
		basename := filepath.Base(path)
		if platform, ok := byFilename[basename]; ok {
			available[platform] = true
			continue
		}
		if s.looksLikeArchive(pipeline.ProjectName, basename) {
			validation.UnexpectedArchives = append(validation.UnexpectedArchives, basename)
		}
	}
	for platform := range available {
		validation.AvailablePlatforms = append(validation.AvailablePlatforms, platform)
	}
	slices.Sort(validation.AvailablePlatforms)
	validation.AvailableCount = len(validation.AvailablePlatforms)

	validation.MissingPlatforms = s.findMissingPlatforms(validation.ExpectedPlatforms, validation.AvailablePlatforms)

	switch {
	case validation.AvailableCount == 0:
		validation.Status = StatusNoArtifacts
	case validation.AvailableCount != validation.ExpectedCount:
		validation.Status = StatusPlatformMismatch
	case len(validation.UnexpectedArchives) > 0:
		validation.Status = StatusUnexpectedPlatforms
	default:
		validation.Status = StatusReady
	}

	return validation, nil
}

// expectedArchives maps each target to the archive file name it must produce
func (s *ReleaseService) expectedArchives(pipeline *entities.Pipeline, version string) (map[Platform]string, error) {
	names, err := s.namer.NameAll(pipeline.ProjectName, version, pipeline.Release.Build.Targets)
	if err != nil {
		return nil, err
	}

	expected := make(map[Platform]string, len(names))
	for key, name := range names {
		archive := entities.Archive{Name: name, Format: pipeline.Release.Archive.Format}
		expected[Platform(key)] = archive.Filename()
	}
	return expected, nil
}

// looksLikeArchive reports whether a file name could be an archive of this project
func (s *ReleaseService) looksLikeArchive(projectName, basename string) bool {
	if !strings.HasPrefix(basename, projectName) {
		return false
	}
	for _, ext := range []string{".tar.gz", ".tar.zst", ".zip"} {
		if strings.HasSuffix(basename, ext) {
			return true
		}
	}
	return false
}

// findMissingPlatforms returns platforms that are expected but not available
func (s *ReleaseService) findMissingPlatforms(expected, available []Platform) []Platform {
	availableSet := make(map[Platform]bool)
	for _, p := range available {
		availableSet[p] = true
	}

	var missing []Platform
	for _, p := range expected {
		if !availableSet[p] {
			missing = append(missing, p)
		}
	}

	return missing
}

// platformsToString converts a slice of platforms to a comma-separated string
func platformsToString(platforms []Platform) string {
	strs := make([]string, len(platforms))
	for i, p := range platforms {
		strs[i] = string(p)
	}
	return strings.Join(strs, ", ")
}
