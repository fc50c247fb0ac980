package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/mod/semver"
)

// DefaultSnapshotTemplate bumps the patch version and marks it as not yet released
const DefaultSnapshotTemplate = "{{ incpatch .Version }}-next"

type semverParts struct {
	major, minor, patch int
	prerelease          string
}

func parseSemver(version string) (semverParts, error) {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return semverParts{}, goerr.Wrap(ErrInvalidVersion, "cannot parse version", goerr.V("version", version))
	}

	canonical := semver.Canonical(v)
	pre := semver.Prerelease(canonical)
	core := strings.TrimSuffix(strings.TrimPrefix(canonical, "v"), pre)

	fields := strings.Split(core, ".")
	nums := make([]int, 3)
	for i := range nums {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return semverParts{}, goerr.Wrap(ErrInvalidVersion, "cannot parse version", goerr.V("version", version))
		}
		nums[i] = n
	}

	return semverParts{major: nums[0], minor: nums[1], patch: nums[2], prerelease: strings.TrimPrefix(pre, "-")}, nil
}

// IncPatch returns the next patch version without a leading v
func IncPatch(version string) (string, error) {
	p, err := parseSemver(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d", p.major, p.minor, p.patch+1), nil
}

// IncMinor returns the next minor version without a leading v
func IncMinor(version string) (string, error) {
	p, err := parseSemver(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.0", p.major, p.minor+1), nil
}

// IncMajor returns the next major version without a leading v
func IncMajor(version string) (string, error) {
	p, err := parseSemver(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.0.0", p.major+1), nil
}

// VersionService derives release versions and tags
type VersionService struct {
	snapshotTemplate string
}

// NewVersionService creates a version service; an empty template selects the default
func NewVersionService(snapshotTemplate string) *VersionService {
	if snapshotTemplate == "" {
		snapshotTemplate = DefaultSnapshotTemplate
	}
	return &VersionService{snapshotTemplate: snapshotTemplate}
}

// SnapshotVersion renders the provisional version that follows version
func (s *VersionService) SnapshotVersion(version string) (string, error) {
	if _, err := parseSemver(version); err != nil {
		return "", err
	}
	return RenderTemplate("snapshot.version_template", s.snapshotTemplate, struct{ Version string }{
		Version: strings.TrimPrefix(strings.TrimSpace(version), "v"),
	})
}

// Normalize strips the leading v and validates the version
func (s *VersionService) Normalize(version string) (string, error) {
	if _, err := parseSemver(version); err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.TrimSpace(version), "v"), nil
}

// Tag returns the git tag for a version
func (s *VersionService) Tag(version string) string {
	return "v" + strings.TrimPrefix(version, "v")
}

// IsPrerelease reports whether the version carries a prerelease component
func (s *VersionService) IsPrerelease(version string) bool {
	p, err := parseSemver(version)
	if err != nil {
		return false
	}
	return p.prerelease != ""
}

// ResolvePrerelease applies the "auto" / "true" / "false" setting
func (s *VersionService) ResolvePrerelease(setting, version string, snapshot bool) bool {
	switch strings.ToLower(strings.TrimSpace(setting)) {
	case "true":
		return true
	case "false":
		return false
	default:
		return snapshot || s.IsPrerelease(version)
	}
}
