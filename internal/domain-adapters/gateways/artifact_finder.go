package gateways

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StagingPrefix marks in-progress release directories inside dist
const StagingPrefix = ".staging-"

// ArtifactFinder locates release files in a dist directory
type ArtifactFinder struct{}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{}
}

// FindRecursive returns every file under distDir whose name starts with projectName.
// Staging directories are skipped.
func (f *ArtifactFinder) FindRecursive(distDir, projectName string) ([]string, error) {
	if _, err := os.Stat(distDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("artifacts directory does not exist: %s", distDir)
	}

	var artifacts []string
	err := filepath.WalkDir(distDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != distDir && strings.HasPrefix(d.Name(), StagingPrefix) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), projectName) {
			artifacts = append(artifacts, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(artifacts)
	return artifacts, nil
}
