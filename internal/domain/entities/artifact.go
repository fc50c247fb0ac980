// Package entities defines core domain models and data structures.
package entities

// Artifact represents a file produced by the release pipeline
type Artifact struct {
	Name    string
	Version string
	Target  BuildTarget
	Path    string
	Type    string // "binary", "archive", "checksum", "signature"
}
