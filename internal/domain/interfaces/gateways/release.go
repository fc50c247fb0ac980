package gateways

import "github.com/ochairo/crucible/internal/domain/entities"

// BuildRequest describes one target build
type BuildRequest struct {
	ProjectName string
	Version     string
	Target      entities.BuildTarget
	Config      entities.BuildConfig
}

// ArchiveRequest describes one archive to produce
type ArchiveRequest struct {
	ProjectName string
	Binary      *entities.Artifact
	BinaryName  string // name of the binary inside the archive
	Name        string // rendered archive name without extension
	Format      string
	Files       []string // extra files or glob patterns
	OutputDir   string
}
