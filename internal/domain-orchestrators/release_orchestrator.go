package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/crucible/internal/domain/entities"
	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
	"github.com/ochairo/crucible/internal/domain/services"
)

// Release output file names
const (
	NotesFileName    = "RELEASE_NOTES.md"
	MetadataFileName = "metadata.json"
	stagingPrefix    = ".staging-"
	signatureSuffix  = ".sig"
)

// ErrNoTargets is returned when a release has nothing to build
var ErrNoTargets = errors.New("no build targets configured")

// Toolchain pins the compiler before building
type Toolchain interface {
	Pin(ctx context.Context, cfg entities.ToolchainConfig) error
}

// Builder cross-compiles one target
type Builder interface {
	Build(ctx context.Context, req domainGateways.BuildRequest) (*entities.Artifact, error)
}

// Archiver packages one built binary
type Archiver interface {
	Archive(ctx context.Context, req domainGateways.ArchiveRequest) (*entities.Archive, error)
}

// Checksummer writes the checksum manifest and records each archive's digest
type Checksummer interface {
	WriteManifest(ctx context.Context, manifestPath string, archives []*entities.Archive) error
}

// Signer produces a detached signature for the manifest
type Signer interface {
	Sign(ctx context.Context, cfg entities.SignConfig, manifestPath string) (string, error)
}

// ChangelogSource reads commit history
type ChangelogSource interface {
	PreviousTag(ctx context.Context, current string) string
	Entries(ctx context.Context, fromTag string) ([]entities.ChangelogEntry, error)
}

// ReleaseOrchestrator coordinates toolchain, build, archive, checksum, sign and notes
type ReleaseOrchestrator struct {
	pipeline    *entities.Pipeline
	toolchain   Toolchain
	builder     Builder
	archiver    Archiver
	checksummer Checksummer
	signer      Signer
	changelog   ChangelogSource

	namer    *services.ArchiveNamer
	versions *services.VersionService
	notes    *services.ChangelogService
	distDir  string
	now      func() time.Time
}

// ReleaseOrchestratorConfig holds configuration for the orchestrator
type ReleaseOrchestratorConfig struct {
	// DistDir overrides pipeline.Dist
	DistDir string
}

// NewReleaseOrchestrator creates a new release orchestrator
func NewReleaseOrchestrator(
	pipeline *entities.Pipeline,
	toolchain Toolchain,
	builder Builder,
	archiver Archiver,
	checksummer Checksummer,
	signer Signer,
	changelog ChangelogSource,
	config ReleaseOrchestratorConfig,
) *ReleaseOrchestrator {
	distDir := config.DistDir
	if distDir == "" {
		distDir = pipeline.Dist
	}
	if distDir == "" {
		distDir = "dist"
	}

	return &ReleaseOrchestrator{
		pipeline:    pipeline,
		toolchain:   toolchain,
		builder:     builder,
		archiver:    archiver,
		checksummer: checksummer,
		signer:      signer,
		changelog:   changelog,
		namer:       services.NewArchiveNamer(pipeline.Release.Archive.NameTemplate),
		versions:    services.NewVersionService(pipeline.Release.Snapshot.VersionTemplate),
		notes:       services.NewChangelogService(pipeline.Release.Changelog),
		distDir:     distDir,
		now:         time.Now,
	}
}

// ReleaseOptions selects what to release
type ReleaseOptions struct {
	// Version is the release version; with Snapshot it is the base version (latest tag when empty)
	Version  string
	Snapshot bool
	// BuildOnly stops after the checksum manifest: no signature, notes or metadata
	BuildOnly bool
}

// ReleaseResult contains the result of a release operation
type ReleaseResult struct {
	Metadata      *entities.ReleaseMetadata
	DistDir       string
	ChecksumPath  string
	NotesPath     string
	MetadataPath  string
	BuildDuration time.Duration
	TotalDuration time.Duration
}

// ResolveVersion returns the version to release and whether it is a snapshot
func (o *ReleaseOrchestrator) ResolveVersion(ctx context.Context, opts ReleaseOptions) (string, error) {
	if !opts.Snapshot {
		if strings.TrimSpace(opts.Version) == "" {
			return "", goerr.Wrap(services.ErrInvalidVersion, "a version is required unless --snapshot is set")
		}
		return o.versions.Normalize(opts.Version)
	}

	base := opts.Version
	if base == "" && o.changelog != nil {
		base = o.changelog.PreviousTag(ctx, "")
	}
	if base == "" {
		base = "0.0.0"
	}
	return o.versions.SnapshotVersion(base)
}

// Release runs the staged release pipeline. Nothing reaches the dist directory unless every stage succeeds.
func (o *ReleaseOrchestrator) Release(ctx context.Context, opts ReleaseOptions) (*ReleaseResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := ctxlog.From(ctx).With(slog.String("run_id", runID))
	ctx = ctxlog.With(ctx, logger)

	pipeline := o.pipeline
	targets := pipeline.Release.Build.Targets
	if len(targets) == 0 {
		return nil, goerr.Wrap(ErrNoTargets, "nothing to release", goerr.V("project", pipeline.ProjectName))
	}

	version, err := o.ResolveVersion(ctx, opts)
	if err != nil {
		return nil, err
	}
	tag := o.versions.Tag(version)
	logger.Info("starting release", slog.String("version", version), slog.Bool("snapshot", opts.Snapshot))

	names, err := o.namer.NameAll(pipeline.ProjectName, version, targets)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid archive naming")
	}

	staging := filepath.Join(o.distDir, stagingPrefix+runID)
	if err := os.MkdirAll(staging, 0750); err != nil {
		return nil, goerr.Wrap(err, "failed to create staging directory", goerr.V("path", staging))
	}
	defer func() {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			logger.Warn("failed to remove staging directory", slog.String("path", staging), slog.Any("error", rmErr))
		}
	}()

	// Step 1: Pin toolchain
	if err := o.toolchain.Pin(ctx, pipeline.Release.Toolchain); err != nil {
		return nil, goerr.Wrap(err, "failed to pin toolchain", goerr.V("version", pipeline.Release.Toolchain.Version))
	}

	// Step 2: Build and archive every target; the first failure cancels the rest
	buildStart := time.Now()
	archives, err := o.buildAll(ctx, version, names, staging)
	if err != nil {
		return nil, err
	}
	buildDuration := time.Since(buildStart)

	// Step 3: Checksum manifest
	manifestName, err := o.renderChecksumName(version, tag)
	if err != nil {
		return nil, err
	}
	if err := o.checksummer.WriteManifest(ctx, filepath.Join(staging, manifestName), archives); err != nil {
		return nil, goerr.Wrap(err, "failed to write checksums")
	}

	published := []string{manifestName}
	for _, a := range archives {
		published = append(published, a.Filename())
	}

	result := &ReleaseResult{
		DistDir:       o.distDir,
		ChecksumPath:  filepath.Join(o.distDir, manifestName),
		BuildDuration: buildDuration,
	}

	meta := &entities.ReleaseMetadata{
		ProjectName:  pipeline.ProjectName,
		Version:      version,
		Tag:          tag,
		Snapshot:     opts.Snapshot,
		Prerelease:   o.versions.ResolvePrerelease(pipeline.Release.Prerelease, version, opts.Snapshot),
		ChecksumFile: manifestName,
		Footer:       pipeline.Release.Footer,
		CreatedAt:    o.now().UTC(),
	}
	for _, a := range archives {
		final := *a
		final.Path = filepath.Join(o.distDir, a.Filename())
		meta.Archives = append(meta.Archives, final)
	}
	result.Metadata = meta

	if !opts.BuildOnly {
		// Step 4: Sign
		if pipeline.Release.Sign.Enabled() {
			sigPath, err := o.signer.Sign(ctx, pipeline.Release.Sign, filepath.Join(staging, manifestName))
			if err != nil {
				return nil, goerr.Wrap(err, "failed to sign checksums")
			}
			meta.SignatureFile = filepath.Base(sigPath)
			published = append(published, meta.SignatureFile)
		}

		// Step 5: Changelog, notes and metadata
		if !pipeline.Release.Changelog.Disable {
			entries, err := o.Changelog(ctx, tag)
			if err != nil {
				logger.Warn("changelog unavailable, releasing without it", slog.Any("error", err))
			}
			meta.Changelog = entries
		}
		meta.NotesFile = NotesFileName

		if err := os.WriteFile(filepath.Join(staging, NotesFileName), []byte(services.RenderReleaseNotes(meta)), 0600); err != nil {
			return nil, goerr.Wrap(err, "failed to write release notes")
		}
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode release metadata")
		}
		if err := os.WriteFile(filepath.Join(staging, MetadataFileName), append(data, '\n'), 0600); err != nil {
			return nil, goerr.Wrap(err, "failed to write release metadata")
		}
		published = append(published, NotesFileName, MetadataFileName)
		result.NotesPath = filepath.Join(o.distDir, NotesFileName)
		result.MetadataPath = filepath.Join(o.distDir, MetadataFileName)
	}

	// Step 6: Publish staging into dist. An unsigned release must not leave an
	// older signature next to the new manifest.
	if meta.SignatureFile == "" {
		stale := filepath.Join(o.distDir, manifestName+signatureSuffix)
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return nil, goerr.Wrap(err, "failed to remove stale signature", goerr.V("path", stale))
		}
	}
	if err := publish(staging, o.distDir, published); err != nil {
		return nil, err
	}

	result.TotalDuration = time.Since(startTime)
	logger.Info("release assembled",
		slog.String("tag", tag),
		slog.Int("archives", len(archives)),
		slog.Duration("duration", result.TotalDuration))
	return result, nil
}

// buildAll builds each target and archives it as soon as its build finishes
func (o *ReleaseOrchestrator) buildAll(ctx context.Context, version string, names map[string]string, staging string) ([]*entities.Archive, error) {
	pipeline := o.pipeline
	targets := pipeline.Release.Build.Targets
	archives := make([]*entities.Archive, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	limit := pipeline.Release.Build.Parallelism
	if limit <= 0 {
		limit = len(targets)
	}
	g.SetLimit(limit)

	for i, target := range targets {
		g.Go(func() error {
			binary, err := o.builder.Build(gctx, domainGateways.BuildRequest{
				ProjectName: pipeline.ProjectName,
				Version:     version,
				Target:      target,
				Config:      pipeline.Release.Build,
			})
			if err != nil {
				return goerr.Wrap(err, "build failed", goerr.V("target", target.Key()))
			}

			archive, err := o.archiver.Archive(gctx, domainGateways.ArchiveRequest{
				ProjectName: pipeline.ProjectName,
				Binary:      binary,
				BinaryName:  pipeline.Release.Build.Binary,
				Name:        names[target.Key()],
				Format:      pipeline.Release.Archive.Format,
				Files:       pipeline.Release.Archive.Files,
				OutputDir:   staging,
			})
			if err != nil {
				return goerr.Wrap(err, "archive failed", goerr.V("target", target.Key()))
			}
			archives[i] = archive
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return archives, nil
}

func (o *ReleaseOrchestrator) renderChecksumName(version, tag string) (string, error) {
	name, err := services.RenderTemplate("release.checksum.name_template", o.pipeline.Release.Checksum.NameTemplate, struct {
		ProjectName string
		Version     string
		Tag         string
	}{o.pipeline.ProjectName, version, tag})
	if err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", goerr.New("checksum file name must be a plain file name", goerr.V("name", name))
	}
	return name, nil
}

// Changelog returns the filtered commits between the previous tag and HEAD
func (o *ReleaseOrchestrator) Changelog(ctx context.Context, currentTag string) ([]entities.ChangelogEntry, error) {
	if o.changelog == nil {
		return nil, nil
	}
	prev := o.changelog.PreviousTag(ctx, currentTag)
	entries, err := o.changelog.Entries(ctx, prev)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read changelog", goerr.V("from", prev))
	}
	return o.notes.Filter(entries), nil
}

// publish moves the listed files from staging into dist
func publish(staging, dist string, files []string) error {
	for _, name := range files {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dist, name)); err != nil {
			return goerr.Wrap(err, "failed to publish release file", goerr.V("file", name))
		}
	}
	return nil
}

// GetSummary returns a human-readable summary of the release
func (r *ReleaseResult) GetSummary() string {
	meta := r.Metadata
	summary := fmt.Sprintf(`Release assembled!
Project: %s
Version: %s (%s)
Archives: %d
Checksums: %s
Build: %v
Total: %v`,
		meta.ProjectName,
		meta.Version,
		meta.Tag,
		len(meta.Archives),
		r.ChecksumPath,
		r.BuildDuration.Round(time.Millisecond),
		r.TotalDuration.Round(time.Millisecond),
	)

	if meta.SignatureFile != "" {
		summary += fmt.Sprintf("\nSignature: %s", filepath.Join(r.DistDir, meta.SignatureFile))
	}
	if meta.Prerelease {
		summary += "\nPre-release: yes"
	}
	return summary
}
