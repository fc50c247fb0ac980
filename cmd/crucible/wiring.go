package main

import (
	"context"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/crucible/internal/domain-orchestrators"
	"github.com/ochairo/crucible/internal/domain/entities"
	"github.com/ochairo/crucible/internal/external-adapters/pipelinefile"
)

// project is a loaded pipeline and the directory its relative paths resolve against
type project struct {
	pipeline *entities.Pipeline
	dir      string
}

// loadProject reads, defaults and validates the pipeline file
func (a *app) loadProject(ctx context.Context) (*project, error) {
	repo := pipelinefile.NewRepository(a.configPath, a.dir)
	path, err := repo.Path()
	if err != nil {
		return nil, usageError(err)
	}
	pipeline, err := repo.GetPipeline(ctx)
	if err != nil {
		return nil, usageError(err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, usageError(err)
	}
	return &project{pipeline: pipeline, dir: dir}, nil
}

// resolve makes a relative path relative to the project directory
func (p *project) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, path)
}

// distDir returns the flag value or the pipeline's dist directory
func (p *project) distDir(cmd *cli.Command) string {
	if dist := cmd.String("dist"); dist != "" {
		return p.resolve(dist)
	}
	return p.resolve(p.pipeline.Dist)
}

// provisioner wires the package worker and the script executor into a provisioner
func (p *project) provisioner(executor *gateways.ScriptExecutor) *gateways.Provisioner {
	return gateways.NewProvisioner(gateways.NewPackageWorker(executor), executor)
}

// provisionConfig resolves the provision working directory against the project
func (p *project) provisionConfig() entities.ProvisionConfig {
	cfg := p.pipeline.Provision
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = p.dir
	} else {
		cfg.WorkingDir = p.resolve(cfg.WorkingDir)
	}
	return cfg
}

// releaseOrchestrator wires every release gateway
func (p *project) releaseOrchestrator(distDir string) (*orchestrators.ReleaseOrchestrator, error) {
	executor := gateways.NewScriptExecutor()
	checksummer, err := gateways.NewChecksummer(p.pipeline.Release.Checksum.Algorithm)
	if err != nil {
		return nil, usageError(err)
	}

	pipeline := *p.pipeline
	pipeline.Release.Sign.KeyFile = p.resolve(pipeline.Release.Sign.KeyFile)

	return orchestrators.NewReleaseOrchestrator(
		&pipeline,
		gateways.NewToolchain(executor, p.dir),
		gateways.NewCrossBuilder(executor, p.dir),
		gateways.NewArchiver(p.dir),
		checksummer,
		gateways.NewManifestSigner(),
		gateways.NewGitChangelog(executor, p.dir),
		orchestrators.ReleaseOrchestratorConfig{DistDir: distDir},
	), nil
}
