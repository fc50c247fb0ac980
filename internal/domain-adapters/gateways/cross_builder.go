package gateways

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"

	"github.com/ochairo/crucible/internal/domain/entities"
	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
	"github.com/ochairo/crucible/internal/domain/services"
)

// BuildTemplateData is available to the build command and output templates
type BuildTemplateData struct {
	ProjectName string
	Version     string
	Binary      string
	Target      BuildTemplateTarget
}

// BuildTemplateTarget exposes the target fields to templates
type BuildTemplateTarget struct {
	OS     string
	Arch   string
	Triple string
}

// CrossBuilder cross-compiles the project for one target at a time
type CrossBuilder struct {
	scripts    ScriptRunner
	workingDir string
}

// NewCrossBuilder creates a cross builder rooted at workingDir
func NewCrossBuilder(scripts ScriptRunner, workingDir string) *CrossBuilder {
	return &CrossBuilder{scripts: scripts, workingDir: workingDir}
}

// BuildRequest describes one target build
type BuildRequest = domainGateways.BuildRequest

// Build runs the build command for a target and locates the produced binary
func (cb *CrossBuilder) Build(ctx context.Context, req BuildRequest) (*entities.Artifact, error) {
	data := BuildTemplateData{
		ProjectName: req.ProjectName,
		Version:     req.Version,
		Binary:      req.Config.Binary,
		Target: BuildTemplateTarget{
			OS:     req.Target.OS,
			Arch:   req.Target.Arch,
			Triple: req.Target.CompilerTriple(),
		},
	}

	command, err := services.RenderTemplate("release.build.command", req.Config.Command, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render build command for %s: %w", req.Target, err)
	}
	output, err := services.RenderTemplate("release.build.output", req.Config.Output, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render build output for %s: %w", req.Target, err)
	}

	env := map[string]string{
		"CRUCIBLE_TARGET_OS":     req.Target.OS,
		"CRUCIBLE_TARGET_ARCH":   req.Target.Arch,
		"CRUCIBLE_TARGET_TRIPLE": req.Target.CompilerTriple(),
		"CRUCIBLE_VERSION":       req.Version,
	}
	for k, v := range req.Config.Env {
		env[k] = v
	}

	var timeout time.Duration
	if req.Config.TimeoutMinutes > 0 {
		timeout = time.Duration(req.Config.TimeoutMinutes) * time.Minute
	}

	logger := ctxlog.From(ctx).With(slog.String("target", req.Target.Key()))
	logger.Info("building", slog.String("command", command))

	result := cb.scripts.ExecuteScript(ctx, ExecuteScriptConfig{
		Script:     command,
		WorkingDir: cb.workingDir,
		Env:        env,
		Timeout:    timeout,
	})
	if !result.Success {
		return nil, fmt.Errorf("build for %s failed (exit %d): %w\nStderr: %s",
			req.Target, result.ExitCode, result.Error, strings.TrimSpace(result.Stderr))
	}

	binaryPath := output
	if !filepath.IsAbs(binaryPath) && cb.workingDir != "" {
		binaryPath = filepath.Join(cb.workingDir, binaryPath)
	}
	info, err := os.Stat(binaryPath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w for %s: %s", ErrBinaryNotFound, req.Target, binaryPath)
	}

	logger.Info("built", slog.String("binary", binaryPath), slog.Duration("duration", result.Duration))

	return &entities.Artifact{
		Name:    req.Config.Binary,
		Version: req.Version,
		Target:  req.Target,
		Path:    binaryPath,
		Type:    "binary",
	}, nil
}
