package gateways

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m-mizutani/ctxlog"

	"github.com/ochairo/crucible/internal/domain/entities"
	"github.com/ochairo/crucible/internal/domain/services"
)

// Toolchain pins the compiler version before a release build
type Toolchain struct {
	scripts    ScriptRunner
	workingDir string
}

// NewToolchain creates a toolchain gateway
func NewToolchain(scripts ScriptRunner, workingDir string) *Toolchain {
	return &Toolchain{scripts: scripts, workingDir: workingDir}
}

// Pin runs the toolchain command for the configured version. Nothing happens without a version.
func (tc *Toolchain) Pin(ctx context.Context, cfg entities.ToolchainConfig) error {
	if strings.TrimSpace(cfg.Version) == "" {
		return nil
	}

	command, err := services.RenderTemplate("release.toolchain.command", cfg.Command, struct{ Version string }{cfg.Version})
	if err != nil {
		return fmt.Errorf("failed to render toolchain command: %w", err)
	}

	ctxlog.From(ctx).Info("pinning toolchain", slog.String("version", cfg.Version), slog.String("command", command))

	result := tc.scripts.ExecuteScript(ctx, ExecuteScriptConfig{
		Script:     command,
		WorkingDir: tc.workingDir,
	})
	if !result.Success {
		return fmt.Errorf("toolchain command failed (exit %d): %w\nStderr: %s",
			result.ExitCode, result.Error, strings.TrimSpace(result.Stderr))
	}
	return nil
}
