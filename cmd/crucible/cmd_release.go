package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	orchestrators "github.com/ochairo/crucible/internal/domain-orchestrators"
)

func releaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "version", Usage: "Version to release; with --snapshot the base version (default: latest tag)", Sources: cli.EnvVars("CRUCIBLE_VERSION")},
		&cli.BoolFlag{Name: "snapshot", Usage: "Build a provisional version derived from the latest tag"},
		&cli.StringFlag{Name: "dist", Usage: "Output directory (default: pipeline dist)"},
	}
}

func (a *app) cmdBuild() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Pin the toolchain, cross-compile every target and write archives plus checksums",
		Description: `Examples:
  crucible build --version 1.4.0
  crucible build --snapshot`,
		Flags: releaseFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.runRelease(ctx, cmd, true)
		},
	}
}

func (a *app) cmdRelease() *cli.Command {
	return &cli.Command{
		Name:  "release",
		Usage: "Build, archive, checksum, sign and write release notes into dist",
		Description: `Examples:
  crucible release --version v1.4.0
  crucible release --snapshot
  crucible release v1.4.0 --dist ./out`,
		ArgsUsage: "[version]",
		Flags:     releaseFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.runRelease(ctx, cmd, false)
		},
	}
}

func (a *app) runRelease(ctx context.Context, cmd *cli.Command, buildOnly bool) error {
	proj, err := a.loadProject(ctx)
	if err != nil {
		return err
	}

	version := cmd.String("version")
	if version == "" {
		version = cmd.Args().First()
	}
	snapshot := cmd.Bool("snapshot")
	if version == "" && !snapshot {
		return usageError(fmt.Errorf("a version is required (pass --version or --snapshot)"))
	}

	distDir := proj.distDir(cmd)
	orch, err := proj.releaseOrchestrator(distDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "🚀 Releasing %s (%d targets)\n", proj.pipeline.ProjectName, len(proj.pipeline.Release.Build.Targets))
	fmt.Fprintf(a.stdout, "📁 Dist directory: %s\n\n", distDir)

	result, err := orch.Release(ctx, orchestrators.ReleaseOptions{
		Version:   version,
		Snapshot:  snapshot,
		BuildOnly: buildOnly,
	})
	if err != nil {
		fmt.Fprintln(a.stdout, color.RedString("❌ Release failed, nothing was published"))
		return failed(err)
	}

	fmt.Fprintln(a.stdout, color.GreenString("✅ %s", result.GetSummary()))
	for _, archive := range result.Metadata.Archives {
		fmt.Fprintf(a.stdout, "  📦 %s\n", filepath.Base(archive.Path))
	}
	return nil
}
