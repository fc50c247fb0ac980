package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/domain-adapters/gateways"
	"github.com/ochairo/crucible/internal/domain/services"
)

func (a *app) cmdValidateRelease() *cli.Command {
	return &cli.Command{
		Name:      "validate-release",
		Usage:     "Check that dist holds exactly one archive per configured target",
		ArgsUsage: "<version>",
		Description: `Exit Codes:
  0  All expected targets present (ready for release)
  1  Validation failed (missing or unexpected archives)
  2  Usage error or configuration error

Examples:
  crucible validate-release 1.4.0
  crucible validate-release v1.4.0 --dist ./out --quiet`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dist", Usage: "Release directory (default: pipeline dist)"},
			&cli.BoolFlag{Name: "quiet", Usage: "Only output errors (exit code indicates success/failure)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return usageError(fmt.Errorf("version is required"))
			}
			proj, err := a.loadProject(ctx)
			if err != nil {
				return err
			}

			versions := services.NewVersionService(proj.pipeline.Release.Snapshot.VersionTemplate)
			version, err := versions.Normalize(cmd.Args().First())
			if err != nil {
				return usageError(err)
			}

			quiet := cmd.Bool("quiet")
			pipeline := proj.pipeline
			if !quiet {
				fmt.Fprintf(a.stdout, "🔍 Validating release for %s %s\n", pipeline.ProjectName, version)
			}

			artifacts, err := gateways.NewArtifactFinder().FindRecursive(proj.distDir(cmd), pipeline.ProjectName)
			if err != nil {
				return failed(fmt.Errorf("failed to find artifacts: %w", err))
			}
			if !quiet {
				fmt.Fprintf(a.stdout, "📦 Found %d artifact files\n", len(artifacts))
			}

			releaseService := services.NewReleaseService(services.NewArchiveNamer(pipeline.Release.Archive.NameTemplate))
			validation, err := releaseService.ValidateRelease(pipeline, version, artifacts)
			if err != nil {
				return usageError(err)
			}

			if !quiet {
				fmt.Fprintf(a.stdout, "\n Target Validation:\n")
				fmt.Fprintf(a.stdout, "  Expected: %d targets\n", validation.ExpectedCount)
				fmt.Fprintf(a.stdout, "  Available: %d targets\n", validation.AvailableCount)
				printPlatforms(a, "Expected targets", validation.ExpectedPlatforms)
				printPlatforms(a, "Available targets", validation.AvailablePlatforms)
				printPlatforms(a, "Missing targets", validation.MissingPlatforms)
				if len(validation.UnexpectedArchives) > 0 {
					fmt.Fprintf(a.stdout, "  Unexpected archives: %s\n", strings.Join(validation.UnexpectedArchives, ", "))
				}
				fmt.Fprintln(a.stdout)
			}

			if !validation.IsReady() {
				msg := validation.ErrorMessage()
				if !quiet {
					fmt.Fprintln(a.stdout, color.RedString("❌ FAILED: %s", msg))
				}
				return failed(fmt.Errorf("%s", msg))
			}

			if !quiet {
				fmt.Fprintln(a.stdout, color.GreenString("✅ READY: All expected targets present"))
			}
			return nil
		},
	}
}

func printPlatforms(a *app, label string, platforms []services.Platform) {
	if len(platforms) == 0 {
		return
	}
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	fmt.Fprintf(a.stdout, "  %s: %s\n", label, strings.Join(names, ", "))
}
