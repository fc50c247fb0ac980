package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	orchestrators "github.com/ochairo/crucible/internal/domain-orchestrators"
	"github.com/ochairo/crucible/internal/domain/entities"
	"github.com/ochairo/crucible/internal/domain/services"
)

func (a *app) cmdChangelog() *cli.Command {
	return &cli.Command{
		Name:      "changelog",
		Usage:     "Print the filtered commits since the previous tag",
		ArgsUsage: "[tag]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "notes", Usage: "Render the full release notes markdown instead of the changelog only"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := a.loadProject(ctx)
			if err != nil {
				return err
			}
			orch, err := proj.releaseOrchestrator(proj.resolve(proj.pipeline.Dist))
			if err != nil {
				return err
			}

			tag := cmd.Args().First()
			entries, err := orch.Changelog(ctx, tag)
			if err != nil {
				return failed(err)
			}

			if cmd.Bool("notes") {
				if tag == "" {
					tag = "HEAD"
				}
				fmt.Fprint(a.stdout, services.RenderReleaseNotes(&entities.ReleaseMetadata{
					ProjectName: proj.pipeline.ProjectName,
					Tag:         tag,
					Changelog:   entries,
					Footer:      proj.pipeline.Release.Footer,
				}))
				return nil
			}

			printChangelog(a, entries)
			return nil
		},
	}
}

func printChangelog(a *app, entries []entities.ChangelogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No notable changes.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(a.stdout, "* %s %s\n", e.ShortHash(), e.Subject)
	}
}

func (a *app) cmdVersion() *cli.Command {
	return &cli.Command{
		Name:      "version",
		Usage:     "Print the version and tag a release would use",
		ArgsUsage: "[version]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "snapshot", Usage: "Derive a snapshot version from the argument or the latest tag"},
			&cli.BoolFlag{Name: "tag", Usage: "Print only the tag"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := a.loadProject(ctx)
			if err != nil {
				return err
			}
			orch, err := proj.releaseOrchestrator(proj.resolve(proj.pipeline.Dist))
			if err != nil {
				return err
			}

			version, err := orch.ResolveVersion(ctx, orchestrators.ReleaseOptions{
				Version:  cmd.Args().First(),
				Snapshot: cmd.Bool("snapshot"),
			})
			if err != nil {
				return usageError(err)
			}

			versions := services.NewVersionService(proj.pipeline.Release.Snapshot.VersionTemplate)
			if cmd.Bool("tag") {
				fmt.Fprintln(a.stdout, versions.Tag(version))
				return nil
			}
			prerelease := versions.ResolvePrerelease(proj.pipeline.Release.Prerelease, version, cmd.Bool("snapshot"))
			fmt.Fprintf(a.stdout, "version=%s\ntag=%s\nprerelease=%t\n", version, versions.Tag(version), prerelease)
			return nil
		},
	}
}
