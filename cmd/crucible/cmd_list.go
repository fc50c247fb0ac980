package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/domain/services"
)

func (a *app) cmdList() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List matrix tests and release targets of the pipeline",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tests", Usage: "Only list tests"},
			&cli.BoolFlag{Name: "targets", Usage: "Only list release targets"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := a.loadProject(ctx)
			if err != nil {
				return err
			}
			pipeline := proj.pipeline
			showTests := !cmd.Bool("targets") || cmd.Bool("tests")
			showTargets := !cmd.Bool("tests") || cmd.Bool("targets")

			if showTests {
				jobs, err := services.NewMatrixService(pipeline.Matrix).Expand(pipeline.Matrix.Tests)
				if err != nil {
					return usageError(err)
				}
				fmt.Fprintf(a.stdout, "Tests (%d total):\n\n", len(jobs))
				for _, job := range jobs {
					fmt.Fprintf(a.stdout, "  %-30s %s\n", job.Name, job.Command)
				}
				fmt.Fprintln(a.stdout)
			}

			if showTargets {
				targets := pipeline.Release.Build.Targets
				fmt.Fprintf(a.stdout, "Targets (%d total):\n\n", len(targets))
				for _, t := range targets {
					fmt.Fprintf(a.stdout, "  %-20s %-10s %s\n", t.Key(), services.ArchName(t.Arch), t.CompilerTriple())
				}
				if pipeline.Release.Sign.Enabled() {
					fmt.Fprintf(a.stdout, "\n  🔐 Checksums signed with %s\n", pipeline.Release.Sign.KeyFile)
				}
			}
			return nil
		},
	}
}
