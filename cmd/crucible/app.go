package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/logging"
)

// app holds global flags and output streams shared by every subcommand
type app struct {
	stdout io.Writer
	stderr io.Writer

	logLevel   string
	logFormat  string
	configPath string
	dir        string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "crucible",
		Usage:     "CI test-matrix runner and release packager",
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Destination: &a.logLevel,
				Sources:     cli.EnvVars("CRUCIBLE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console, text, json)",
				Value:       logging.FormatConsole,
				Destination: &a.logFormat,
				Sources:     cli.EnvVars("CRUCIBLE_LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Pipeline file (default: crucible.yml, crucible.yaml, crucible.toml or .crucible.yml in --dir)",
				Destination: &a.configPath,
				Sources:     cli.EnvVars("CRUCIBLE_CONFIG"),
			},
			&cli.StringFlag{
				Name:        "dir",
				Usage:       "Directory searched for the pipeline file",
				Value:       ".",
				Destination: &a.dir,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			logger, err := logging.New(logging.Options{Level: a.logLevel, Format: a.logFormat, Writer: a.stderr})
			if err != nil {
				return ctx, usageError(err)
			}
			return ctxlog.With(ctx, logger.With(slog.String("app", "crucible"))), nil
		},
		// exit codes are mapped by run
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			a.cmdMatrix(),
			a.cmdProvision(),
			a.cmdBuild(),
			a.cmdRelease(),
			a.cmdChangelog(),
			a.cmdVersion(),
			a.cmdVerify(),
			a.cmdValidateRelease(),
			a.cmdList(),
		},
	}
}
