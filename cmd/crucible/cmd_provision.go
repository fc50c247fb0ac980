package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/domain-adapters/gateways"
)

func (a *app) cmdProvision() *cli.Command {
	return &cli.Command{
		Name:  "provision",
		Usage: "Install packages, then run the environment and runtime setup once",
		Action: func(ctx context.Context, _ *cli.Command) error {
			proj, err := a.loadProject(ctx)
			if err != nil {
				return err
			}

			cfg := proj.provisionConfig()
			if cfg.Empty() {
				fmt.Fprintln(a.stdout, "Nothing to provision")
				return nil
			}

			fmt.Fprintf(a.stdout, "🧱 Provisioning (%d packages)\n", len(cfg.Packages))
			executor := gateways.NewScriptExecutor()
			if err := proj.provisioner(executor).Provision(ctx, cfg); err != nil {
				var provErr *gateways.ProvisionError
				if errors.As(err, &provErr) && provErr.Stderr != "" {
					fmt.Fprintln(a.stderr, provErr.Stderr)
				}
				fmt.Fprintln(a.stdout, color.RedString("❌ Provisioning failed"))
				return failed(err)
			}

			fmt.Fprintln(a.stdout, color.GreenString("✅ Environment ready"))
			return nil
		},
	}
}
