package gateways

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"golang.org/x/sync/singleflight"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// PackageEnsurer installs missing distribution packages
type PackageEnsurer interface {
	EnsurePackages(ctx context.Context, packages []string) ([]string, error)
}

// ScriptRunner runs shell scripts
type ScriptRunner interface {
	ExecuteScript(ctx context.Context, config ExecuteScriptConfig) *ExecuteResult
}

// ProvisionStep names one provisioning stage
type ProvisionStep string

// Provisioning stages, in execution order
const (
	StepPackages    ProvisionStep = "packages"
	StepEnvironment ProvisionStep = "environment"
	StepRuntime     ProvisionStep = "runtime"
)

// ProvisionError reports which step failed
type ProvisionError struct {
	Step     ProvisionStep
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("provision step %s failed", e.Step)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += "\nStderr: " + stderr
	}
	return msg
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provisioner prepares the environment a test job runs in
type Provisioner struct {
	packages PackageEnsurer
	scripts  ScriptRunner
	timeout  time.Duration

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]bool
}

// NewProvisioner creates a provisioner. Identical concurrent requests run once and
// successful configurations are not provisioned again.
func NewProvisioner(packages PackageEnsurer, scripts ScriptRunner) *Provisioner {
	return &Provisioner{
		packages: packages,
		scripts:  scripts,
		timeout:  DefaultTimeout,
		done:     make(map[string]bool),
	}
}

func provisionKey(cfg entities.ProvisionConfig) string {
	return strings.Join([]string{
		strings.Join(cfg.Packages, ","),
		cfg.Environment,
		cfg.Runtime,
		cfg.WorkingDir,
	}, "\x00")
}

// Provision runs packages, environment and runtime steps in order
func (p *Provisioner) Provision(ctx context.Context, cfg entities.ProvisionConfig) error {
	if cfg.Empty() {
		return nil
	}

	key := provisionKey(cfg)
	p.mu.Lock()
	done := p.done[key]
	p.mu.Unlock()
	if done {
		return nil
	}

	_, err, shared := p.group.Do(key, func() (any, error) {
		p.mu.Lock()
		done := p.done[key]
		p.mu.Unlock()
		if done {
			return nil, nil
		}
		if err := p.provision(ctx, cfg); err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.done[key] = true
		p.mu.Unlock()
		return nil, nil
	})
	if shared {
		ctxlog.From(ctx).Debug("joined in-flight provisioning")
	}
	return err
}

func (p *Provisioner) provision(ctx context.Context, cfg entities.ProvisionConfig) error {
	logger := ctxlog.From(ctx)

	if len(cfg.Packages) > 0 {
		logger.Info("provisioning packages", slog.Any("packages", cfg.Packages))
		installed, err := p.packages.EnsurePackages(ctx, cfg.Packages)
		if err != nil {
			return &ProvisionError{Step: StepPackages, Err: err}
		}
		if len(installed) > 0 {
			logger.Info("installed packages", slog.Any("packages", installed))
		}
	}

	steps := []struct {
		step   ProvisionStep
		script string
	}{
		{StepEnvironment, cfg.Environment},
		{StepRuntime, cfg.Runtime},
	}
	for _, s := range steps {
		if strings.TrimSpace(s.script) == "" {
			continue
		}
		logger.Info("provisioning", slog.String("step", string(s.step)))

		result := p.scripts.ExecuteScript(ctx, ExecuteScriptConfig{
			Script:     s.script,
			WorkingDir: cfg.WorkingDir,
			Timeout:    p.timeout,
		})
		if !result.Success {
			return &ProvisionError{
				Step:     s.step,
				ExitCode: result.ExitCode,
				Stderr:   result.Stderr,
				Err:      result.Error,
			}
		}
		logger.Debug("provision step finished", slog.String("step", string(s.step)), slog.Duration("duration", result.Duration))
	}

	return nil
}
