package gateways

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/ctxlog"

	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
)

// Distribution identifies the host operating system
type Distribution struct {
	ID      string
	Release string
}

// PackageManager is the host package manager family
type PackageManager string

// Supported package managers
const (
	PackageManagerApt     PackageManager = "apt"
	PackageManagerTdnf    PackageManager = "tdnf"
	PackageManagerDnf     PackageManager = "dnf"
	PackageManagerUnknown PackageManager = "unknown"
)

// PackageManagerFor maps a distribution id to its package manager
func PackageManagerFor(dist Distribution) PackageManager {
	switch strings.ToLower(dist.ID) {
	case "ubuntu", "debian":
		return PackageManagerApt
	case "azurelinux":
		return PackageManagerTdnf
	case "fedora":
		return PackageManagerDnf
	default:
		return PackageManagerUnknown
	}
}

// DefaultOSReleasePath is read when lsb_release is unavailable
const DefaultOSReleasePath = "/etc/os-release"

// PackageWorker installs distribution packages on the host
type PackageWorker struct {
	runner        domainGateways.CommandRunner
	osReleasePath string

	mu      sync.Mutex
	dist    *Distribution
	updated bool
}

// NewPackageWorker creates a package worker that runs commands through runner
func NewPackageWorker(runner domainGateways.CommandRunner) *PackageWorker {
	return &PackageWorker{runner: runner, osReleasePath: DefaultOSReleasePath}
}

// WithOSReleasePath overrides the os-release fallback file
func (w *PackageWorker) WithOSReleasePath(path string) *PackageWorker {
	w.osReleasePath = path
	return w
}

// Distribution detects the host distribution once and caches it
func (w *PackageWorker) Distribution(ctx context.Context) (Distribution, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dist != nil {
		return *w.dist, nil
	}

	dist, err := w.detect(ctx)
	if err != nil {
		return Distribution{}, err
	}
	ctxlog.From(ctx).Debug("detected distribution", slog.String("id", dist.ID), slog.String("release", dist.Release))

	w.dist = &dist
	return dist, nil
}

func (w *PackageWorker) detect(ctx context.Context) (Distribution, error) {
	id := w.runner.RunCommand(ctx, domainGateways.Command{Name: "lsb_release", Args: []string{"-is"}})
	release := w.runner.RunCommand(ctx, domainGateways.Command{Name: "lsb_release", Args: []string{"-rs"}})
	if id.Success && release.Success && strings.TrimSpace(id.Stdout) != "" {
		return Distribution{
			ID:      strings.TrimSpace(id.Stdout),
			Release: strings.TrimSpace(release.Stdout),
		}, nil
	}

	//nolint:gosec // G304: os-release location is fixed or set by tests
	data, err := os.ReadFile(w.osReleasePath)
	if err != nil {
		return Distribution{}, fmt.Errorf("failed to detect distribution: lsb_release unavailable and %w", err)
	}
	fields := parseOSRelease(data)
	if fields["ID"] == "" {
		return Distribution{}, fmt.Errorf("failed to detect distribution: no ID in %s", w.osReleasePath)
	}
	return Distribution{ID: fields["ID"], Release: fields["VERSION_ID"]}, nil
}

// parseOSRelease reads KEY=value lines, stripping optional quotes
func parseOSRelease(data []byte) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[key] = strings.Trim(value, `"'`)
	}
	return fields
}

// PackageManager resolves the package manager of the host
func (w *PackageWorker) PackageManager(ctx context.Context) (PackageManager, error) {
	dist, err := w.Distribution(ctx)
	if err != nil {
		return PackageManagerUnknown, err
	}
	pm := PackageManagerFor(dist)
	if pm == PackageManagerUnknown {
		return pm, fmt.Errorf("%w for distribution %q", ErrUnknownPackageManager, dist.ID)
	}
	return pm, nil
}

func (w *PackageWorker) packageCommand(ctx context.Context, action, pkg string) (domainGateways.Command, error) {
	pm, err := w.PackageManager(ctx)
	if err != nil {
		return domainGateways.Command{}, err
	}

	switch action {
	case "install", "remove":
		name := string(pm)
		if pm == PackageManagerApt {
			name = "apt-get"
		}
		return domainGateways.Command{
			Name: name,
			Args: []string{action, "-y", pkg},
			Env:  map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
		}, nil
	case "update":
		if pm == PackageManagerApt {
			return domainGateways.Command{Name: "apt-get", Args: []string{"update"}}, nil
		}
		return domainGateways.Command{Name: string(pm), Args: []string{"makecache"}}, nil
	case "query":
		if pm == PackageManagerApt {
			return domainGateways.Command{Name: "dpkg-query", Args: []string{"-s", pkg}}, nil
		}
		return domainGateways.Command{Name: "rpm", Args: []string{"-q", pkg}}, nil
	default:
		return domainGateways.Command{}, fmt.Errorf("unsupported package action: %s", action)
	}
}

func (w *PackageWorker) run(ctx context.Context, cmd domainGateways.Command) error {
	ctxlog.From(ctx).Debug("running package command", slog.String("command", cmd.Name), slog.Any("args", cmd.Args))
	result := w.runner.RunCommand(ctx, cmd)
	if !result.Success {
		return fmt.Errorf("failed to run command '%s %s' (exit %d): %s",
			cmd.Name, strings.Join(cmd.Args, " "), result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// InstallPackage installs one package
func (w *PackageWorker) InstallPackage(ctx context.Context, pkg string) error {
	cmd, err := w.packageCommand(ctx, "install", pkg)
	if err != nil {
		return err
	}
	return w.run(ctx, cmd)
}

// RemovePackage removes one package
func (w *PackageWorker) RemovePackage(ctx context.Context, pkg string) error {
	cmd, err := w.packageCommand(ctx, "remove", pkg)
	if err != nil {
		return err
	}
	return w.run(ctx, cmd)
}

// UpdatePackageLists refreshes the package index
func (w *PackageWorker) UpdatePackageLists(ctx context.Context) error {
	cmd, err := w.packageCommand(ctx, "update", "")
	if err != nil {
		return err
	}
	return w.run(ctx, cmd)
}

// CheckInstalled reports whether a package is installed. A failing query means not installed.
func (w *PackageWorker) CheckInstalled(ctx context.Context, pkg string) (bool, error) {
	cmd, err := w.packageCommand(ctx, "query", pkg)
	if err != nil {
		return false, err
	}
	return w.runner.RunCommand(ctx, cmd).Success, nil
}

// EnsurePackages installs every package that is missing. Package lists are refreshed at most
// once per worker and only when something needs installing. It returns the packages installed.
func (w *PackageWorker) EnsurePackages(ctx context.Context, packages []string) ([]string, error) {
	var missing []string
	for _, pkg := range packages {
		installed, err := w.CheckInstalled(ctx, pkg)
		if err != nil {
			return nil, err
		}
		if installed {
			ctxlog.From(ctx).Debug("package already installed", slog.String("package", pkg))
			continue
		}
		missing = append(missing, pkg)
	}
	if len(missing) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	needUpdate := !w.updated
	w.mu.Unlock()
	if needUpdate {
		if err := w.UpdatePackageLists(ctx); err != nil {
			return nil, err
		}
		w.mu.Lock()
		w.updated = true
		w.mu.Unlock()
	}

	for _, pkg := range missing {
		if err := w.InstallPackage(ctx, pkg); err != nil {
			return nil, fmt.Errorf("failed to install %s: %w", pkg, err)
		}
	}
	return missing, nil
}
