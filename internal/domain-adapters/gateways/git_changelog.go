package gateways

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"

	"github.com/ochairo/crucible/internal/domain/entities"
	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
)

const gitLogFormat = "--pretty=format:%H%x1f%ct%x1f%s"

// GitChangelog reads commit history through the git CLI
type GitChangelog struct {
	runner domainGateways.CommandRunner
	dir    string
}

// NewGitChangelog creates a git changelog source for the repository at dir
func NewGitChangelog(runner domainGateways.CommandRunner, dir string) *GitChangelog {
	return &GitChangelog{runner: runner, dir: dir}
}

func (g *GitChangelog) git(ctx context.Context, args ...string) *domainGateways.CommandResult {
	return g.runner.RunCommand(ctx, domainGateways.Command{Name: "git", Args: args, WorkingDir: g.dir})
}

// PreviousTag returns the most recent tag reachable from HEAD that is not current.
// An empty string means the repository has no earlier tag.
func (g *GitChangelog) PreviousTag(ctx context.Context, current string) string {
	result := g.git(ctx, "describe", "--tags", "--abbrev=0", "HEAD")
	if !result.Success {
		return ""
	}
	tag := strings.TrimSpace(result.Stdout)
	if tag != current || current == "" {
		return tag
	}

	result = g.git(ctx, "describe", "--tags", "--abbrev=0", current+"^")
	if !result.Success {
		return ""
	}
	return strings.TrimSpace(result.Stdout)
}

// Entries lists commits after fromTag up to HEAD, oldest first. An empty fromTag lists the whole history.
func (g *GitChangelog) Entries(ctx context.Context, fromTag string) ([]entities.ChangelogEntry, error) {
	args := []string{"log", "--reverse", gitLogFormat}
	if fromTag != "" {
		args = append(args, fromTag+"..HEAD")
	}

	ctxlog.From(ctx).Debug("reading git history", slog.String("from", fromTag))

	result := g.git(ctx, args...)
	if !result.Success {
		return nil, fmt.Errorf("git log failed (exit %d): %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return ParseGitLog(result.Stdout)
}

// ParseGitLog parses hash, unix time and subject separated by the unit separator
func ParseGitLog(output string) ([]entities.ChangelogEntry, error) {
	var entries []entities.ChangelogEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\x1f", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unexpected git log line: %q", line)
		}
		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid commit time %q: %w", parts[1], err)
		}
		entries = append(entries, entities.ChangelogEntry{
			Hash:    parts[0],
			Time:    time.Unix(ts, 0).UTC(),
			Subject: parts[2],
		})
	}
	return entries, nil
}
