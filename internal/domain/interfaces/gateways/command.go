// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"time"
)

// Command is a single program invocation without a shell
type Command struct {
	Name       string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Timeout    time.Duration
}

// CommandResult is the outcome of running a Command
type CommandResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// CommandRunner runs external programs. Implementations must not return a nil result.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd Command) *CommandResult
}
