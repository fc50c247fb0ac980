package gateways

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// TestInvokerConfig configures how test commands run
type TestInvokerConfig struct {
	WorkingDir string
	// Timeout bounds one job; zero means no limit
	Timeout time.Duration
	// Stream receives live output prefixed with the job name
	Stream io.Writer
}

// TestInvoker runs one matrix job's command and turns its exit code into a verdict
type TestInvoker struct {
	scripts ScriptRunner
	config  TestInvokerConfig
}

// NewTestInvoker creates a test invoker
func NewTestInvoker(scripts ScriptRunner, config TestInvokerConfig) *TestInvoker {
	return &TestInvoker{scripts: scripts, config: config}
}

// Invoke runs the job once. Exit code 0 passes, anything else fails. There are no retries.
func (ti *TestInvoker) Invoke(ctx context.Context, job entities.TestJob) entities.JobResult {
	result := entities.JobResult{
		Name:    job.Name,
		Command: job.Command,
	}

	env := make(map[string]string, len(job.Env)+2)
	for k, v := range job.Env {
		env[k] = v
	}
	env["CRUCIBLE_TEST"] = job.Name
	env["CRUCIBLE_JOB_INDEX"] = strconv.Itoa(job.Index)

	timeout := ti.config.Timeout
	if timeout <= 0 {
		timeout = -1
	}

	ctxlog.From(ctx).Debug("running test", slog.String("test", job.Name), slog.String("command", job.Command))

	exec := ti.scripts.ExecuteScript(ctx, ExecuteScriptConfig{
		Script:       job.Command,
		WorkingDir:   ti.config.WorkingDir,
		Env:          env,
		Timeout:      timeout,
		Stream:       ti.config.Stream,
		StreamPrefix: job.Name,
	})

	result.ExitCode = exec.ExitCode
	result.Duration = exec.Duration
	result.Output = combineOutput(exec.Stdout, exec.Stderr)

	switch {
	case exec.Success:
		result.Status = entities.JobPassed
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		result.Status = entities.JobCancelled
		result.Message = "cancelled"
	default:
		result.Status = entities.JobFailed
		result.Message = fmt.Sprintf("exit code %d", exec.ExitCode)
		if exec.Error != nil && exec.ExitCode < 0 {
			result.Message = exec.Error.Error()
		}
	}

	return result
}

func combineOutput(stdout, stderr string) string {
	switch {
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		if !strings.HasSuffix(stdout, "\n") {
			stdout += "\n"
		}
		return stdout + stderr
	}
}
