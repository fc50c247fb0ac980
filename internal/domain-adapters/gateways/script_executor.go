package gateways

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
)

// DefaultTimeout bounds every command that does not set its own timeout
const DefaultTimeout = 30 * time.Minute

// ScriptExecutor runs shell scripts and programs
type ScriptExecutor struct {
	defaultTimeout time.Duration
}

// NewScriptExecutor creates a new script executor
func NewScriptExecutor() *ScriptExecutor {
	return &ScriptExecutor{
		defaultTimeout: DefaultTimeout,
	}
}

// ExecuteScriptConfig contains configuration for executing a shell script.
type ExecuteScriptConfig struct {
	Script     string
	WorkingDir string
	Env        map[string]string
	Timeout    time.Duration // 0 selects the default, negative means none
	// Stream, when set, receives every output line as it is produced, prefixed with StreamPrefix
	Stream       io.Writer
	StreamPrefix string
}

// ExecuteResult contains the result of script execution
type ExecuteResult = domainGateways.CommandResult

// ExecuteScript runs a shell script through /bin/sh -c
func (se *ScriptExecutor) ExecuteScript(ctx context.Context, config ExecuteScriptConfig) *ExecuteResult {
	//nolint:gosec // G204: script execution is the purpose of this gateway
	return se.run(ctx, "/bin/sh", []string{"-c", config.Script}, config)
}

// RunCommand runs a program directly without a shell
func (se *ScriptExecutor) RunCommand(ctx context.Context, cmd domainGateways.Command) *domainGateways.CommandResult {
	return se.run(ctx, cmd.Name, cmd.Args, ExecuteScriptConfig{
		WorkingDir: cmd.WorkingDir,
		Env:        cmd.Env,
		Timeout:    cmd.Timeout,
	})
}

func (se *ScriptExecutor) run(ctx context.Context, name string, args []string, config ExecuteScriptConfig) *ExecuteResult {
	startTime := time.Now()
	result := &ExecuteResult{}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = se.defaultTimeout
	}

	var execCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	//nolint:gosec // G204: command comes from the pipeline definition
	cmd := exec.CommandContext(execCtx, name, args...)
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}
	cmd.Env = mergeEnv(os.Environ(), config.Env)

	var stdout, stderr bytes.Buffer
	var streamers []*lineStreamer
	if config.Stream != nil {
		mu := &sync.Mutex{}
		outStream := &lineStreamer{w: config.Stream, prefix: config.StreamPrefix, mu: mu}
		errStream := &lineStreamer{w: config.Stream, prefix: config.StreamPrefix, mu: mu}
		streamers = append(streamers, outStream, errStream)
		cmd.Stdout = io.MultiWriter(&stdout, outStream)
		cmd.Stderr = io.MultiWriter(&stderr, errStream)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	for _, s := range streamers {
		s.Flush()
	}
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.Error = fmt.Errorf("execution timeout after %v", timeout)
			result.ExitCode = -1
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			result.ExitCode = -1
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// mergeEnv appends overrides to base in a stable order
func mergeEnv(base []string, overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := append([]string{}, base...)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}
	return env
}

// lineStreamer forwards complete lines to w with a prefix
type lineStreamer struct {
	w      io.Writer
	prefix string
	mu     *sync.Mutex
	buf    []byte
}

func (l *lineStreamer) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.emit(l.buf[:i])
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing partial line
func (l *lineStreamer) Flush() {
	if len(l.buf) > 0 {
		l.emit(l.buf)
		l.buf = nil
	}
}

func (l *lineStreamer) emit(line []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := bufio.NewWriter(l.w)
	if l.prefix != "" {
		_, _ = w.WriteString("[" + l.prefix + "] ")
	}
	_, _ = w.Write(line)
	_ = w.WriteByte('\n')
	_ = w.Flush()
}
