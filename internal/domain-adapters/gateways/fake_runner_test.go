package gateways

import (
	"context"
	"strings"
	"sync"

	domainGateways "github.com/ochairo/crucible/internal/domain/interfaces/gateways"
)

// fakeRunner records every command and answers from a table keyed by "name arg..."
type fakeRunner struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]*domainGateways.CommandResult
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]*domainGateways.CommandResult)}
}

func (f *fakeRunner) on(command string, stdout string, success bool) *fakeRunner {
	exit := 0
	if !success {
		exit = 1
	}
	f.responses[command] = &domainGateways.CommandResult{Success: success, ExitCode: exit, Stdout: stdout}
	return f
}

func (f *fakeRunner) RunCommand(_ context.Context, cmd domainGateways.Command) *domainGateways.CommandResult {
	key := strings.TrimSpace(cmd.Name + " " + strings.Join(cmd.Args, " "))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)

	if r, ok := f.responses[key]; ok {
		copied := *r
		return &copied
	}
	return &domainGateways.CommandResult{Success: true}
}

func (f *fakeRunner) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeRunner) count(command string) int {
	n := 0
	for _, c := range f.recorded() {
		if c == command {
			n++
		}
	}
	return n
}
