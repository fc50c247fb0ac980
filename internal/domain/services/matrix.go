package services

import (
	"maps"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// DefaultTestCommand runs a spread task verbosely
const DefaultTestCommand = "spread -v {{ quote .Name }}"

// MatrixService expands test names into independent jobs
type MatrixService struct {
	commandTemplate string
	env             map[string]string
}

// NewMatrixService creates a matrix service for a command template
func NewMatrixService(cfg entities.MatrixConfig) *MatrixService {
	tmpl := cfg.Command
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTestCommand
	}
	return &MatrixService{commandTemplate: tmpl, env: cfg.Env}
}

type jobTemplateData struct {
	Name  string
	Index int
}

// Expand returns exactly one job per test name, in input order.
// Empty or duplicate names are rejected before anything runs.
func (s *MatrixService) Expand(names []string) ([]entities.TestJob, error) {
	seen := make(map[string]int, len(names))
	jobs := make([]entities.TestJob, 0, len(names))

	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, goerr.Wrap(ErrEmptyTestName, "invalid matrix entry", goerr.V("index", i))
		}
		if prev, dup := seen[name]; dup {
			return nil, goerr.Wrap(ErrDuplicateTest, "invalid matrix entry",
				goerr.V("name", name), goerr.V("first", prev), goerr.V("index", i))
		}
		seen[name] = i

		command, err := RenderTemplate("matrix.command", s.commandTemplate, jobTemplateData{Name: name, Index: i})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to render test command", goerr.V("name", name))
		}

		env := make(map[string]string, len(s.env))
		maps.Copy(env, s.env)

		jobs = append(jobs, entities.TestJob{
			Name:    name,
			Command: command,
			Index:   i,
			Env:     env,
		})
	}

	return jobs, nil
}
