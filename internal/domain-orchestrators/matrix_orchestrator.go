// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/crucible/internal/domain/entities"
	"github.com/ochairo/crucible/internal/domain/services"
)

// Provisioner prepares the environment a job runs in
type Provisioner interface {
	Provision(ctx context.Context, cfg entities.ProvisionConfig) error
}

// TestInvoker runs one job and reports its verdict
type TestInvoker interface {
	Invoke(ctx context.Context, job entities.TestJob) entities.JobResult
}

// MatrixOrchestratorConfig holds configuration for the matrix orchestrator
type MatrixOrchestratorConfig struct {
	Matrix    entities.MatrixConfig
	Provision entities.ProvisionConfig
	// OnJobDone is called once per finished job; calls are serialized
	OnJobDone func(entities.JobResult)
}

// MatrixOrchestrator runs every test of the matrix as an independent job
type MatrixOrchestrator struct {
	provisioner Provisioner
	invoker     TestInvoker
	matrix      *services.MatrixService
	config      MatrixOrchestratorConfig
	mu          sync.Mutex
}

// NewMatrixOrchestrator creates a new matrix orchestrator
func NewMatrixOrchestrator(provisioner Provisioner, invoker TestInvoker, config MatrixOrchestratorConfig) *MatrixOrchestrator {
	return &MatrixOrchestrator{
		provisioner: provisioner,
		invoker:     invoker,
		matrix:      services.NewMatrixService(config.Matrix),
		config:      config,
	}
}

// Run expands names into jobs and runs them in parallel. A failing job never cancels its
// siblings; only cancellation of ctx stops jobs that have not started.
// The returned error is reserved for invalid input; job failures are in the report.
func (o *MatrixOrchestrator) Run(ctx context.Context, names []string) (*entities.MatrixReport, error) {
	jobs, err := o.matrix.Expand(names)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to expand test matrix")
	}

	startTime := time.Now()
	report := &entities.MatrixReport{
		RunID:   uuid.NewString(),
		Total:   len(jobs),
		Results: make([]entities.JobResult, len(jobs)),
	}

	logger := ctxlog.From(ctx).With(slog.String("run_id", report.RunID))
	ctx = ctxlog.With(ctx, logger)
	logger.Info("starting test matrix", slog.Int("jobs", len(jobs)), slog.Int("concurrency", o.config.Matrix.Concurrency))

	var g errgroup.Group
	if o.config.Matrix.Concurrency > 0 {
		g.SetLimit(o.config.Matrix.Concurrency)
	}

	for _, job := range jobs {
		g.Go(func() error {
			result := o.runJob(ctx, job)
			report.Results[job.Index] = result
			o.notify(result)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		if r.Passed() {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.DurationSeconds = time.Since(startTime).Seconds()

	logger.Info("test matrix finished",
		slog.Int("passed", report.Passed),
		slog.Int("failed", report.Failed),
		slog.Float64("duration_seconds", report.DurationSeconds))

	return report, nil
}

// runJob provisions and invokes a single job under its own context
func (o *MatrixOrchestrator) runJob(parent context.Context, job entities.TestJob) entities.JobResult {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger := ctxlog.From(ctx).With(slog.String("test", job.Name))
	ctx = ctxlog.With(ctx, logger)

	if err := ctx.Err(); err != nil {
		return entities.JobResult{
			Name:     job.Name,
			Command:  job.Command,
			Status:   entities.JobCancelled,
			ExitCode: -1,
			Message:  "cancelled before start",
		}
	}

	startTime := time.Now()
	if err := o.provisioner.Provision(ctx, o.config.Provision); err != nil {
		logger.Error("provisioning failed", slog.Any("error", err))
		return entities.JobResult{
			Name:     job.Name,
			Command:  job.Command,
			Status:   entities.JobProvisionFailed,
			ExitCode: -1,
			Duration: time.Since(startTime),
			Message:  err.Error(),
		}
	}

	result := o.invoker.Invoke(ctx, job)
	if result.Passed() {
		logger.Info("test passed", slog.Duration("duration", result.Duration))
	} else {
		logger.Warn("test failed", slog.Int("exit_code", result.ExitCode), slog.String("status", string(result.Status)))
	}
	return result
}

func (o *MatrixOrchestrator) notify(result entities.JobResult) {
	if o.config.OnJobDone == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.config.OnJobDone(result)
}
