package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/crucible/internal/domain-orchestrators"
	"github.com/ochairo/crucible/internal/domain/entities"
)

func (a *app) cmdMatrix() *cli.Command {
	return &cli.Command{
		Name:  "matrix",
		Usage: "Run every test of the matrix as an independent job",
		Description: `Examples:
  crucible matrix
  crucible matrix --tests '["tests/smoke","tests/upgrade"]'
  crucible matrix --tests @tests.json --concurrency 4 --report matrix-report.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tests", Usage: "JSON array of test names or @file.json (default: matrix.tests)", Sources: cli.EnvVars("CRUCIBLE_TESTS")},
			&cli.IntFlag{Name: "concurrency", Usage: "Maximum jobs running at once, 0 for unbounded (default: matrix.concurrency)"},
			&cli.IntFlag{Name: "timeout", Usage: "Per-job timeout in minutes, 0 for none (default: matrix.timeout_minutes)"},
			&cli.BoolFlag{Name: "stream", Usage: "Stream job output prefixed with the test name"},
			&cli.StringFlag{Name: "report", Usage: "Write the JSON report to this file"},
			&cli.BoolFlag{Name: "quiet", Usage: "Only print the summary"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := a.loadProject(ctx)
			if err != nil {
				return err
			}

			names := proj.pipeline.Matrix.Tests
			if input := cmd.String("tests"); input != "" {
				names, err = parseTestList(input)
				if err != nil {
					return usageError(err)
				}
			}
			if len(names) == 0 {
				fmt.Fprintln(a.stdout, "No tests to run")
				return nil
			}

			matrixCfg := proj.pipeline.Matrix
			if cmd.IsSet("concurrency") {
				matrixCfg.Concurrency = int(cmd.Int("concurrency"))
			}
			if cmd.IsSet("timeout") {
				matrixCfg.TimeoutMinutes = int(cmd.Int("timeout"))
			}

			var stream io.Writer
			if cmd.Bool("stream") {
				stream = a.stdout
			}

			executor := gateways.NewScriptExecutor()
			invoker := gateways.NewTestInvoker(executor, gateways.TestInvokerConfig{
				WorkingDir: proj.provisionConfig().WorkingDir,
				Timeout:    time.Duration(matrixCfg.TimeoutMinutes) * time.Minute,
				Stream:     stream,
			})

			quiet := cmd.Bool("quiet")
			orch := orchestrators.NewMatrixOrchestrator(proj.provisioner(executor), invoker, orchestrators.MatrixOrchestratorConfig{
				Matrix:    matrixCfg,
				Provision: proj.provisionConfig(),
				OnJobDone: func(r entities.JobResult) {
					if !quiet {
						printJobResult(a.stdout, r)
					}
				},
			})

			if !quiet {
				fmt.Fprintf(a.stdout, "🧪 Running %d tests\n\n", len(names))
			}
			report, err := orch.Run(ctx, names)
			if err != nil {
				return usageError(err)
			}

			if path := cmd.String("report"); path != "" {
				if err := writeJSON(path, report); err != nil {
					fmt.Fprintf(a.stderr, "Warning: failed to write report: %v\n", err)
				}
			}

			printMatrixSummary(a.stdout, report)
			if !report.Success() {
				return failed(fmt.Errorf("%d of %d tests failed", report.Failed, report.Total))
			}
			return nil
		},
	}
}

// parseTestList accepts a JSON array literal or @file containing one
func parseTestList(input string) ([]string, error) {
	data := []byte(input)
	if filename, ok := strings.CutPrefix(input, "@"); ok {
		//nolint:gosec // G304: user explicitly provides the test list file
		fileData, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read tests file: %w", err)
		}
		data = fileData
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse tests JSON: %w", err)
	}
	return names, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

func printJobResult(w io.Writer, r entities.JobResult) {
	switch r.Status {
	case entities.JobPassed:
		fmt.Fprintf(w, "  %s %s (%s)\n", color.GreenString("✅ PASS"), r.Name, r.Duration.Round(time.Millisecond))
	case entities.JobProvisionFailed:
		fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("🧱 PROVISION FAILED"), r.Name, r.Message)
	case entities.JobCancelled:
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("⏹️  CANCELLED"), r.Name)
	default:
		fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("❌ FAIL"), r.Name, r.Message)
	}
}

func printMatrixSummary(w io.Writer, report *entities.MatrixReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "📊 Matrix Summary (run %s)\n", report.RunID)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "%s %d\n", color.GreenString("✅ Passed:"), report.Passed)
	fmt.Fprintf(w, "%s %d\n", color.RedString("❌ Failed:"), report.Failed)
	for _, r := range report.Results {
		if r.Passed() {
			continue
		}
		line := fmt.Sprintf("    ✗ %s [%s]", r.Name, r.Status)
		if r.Status == entities.JobFailed && r.ExitCode >= 0 {
			line += fmt.Sprintf(" exit code %d", r.ExitCode)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "⏱️  Duration: %.2f seconds\n", report.DurationSeconds)
}
