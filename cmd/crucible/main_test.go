package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/domain/entities"
)

const testPipeline = `project_name: oxidizr
matrix:
  tests: ["tests/smoke", "tests/smoke test"]
  command: test {{ quote .Name }} != tests/broken
release:
  build:
    binary: oxidizr
    command: mkdir -p out && printf '%s' {{ quote .Target.Triple }} > out/{{ .Binary }}-{{ .Target.Triple }}
    output: out/{{ .Binary }}-{{ .Target.Triple }}
    targets:
      - os: linux
        arch: amd64
        triple: x86_64-unknown-linux-gnu
      - os: linux
        arch: arm64
        triple: aarch64-unknown-linux-gnu
  changelog:
    disable: true
`

func writePipeline(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "crucible.yml"), []byte(content), 0600))
	return dir
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"crucible", "--log-level", "error"}, args...), &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestExitCode(t *testing.T) {
	gt.Equal(t, exitCode(nil), exitOK)
	gt.Equal(t, exitCode(failed(errors.New("boom"))), exitFailure)
	gt.Equal(t, exitCode(usageError(errors.New("bad flag"))), exitUsage)
	gt.Equal(t, exitCode(errors.New("flag provided but not defined")), exitUsage)
	gt.Equal(t, exitCode(cli.Exit("wrapped", 3)), 3)
}

func TestParseTestList(t *testing.T) {
	t.Run("literal", func(t *testing.T) {
		names, err := parseTestList(`["a","b"]`)
		gt.NoError(t, err)
		gt.A(t, names).Length(2)
		gt.Equal(t, names[1], "b")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tests.json")
		gt.NoError(t, os.WriteFile(path, []byte(`["x"]`), 0600))

		names, err := parseTestList("@" + path)
		gt.NoError(t, err)
		gt.A(t, names).Length(1)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := parseTestList(`{"name":"a"}`)
		gt.Error(t, err)

		_, err = parseTestList("@/nonexistent/tests.json")
		gt.Error(t, err)
	})
}

func TestCLI_List(t *testing.T) {
	dir := writePipeline(t, testPipeline)

	res := runCLI(t, "--dir", dir, "list")
	gt.Equal(t, res.code, exitOK)
	gt.True(t, strings.Contains(res.stdout, "Tests (2 total)"))
	gt.True(t, strings.Contains(res.stdout, "test tests/smoke != tests/broken"))
	gt.True(t, strings.Contains(res.stdout, "test 'tests/smoke test' != tests/broken"))
	gt.True(t, strings.Contains(res.stdout, "Targets (2 total)"))
	gt.True(t, strings.Contains(res.stdout, "aarch64-unknown-linux-gnu"))
}

func TestCLI_MissingPipeline(t *testing.T) {
	res := runCLI(t, "--dir", t.TempDir(), "list")
	gt.Equal(t, res.code, exitUsage)
	gt.True(t, strings.Contains(res.stderr, "pipeline file not found"))
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	dir := writePipeline(t, testPipeline)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"crucible", "--log-level", "loud", "--dir", dir, "list"}, &stdout, &stderr)
	gt.Equal(t, code, exitUsage)
}

func TestCLI_Matrix(t *testing.T) {
	dir := writePipeline(t, testPipeline)

	t.Run("all pass", func(t *testing.T) {
		res := runCLI(t, "--dir", dir, "matrix")
		gt.Equal(t, res.code, exitOK)
		gt.True(t, strings.Contains(res.stdout, "Passed: 2"))
	})

	t.Run("one failure keeps the others", func(t *testing.T) {
		report := filepath.Join(t.TempDir(), "report.json")
		res := runCLI(t, "--dir", dir, "matrix",
			"--tests", `["tests/a","tests/broken","tests/c"]`,
			"--report", report)
		gt.Equal(t, res.code, exitFailure)

		//nolint:gosec // G304: test file
		data, err := os.ReadFile(report)
		gt.NoError(t, err)

		var decoded entities.MatrixReport
		gt.NoError(t, json.Unmarshal(data, &decoded))
		gt.Equal(t, decoded.Total, 3)
		gt.Equal(t, decoded.Passed, 2)
		gt.Equal(t, decoded.Results[1].Status, entities.JobFailed)
		gt.Equal(t, decoded.Results[1].ExitCode, 1)
		gt.Equal(t, decoded.Results[2].Status, entities.JobPassed)
	})

	t.Run("duplicate test names", func(t *testing.T) {
		res := runCLI(t, "--dir", dir, "matrix", "--tests", `["a","a"]`)
		gt.Equal(t, res.code, exitUsage)
		gt.True(t, strings.Contains(res.stderr, "duplicate test name"))
	})
}

func TestCLI_Version(t *testing.T) {
	dir := writePipeline(t, testPipeline)

	res := runCLI(t, "--dir", dir, "version", "--snapshot", "1.2.3")
	gt.Equal(t, res.code, exitOK)
	gt.True(t, strings.Contains(res.stdout, "version=1.2.4-next"))
	gt.True(t, strings.Contains(res.stdout, "tag=v1.2.4-next"))
	gt.True(t, strings.Contains(res.stdout, "prerelease=true"))

	res = runCLI(t, "--dir", dir, "version", "--tag", "1.0.0")
	gt.Equal(t, res.code, exitOK)
	gt.Equal(t, strings.TrimSpace(res.stdout), "v1.0.0")

	res = runCLI(t, "--dir", dir, "version", "banana")
	gt.Equal(t, res.code, exitUsage)
}

func TestCLI_ReleaseVerifyValidate(t *testing.T) {
	dir := writePipeline(t, testPipeline)
	dist := filepath.Join(dir, "dist")

	res := runCLI(t, "--dir", dir, "release", "--version", "v1.0.0")
	gt.Equal(t, res.code, exitOK)
	gt.True(t, strings.Contains(res.stdout, "oxidizr_linux_x86_64.tar.gz"))

	for _, name := range []string{"checksums.txt", "RELEASE_NOTES.md", "metadata.json", "oxidizr_linux_aarch64.tar.gz"} {
		_, err := os.Stat(filepath.Join(dist, name))
		gt.NoError(t, err)
	}

	res = runCLI(t, "--dir", dir, "verify")
	gt.Equal(t, res.code, exitOK)
	gt.True(t, strings.Contains(res.stdout, "Checksums verified"))

	res = runCLI(t, "--dir", dir, "validate-release", "1.0.0")
	gt.Equal(t, res.code, exitOK)
	gt.True(t, strings.Contains(res.stdout, "READY"))

	gt.NoError(t, os.WriteFile(filepath.Join(dist, "oxidizr_linux_aarch64.tar.gz"), []byte("tampered"), 0600))
	res = runCLI(t, "--dir", dir, "verify")
	gt.Equal(t, res.code, exitFailure)
	gt.True(t, strings.Contains(res.stdout, "FAILED"))

	gt.NoError(t, os.Remove(filepath.Join(dist, "oxidizr_linux_aarch64.tar.gz")))
	res = runCLI(t, "--dir", dir, "validate-release", "--quiet", "1.0.0")
	gt.Equal(t, res.code, exitFailure)
}

func TestCLI_ReleaseRequiresVersion(t *testing.T) {
	dir := writePipeline(t, testPipeline)

	res := runCLI(t, "--dir", dir, "release")
	gt.Equal(t, res.code, exitUsage)
}

func TestCLI_BuildFailureLeavesDistEmpty(t *testing.T) {
	dir := writePipeline(t, strings.Replace(testPipeline, "mkdir -p out &&", "exit 101;", 1))

	res := runCLI(t, "--dir", dir, "build", "--version", "1.0.0")
	gt.Equal(t, res.code, exitFailure)
	gt.True(t, strings.Contains(res.stdout, "nothing was published"))

	entries, err := os.ReadDir(filepath.Join(dir, "dist"))
	gt.NoError(t, err)
	gt.A(t, entries).Length(0)
}
