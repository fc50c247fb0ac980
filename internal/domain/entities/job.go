package entities

import "time"

// TestJob is one independent unit of the test matrix
type TestJob struct {
	Name    string
	Command string
	Index   int
	Env     map[string]string
}

// JobStatus is the terminal state of a matrix job
type JobStatus string

// Matrix job statuses
const (
	JobPassed          JobStatus = "passed"
	JobFailed          JobStatus = "failed"
	JobProvisionFailed JobStatus = "provision_failed"
	JobCancelled       JobStatus = "cancelled"
)

// JobResult is the outcome of running one TestJob
type JobResult struct {
	Name     string        `json:"name"`
	Command  string        `json:"command"`
	Status   JobStatus     `json:"status"`
	ExitCode int           `json:"exit_code"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Message  string        `json:"message,omitempty"`
}

// Passed reports whether the job succeeded
func (r JobResult) Passed() bool {
	return r.Status == JobPassed
}

// MatrixReport summarises a matrix run. Results keep the input order.
type MatrixReport struct {
	RunID           string      `json:"run_id"`
	Total           int         `json:"total"`
	Passed          int         `json:"passed"`
	Failed          int         `json:"failed"`
	Results         []JobResult `json:"results"`
	DurationSeconds float64     `json:"duration_seconds"`
}

// Success reports whether every job passed
func (r *MatrixReport) Success() bool {
	return r.Failed == 0
}
