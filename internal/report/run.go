// Package report owns the TestRun record and the on-disk artifact
// layout of a run: the full command log, the stage-by-stage report,
// per-job workload output, and the collected kernel log tails.
package report

import (
	"sync"
	"time"

	"github.com/fabriclab/fabtest/internal/remote"
)

// Outcome is the final verdict of a run.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeSetupFailed       Outcome = "setup-failed"
	OutcomeVerifyMismatch    Outcome = "verification-mismatch"
	OutcomeWorkloadFailed    Outcome = "workload-failed"
	OutcomeCleanupIncomplete Outcome = "cleanup-incomplete"
)

// StageStatus records how one stage ended.
type StageStatus string

const (
	StageOK         StageStatus = "ok"
	StageFailed     StageStatus = "failed"
	StageRolledBack StageStatus = "rolled-back"
)

// StageRecord is one attempted stage in execution order.
type StageRecord struct {
	Name    string        `yaml:"name"`
	Status  StageStatus   `yaml:"status"`
	Error   string        `yaml:"error,omitempty"`
	Elapsed time.Duration `yaml:"elapsed"`
}

// TestRun collects everything observed during one orchestration. It is
// owned by a single run; the mutex only guards against the executor
// recording results from a timed-out command's goroutine.
type TestRun struct {
	mu sync.Mutex

	Scenario   string
	StartedAt  time.Time
	FinishedAt time.Time

	Stages  []StageRecord
	Results []remote.CommandResult

	Outcome  Outcome
	Warnings []string

	// Cleanup outcome, distinct from the run verdict.
	CleanupComplete bool
	CleanupRemoved  int
}

// NewTestRun starts a run record for a scenario.
func NewTestRun(scenario string) *TestRun {
	return &TestRun{
		Scenario:  scenario,
		StartedAt: time.Now(),
		Outcome:   OutcomeSuccess,
	}
}

// Record appends a command result to the log. Implements remote.Sink.
func (r *TestRun) Record(result *remote.CommandResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, *result)
}

// AddStage appends a stage record in execution order.
func (r *TestRun) AddStage(record StageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, record)
}

// MarkRolledBack flags a previously recorded stage as rolled back.
func (r *TestRun) MarkRolledBack(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Stages {
		if r.Stages[i].Name == name && r.Stages[i].Status == StageOK {
			r.Stages[i].Status = StageRolledBack
		}
	}
}

// AddWarning records a non-fatal problem for the final report.
func (r *TestRun) AddWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, msg)
}

// Fail records the run's root cause. Only the first failure sticks:
// later problems never mask it.
func (r *TestRun) Fail(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Outcome == OutcomeSuccess {
		r.Outcome = outcome
	}
}

// SetCleanup records the teardown outcome.
func (r *TestRun) SetCleanup(complete bool, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CleanupComplete = complete
	r.CleanupRemoved = removed
}

// Finalize stamps the end of the run.
func (r *TestRun) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// CommandCount returns how many command results were recorded.
func (r *TestRun) CommandCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Results)
}
