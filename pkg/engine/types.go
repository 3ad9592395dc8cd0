// Package engine sequences the deployment state machine for the managed
// agent service: quiesce, sync, lockdown, build, start, verify. It owns the
// classified error taxonomy and the collaborator contracts the concrete
// workspace, container and test-runner implementations satisfy.
package engine

import (
	"time"

	"github.com/kilnworks/kiln/pkg/stores"
)

// State is a position in the deployment state machine.
type State string

const (
	StateIdle      State = "idle"
	StateQuiescing State = "quiescing"
	StateSyncing   State = "syncing"
	StateLocking   State = "permission-locking"
	StateBuilding  State = "building"
	StateStarting  State = "starting"
	StateVerifying State = "verifying"
	StateRunning   State = "running"
	StateCrashed   State = "crashed"
	StateStopped   State = "stopped"
)

// Mode is a named fixed path through the state machine.
type Mode string

const (
	// ModeDeploy is the standard deploy: replace logic, merge data,
	// lock down, start, smoke-check.
	ModeDeploy Mode = "deploy"

	// ModeTestDeploy runs the full suite and never leaves the service
	// running.
	ModeTestDeploy Mode = "test-deploy"

	// ModeFullReset force-overwrites all data before a standard deploy,
	// discarding accumulated agent state intentionally.
	ModeFullReset Mode = "full-reset"

	// ModeTaskReset force-overwrites one named data file before a
	// standard deploy.
	ModeTaskReset Mode = "task-reset"

	// ModeClean wipes the workspace with no container action.
	ModeClean Mode = "clean"
)

// TestSelection picks which test modules run and where the structured
// report lands.
type TestSelection struct {
	// Modules restricts the run to a fixed module set; empty runs the
	// full suite.
	Modules []string

	// ContainerReportPath, when set, asks the harness for a structured
	// report at that in-container path.
	ContainerReportPath string

	// HostReportPath is where the same report is visible on the host.
	HostReportPath string
}

// TestRunResult is the outcome of one suite run.
type TestRunResult struct {
	// ExitCode is zero only when every case passed.
	ExitCode int

	// Output is the harness's combined console output.
	Output string

	// ReportPath is the host path of the produced report, or "" when
	// the run left none behind. A nonzero exit with no report means the
	// runner itself crashed rather than tests failing.
	ReportPath string
}

// TestSummary carries the aggregate outcome of a translated report.
type TestSummary struct {
	Status string
	Total  int
	Passed int
	Failed int
}

// Result is the outcome of one orchestrator mode run.
type Result struct {
	// RunID identifies this run in logs and the history store.
	RunID string

	// Mode is the mode that ran.
	Mode Mode

	// State is the final state machine position.
	State State

	// Tests is the translated test outcome, when tests ran to a report.
	Tests *TestSummary

	// ReportPath is the host-visible normalized report location, when
	// one was written.
	ReportPath string

	// CrashLogs is the container log tail captured after a post-start
	// crash; the failure's root cause is only visible there.
	CrashLogs string

	// Duration is the wall-clock mode duration.
	Duration time.Duration

	// Err is the classified failure, nil on success. A standard deploy
	// with failing smoke tests is not a failure.
	Err error
}

// historyOf converts a result into its history store record.
func historyOf(res *Result, startedAt time.Time) *stores.Deploy {
	d := &stores.Deploy{
		ID:        res.RunID,
		Mode:      string(res.Mode),
		State:     string(res.State),
		StartedAt: startedAt,
	}
	if res.Err != nil {
		msg := res.Err.Error()
		d.Error = &msg
	}
	if res.Tests != nil {
		d.TestsTotal = &res.Tests.Total
		d.TestsPassed = &res.Tests.Passed
		d.TestsFailed = &res.Tests.Failed
	}
	if res.ReportPath != "" {
		d.ReportPath = &res.ReportPath
	}
	return d
}
