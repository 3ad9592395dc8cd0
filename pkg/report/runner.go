package report

import (
	"context"
	"os"

	"github.com/kilnworks/kiln/pkg/container"
	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// Runner executes the embedded test suite inside the running container,
// satisfying the orchestrator's TestRunner contract.
type Runner struct {
	rt  container.Runtime
	cmd []string
	log *telemetry.Logger
}

// NewRunner creates a test runner over a container runtime. cmd is the
// harness invocation prefix (e.g. the interpreter and module).
func NewRunner(rt container.Runtime, cmd []string, log *telemetry.Logger) *Runner {
	return &Runner{
		rt:  rt,
		cmd: cmd,
		log: log.NewComponentLogger("testrunner"),
	}
}

// Run executes the selected suite. It refuses to run against a non-running
// container; that refusal is distinguishable from a test failure.
func (r *Runner) Run(ctx context.Context, sel engine.TestSelection) (*engine.TestRunResult, error) {
	running, err := r.rt.IsRunning(ctx)
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, engine.NewRunnerUnavailableError("container is not running; tests not attempted")
	}

	argv := make([]string, 0, len(r.cmd)+len(sel.Modules)+2)
	argv = append(argv, r.cmd...)
	argv = append(argv, sel.Modules...)
	if sel.ContainerReportPath != "" {
		argv = append(argv, "--report", sel.ContainerReportPath)
	}

	// The report lands in the persistent data tree, so one left behind by
	// a previous run survives deployments. Clear it first or a crashed
	// harness would be indistinguishable from a completed one.
	if sel.HostReportPath != "" {
		if err := os.Remove(sel.HostReportPath); err != nil && !os.IsNotExist(err) {
			return nil, engine.NewInternalError("failed to clear stale test report", err)
		}
	}

	r.log.Debugf("running suite: %v", argv)
	res, err := r.rt.Exec(ctx, argv)
	if err != nil {
		return nil, err
	}

	result := &engine.TestRunResult{
		ExitCode: res.ExitCode,
		Output:   res.Stdout + res.Stderr,
	}
	// The report lands in the bind-mounted persistent data tree, so a
	// produced report is visible on the host even after the container
	// stops. A run that crashed the harness leaves no file behind.
	if sel.HostReportPath != "" {
		if _, err := os.Stat(sel.HostReportPath); err == nil {
			result.ReportPath = sel.HostReportPath
		}
	}
	return result, nil
}

// FileTranslator adapts the translate functions to the orchestrator's
// Translator contract.
type FileTranslator struct{}

// Summarize parses and translates the raw report at rawPath, returning its
// aggregate outcome.
func (FileTranslator) Summarize(rawPath string) (*engine.TestSummary, error) {
	n, err := TranslateFile(rawPath)
	if err != nil {
		return nil, err
	}
	return &engine.TestSummary{
		Status: n.Status,
		Total:  n.Summary.Total,
		Passed: n.Summary.Passed,
		Failed: n.Summary.Failed,
	}, nil
}

// WriteNormalized translates the raw report at rawPath and writes the
// normalized form to outPath.
func (FileTranslator) WriteNormalized(rawPath, outPath string) error {
	n, err := TranslateFile(rawPath)
	if err != nil {
		return err
	}
	return WriteNormalized(n, outPath)
}
