package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kilnworks/kiln/pkg/container"
	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

type fakeRuntime struct {
	running  bool
	execErr  error
	result   container.ExecResult
	execArgs []string
	onExec   func()
}

func (f *fakeRuntime) Check(context.Context) error         { return nil }
func (f *fakeRuntime) Quiesce(context.Context) error       { return nil }
func (f *fakeRuntime) BuildAndStart(context.Context) error { return nil }
func (f *fakeRuntime) IsRunning(context.Context) (bool, error) {
	return f.running, nil
}
func (f *fakeRuntime) Logs(context.Context, int) (string, error) { return "", nil }
func (f *fakeRuntime) Exec(_ context.Context, argv []string) (container.ExecResult, error) {
	f.execArgs = argv
	if f.onExec != nil {
		f.onExec()
	}
	return f.result, f.execErr
}

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestRunRefusesNonRunningContainer(t *testing.T) {
	rt := &fakeRuntime{running: false}
	r := NewRunner(rt, []string{"python", "-m", "pytest"}, testLogger(t))

	_, err := r.Run(context.Background(), engine.TestSelection{})
	if !engine.IsRunnerUnavailable(err) {
		t.Fatalf("expected RUNNER_UNAVAILABLE, got %v", err)
	}
	if rt.execArgs != nil {
		t.Error("test execution was attempted against a stopped container")
	}
}

func TestRunLightweightSelection(t *testing.T) {
	rt := &fakeRuntime{running: true}
	r := NewRunner(rt, []string{"python", "-m", "pytest"}, testLogger(t))

	res, err := r.Run(context.Background(), engine.TestSelection{
		Modules: []string{"tests/test_utilities.py"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}

	want := []string{"python", "-m", "pytest", "tests/test_utilities.py"}
	if len(rt.execArgs) != len(want) {
		t.Fatalf("argv = %v, want %v", rt.execArgs, want)
	}
	for i := range want {
		if rt.execArgs[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, rt.execArgs[i], want[i])
		}
	}
}

func TestRunFullSuiteReportDetection(t *testing.T) {
	dir := t.TempDir()
	hostReport := filepath.Join(dir, "test_report.json")

	rt := &fakeRuntime{running: true, result: container.ExecResult{ExitCode: 1}}
	r := NewRunner(rt, []string{"python", "-m", "pytest"}, testLogger(t))
	sel := engine.TestSelection{
		ContainerReportPath: "/app/data/test_report.json",
		HostReportPath:      hostReport,
	}

	// Runner crashed: nonzero exit, no report file.
	res, err := r.Run(context.Background(), sel)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ReportPath != "" {
		t.Errorf("report path = %q for a run that wrote nothing", res.ReportPath)
	}

	// Tests failed: nonzero exit, report written by the harness.
	rt.onExec = func() {
		if err := os.WriteFile(hostReport, []byte(`{"tests":1,"failures":1,"errors":0}`), 0644); err != nil {
			t.Fatalf("write report: %v", err)
		}
	}
	res, err = r.Run(context.Background(), sel)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ReportPath != hostReport {
		t.Errorf("report path = %q, want %q", res.ReportPath, hostReport)
	}

	// The report flag reaches the harness.
	last := rt.execArgs
	if last[len(last)-2] != "--report" || last[len(last)-1] != "/app/data/test_report.json" {
		t.Errorf("report flag missing from argv: %v", last)
	}
}

func TestRunClearsStaleReport(t *testing.T) {
	dir := t.TempDir()
	hostReport := filepath.Join(dir, "test_report.json")

	// A report from a previous run survives in the merge-preserved data
	// tree. A crashed harness must not resurface it as this run's result.
	if err := os.WriteFile(hostReport, []byte(`{"tests":9,"failures":0,"errors":0}`), 0644); err != nil {
		t.Fatalf("seed stale report: %v", err)
	}

	rt := &fakeRuntime{running: true, result: container.ExecResult{ExitCode: 2, Stderr: "segfault"}}
	r := NewRunner(rt, []string{"python", "-m", "pytest"}, testLogger(t))

	res, err := r.Run(context.Background(), engine.TestSelection{
		ContainerReportPath: "/app/data/test_report.json",
		HostReportPath:      hostReport,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ReportPath != "" {
		t.Errorf("crashed run reported stale report %q as its own", res.ReportPath)
	}
	if _, err := os.Stat(hostReport); !os.IsNotExist(err) {
		t.Error("stale report file still present after the run")
	}
}
