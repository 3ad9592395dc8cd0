package container

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// scriptedRunner replays canned results keyed by the joined command line and
// records every invocation in order.
type scriptedRunner struct {
	results map[string]ExecResult
	calls   []string
}

func (s *scriptedRunner) Run(_ context.Context, name string, args ...string) (ExecResult, error) {
	cmd := name + " " + strings.Join(args, " ")
	s.calls = append(s.calls, cmd)
	if res, ok := s.results[cmd]; ok {
		return res, nil
	}
	return ExecResult{}, nil
}

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func newTestRuntime(t *testing.T, runner CommandRunner) *ComposeRuntime {
	t.Helper()
	return NewComposeRuntime(ComposeOptions{
		Service:     "agent",
		Container:   "agent-runtime",
		ComposeFile: "docker-compose.yml",
		Runner:      runner,
	}, testLogger(t))
}

func TestQuiesceAbsentInstanceSucceeds(t *testing.T) {
	runner := &scriptedRunner{results: map[string]ExecResult{
		"docker compose -f docker-compose.yml stop agent":  {ExitCode: 1, Stderr: "no such service"},
		"docker compose -f docker-compose.yml rm -f agent": {ExitCode: 1, Stderr: "no such service"},
	}}
	rt := newTestRuntime(t, runner)

	if err := rt.Quiesce(context.Background()); err != nil {
		t.Fatalf("quiesce of an absent instance: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Errorf("expected stop then rm, got %v", runner.calls)
	}
}

func TestQuiesceInvocationOrder(t *testing.T) {
	runner := &scriptedRunner{}
	rt := newTestRuntime(t, runner)

	if err := rt.Quiesce(context.Background()); err != nil {
		t.Fatalf("quiesce: %v", err)
	}
	want := []string{
		"docker compose -f docker-compose.yml stop agent",
		"docker compose -f docker-compose.yml rm -f agent",
	}
	for i, cmd := range want {
		if runner.calls[i] != cmd {
			t.Errorf("call %d = %q, want %q", i, runner.calls[i], cmd)
		}
	}
}

// brokenRunner cannot start any process at all.
type brokenRunner struct{}

func (brokenRunner) Run(context.Context, string, ...string) (ExecResult, error) {
	return ExecResult{}, errors.New("fork/exec: no such file or directory")
}

func TestInvocationFailureIsPrecondition(t *testing.T) {
	rt := newTestRuntime(t, brokenRunner{})
	ctx := context.Background()

	if err := rt.Quiesce(ctx); !engine.IsPrecondition(err) {
		t.Errorf("quiesce invocation failure = %v, want PRECONDITION_FAILED", err)
	}
	if err := rt.BuildAndStart(ctx); !engine.IsPrecondition(err) {
		t.Errorf("build invocation failure = %v, want PRECONDITION_FAILED", err)
	}
	if _, err := rt.IsRunning(ctx); !engine.IsPrecondition(err) {
		t.Errorf("inspect invocation failure = %v, want PRECONDITION_FAILED", err)
	}
	if _, err := rt.Logs(ctx, 10); !engine.IsPrecondition(err) {
		t.Errorf("logs invocation failure = %v, want PRECONDITION_FAILED", err)
	}
	if _, err := rt.Exec(ctx, []string{"true"}); !engine.IsPrecondition(err) {
		t.Errorf("exec invocation failure = %v, want PRECONDITION_FAILED", err)
	}
	if engine.IsContainerCrashed(rt.Quiesce(ctx)) {
		t.Error("invocation failure misreported as a container crash")
	}
}

func TestBuildAndStartFailure(t *testing.T) {
	runner := &scriptedRunner{results: map[string]ExecResult{
		"docker compose -f docker-compose.yml up -d --build agent": {
			ExitCode: 1, Stderr: "failed to solve: dockerfile parse error",
		},
	}}
	rt := newTestRuntime(t, runner)

	err := rt.BuildAndStart(context.Background())
	if !engine.IsContainerCrashed(err) {
		t.Fatalf("expected CONTAINER_CRASHED, got %v", err)
	}
	if !strings.Contains(err.Error(), "dockerfile parse error") {
		t.Errorf("build stderr not surfaced: %v", err)
	}
}

func TestIsRunning(t *testing.T) {
	tests := []struct {
		name string
		res  ExecResult
		want bool
	}{
		{"running", ExecResult{Stdout: "true\n"}, true},
		{"stopped", ExecResult{Stdout: "false\n"}, false},
		{"absent", ExecResult{ExitCode: 1, Stderr: "No such object"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{results: map[string]ExecResult{
				"docker inspect -f {{.State.Running}} agent-runtime": tt.res,
			}}
			rt := newTestRuntime(t, runner)

			got, err := rt.IsRunning(context.Background())
			if err != nil {
				t.Fatalf("is running: %v", err)
			}
			if got != tt.want {
				t.Errorf("running = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogsTailArgument(t *testing.T) {
	runner := &scriptedRunner{results: map[string]ExecResult{
		"docker logs --tail 50 agent-runtime": {Stdout: "boot ok\n"},
	}}
	rt := newTestRuntime(t, runner)

	out, err := rt.Logs(context.Background(), 50)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "boot ok\n" {
		t.Errorf("logs = %q", out)
	}

	if _, err := rt.Logs(context.Background(), 0); err != nil {
		t.Fatalf("logs all: %v", err)
	}
	last := runner.calls[len(runner.calls)-1]
	if last != "docker logs --tail all agent-runtime" {
		t.Errorf("zero tail should request everything, got %q", last)
	}
}

func TestExecRunsInsideService(t *testing.T) {
	runner := &scriptedRunner{results: map[string]ExecResult{
		"docker compose -f docker-compose.yml exec -T agent python -m pytest": {ExitCode: 1},
	}}
	rt := newTestRuntime(t, runner)

	res, err := rt.Exec(context.Background(), []string{"python", "-m", "pytest"})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
}
