// Package container wraps the lifecycle of the single managed service
// instance behind a Runtime interface, so the orchestrator can be tested
// against a fake runtime.
package container

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// ExecResult captures the outcome of a command run against the runtime.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runtime manages exactly one named service instance. At most one instance
// is live per service name; the orchestrator enforces this by always
// quiescing before starting, relying on the container runtime's own
// per-name exclusivity rather than a lock file.
type Runtime interface {
	// Check verifies the runtime's external tooling is available.
	// Reported before any side effect is attempted.
	Check(ctx context.Context) error

	// Quiesce stops and removes the instance. An already-stopped or
	// absent instance is a no-op, never an error; every mode calls this
	// unconditionally first.
	Quiesce(ctx context.Context) error

	// BuildAndStart rebuilds the instance image from the current
	// workspace contents and starts exactly one instance.
	BuildAndStart(ctx context.Context) error

	// IsRunning reports whether the instance process is currently up.
	IsRunning(ctx context.Context) (bool, error)

	// Logs returns the most recent tail lines of instance output.
	Logs(ctx context.Context, tail int) (string, error)

	// Exec runs a command inside the running instance.
	Exec(ctx context.Context, argv []string) (ExecResult, error)
}

// CommandRunner abstracts process execution for the compose runtime.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (ExecResult, error)
}

// ComposeRuntime drives the instance through the Docker Compose v2 CLI.
type ComposeRuntime struct {
	service     string
	container   string
	composeFile string
	projectDir  string
	runner      CommandRunner
	log         *telemetry.Logger
}

// ComposeOptions configures a ComposeRuntime.
type ComposeOptions struct {
	// Service is the compose service name.
	Service string

	// Container is the container instance name the service binds to.
	Container string

	// ComposeFile is the compose file path.
	ComposeFile string

	// ProjectDir is the working directory for compose invocations.
	ProjectDir string

	// Runner overrides process execution; nil uses os/exec.
	Runner CommandRunner
}

// NewComposeRuntime creates a runtime for one compose-managed service.
func NewComposeRuntime(opts ComposeOptions, log *telemetry.Logger) *ComposeRuntime {
	runner := opts.Runner
	if runner == nil {
		runner = &execRunner{dir: opts.ProjectDir}
	}
	return &ComposeRuntime{
		service:     opts.Service,
		container:   opts.Container,
		composeFile: opts.ComposeFile,
		projectDir:  opts.ProjectDir,
		runner:      runner,
		log:         log.NewComponentLogger("container"),
	}
}

// Check verifies the docker CLI is on PATH.
func (r *ComposeRuntime) Check(_ context.Context) error {
	if _, err := exec.LookPath("docker"); err != nil {
		return engine.NewPreconditionError("docker CLI not found on PATH", err)
	}
	return nil
}

// Quiesce stops and removes the service instance. Failures from an absent
// or already-stopped instance are swallowed: quiescing a dead instance is
// success by definition.
func (r *ComposeRuntime) Quiesce(ctx context.Context) error {
	stop, err := r.compose(ctx, "stop", r.service)
	if err != nil {
		return engine.NewPreconditionError("failed to invoke compose stop", err)
	}
	if stop.ExitCode != 0 {
		r.log.Debugf("compose stop exited %d: %s", stop.ExitCode, strings.TrimSpace(stop.Stderr))
	}

	rm, err := r.compose(ctx, "rm", "-f", r.service)
	if err != nil {
		return engine.NewPreconditionError("failed to invoke compose rm", err)
	}
	if rm.ExitCode != 0 {
		r.log.Debugf("compose rm exited %d: %s", rm.ExitCode, strings.TrimSpace(rm.Stderr))
	}

	r.log.Debug("service quiesced")
	return nil
}

// BuildAndStart rebuilds the image and starts the instance. The operating
// logic lives in the bind-mounted workspace, not baked into the image, so
// the build is cheap and the started code is whatever sync just produced.
func (r *ComposeRuntime) BuildAndStart(ctx context.Context) error {
	res, err := r.compose(ctx, "up", "-d", "--build", r.service)
	if err != nil {
		return engine.NewPreconditionError("failed to invoke compose up", err)
	}
	if res.ExitCode != 0 {
		return engine.NewContainerCrashedError(
			"compose up failed: "+strings.TrimSpace(res.Stderr), nil)
	}
	return nil
}

// IsRunning inspects the container state. An absent container is reported
// as not running, not as an error.
func (r *ComposeRuntime) IsRunning(ctx context.Context) (bool, error) {
	res, err := r.runner.Run(ctx, "docker", "inspect", "-f", "{{.State.Running}}", r.container)
	if err != nil {
		return false, engine.NewPreconditionError("failed to invoke docker inspect", err)
	}
	if res.ExitCode != 0 {
		return false, nil
	}
	return strings.TrimSpace(res.Stdout) == "true", nil
}

// Logs returns the tail of the container output, stdout and stderr
// interleaved the way the daemon recorded them.
func (r *ComposeRuntime) Logs(ctx context.Context, tail int) (string, error) {
	res, err := r.runner.Run(ctx, "docker", "logs", "--tail", tailArg(tail), r.container)
	if err != nil {
		return "", engine.NewPreconditionError("failed to invoke docker logs", err)
	}
	return res.Stdout + res.Stderr, nil
}

// Exec runs a command inside the running instance without a TTY.
func (r *ComposeRuntime) Exec(ctx context.Context, argv []string) (ExecResult, error) {
	args := append([]string{"exec", "-T", r.service}, argv...)
	res, err := r.compose(ctx, args...)
	if err != nil {
		return ExecResult{}, engine.NewPreconditionError("failed to invoke compose exec", err)
	}
	return res, nil
}

func (r *ComposeRuntime) compose(ctx context.Context, args ...string) (ExecResult, error) {
	full := append([]string{"compose", "-f", r.composeFile}, args...)
	return r.runner.Run(ctx, "docker", full...)
}

func tailArg(n int) string {
	if n <= 0 {
		return "all"
	}
	return strconv.Itoa(n)
}
