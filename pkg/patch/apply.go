// Package patch applies an externally produced patch file to the source
// tree. It is a thin contract over the local patch(1) utility, never a
// general diff engine, and never touches the workspace.
package patch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kilnworks/kiln/pkg/container"
	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// Result is the outcome of a patch application.
type Result struct {
	// Applied is true when every hunk applied cleanly.
	Applied bool

	// Output is the patch utility's combined output, kept for manual
	// reconciliation after a partial apply.
	Output string
}

// Applier applies patch files against the source tree.
type Applier struct {
	srcDir string
	runner container.CommandRunner
	log    *telemetry.Logger
}

// NewApplier creates an applier rooted at the source tree. runner may be
// nil to use os/exec.
func NewApplier(srcDir string, runner container.CommandRunner, log *telemetry.Logger) *Applier {
	return &Applier{
		srcDir: srcDir,
		runner: runner,
		log:    log.NewComponentLogger("patch"),
	}
}

// Apply applies the patch file to the source tree. Paths inside the patch
// are rooted one level above the tree, so one leading segment is stripped.
//
// The operation is atomic per file but not per invocation: a non-zero
// result from patch(1) is surfaced as a partial apply with the output
// attached, and the caller reconciles rejected hunks by hand.
func (a *Applier) Apply(ctx context.Context, patchFile string) (*Result, error) {
	if _, err := exec.LookPath("patch"); err != nil {
		return nil, engine.NewPreconditionError("patch utility not found on PATH", err)
	}
	if info, err := os.Stat(a.srcDir); err != nil || !info.IsDir() {
		return nil, engine.NewPreconditionError(
			fmt.Sprintf("source tree %s does not exist", a.srcDir), err)
	}
	abs, err := filepath.Abs(patchFile)
	if err != nil {
		return nil, engine.NewPreconditionError("failed to resolve patch file path", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, engine.NewPreconditionError(
			fmt.Sprintf("patch file %s does not exist", patchFile), err)
	}

	runner := a.runner
	if runner == nil {
		runner = defaultRunner{}
	}

	a.log.Infof("applying %s to %s", patchFile, a.srcDir)
	res, err := runner.Run(ctx, "patch", "-p1", "-N", "-d", a.srcDir, "-i", abs)
	if err != nil {
		return nil, engine.NewPreconditionError("failed to invoke patch utility", err)
	}

	output := res.Stdout + res.Stderr
	if res.ExitCode != 0 {
		return &Result{Applied: false, Output: output},
			engine.NewPartialPatchError(
				"patch applied with rejected hunks: "+strings.TrimSpace(output), nil)
	}
	return &Result{Applied: true, Output: output}, nil
}

// defaultRunner runs commands through os/exec.
type defaultRunner struct{}

func (defaultRunner) Run(ctx context.Context, name string, args ...string) (container.ExecResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := container.ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}
