package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// execRunner runs commands through os/exec, capturing both output streams.
type execRunner struct {
	dir string
}

// Run executes a command and returns its captured output and exit code.
// A non-zero exit is reported in the result, not as an error; an error
// means the process could not be started at all.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if r.dir != "" {
		cmd.Dir = r.dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return result, nil
}
