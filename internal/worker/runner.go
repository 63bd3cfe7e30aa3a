// Package worker implements the Worker: drives a single Task from baseline
// verification through the agent loop, verification, review, and
// retry/escalation to a terminal state (spec §4.6).
package worker

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts shell command execution so verification steps are
// testable without a real shell.
type CommandRunner interface {
	Run(ctx context.Context, dir, command string) (output string, err error)
}

// ShellCommandRunner runs commands via the system shell in a given
// directory.
type ShellCommandRunner struct{}

// Run executes command via `sh -c` with cwd set to dir, returning combined
// stdout/stderr.
func (ShellCommandRunner) Run(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
