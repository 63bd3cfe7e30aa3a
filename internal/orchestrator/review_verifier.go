package orchestrator

import (
	"context"

	"github.com/harrison/undercity/internal/worker"
)

// ReviewVerifier is the review.VerifyRunner implementation the orchestrator
// wires into the Review Pipeline: it re-runs the same verification commands
// the Worker itself uses, against a workspace a review pass just edited.
type ReviewVerifier struct {
	Runner   worker.CommandRunner
	Commands worker.VerificationCommands
}

// Verify runs the full verification pipeline and reports pass/fail plus the
// names of any blocking checks that failed.
func (v ReviewVerifier) Verify(ctx context.Context, workspaceDir string) (bool, []string) {
	report, err := worker.Verify(ctx, v.Runner, workspaceDir, v.Commands)
	if err != nil {
		return false, []string{"verify error: " + err.Error()}
	}
	return report.Passed(), report.FailingChecks()
}
