package orchestrator

import (
	"context"

	"github.com/harrison/undercity/internal/worker"
)

// TrunkVerifier is the merge.Verifier implementation the orchestrator wires
// into the Merge Queue: it re-runs typecheck and test on trunk itself, after
// a branch has just been merged in, before accepting the merge.
type TrunkVerifier struct {
	Runner   worker.CommandRunner
	Commands worker.VerificationCommands
}

// VerifyTrunk runs typecheck then test directly against trunkDir.
func (v TrunkVerifier) VerifyTrunk(trunkDir string) (bool, string) {
	ctx := context.Background()
	if v.Commands.Typecheck != "" {
		if out, err := v.Runner.Run(ctx, trunkDir, v.Commands.Typecheck); err != nil {
			return false, "typecheck: " + out
		}
	}
	if v.Commands.Test != "" {
		if out, err := v.Runner.Run(ctx, trunkDir, v.Commands.Test); err != nil {
			return false, "test: " + out
		}
	}
	return true, ""
}
