// Package review implements the Review Pipeline: escalating review passes
// that may edit files directly, converging on a clean pass or emitting
// unresolved-issue tickets (spec §4.7).
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/undercity/internal/modelclient"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/router"
)

// cleanMarker is the substring a review pass must emit to be considered
// clean when it also made no edits.
const cleanMarker = "LGTM"

// DefaultTiers is the escalating tier sequence for review, before
// truncation to the caller's configured maximum.
var DefaultTiers = []router.Tier{router.TierMid, router.TierMid, router.TierStrong}

// DefaultPassesPerTier is K from spec §4.7: 2 passes per tier, except the
// top allowed tier gets 3x (an Open Question resolved in favor of spending
// more review budget where there is no further escalation available).
const DefaultPassesPerTier = 2

// Dependencies bundles what a review run needs from the rest of the system.
type Dependencies struct {
	ModelClient  modelclient.Client
	Runner       VerifyRunner
	ModelForTier func(router.Tier) string
}

// VerifyRunner re-runs core verification (typecheck/test/lint) after a
// review pass makes edits.
type VerifyRunner interface {
	Verify(ctx context.Context, workspaceDir string) (passed bool, failingChecks []string)
}

// ToolExecutorFactory builds a fresh modelclient.ToolExecutor bound to a
// workspace for one review pass (the Worker's executor implementation is
// reused via this seam to avoid a review->worker import cycle).
type ToolExecutorFactory func(workspaceDir string) modelclient.ToolExecutor

// Result is the outcome of running the whole escalating review.
type Result struct {
	Converged     bool
	TierReached   router.Tier
	PassesRun     int
	Tickets       []models.TicketContent
	FocusedNotes  []string
}

// Run executes the escalating review pipeline against workspaceDir for
// task, truncated to maxTier (inclusive) from DefaultTiers.
func Run(ctx context.Context, deps Dependencies, makeExecutor ToolExecutorFactory, workspaceDir string, task models.Task, maxTier router.Tier) Result {
	tiers := truncateTiers(DefaultTiers, maxTier)

	var totalPasses int
	for i, tier := range tiers {
		isTopTier := i == len(tiers)-1
		k := DefaultPassesPerTier
		if isTopTier {
			k = DefaultPassesPerTier * 3
		}

		converged := false
		for pass := 0; pass < k; pass++ {
			totalPasses++
			edited, clean := runPass(ctx, deps, makeExecutor(workspaceDir), workspaceDir, task, tier)
			if edited {
				if passed, failing := deps.Runner.Verify(ctx, workspaceDir); !passed {
					// Edits introduced a regression; feed it back into the next pass via the prompt.
					task.Error = "review edits failed verification: " + strings.Join(failing, ", ")
					continue
				}
			}
			if clean && !edited {
				converged = true
				break
			}
		}

		if converged {
			result := Result{Converged: true, TierReached: tier, PassesRun: totalPasses}
			if isTopTier {
				result.FocusedNotes = runFocusedReview(ctx, deps, makeExecutor(workspaceDir), workspaceDir, task, tier)
			}
			return result
		}

		if isTopTier {
			return Result{
				Converged:   false,
				TierReached: tier,
				PassesRun:   totalPasses,
				Tickets:     buildUnresolvedTickets(task),
			}
		}
	}

	return Result{Converged: false, PassesRun: totalPasses, Tickets: buildUnresolvedTickets(task)}
}

func truncateTiers(tiers []router.Tier, maxTier router.Tier) []router.Tier {
	for i, t := range tiers {
		if t == maxTier {
			return tiers[:i+1]
		}
	}
	return tiers
}

// runPass issues one review call with git diff context and returns whether
// the pass edited files and whether its response carries the clean marker.
func runPass(ctx context.Context, deps Dependencies, executor modelclient.ToolExecutor, workspaceDir string, task models.Task, tier router.Tier) (edited, clean bool) {
	model := deps.ModelForTier(tier)
	prompt := fmt.Sprintf(
		"Review the changes made for task %q. Run `git diff HEAD` yourself to see them. "+
			"Directly fix any issue you find rather than only describing it. "+
			"If you find nothing to fix, reply with a line containing only %q.",
		task.Objective, cleanMarker,
	)

	events, err := deps.ModelClient.Run(ctx, modelclient.Request{
		Model:        model,
		SystemPrompt: "You are reviewing a diff produced by another agent for correctness, safety, and style.",
		Prompt:       prompt,
		MaxTurns:     10,
	}, executor)
	if err != nil {
		return false, false
	}

	var finalText string
	for event := range events {
		switch event.Type {
		case modelclient.EventContentBlockStart:
			if event.Tool != nil && (event.Tool.Name == "Write" || event.Tool.Name == "Edit") {
				edited = true
			}
		case modelclient.EventResult:
			finalText = event.Text
		}
	}

	clean = strings.Contains(finalText, cleanMarker)
	return edited, clean
}

var focusedLenses = []string{"security", "error handling", "correctness", "edge cases"}

// runFocusedReview runs one advisory pass per lens at the top allowed tier,
// collecting insights without editing.
func runFocusedReview(ctx context.Context, deps Dependencies, executor modelclient.ToolExecutor, workspaceDir string, task models.Task, tier router.Tier) []string {
	model := deps.ModelForTier(tier)
	var notes []string
	for _, lens := range focusedLenses {
		prompt := fmt.Sprintf("Review `git diff HEAD` for task %q through a %s lens only. Report findings; do not edit.", task.Objective, lens)
		events, err := deps.ModelClient.Run(ctx, modelclient.Request{
			Model:        model,
			SystemPrompt: "You provide advisory review notes only; you do not modify files.",
			Prompt:       prompt,
			MaxTurns:     5,
		}, executor)
		if err != nil {
			continue
		}
		var finalText string
		for event := range events {
			if event.Type == modelclient.EventResult {
				finalText = event.Text
			}
		}
		if finalText != "" {
			notes = append(notes, lens+": "+finalText)
		}
	}
	return notes
}

// buildUnresolvedTickets constructs a single ticket covering the unresolved
// review issues; its priority is derived from keyword matches in the task's recorded
// error/objective text (spec §4.7).
func buildUnresolvedTickets(task models.Task) []models.TicketContent {
	priority := priorityFromKeywords(task.Objective + " " + task.Error)
	return []models.TicketContent{
		{
			Description: fmt.Sprintf("Unresolved review issues for %q (priority: %s)", task.Objective, priority),
			Source:      models.TicketSourceAgent,
		},
	}
}

func priorityFromKeywords(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "security", "critical", "crash"):
		return "high"
	case containsAny(lower, "style", "naming"):
		return "low"
	default:
		return "medium"
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
