package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/gitrepo"
	"github.com/harrison/undercity/internal/modelclient"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/router"
	"github.com/harrison/undercity/internal/tracker"
)

// TierBudgets are the per-tier attempt budgets and the global attempt cap
// (spec §4.6.1 item 9, defaults).
type TierBudgets struct {
	Cheap  int
	Mid    int
	Strong int
	Global int
}

// DefaultTierBudgets matches the spec's stated defaults.
func DefaultTierBudgets() TierBudgets {
	return TierBudgets{Cheap: 2, Mid: 3, Strong: 2, Global: 7}
}

func (b TierBudgets) forTier(tier router.Tier) int {
	switch tier {
	case router.TierCheap:
		return b.Cheap
	case router.TierMid:
		return b.Mid
	case router.TierStrong:
		return b.Strong
	default:
		return b.Global
	}
}

// Outcome is the terminal disposition of one Worker run.
type Outcome struct {
	Status        models.TaskOutcome
	Error         *models.TaskError
	ModifiedFiles []string
	Attempts      []models.AttemptRecord
	Subtasks      []models.Task
	Duration      time.Duration
	// FinalText is the last model turn's closing message on a merged
	// outcome, scanned by the orchestrator for learning candidates.
	FinalText string
	// Tier is the router tier the outcome was reached at, so the caller can
	// bound the Review Pipeline's escalation to the same ceiling (spec
	// §4.7: review tier depends on the route decision already reached).
	Tier router.Tier
	// Tickets is set by the orchestrator, not the Worker itself, when the
	// Review Pipeline fails to converge at the top allowed tier and the
	// outcome is downgraded from Merged to CompleteWithTickets.
	Tickets []models.TicketContent
}

// Dependencies bundles everything a Worker needs to drive one task, supplied
// by the Orchestrator.
type Dependencies struct {
	Board        *board.Board
	Tracker      *tracker.Tracker
	ModelClient  modelclient.Client
	Runner       CommandRunner
	Baseline     *BaselineCache
	Commands     VerificationCommands
	ModelForTier func(router.Tier) string
	Budgets      TierBudgets
	// Learnings supplies relevant prior-task facts/gotchas for the prompt's
	// Learnings section. Nil is fine; the section is simply omitted.
	Learnings LearningSource
}

// LearningSource looks up Learnings relevant to an objective, most relevant
// first, capped at limit.
type LearningSource interface {
	Relevant(objective string, limit int) []LearningRef
}

// Worker drives exactly one Task to terminal state inside one Workspace.
type Worker struct {
	deps         Dependencies
	task         models.Task
	workspaceDir string
	trunkDir     string
	baseCommit   string
	checkpoint   *CheckpointWriter

	attempts      []models.AttemptRecord
	consecutiveNoWrites int
}

// New constructs a Worker for task, rooted at workspaceDir (a checkout
// produced by the Workspace Manager).
func New(deps Dependencies, task models.Task, workspaceDir, trunkDir, baseCommit string) *Worker {
	return &Worker{
		deps:         deps,
		task:         task,
		workspaceDir: workspaceDir,
		trunkDir:     trunkDir,
		baseCommit:   baseCommit,
		checkpoint:   NewCheckpointWriter(workspaceDir, task.ID, "worker-"+task.ID, baseCommit),
	}
}

// Run drives the full phase sequence described in spec §4.6.1.
func (w *Worker) Run(ctx context.Context) Outcome {
	start := time.Now()

	if w.task.IsDecomposed {
		return w.fail(models.NewTaskError(w.task.ID, models.ErrPermanentFail, "worker scheduled against a decomposed parent task", nil), start)
	}

	baseline := w.deps.Baseline.Verify(ctx, w.deps.Runner, w.trunkDir, w.baseCommit, w.deps.Commands.Typecheck)
	if !baseline.Passed {
		return w.fail(models.NewTaskError(w.task.ID, models.ErrBaselineFail, "trunk fails typecheck before any model call: "+baseline.Output, nil), start)
	}

	decision := router.RouteTask(w.task.Objective)

	if decision.Tier == router.TierLocalTools {
		if outcome, handled := w.tryLocalTool(ctx, decision, start); handled {
			return outcome
		}
		// Local tool didn't resolve it outright; fall through to the agent loop at cheap tier.
		decision.Tier = router.TierCheap
	}

	return w.runTier(ctx, decision.Tier, nil, start)
}

// runTier executes the agent loop / verify cycle at tier, retrying
// within the tier's attempt budget and escalating to the next tier on
// exhaustion, until the global attempt cap is reached.
func (w *Worker) runTier(ctx context.Context, tier router.Tier, postMortem *string, start time.Time) Outcome {
	budget := w.deps.Budgets.forTier(tier)

	for attempt := 1; attempt <= budget; attempt++ {
		if len(w.attempts) >= w.deps.Budgets.Global {
			return w.exhausted(start)
		}

		model := w.deps.ModelForTier(tier)
		w.checkpoint.Transition(models.PhaseExecuting, len(w.attempts)+1, model)

		result, err := w.runAgentLoop(ctx, tier, model, postMortem)
		if err != nil {
			w.recordAttempt(model, false, []string{string(models.ErrAgentError)}, start)
			continue
		}

		if result.marker.Kind == models.MarkerAlreadyComplete || result.marker.Kind == models.MarkerInvalidTarget {
			w.recordAttempt(model, true, nil, start)
			return Outcome{
				Status:   outcomeForMarker(result.marker.Kind),
				Attempts: w.attempts,
				Duration: time.Since(start),
			}
		}

		if result.marker.Kind == models.MarkerNeedsDecomposition {
			subIDs, decompErr := w.deps.Board.DecomposeInto(w.task.ID, []string{result.marker.Reason})
			if decompErr == nil {
				subtasks := make([]models.Task, 0, len(subIDs))
				for _, id := range subIDs {
					if t, err := w.deps.Board.Get(id); err == nil {
						subtasks = append(subtasks, t)
					}
				}
				w.recordAttempt(model, false, []string{string(models.ErrVagueTask)}, start)
				return Outcome{Status: models.OutcomeDecomposed, Subtasks: subtasks, Attempts: w.attempts, Duration: time.Since(start)}
			}
		}

		// Three consecutive model turns with no file write and no terminal
		// marker means the agent can't make progress on this objective at
		// all (as opposed to MarkerNeedsDecomposition, where the agent itself
		// names a reason to split the task) — fail it outright rather than
		// let it retry forever or silently complete.
		if w.consecutiveNoWrites >= 3 {
			w.recordAttempt(model, false, []string{string(models.ErrVagueTask)}, start)
			return Outcome{
				Status:   models.OutcomeFailed,
				Error:    models.NewTaskError(w.task.ID, models.ErrVagueTask, "three consecutive model turns made no file changes and returned no terminal marker", nil),
				Attempts: w.attempts,
				Duration: time.Since(start),
			}
		}

		w.checkpoint.Transition(models.PhaseVerifying, len(w.attempts)+1, model)
		report, _ := Verify(ctx, w.deps.Runner, w.workspaceDir, w.deps.Commands)

		if !report.Passed() {
			categories := report.FailingChecks()
			if len(categories) == 0 {
				categories = []string{string(models.ErrNoChanges)}
			}
			w.recordAttempt(model, false, categories, start)
			summary := "verification failed: " + strings.Join(categories, ", ")
			postMortem = &summary
			continue
		}

		if err := CommitWorkspace(w.workspaceDir, w.task); err != nil {
			w.recordAttempt(model, false, []string{string(models.ErrUnknown)}, start)
			summary := "commit failed: " + err.Error()
			postMortem = &summary
			continue
		}

		w.recordAttempt(model, true, nil, start)
		return Outcome{
			Status:        models.OutcomeMerged,
			ModifiedFiles: w.deps.Tracker.GetModifiedFiles(w.task.ID),
			Attempts:      w.attempts,
			Duration:      time.Since(start),
			FinalText:     result.finalText,
			Tier:          tier,
		}
	}

	next := nextTier(tier)
	if next == "" {
		return w.exhausted(start)
	}
	summary := fmt.Sprintf("escalated from %s after %d attempts", tier, budget)
	return w.runTier(ctx, next, &summary, start)
}

// CommitWorkspace stages and commits everything a passing verification left
// behind, so the workspace's branch has something for the Merge Queue to
// merge. A no-op (not an error) if there is nothing staged, since a
// local-tool pass (or a review pass that made no edits) may leave nothing
// new to commit. Exported so the orchestrator can re-commit after a Review
// Pipeline pass edits the workspace.
func CommitWorkspace(workspaceDir string, task models.Task) error {
	repo := gitrepo.Open(workspaceDir)
	dirty, err := repo.HasChanges()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if err := repo.StageAll(); err != nil {
		return err
	}
	return repo.Commit(task.Objective)
}

func nextTier(tier router.Tier) router.Tier {
	switch tier {
	case router.TierCheap:
		return router.TierMid
	case router.TierMid:
		return router.TierStrong
	default:
		return ""
	}
}

type agentLoopResult struct {
	marker    models.AgentTerminalMarker
	finalText string
}

// runAgentLoop streams one model turn with tool access, tracking file
// accesses and detecting terminal markers and no-write stalls.
func (w *Worker) runAgentLoop(ctx context.Context, tier router.Tier, model string, postMortem *string) (agentLoopResult, error) {
	executor := NewToolExecutor(w.task.ID, w.task.ID, w.workspaceDir, w.trunkDir, w.deps.Tracker, w.deps.Runner)

	var learnings []LearningRef
	if w.deps.Learnings != nil {
		learnings = w.deps.Learnings.Relevant(w.task.Objective, 3)
	}

	prompt := BuildPrompt(PromptInputs{
		Task:       w.task,
		WorkerName: "worker-" + w.task.ID,
		PostMortem: postMortem,
		Learnings:  learnings,
	})

	maxTurns := maxTurnsForTier(tier)
	events, err := w.deps.ModelClient.Run(ctx, modelclient.Request{
		Model:        model,
		SystemPrompt: efficiencyToolsPrompt,
		Prompt:       prompt,
		MaxTurns:     maxTurns,
	}, executor)
	if err != nil {
		return agentLoopResult{}, err
	}

	wroteAnyFile := false
	var finalText string
	for event := range events {
		w.checkpoint.Tick(models.PhaseExecuting, len(w.attempts)+1, model)
		switch event.Type {
		case modelclient.EventContentBlockStart:
			if event.Tool != nil && (event.Tool.Name == "Write" || event.Tool.Name == "Edit") {
				wroteAnyFile = true
			}
		case modelclient.EventResult:
			finalText = event.Text
		case modelclient.EventError:
			return agentLoopResult{}, fmt.Errorf("model stream error: %s", event.Text)
		}
	}

	marker := models.ParseAgentTerminalMarker(finalText)

	if !wroteAnyFile && marker.Kind == models.MarkerNone {
		w.consecutiveNoWrites++
	} else {
		w.consecutiveNoWrites = 0
	}

	return agentLoopResult{marker: marker, finalText: finalText}, nil
}

func maxTurnsForTier(tier router.Tier) int {
	switch tier {
	case router.TierCheap:
		return 15
	case router.TierMid:
		return 30
	case router.TierStrong:
		return 50
	default:
		return 15
	}
}

func (w *Worker) tryLocalTool(ctx context.Context, decision router.Decision, start time.Time) (Outcome, bool) {
	// Local-tool objectives map 1:1 onto a verification command (format,
	// lint, typecheck, test, build, import-organize); running the matching
	// command directly is cheaper than a model round trip.
	report, err := Verify(ctx, w.deps.Runner, w.workspaceDir, w.deps.Commands)
	if err != nil || !report.Passed() {
		return Outcome{}, false
	}
	return Outcome{
		Status:        models.OutcomeMerged,
		ModifiedFiles: w.deps.Tracker.GetModifiedFiles(w.task.ID),
		Duration:      time.Since(start),
		Tier:          router.TierLocalTools,
	}, true
}

func (w *Worker) recordAttempt(model string, success bool, categories []string, start time.Time) {
	w.attempts = append(w.attempts, models.AttemptRecord{
		Attempt:         len(w.attempts) + 1,
		Model:           model,
		DurationMs:      time.Since(start).Milliseconds(),
		Success:         success,
		ErrorCategories: categories,
	})
}

func (w *Worker) fail(err *models.TaskError, start time.Time) Outcome {
	return Outcome{
		Status:   models.OutcomeFailed,
		Error:    err,
		Duration: time.Since(start),
	}
}

func (w *Worker) exhausted(start time.Time) Outcome {
	var last string
	if len(w.attempts) > 0 {
		last = strings.Join(w.attempts[len(w.attempts)-1].ErrorCategories, ", ")
	}
	return w.fail(models.NewTaskError(w.task.ID, models.ErrUnknown, "attempt budget exhausted: "+last, nil), start)
}

func outcomeForMarker(kind models.AgentTerminalMarkerKind) models.TaskOutcome {
	if kind == models.MarkerAlreadyComplete {
		return models.OutcomeAlreadyComplete
	}
	return models.OutcomeFailed
}
