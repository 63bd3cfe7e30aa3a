// Package orchestrator drives the end-to-end loop: batch task selection,
// workspace creation, worker dispatch, merge integration, and health
// monitoring (spec §4.10).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/health"
	"github.com/harrison/undercity/internal/learning"
	"github.com/harrison/undercity/internal/logger"
	"github.com/harrison/undercity/internal/merge"
	"github.com/harrison/undercity/internal/metrics"
	"github.com/harrison/undercity/internal/modelclient"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/review"
	"github.com/harrison/undercity/internal/router"
	"github.com/harrison/undercity/internal/tracker"
	"github.com/harrison/undercity/internal/worker"
	"github.com/harrison/undercity/internal/workspace"
)

// DefaultMaxConcurrent is the default number of tasks dispatched to workers
// at once (spec §4.10 defaults).
const DefaultMaxConcurrent = 3

// Config holds the orchestrator's tunables.
type Config struct {
	TrunkDir      string
	BaseRef       string
	MaxConcurrent int
}

// Dependencies bundles every subsystem the orchestrator coordinates.
type Dependencies struct {
	Board       *board.Board
	Manager     *workspace.Manager
	Tracker     *tracker.Tracker
	MergeQueue  *merge.Queue
	Health      *health.Monitor
	WorkerDeps  worker.Dependencies
	ReviewDeps  review.Dependencies
	Log         zerolog.Logger
	// Console is the optional human-facing TTY logger. Nil is fine (e.g. in
	// tests or when running headless); every call site guards against it.
	Console *logger.ConsoleLogger
	// Metrics appends one record per terminal task outcome to metrics.jsonl.
	// Nil is fine; every call site guards against it.
	Metrics *metrics.Recorder
	// Gauges mirrors live counts into the in-process prometheus registry.
	// Nil is fine; every call site guards against it.
	Gauges *metrics.Registry
	// Learning proposes and persists Learning entries from a merged task's
	// final assistant text. Nil is fine; every call site guards against it.
	Learning *learning.Store
}

// Summary is what Run returns: one result per task the orchestrator
// dispatched, plus aggregate counts.
type Summary struct {
	Results []TaskSummary
	Merged  int
	Failed  int
	Elapsed time.Duration
}

// TaskSummary is one task's terminal disposition, as seen by the orchestrator.
type TaskSummary struct {
	TaskID  string
	Outcome models.TaskOutcome
	Error   string
}

// Orchestrator runs the main loop over a fixed Dependencies set.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	mu       sync.Mutex
	draining bool
}

// New constructs an Orchestrator. cfg.MaxConcurrent defaults to
// DefaultMaxConcurrent when zero.
func New(cfg Config, deps Dependencies) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.BaseRef == "" {
		cfg.BaseRef = "HEAD"
	}
	if deps.Learning != nil && deps.WorkerDeps.Learnings == nil {
		deps.WorkerDeps.Learnings = NewLearningSource(deps.Learning)
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Drain tells the running loop to stop accepting new batches once in-flight
// work finishes, instead of picking up more tasks.
func (o *Orchestrator) Drain() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.draining = true
}

func (o *Orchestrator) isDraining() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.draining
}

// Run resumes any crashed workspaces, starts the Health Monitor, and drives
// the main loop until the board has no more runnable work or ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	resumed, err := o.resumeFromCrash()
	if err != nil {
		return Summary{}, fmt.Errorf("resume from crash: %w", err)
	}
	if len(resumed) > 0 {
		o.deps.Log.Info().Int("count", len(resumed)).Msg("orchestrator: resumed in-flight workspaces from a prior crash")
	}

	if o.deps.Health != nil {
		o.deps.Health.Start()
		defer o.deps.Health.Stop()
	}

	go func() {
		<-ctx.Done()
		o.Drain()
	}()

	summary := Summary{}
	for {
		if o.isDraining() {
			break
		}

		batch, err := o.deps.Board.GetReadyTasksForBatch(o.cfg.MaxConcurrent)
		if err != nil {
			return summary, fmt.Errorf("select batch: %w", err)
		}

		progressed := o.drainMergeQueue()
		if o.deps.Gauges != nil && o.deps.MergeQueue != nil {
			o.deps.Gauges.MergeQueueDepth.Set(float64(o.deps.MergeQueue.GetQueueSummary().Pending))
		}

		if len(batch) == 0 {
			if !progressed {
				break
			}
			continue
		}

		if o.deps.Console != nil {
			o.deps.Console.LogBatchStart(batch)
		}
		if o.deps.Gauges != nil {
			o.deps.Gauges.ActiveWorkers.Set(float64(len(batch)))
		}

		results := o.dispatchBatch(ctx, batch)
		if o.deps.Gauges != nil {
			o.deps.Gauges.ActiveWorkers.Set(0)
		}
		for _, r := range results {
			summary.Results = append(summary.Results, r)
			if r.Outcome == models.OutcomeFailed {
				summary.Failed++
			} else {
				summary.Merged++
			}
		}
	}

	// Drain whatever the last batch queued for merge before returning.
	for o.drainMergeQueue() {
	}

	summary.Elapsed = time.Since(start)
	if o.deps.Console != nil {
		o.deps.Console.LogSummary(len(summary.Results), summary.Merged, summary.Failed, summary.Elapsed)
	}
	return summary, nil
}

// resumeFromCrash rehydrates workspaces left on disk from a prior process
// exit. It does not re-dispatch them; it only logs what it found so the
// operator can decide (re-queue via board.Retry, or leave for forensics).
func (o *Orchestrator) resumeFromCrash() ([]models.Workspace, error) {
	active, err := o.deps.Manager.ListActive()
	if err != nil {
		return nil, err
	}
	var resumed []models.Workspace
	for _, ws := range active {
		if _, err := worker.ReadCheckpoint(ws.Path); err == nil {
			resumed = append(resumed, ws)
		}
	}
	return resumed, nil
}

func (o *Orchestrator) dispatchBatch(ctx context.Context, batch []models.Task) []TaskSummary {
	type dispatched struct {
		task models.Task
		ws   models.Workspace
		out  worker.Outcome
	}

	outCh := make(chan dispatched, len(batch))
	var wg sync.WaitGroup

	for _, task := range batch {
		ws, err := o.deps.Manager.Create(task.ID, o.cfg.BaseRef)
		if err != nil {
			o.deps.Log.Error().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to create workspace")
			outCh <- dispatched{task: task, out: worker.Outcome{Status: models.OutcomeFailed, Error: models.NewTaskError(task.ID, models.ErrUnknown, err.Error(), nil)}}
			continue
		}
		if err := o.deps.Board.MarkInProgress(task.ID, ws.BranchName); err != nil {
			o.deps.Log.Error().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to mark task in progress")
		}
		if o.deps.Console != nil {
			o.deps.Console.LogTaskStart(task, string(router.RouteTask(task.Objective).Tier))
		}

		wg.Add(1)
		go func(task models.Task, ws models.Workspace) {
			defer wg.Done()
			w := worker.New(o.deps.WorkerDeps, task, ws.Path, o.cfg.TrunkDir, ws.BaseCommit)
			out := w.Run(ctx)
			if out.Status == models.OutcomeMerged {
				out = o.runReview(ctx, task, ws, out)
			}
			outCh <- dispatched{task: task, ws: ws, out: out}
		}(task, ws)
	}

	wg.Wait()
	close(outCh)

	var summaries []TaskSummary
	for d := range outCh {
		summaries = append(summaries, o.settle(d.task, d.ws, d.out))
	}
	return summaries
}

// settle records a worker's outcome onto the board and, for a clean merge,
// hands the workspace's branch to the Merge Queue instead of merging it
// directly (spec §4.8: only the Merge Queue ever integrates into trunk). A
// task handed to the Merge Queue stays in_progress on the board until
// drainMergeQueue observes the queue actually land it.
func (o *Orchestrator) settle(task models.Task, ws models.Workspace, out worker.Outcome) TaskSummary {
	summary := TaskSummary{TaskID: task.ID, Outcome: out.Status}

	if o.deps.Console != nil {
		o.deps.Console.LogTaskOutcome(task.ID, out.Status, len(out.Attempts), out.Duration)
	}
	if o.deps.Metrics != nil {
		errText := ""
		if out.Error != nil {
			errText = out.Error.Message
		}
		rec := metrics.FromOutcome(task, out.Status, out.Attempts, out.ModifiedFiles, errText, time.Now().Add(-out.Duration), out.Duration)
		if err := o.deps.Metrics.Record(rec); err != nil {
			o.deps.Log.Warn().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to append metrics record")
		}
	}

	if o.deps.Learning != nil && (out.Status == models.OutcomeMerged || out.Status == models.OutcomeCompleteWithTickets) && out.FinalText != "" {
		for _, candidate := range learning.ExtractCandidates(task.ID, out.FinalText) {
			if err := o.deps.Learning.Add(context.Background(), candidate); err != nil {
				o.deps.Log.Warn().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to persist learning candidate")
			}
		}
	}

	switch out.Status {
	case models.OutcomeMerged, models.OutcomeCompleteWithTickets:
		if len(out.Tickets) > 0 {
			if _, err := o.deps.Board.AddTickets(task.ID, out.Tickets); err != nil {
				o.deps.Log.Error().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to create unresolved-review tickets")
			}
		}
		if o.deps.MergeQueue != nil && ws.BranchName != "" {
			o.deps.MergeQueue.Add(ws.BranchName, task.ID, "worker-"+task.ID, task.ID, ws.Path)
			break
		}
		if err := o.deps.Board.MarkComplete(task.ID); err != nil {
			o.deps.Log.Error().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to mark task complete")
		}
	case models.OutcomeAlreadyComplete:
		_ = o.deps.Board.MarkComplete(task.ID)
		if o.deps.Manager != nil {
			_ = o.deps.Manager.Destroy(ws, workspace.DestroyOptions{Keep: false})
		}
	case models.OutcomeDecomposed:
		if o.deps.Manager != nil {
			_ = o.deps.Manager.Destroy(ws, workspace.DestroyOptions{Keep: false})
		}
	default:
		errText := ""
		if out.Error != nil {
			errText = out.Error.Message
			summary.Error = errText
		}
		if err := o.deps.Board.MarkFailed(task.ID, errText); err != nil {
			o.deps.Log.Error().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to mark task failed")
		}
		if o.deps.Manager != nil {
			_ = o.deps.Manager.Destroy(ws, workspace.DestroyOptions{Keep: true})
		}
	}

	return summary
}

// drainMergeQueue ticks the Merge Queue until it reports no further
// progress, returning whether it processed anything at all.
func (o *Orchestrator) drainMergeQueue() bool {
	if o.deps.MergeQueue == nil {
		return false
	}
	any := false
	for {
		item := o.deps.MergeQueue.Tick()
		if item == nil {
			return any
		}
		any = true
		o.deps.Log.Info().Str("taskId", item.TaskID).Str("status", string(item.Status)).Msg("orchestrator: merge queue processed item")
		if o.deps.Console != nil {
			o.deps.Console.LogMergeStatus(item.TaskID, item.Status, item.RetryCount)
		}

		switch item.Status {
		case models.MergeStatusMerged:
			if err := o.deps.Board.MarkComplete(item.TaskID); err != nil {
				o.deps.Log.Error().Err(err).Str("taskId", item.TaskID).Msg("orchestrator: failed to mark merged task complete")
			}
		case models.MergeStatusExhausted:
			if err := o.deps.Board.MarkFailed(item.TaskID, "merge queue exhausted retries: "+item.LastError); err != nil {
				o.deps.Log.Error().Err(err).Str("taskId", item.TaskID).Msg("orchestrator: failed to mark exhausted merge as failed")
			}
		}
	}
}

// ToolExecutorFactory adapts the worker package's concrete ToolExecutor to
// review.ToolExecutorFactory, bound to a fixed task/tracker pair.
func ToolExecutorFactory(taskID string, trunkDir string, tr *tracker.Tracker, runner worker.CommandRunner) review.ToolExecutorFactory {
	return func(workspaceDir string) modelclient.ToolExecutor {
		return worker.NewToolExecutor(taskID, taskID, workspaceDir, trunkDir, tr, runner)
	}
}

// ReviewAfterVerify runs the Review Pipeline against a workspace that just
// passed verification, before it is handed to the Merge Queue. Orchestrated
// separately from the main loop since review tier depends on the route
// decision's tier already reached for the task.
func (o *Orchestrator) ReviewAfterVerify(ctx context.Context, task models.Task, ws models.Workspace, maxTier router.Tier) review.Result {
	makeExecutor := ToolExecutorFactory(task.ID, o.cfg.TrunkDir, o.deps.Tracker, o.deps.WorkerDeps.Runner)
	return review.Run(ctx, o.deps.ReviewDeps, makeExecutor, ws.Path, task, maxTier)
}

// ReviewCeiling maps the tier a worker reached to the highest review.DefaultTiers
// entry allowed for it (spec §4.7: "review passes capped by tier; simple
// tasks cap at mid"). review.DefaultTiers only contains Mid and Strong, so a
// local-tools or cheap outcome must be mapped onto Mid rather than passed
// through: review.truncateTiers falls back to the full tier list when its
// maxTier argument isn't present in DefaultTiers at all, which would let a
// simple task's review escalate all the way to Strong. Exported so cmd.work
// can apply the same mapping for its single-task debug path.
func ReviewCeiling(tier router.Tier) router.Tier {
	if tier == router.TierStrong {
		return router.TierStrong
	}
	return router.TierMid
}

// runReview runs the Review Pipeline against a workspace whose worker just
// reached OutcomeMerged, before that workspace is handed to the Merge
// Queue (spec §4.6.1 step 8). Any edits the review makes are re-committed
// so the Merge Queue merges them along with the worker's own changes. A
// non-converging top-tier pass downgrades the outcome to
// CompleteWithTickets rather than Merged, carrying the generated tickets
// for settle to turn into new board Tasks.
func (o *Orchestrator) runReview(ctx context.Context, task models.Task, ws models.Workspace, out worker.Outcome) worker.Outcome {
	if o.deps.ReviewDeps.ModelClient == nil {
		return out
	}

	result := o.ReviewAfterVerify(ctx, task, ws, ReviewCeiling(out.Tier))
	if err := worker.CommitWorkspace(ws.Path, task); err != nil {
		o.deps.Log.Warn().Err(err).Str("taskId", task.ID).Msg("orchestrator: failed to commit review edits")
	}
	if len(result.FocusedNotes) > 0 {
		o.deps.Log.Info().Str("taskId", task.ID).Strs("notes", result.FocusedNotes).Msg("orchestrator: review focused-pass notes")
	}

	if !result.Converged {
		out.Status = models.OutcomeCompleteWithTickets
		out.Tickets = result.Tickets
	}
	return out
}
