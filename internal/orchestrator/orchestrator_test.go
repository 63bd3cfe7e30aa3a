package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/merge"
	"github.com/harrison/undercity/internal/modelclient"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/review"
	"github.com/harrison/undercity/internal/router"
	"github.com/harrison/undercity/internal/store"
	"github.com/harrison/undercity/internal/tracker"
	"github.com/harrison/undercity/internal/worker"
	"github.com/harrison/undercity/internal/workspace"
)

type fakeModelClient struct{}

func (fakeModelClient) Run(ctx context.Context, req modelclient.Request, executor modelclient.ToolExecutor) (<-chan modelclient.Event, error) {
	out := make(chan modelclient.Event, 4)
	go func() {
		defer close(out)
		call := modelclient.ToolCall{ID: "1", Name: "Write", Input: map[string]any{"file_path": "NOTES.md", "content": "done\n"}}
		out <- modelclient.Event{Type: modelclient.EventContentBlockStart, Tool: &call}
		executor.Execute(ctx, call)
		out <- modelclient.Event{Type: modelclient.EventResult, Text: "wrote the file"}
	}()
	return out, nil
}

type alwaysPassRunner struct{}

func (alwaysPassRunner) Run(ctx context.Context, dir, command string) (string, error) {
	return "ok", nil
}

func initTrunk(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-b", "main")
	run("config", "user.name", "tester")
	run("config", "user.email", "tester@localhost")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644))
	run("add", "-A")
	run("commit", "-m", "initial commit")
	return dir
}

func TestRunDispatchesTaskAndMergesIt(t *testing.T) {
	trunk := initTrunk(t)
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	b := board.New(s)

	_, err = b.AddTask("add release notes", 0, nil)
	require.NoError(t, err)

	manager, err := workspace.New(trunk, filepath.Join(t.TempDir(), "worktrees"))
	require.NoError(t, err)

	tr := tracker.New(trunk)
	mq := merge.New(trunk, manager, TrunkVerifier{Runner: alwaysPassRunner{}, Commands: worker.VerificationCommands{}})

	deps := Dependencies{
		Board:   b,
		Manager: manager,
		Tracker: tr,
		MergeQueue: mq,
		WorkerDeps: worker.Dependencies{
			Board:        b,
			Tracker:      tr,
			ModelClient:  fakeModelClient{},
			Runner:       alwaysPassRunner{},
			Baseline:     worker.NewBaselineCache(),
			Commands:     worker.VerificationCommands{Typecheck: "true"},
			ModelForTier: func(router.Tier) string { return "test-model" },
			Budgets:      worker.DefaultTierBudgets(),
		},
		Log: zerolog.Nop(),
	}

	o := New(Config{TrunkDir: trunk, MaxConcurrent: 1}, deps)
	summary, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	require.Equal(t, 1, summary.Merged)

	tasks, err := b.All()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

// reviewAwareModelClient answers the worker's agent loop with a file write,
// and answers the Review Pipeline's passes (distinguished by system prompt)
// either clean (no edits, LGTM) or perpetually dirty, so the two cases below
// can drive convergence and non-convergence through the real Run path.
type reviewAwareModelClient struct {
	reviewConverges bool
}

func (c reviewAwareModelClient) Run(ctx context.Context, req modelclient.Request, executor modelclient.ToolExecutor) (<-chan modelclient.Event, error) {
	out := make(chan modelclient.Event, 4)
	switch {
	case strings.Contains(req.SystemPrompt, "reviewing a diff"):
		go func() {
			defer close(out)
			text := "still has an issue"
			if c.reviewConverges {
				text = "LGTM"
			}
			out <- modelclient.Event{Type: modelclient.EventResult, Text: text}
		}()
	case strings.Contains(req.SystemPrompt, "advisory review notes"):
		go func() {
			defer close(out)
			out <- modelclient.Event{Type: modelclient.EventResult, Text: "nothing notable"}
		}()
	default:
		go func() {
			defer close(out)
			call := modelclient.ToolCall{ID: "1", Name: "Write", Input: map[string]any{"file_path": "NOTES.md", "content": "done\n"}}
			out <- modelclient.Event{Type: modelclient.EventContentBlockStart, Tool: &call}
			executor.Execute(ctx, call)
			out <- modelclient.Event{Type: modelclient.EventResult, Text: "wrote the file"}
		}()
	}
	return out, nil
}

func newReviewDispatchDeps(t *testing.T, reviewConverges bool) (string, Dependencies, *board.Board) {
	t.Helper()
	trunk := initTrunk(t)
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	b := board.New(s)

	_, err = b.AddTask("add release notes", 0, nil)
	require.NoError(t, err)

	manager, err := workspace.New(trunk, filepath.Join(t.TempDir(), "worktrees"))
	require.NoError(t, err)

	tr := tracker.New(trunk)
	mq := merge.New(trunk, manager, TrunkVerifier{Runner: alwaysPassRunner{}, Commands: worker.VerificationCommands{}})
	client := reviewAwareModelClient{reviewConverges: reviewConverges}

	deps := Dependencies{
		Board:      b,
		Manager:    manager,
		Tracker:    tr,
		MergeQueue: mq,
		WorkerDeps: worker.Dependencies{
			Board:        b,
			Tracker:      tr,
			ModelClient:  client,
			Runner:       alwaysPassRunner{},
			Baseline:     worker.NewBaselineCache(),
			Commands:     worker.VerificationCommands{Typecheck: "true"},
			ModelForTier: func(router.Tier) string { return "test-model" },
			Budgets:      worker.DefaultTierBudgets(),
		},
		ReviewDeps: review.Dependencies{
			ModelClient:  client,
			Runner:       ReviewVerifier{Runner: alwaysPassRunner{}, Commands: worker.VerificationCommands{}},
			ModelForTier: func(router.Tier) string { return "test-model" },
		},
		Log: zerolog.Nop(),
	}
	return trunk, deps, b
}

func TestRunReviewConvergesBeforeHandingToMergeQueue(t *testing.T) {
	trunk, deps, b := newReviewDispatchDeps(t, true)

	o := New(Config{TrunkDir: trunk, MaxConcurrent: 1}, deps)
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Merged)

	tasks, err := b.All()
	require.NoError(t, err)
	require.Len(t, tasks, 1, "a converging review must not create any unresolved-issue tickets")
}

func TestRunReviewNonConvergenceCreatesUnresolvedTickets(t *testing.T) {
	trunk, deps, b := newReviewDispatchDeps(t, false)

	o := New(Config{TrunkDir: trunk, MaxConcurrent: 1}, deps)
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Merged, "the task still merges; a non-converging review downgrades to complete-with-tickets, not failure")

	tasks, err := b.All()
	require.NoError(t, err)
	require.Len(t, tasks, 2, "a non-converging top-tier review must push one unresolved-issue ticket as a new Task")

	var original, ticket models.Task
	for _, task := range tasks {
		if task.ParentID == "" {
			original = task
		} else {
			ticket = task
		}
	}
	require.Equal(t, original.ID, ticket.ParentID)
	require.NotNil(t, ticket.Ticket)
}
