package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/store"
)

func newBoard(t *testing.T) *Board {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(s)
}

func TestAddPlanResolvesDependsOnPosToTaskIDs(t *testing.T) {
	b := newBoard(t)

	created, err := b.AddPlan([]PlanTaskSpec{
		{Objective: "build the config loader", Priority: 1},
		{Objective: "wire the config loader into main", Priority: 0, DependsOnPos: []int{1}},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.Empty(t, created[0].DependsOn)
	assert.Equal(t, []string{created[0].ID}, created[1].DependsOn)
}

func TestAddTaskRejectsCycle(t *testing.T) {
	b := newBoard(t)

	first, err := b.AddTask("add logging middleware", 0, nil)
	require.NoError(t, err)

	second, err := b.AddTask("wire middleware into router", 0, nil)
	require.NoError(t, err)

	// Manually wire a cycle: first depends on second, second depends on first.
	require.NoError(t, b.mutate(func(doc *Document) error {
		for i := range doc.Tasks {
			if doc.Tasks[i].ID == first.ID {
				doc.Tasks[i].DependsOn = []string{second.ID}
			}
		}
		return nil
	}))

	require.Error(t, b.mutate(func(doc *Document) error {
		for i := range doc.Tasks {
			if doc.Tasks[i].ID == second.ID {
				candidate := doc.Tasks[i]
				candidate.DependsOn = []string{first.ID}
				return models.ValidateDependsOn(doc.Tasks, candidate)
			}
		}
		return nil
	}))
}

func TestGetNextTaskRespectsDependencyGating(t *testing.T) {
	b := newBoard(t)

	blocker, err := b.AddTask("create schema migration", 10, nil)
	require.NoError(t, err)

	blocked, err := b.AddTask("add repository layer", 20, nil)
	require.NoError(t, err)

	require.NoError(t, b.mutate(func(doc *Document) error {
		for i := range doc.Tasks {
			if doc.Tasks[i].ID == blocked.ID {
				doc.Tasks[i].DependsOn = []string{blocker.ID}
			}
		}
		return nil
	}))

	next, err := b.GetNextTask()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, blocker.ID, next.ID)

	require.NoError(t, b.MarkInProgress(blocker.ID, "session-1"))
	next, err = b.GetNextTask()
	require.NoError(t, err)
	assert.Nil(t, next, "no ready task while the only pending task is blocked")

	require.NoError(t, b.MarkComplete(blocker.ID))
	next, err = b.GetNextTask()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, blocked.ID, next.ID)
}

func TestGetReadyTasksForBatchPrunesOverlap(t *testing.T) {
	b := newBoard(t)

	a, err := b.AddTask("edit handler a", 0, nil)
	require.NoError(t, err)
	c, err := b.AddTask("edit handler b", 0, nil)
	require.NoError(t, err)
	overlapping, err := b.AddTask("also edit handler a's package", 0, nil)
	require.NoError(t, err)

	require.NoError(t, b.mutate(func(doc *Document) error {
		for i := range doc.Tasks {
			switch doc.Tasks[i].ID {
			case a.ID:
				doc.Tasks[i].ComputedPackages = []string{"internal/handler"}
			case c.ID:
				doc.Tasks[i].ComputedPackages = []string{"internal/other"}
			case overlapping.ID:
				doc.Tasks[i].ComputedPackages = []string{"internal/handler"}
			}
		}
		return nil
	}))

	batch, err := b.GetReadyTasksForBatch(3)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, task := range batch {
		ids[task.ID] = true
	}
	assert.True(t, ids[a.ID])
	assert.True(t, ids[c.ID])
	assert.False(t, ids[overlapping.ID], "overlapping package must be pruned from the batch")
}

func TestDecomposeIntoExcludesParentFromSelection(t *testing.T) {
	b := newBoard(t)

	parent, err := b.AddTask("migrate the auth subsystem", 0, nil)
	require.NoError(t, err)

	subIDs, err := b.DecomposeInto(parent.ID, []string{"migrate session store", "migrate token issuer"})
	require.NoError(t, err)
	require.Len(t, subIDs, 2)

	next, err := b.GetNextTask()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.NotEqual(t, parent.ID, next.ID, "a decomposed parent must never be selected")
	assert.Contains(t, subIDs, next.ID)
}

func TestCompleteParentIfAllSubtasksDone(t *testing.T) {
	b := newBoard(t)

	parent, err := b.AddTask("migrate the auth subsystem", 0, nil)
	require.NoError(t, err)

	subIDs, err := b.DecomposeInto(parent.ID, []string{"migrate session store", "migrate token issuer"})
	require.NoError(t, err)

	require.NoError(t, b.MarkComplete(subIDs[0]))

	done, err := b.AreAllSubtasksComplete(parent.ID)
	require.NoError(t, err)
	assert.False(t, done)

	got, err := b.Get(parent.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.StatusComplete, got.Status)

	require.NoError(t, b.MarkComplete(subIDs[1]))

	got, err = b.Get(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status, "parent completes once every subtask is complete")
}

func TestPriorityScoreTagBoosts(t *testing.T) {
	base := models.NewTask("1", "fix something", 100)
	critical := models.NewTask("2", "fix something critical", 100)
	critical.Tags = []string{"critical"}

	assert.Less(t, PriorityScore(critical), PriorityScore(base), "critical tag lowers (improves) the score")
}

func TestPriorityScoreDependencyPenalty(t *testing.T) {
	solo := models.NewTask("1", "standalone work", 0)
	dependent := models.NewTask("2", "dependent work", 0)
	dependent.DependsOn = []string{"1", "3"}

	assert.InDelta(t, PriorityScore(solo)+10, PriorityScore(dependent), 0.001)
}

func TestMarkFailedThenRetry(t *testing.T) {
	b := newBoard(t)

	task, err := b.AddTask("flaky change", 0, nil)
	require.NoError(t, err)

	require.NoError(t, b.MarkInProgress(task.ID, "session-1"))
	require.NoError(t, b.MarkFailed(task.ID, "tests failed"))

	got, err := b.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "tests failed", got.Error)

	require.NoError(t, b.Retry(task.ID))
	got, err = b.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Empty(t, got.Error)
	assert.Empty(t, got.SessionID)
}

func TestMarkReconciledCompletesTaskWithNote(t *testing.T) {
	b := newBoard(t)

	task, err := b.AddTask("add retry budget to merge queue", 0, nil)
	require.NoError(t, err)

	require.NoError(t, b.MarkReconciled(task.ID, "matched commit: add retry budget to merge queue"))

	got, err := b.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status)
	assert.Equal(t, "matched commit: add retry budget to merge queue", got.ReconciledNote)
}
