package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/undercity/internal/models"
)

func TestFindMatchesMatchesOnTokenOverlap(t *testing.T) {
	tasks := []models.Task{
		{ID: "1", Objective: "add a retry budget to the merge queue", Status: models.StatusPending},
		{ID: "2", Objective: "render merge status in the dashboard", Status: models.StatusPending},
	}
	commits := []string{
		"add retry budget to merge queue",
		"bump dependency versions",
	}

	matches := FindMatches(tasks, commits, DefaultThreshold)

	require.Len(t, matches, 1)
	assert.Equal(t, "1", matches[0].Task.ID)
	assert.Equal(t, "add retry budget to merge queue", matches[0].CommitMessage)
}

func TestFindMatchesSkipsNonPendingTasks(t *testing.T) {
	tasks := []models.Task{
		{ID: "1", Objective: "add a retry budget to the merge queue", Status: models.StatusComplete},
	}
	matches := FindMatches(tasks, []string{"add retry budget to merge queue"}, DefaultThreshold)
	assert.Empty(t, matches)
}

func TestFindMatchesReturnsNoneBelowThreshold(t *testing.T) {
	tasks := []models.Task{
		{ID: "1", Objective: "add a retry budget to the merge queue", Status: models.StatusPending},
	}
	matches := FindMatches(tasks, []string{"unrelated change to docs"}, DefaultThreshold)
	assert.Empty(t, matches)
}
