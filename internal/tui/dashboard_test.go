package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/undercity/internal/models"
)

func TestViewRendersTaskCounts(t *testing.T) {
	d := New(func() Snapshot {
		return Snapshot{
			Tasks: []models.Task{
				{ID: "aaaaaaaa-1", Status: models.StatusInProgress, Objective: "wire the merge queue retries"},
				{ID: "bbbbbbbb-2", Status: models.StatusComplete},
			},
			MergePending: 1,
		}
	}, time.Minute)

	d.snap = d.poll()
	view := d.View()

	assert.Contains(t, view, "in_progress")
	assert.Contains(t, view, "wire the merge queue retries")
}

func TestViewRendersErrorState(t *testing.T) {
	d := New(func() Snapshot { return Snapshot{} }, time.Minute)
	d.snap = Snapshot{Err: assertError("boom")}
	assert.Contains(t, d.View(), "boom")
}

type assertError string

func (e assertError) Error() string { return string(e) }
