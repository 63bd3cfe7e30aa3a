package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/undercity/internal/models"
)

type stubVerifier struct {
	passed bool
	output string
}

func (s stubVerifier) VerifyTrunk(trunkDir string) (bool, string) {
	return s.passed, s.output
}

func TestAddEnqueuesPendingItem(t *testing.T) {
	q := New(t.TempDir(), nil, stubVerifier{passed: true})
	item := q.Add("undercity/task-1", "step-1", "worker-1", "task-1", "/tmp/ws-1")

	require.Equal(t, models.MergeStatusPending, item.Status)
	assert.Equal(t, 0, item.RetryCount)
	assert.Equal(t, defaultMaxRetries, item.MaxRetries)

	summary := q.GetQueueSummary()
	assert.Equal(t, 1, summary.Pending)
}

func TestMarkRetryOrExhaustAppliesExponentialBackoff(t *testing.T) {
	q := New(t.TempDir(), nil, stubVerifier{})
	item := q.Add("undercity/task-1", "step-1", "worker-1", "task-1", "/tmp/ws-1")

	before := time.Now()
	q.markRetryOrExhaust(item, models.MergeStatusConflict)

	require.Equal(t, models.MergeStatusConflict, item.Status)
	require.Equal(t, 1, item.RetryCount)
	require.NotNil(t, item.NextRetryAfter)
	assert.True(t, item.NextRetryAfter.After(before))
	assert.True(t, item.NextRetryAfter.Sub(before) >= baseDelay)
}

func TestMarkRetryOrExhaustStopsAtMaxRetries(t *testing.T) {
	q := New(t.TempDir(), nil, stubVerifier{})
	item := q.Add("undercity/task-1", "step-1", "worker-1", "task-1", "/tmp/ws-1")
	item.RetryCount = item.MaxRetries

	q.markRetryOrExhaust(item, models.MergeStatusTestFail)

	assert.Equal(t, models.MergeStatusExhausted, item.Status)
}

func TestTickExhaustsAfterMaxRetriesThroughTheRealLoop(t *testing.T) {
	// trunkDir is not a git repository, so every merge attempt in process()
	// fails and the item takes the conflict branch on every Tick — the same
	// path a real repeatedly-conflicting merge would take.
	q := New(t.TempDir(), nil, stubVerifier{passed: true})
	item := q.Add("undercity/task-1", "step-1", "worker-1", "task-1", "/tmp/ws-1")

	for i := 0; i < item.MaxRetries; i++ {
		item.NextRetryAfter = nil // simulate the backoff window having elapsed
		processed := q.Tick()
		require.NotNil(t, processed, "attempt %d", i+1)
	}

	require.Equal(t, models.MergeStatusExhausted, item.Status)
	assert.Equal(t, item.MaxRetries, item.RetryCount)

	item.NextRetryAfter = nil
	assert.Nil(t, q.Tick(), "an exhausted item must never be processed again")
}

func TestTickSkipsItemsStillInBackoffWindow(t *testing.T) {
	q := New(t.TempDir(), nil, stubVerifier{passed: true})
	item := q.Add("undercity/task-1", "step-1", "worker-1", "task-1", "/tmp/ws-1")
	future := time.Now().Add(time.Hour)
	item.NextRetryAfter = &future
	item.Status = models.MergeStatusConflict

	processed := q.Tick()
	assert.Nil(t, processed)
}

func TestSortLockedOrdersReadyBeforeBackedOff(t *testing.T) {
	q := New(t.TempDir(), nil, stubVerifier{})
	late := q.Add("undercity/task-late", "step-1", "worker-1", "task-late", "/tmp/ws-late")
	early := q.Add("undercity/task-early", "step-2", "worker-2", "task-early", "/tmp/ws-early")

	future := time.Now().Add(time.Minute)
	late.NextRetryAfter = nil
	early.NextRetryAfter = &future

	q.sortLocked()
	require.Equal(t, "undercity/task-late", q.items[0].Branch)
}

func TestGetQueueSummaryCountsByStatus(t *testing.T) {
	q := New(t.TempDir(), nil, stubVerifier{})
	a := q.Add("a", "s", "w", "task-a", "/tmp/a")
	b := q.Add("b", "s", "w", "task-b", "/tmp/b")
	a.Status = models.MergeStatusMerged
	b.Status = models.MergeStatusExhausted

	summary := q.GetQueueSummary()
	assert.Equal(t, 1, summary.Merged)
	assert.Equal(t, 1, summary.Exhausted)
	assert.Equal(t, 0, summary.Pending)
}
