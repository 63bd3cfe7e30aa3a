// Package merge implements the Merge Queue: strictly serial integration of
// accepted workspaces into trunk with exponential-backoff retry (spec §4.8).
package merge

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrison/undercity/internal/gitrepo"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/workspace"
)

const (
	defaultMaxRetries = 3
	baseDelay         = 1 * time.Second
	maxDelay          = 30 * time.Second
)

// Verifier runs trunk-level verification (typecheck + tests) after a merge,
// before the merge is accepted.
type Verifier interface {
	VerifyTrunk(trunkDir string) (passed bool, output string)
}

// Queue is the strictly serial merge queue. All methods acquire the
// internal mutex, matching the invariant that at most one merge operation
// runs at a time.
type Queue struct {
	mu       sync.Mutex
	items    []*models.MergeItem
	order    int
	trunkDir string
	manager  *workspace.Manager
	verifier Verifier
}

// New constructs a Queue operating against trunkDir, using manager to
// destroy workspaces on successful merge.
func New(trunkDir string, manager *workspace.Manager, verifier Verifier) *Queue {
	return &Queue{trunkDir: trunkDir, manager: manager, verifier: verifier}
}

// Add appends a workspace's branch as a new pending MergeItem. workspacePath
// lets the queue destroy the workspace itself once the merge lands, without
// the caller having to hand it back in on every Tick.
func (q *Queue) Add(branch, stepID, agentID, taskID, workspacePath string) *models.MergeItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.order++
	item := &models.MergeItem{
		Branch:         branch,
		StepID:         stepID,
		AgentID:        agentID,
		TaskID:         taskID,
		WorkspacePath:  workspacePath,
		Status:         models.MergeStatusPending,
		MaxRetries:     defaultMaxRetries,
		InsertionOrder: q.order,
	}
	q.items = append(q.items, item)
	return item
}

// Tick processes the first eligible item in (nextRetryAfter, insertionOrder)
// order, returning the item it processed (or nil if none were eligible).
func (q *Queue) Tick() *models.MergeItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	q.sortLocked()

	for _, item := range q.items {
		if !item.Eligible(now) {
			continue
		}
		if item.Status != models.MergeStatusPending && item.Status != models.MergeStatusConflict && item.Status != models.MergeStatusTestFail {
			continue
		}
		q.process(item)
		return item
	}
	return nil
}

func (q *Queue) sortLocked() {
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		aReady, bReady := a.NextRetryAfter, b.NextRetryAfter
		switch {
		case aReady == nil && bReady == nil:
			return a.InsertionOrder < b.InsertionOrder
		case aReady == nil:
			return true
		case bReady == nil:
			return false
		case !aReady.Equal(*bReady):
			return aReady.Before(*bReady)
		default:
			return a.InsertionOrder < b.InsertionOrder
		}
	})
}

func (q *Queue) process(item *models.MergeItem) {
	item.Status = models.MergeStatusMerging

	trunk := gitrepo.Open(q.trunkDir)
	if err := trunk.MergeFastForwardOnly(item.Branch); err != nil {
		message := fmt.Sprintf("merge %s", item.Branch)
		if mergeErr := trunk.MergeNoFastForward(item.Branch, message); mergeErr != nil {
			_ = trunk.AbortMerge()
			item.LastError = mergeErr.Error()
			q.markRetryOrExhaust(item, models.MergeStatusConflict)
			return
		}
	}

	passed, output := q.verifier.VerifyTrunk(q.trunkDir)
	if !passed {
		item.LastError = output
		_ = trunk.ResetHard("HEAD~1")
		q.markRetryOrExhaust(item, models.MergeStatusTestFail)
		return
	}

	item.Status = models.MergeStatusMerged
	if q.manager != nil {
		ws := models.Workspace{Path: item.WorkspacePath, TaskID: item.TaskID, BranchName: item.Branch, TrunkBranch: item.Branch}
		_ = q.manager.Destroy(ws, workspace.DestroyOptions{Keep: false})
	}
}

func (q *Queue) markRetryOrExhaust(item *models.MergeItem, status models.MergeStatus) {
	item.RetryCount++
	item.IsRetry = true
	if item.RetryCount >= item.MaxRetries {
		item.Status = models.MergeStatusExhausted
		item.NextRetryAfter = nil
		return
	}
	item.Status = status
	delay := baseDelay * time.Duration(1<<uint(item.RetryCount-1))
	if delay > maxDelay {
		delay = maxDelay
	}
	next := time.Now().Add(delay)
	item.NextRetryAfter = &next
}

// GetQueueSummary returns counts of items by status.
func (q *Queue) GetQueueSummary() models.QueueSummary {
	q.mu.Lock()
	defer q.mu.Unlock()

	var summary models.QueueSummary
	for _, item := range q.items {
		switch item.Status {
		case models.MergeStatusPending:
			summary.Pending++
		case models.MergeStatusMerging:
			summary.Merging++
		case models.MergeStatusConflict:
			summary.Conflict++
		case models.MergeStatusTestFail:
			summary.TestFail++
		case models.MergeStatusMerged:
			summary.Merged++
		case models.MergeStatusAborted:
			summary.Aborted++
		case models.MergeStatusExhausted:
			summary.Exhausted++
		}
	}
	return summary
}
