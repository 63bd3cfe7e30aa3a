// Package tracker implements the File Access Tracker: records every file
// operation a Worker causes and surfaces cross-task write conflicts (spec
// §4.4).
package tracker

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harrison/undercity/internal/models"
)

// Tracker holds in-memory FileTrackingEntries for the lifetime of an
// orchestrator run. It is safe for concurrent use by multiple workers.
type Tracker struct {
	trunkDir string

	mu      sync.Mutex
	entries map[string]*models.FileTrackingEntry // workerID -> entry
}

// New constructs a Tracker that normalizes workspace-relative paths against
// trunkDir.
func New(trunkDir string) *Tracker {
	return &Tracker{
		trunkDir: trunkDir,
		entries:  make(map[string]*models.FileTrackingEntry),
	}
}

// StartTaskTracking begins a new active entry for workerID, replacing any
// prior entry for the same id.
func (t *Tracker) StartTaskTracking(workerID, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[workerID] = &models.FileTrackingEntry{
		WorkerID:  workerID,
		SessionID: sessionID,
		StartedAt: time.Now(),
	}
}

// StopTaskTracking marks workerID's entry as ended, excluding it from
// further active-conflict detection.
func (t *Tracker) StopTaskTracking(workerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[workerID]
	if !ok {
		return
	}
	now := time.Now()
	entry.EndedAt = &now
}

// RecordFileAccess appends a FileAccess to workerID's entry. path is
// normalized relative to the trunk repo root: if worktreePath is non-empty,
// path is first resolved against it, then expressed relative to trunkDir.
func (t *Tracker) RecordFileAccess(workerID, path string, op models.FileOp, taskID, worktreePath string) {
	normalized := t.normalize(path, worktreePath)

	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[workerID]
	if !ok {
		entry = &models.FileTrackingEntry{WorkerID: workerID, StartedAt: time.Now()}
		t.entries[workerID] = entry
	}
	entry.Accesses = append(entry.Accesses, models.FileAccess{
		Path:      normalized,
		Op:        op,
		Timestamp: time.Now(),
		TaskID:    taskID,
	})
}

// normalize collapses an absolute or workspace-relative path to its
// trunk-relative form. Already-relative paths with no worktree context pass
// through unchanged (idempotent on repeated calls).
func (t *Tracker) normalize(path, worktreePath string) string {
	if worktreePath != "" {
		abs := path
		if !filepath.IsAbs(path) {
			abs = filepath.Join(worktreePath, path)
		}
		if rel, err := filepath.Rel(worktreePath, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	if filepath.IsAbs(path) && t.trunkDir != "" {
		if rel, err := filepath.Rel(t.trunkDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// GetModifiedFiles returns the deduplicated union of write|edit|delete paths
// recorded for workerID.
func (t *Tracker) GetModifiedFiles(workerID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[workerID]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var files []string
	for _, access := range entry.Accesses {
		if !access.Op.IsMutating() {
			continue
		}
		if _, dup := seen[access.Path]; dup {
			continue
		}
		seen[access.Path] = struct{}{}
		files = append(files, access.Path)
	}
	return files
}

// DetectCrossTaskConflicts returns one Conflict per path written by two or
// more distinct active task ids. Completed and read-only entries do not
// participate.
func (t *Tracker) DetectCrossTaskConflicts() []models.Conflict {
	t.mu.Lock()
	defer t.mu.Unlock()

	writers := make(map[string]map[string]struct{}) // path -> set of taskIDs
	for _, entry := range t.entries {
		if !entry.IsActive() {
			continue
		}
		for _, access := range entry.Accesses {
			if !access.Op.IsMutating() {
				continue
			}
			taskID := access.TaskID
			if taskID == "" {
				taskID = entry.WorkerID
			}
			if writers[access.Path] == nil {
				writers[access.Path] = make(map[string]struct{})
			}
			writers[access.Path][taskID] = struct{}{}
		}
	}

	var conflicts []models.Conflict
	for path, taskSet := range writers {
		if len(taskSet) < 2 {
			continue
		}
		ids := make([]string, 0, len(taskSet))
		for id := range taskSet {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		conflicts = append(conflicts, models.Conflict{
			TaskIDs:         ids,
			ConflictingFile: path,
			Severity:        "error",
		})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].ConflictingFile < conflicts[j].ConflictingFile })
	return conflicts
}

// WouldTaskConflict reports whether any of estimatedPaths is currently
// written by an active task other than taskID.
func (t *Tracker) WouldTaskConflict(taskID string, estimatedPaths []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	estimated := make(map[string]struct{}, len(estimatedPaths))
	for _, p := range estimatedPaths {
		estimated[filepath.ToSlash(p)] = struct{}{}
	}

	for _, entry := range t.entries {
		if !entry.IsActive() {
			continue
		}
		for _, access := range entry.Accesses {
			if !access.Op.IsMutating() {
				continue
			}
			owner := access.TaskID
			if owner == "" {
				owner = entry.WorkerID
			}
			if owner == taskID {
				continue
			}
			if _, hit := estimated[access.Path]; hit {
				return true
			}
		}
	}
	return false
}
