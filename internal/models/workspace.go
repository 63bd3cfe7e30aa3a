package models

import "time"

// WorkerPhase is the current phase of a Worker, persisted in the workspace
// checkpoint for the Health Monitor to observe.
type WorkerPhase string

const (
	PhasePlanning   WorkerPhase = "planning"
	PhaseExecuting  WorkerPhase = "executing"
	PhaseVerifying  WorkerPhase = "verifying"
	PhaseReviewing  WorkerPhase = "reviewing"
	PhaseMerging    WorkerPhase = "merging"
)

// Checkpoint is the on-disk record a Worker writes into its workspace
// (`.assignment.json`) on every state transition and at least every 30s.
type Checkpoint struct {
	TaskID   string      `json:"taskId"`
	Phase    WorkerPhase `json:"phase"`
	Attempts int         `json:"attempts"`
	Model    string      `json:"model"`
	SavedAt  time.Time   `json:"savedAt"`
}

// Assignment is the full contents of a workspace's `.assignment.json`.
type Assignment struct {
	TaskID     string     `json:"taskId"`
	WorkerName string     `json:"workerName"`
	BaseCommit string     `json:"baseCommit"`
	Checkpoint Checkpoint `json:"checkpoint"`
}

// Workspace is a per-task filesystem sandbox branched from trunk.
type Workspace struct {
	Path         string    `json:"path"`
	TrunkBranch  string    `json:"trunkBranch"`
	BaseCommit   string    `json:"baseCommit"`
	TaskID       string    `json:"taskId"`
	BranchName   string    `json:"branchName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StaleSince reports whether the checkpoint is older than threshold as of now.
func (c *Checkpoint) StaleSince(now time.Time, threshold time.Duration) bool {
	return now.Sub(c.SavedAt) > threshold
}
