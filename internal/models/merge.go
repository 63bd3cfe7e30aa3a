package models

import "time"

// MergeStatus enumerates the lifecycle states of a MergeItem.
type MergeStatus string

const (
	MergeStatusPending   MergeStatus = "pending"
	MergeStatusMerging   MergeStatus = "merging"
	MergeStatusConflict  MergeStatus = "conflict"
	MergeStatusTestFail  MergeStatus = "test_failed"
	MergeStatusMerged    MergeStatus = "merged"
	MergeStatusAborted   MergeStatus = "aborted"
	MergeStatusExhausted MergeStatus = "exhausted"
)

// MergeItem is one workspace waiting to be serialized into trunk by the
// Merge Queue.
type MergeItem struct {
	Branch          string      `json:"branch"`
	StepID          string      `json:"stepId"`
	AgentID         string      `json:"agentId"`
	Status          MergeStatus `json:"status"`
	RetryCount      int         `json:"retryCount"`
	MaxRetries      int         `json:"maxRetries"`
	IsRetry         bool        `json:"isRetry"`
	NextRetryAfter  *time.Time  `json:"nextRetryAfter,omitempty"`
	InsertionOrder  int         `json:"insertionOrder"`
	WorkspacePath   string      `json:"workspacePath"`
	TaskID          string      `json:"taskId"`
	LastError       string      `json:"lastError,omitempty"`
}

// Eligible reports whether the item may be processed now: retryCount has not
// exhausted maxRetries and any backoff window has elapsed.
func (m *MergeItem) Eligible(now time.Time) bool {
	if m.RetryCount >= m.MaxRetries {
		return false
	}
	if m.NextRetryAfter != nil && now.Before(*m.NextRetryAfter) {
		return false
	}
	return true
}

// QueueSummary counts MergeItems by status.
type QueueSummary struct {
	Pending   int `json:"pending"`
	Merging   int `json:"merging"`
	Conflict  int `json:"conflict"`
	TestFail  int `json:"testFailed"`
	Merged    int `json:"merged"`
	Aborted   int `json:"aborted"`
	Exhausted int `json:"exhausted"`
}
