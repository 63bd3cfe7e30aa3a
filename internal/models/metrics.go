package models

import "time"

// AttemptRecord is one attempt within a task's execution history.
type AttemptRecord struct {
	Attempt        int      `json:"attempt"`
	Model          string   `json:"model"`
	DurationMs     int64    `json:"durationMs"`
	Success        bool     `json:"success"`
	ErrorCategories []string `json:"errorCategories,omitempty"`
}

// MetricsRecord is one line of `.undercity/metrics.jsonl`. Records are
// appended, never rewritten.
type MetricsRecord struct {
	TaskID              string          `json:"taskId"`
	SessionID           string          `json:"sessionId"`
	Objective           string          `json:"objective"`
	Success             bool            `json:"success"`
	DurationMs          int64           `json:"durationMs"`
	TotalTokens         int64           `json:"totalTokens"`
	StartedAt           time.Time       `json:"startedAt"`
	CompletedAt         time.Time       `json:"completedAt"`
	FinalModel          string          `json:"finalModel"`
	StartingModel       string          `json:"startingModel"`
	ComplexityLevel     string          `json:"complexityLevel"`
	WasEscalated        bool            `json:"wasEscalated"`
	Attempts            []AttemptRecord `json:"attempts"`
	PredictedFiles      []string        `json:"predictedFiles,omitempty"`
	ActualFilesModified []string        `json:"actualFilesModified,omitempty"`
	Error               string          `json:"error,omitempty"`
}
