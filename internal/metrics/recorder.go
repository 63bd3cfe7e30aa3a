package metrics

import (
	"encoding/json"
	"time"

	"github.com/harrison/undercity/internal/models"
)

// LineAppender is the subset of *store.Store a Recorder needs; satisfied by
// *store.Store without importing it here and creating a cycle (store stays
// a leaf package).
type LineAppender interface {
	AppendLine(name string, line []byte) error
}

// Recorder appends one MetricsRecord per completed task to metrics.jsonl.
// It never rewrites or truncates; a corrupt line downstream is a reader
// problem, not a writer one.
type Recorder struct {
	store LineAppender
}

// NewRecorder wraps store for metrics.jsonl writes.
func NewRecorder(store LineAppender) *Recorder {
	return &Recorder{store: store}
}

// Record appends rec as one JSON line to metrics.jsonl.
func (r *Recorder) Record(rec models.MetricsRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.AppendLine("metrics.jsonl", data)
}

// FromOutcome builds a MetricsRecord from a task and its worker outcome. The
// timing fields come from startedAt and duration; the model, token and
// escalation fields come from the attempt history.
func FromOutcome(task models.Task, outcome models.TaskOutcome, attempts []models.AttemptRecord, modifiedFiles []string, errText string, startedAt time.Time, duration time.Duration) models.MetricsRecord {
	var finalModel, startingModel string
	var totalTokens int64
	escalated := false
	if len(attempts) > 0 {
		startingModel = attempts[0].Model
		finalModel = attempts[len(attempts)-1].Model
		escalated = startingModel != finalModel
	}

	return models.MetricsRecord{
		TaskID:              task.ID,
		SessionID:           task.SessionID,
		Objective:           task.Objective,
		Success:             outcome == models.OutcomeMerged || outcome == models.OutcomeAlreadyComplete || outcome == models.OutcomeCompleteWithTickets,
		DurationMs:          duration.Milliseconds(),
		TotalTokens:         totalTokens,
		StartedAt:           startedAt,
		CompletedAt:         startedAt.Add(duration),
		FinalModel:          finalModel,
		StartingModel:       startingModel,
		WasEscalated:        escalated,
		Attempts:            attempts,
		ActualFilesModified: modifiedFiles,
		Error:               errText,
	}
}
