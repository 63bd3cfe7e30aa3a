package models

import "time"

// TaskOutcome is the terminal disposition a Worker reports for a task.
type TaskOutcome string

const (
	OutcomeMerged          TaskOutcome = "merged"
	OutcomeAlreadyComplete TaskOutcome = "already_complete"
	OutcomeDecomposed      TaskOutcome = "decomposed"
	OutcomeCompleteWithTickets TaskOutcome = "complete_with_tickets"
	OutcomeFailed          TaskOutcome = "failed"
)

// TaskResult is what a Worker returns to the Orchestrator. A Worker never
// throws across its boundary; every code path ends in one of these.
type TaskResult struct {
	Task          Task
	Outcome       TaskOutcome
	Error         *TaskError
	ModifiedFiles []string
	Attempts      []AttemptRecord
	Subtasks      []Task
	Tickets       []Task
	Duration      time.Duration
	WorkspacePath string
}

// Succeeded reports whether the result represents a non-failing terminal
// state (merged, complete-with-tickets, already-complete, or decomposed).
func (r *TaskResult) Succeeded() bool {
	switch r.Outcome {
	case OutcomeMerged, OutcomeAlreadyComplete, OutcomeDecomposed, OutcomeCompleteWithTickets:
		return true
	default:
		return false
	}
}
