package models

import "fmt"

// ErrorKind is the error taxonomy surfaced on every Task failure and every
// AttemptRecord (spec §7).
type ErrorKind string

const (
	ErrBaselineFail     ErrorKind = "baseline_fail"
	ErrAgentError       ErrorKind = "agent_error"
	ErrTypecheck        ErrorKind = "typecheck"
	ErrLint             ErrorKind = "lint"
	ErrTest             ErrorKind = "test"
	ErrBuild            ErrorKind = "build"
	ErrNoChanges        ErrorKind = "no_changes"
	ErrVagueTask        ErrorKind = "vague_task"
	ErrMergeConflict    ErrorKind = "merge_conflict"
	ErrMergeTestFail    ErrorKind = "merge_test_fail"
	ErrStuck            ErrorKind = "stuck"
	ErrPermanentFail    ErrorKind = "permanent_fail"
	ErrUnresolvedReview ErrorKind = "unresolved_review"
	ErrUnknown          ErrorKind = "unknown"
)

// Retryable reports whether an error of this kind should trigger a retry
// (possibly with escalation) rather than a terminal failure.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrBaselineFail, ErrVagueTask, ErrPermanentFail:
		return false
	default:
		return true
	}
}

// TaskError wraps a verification/execution failure with its taxonomy kind.
// Workers never panic across their boundary; every failure path constructs
// one of these and returns it as part of a TaskResult.
type TaskError struct {
	Kind    ErrorKind
	TaskID  string
	Message string
	Cause   error
}

func (e *TaskError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("task %s [%s]: %s", e.TaskID, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewTaskError constructs a TaskError, matching the teacher's NewTaskError
// helper shape.
func NewTaskError(taskID string, kind ErrorKind, message string, cause error) *TaskError {
	return &TaskError{Kind: kind, TaskID: taskID, Message: message, Cause: cause}
}
