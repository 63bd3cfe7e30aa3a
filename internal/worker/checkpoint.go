package worker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/undercity/internal/models"
)

const assignmentFileName = ".assignment.json"

const checkpointInterval = 30 * time.Second

// CheckpointWriter writes a Worker's Assignment into its workspace as
// `.assignment.json`, atomically, on every phase transition and at least
// every checkpointInterval (spec §4.6.2). fsnotify-based observers (the
// Health Monitor) watch this path for changes.
type CheckpointWriter struct {
	workspaceDir string
	assignment   models.Assignment
	lastWrite    time.Time
}

// NewCheckpointWriter constructs a writer for one workspace/task/worker.
func NewCheckpointWriter(workspaceDir, taskID, workerName, baseCommit string) *CheckpointWriter {
	return &CheckpointWriter{
		workspaceDir: workspaceDir,
		assignment: models.Assignment{
			TaskID:     taskID,
			WorkerName: workerName,
			BaseCommit: baseCommit,
		},
	}
}

// Transition writes a checkpoint for phase, always (state transitions must
// never be skipped, unlike the time-based heartbeat in Tick).
func (w *CheckpointWriter) Transition(phase models.WorkerPhase, attempts int, model string) error {
	return w.write(phase, attempts, model)
}

// Tick writes a heartbeat checkpoint only if checkpointInterval has elapsed
// since the last write, keeping the Health Monitor's staleness check
// satisfied during long-running tool calls.
func (w *CheckpointWriter) Tick(phase models.WorkerPhase, attempts int, model string) error {
	if time.Since(w.lastWrite) < checkpointInterval {
		return nil
	}
	return w.write(phase, attempts, model)
}

func (w *CheckpointWriter) write(phase models.WorkerPhase, attempts int, model string) error {
	now := time.Now()
	w.assignment.Checkpoint = models.Checkpoint{
		TaskID:   w.assignment.TaskID,
		Phase:    phase,
		Attempts: attempts,
		Model:    model,
		SavedAt:  now,
	}
	w.lastWrite = now

	data, err := json.MarshalIndent(w.assignment, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(w.workspaceDir, assignmentFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadCheckpoint loads the checkpoint currently recorded in a workspace, for
// the Health Monitor and crash-resume logic.
func ReadCheckpoint(workspaceDir string) (models.Assignment, error) {
	data, err := os.ReadFile(filepath.Join(workspaceDir, assignmentFileName))
	if err != nil {
		return models.Assignment{}, err
	}
	var assignment models.Assignment
	if err := json.Unmarshal(data, &assignment); err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}
