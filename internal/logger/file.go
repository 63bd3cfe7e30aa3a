package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// NewEventLog opens a new `<stateDir>/logs/run-<YYYYMMDD-HHMMSS>.log` for
// append, points the `logs/latest.log` symlink at it, and returns a
// zerolog.Logger writing
// one JSON line per orchestrator event (state transitions, merge attempts,
// health-monitor nudges) plus the file handle so the caller can close it on
// shutdown.
func NewEventLog(stateDir string) (zerolog.Logger, *os.File, error) {
	logDir := filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("create run log file: %w", err)
	}

	symlink := filepath.Join(logDir, "latest.log")
	if _, statErr := os.Lstat(symlink); statErr == nil {
		_ = os.Remove(symlink)
	}
	_ = os.Symlink(filepath.Base(runFile), symlink)

	log := zerolog.New(file).With().Timestamp().Logger()
	return log, file, nil
}
