package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/undercity/internal/models"
)

func TestConsoleLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "warn")

	c.LogTaskStart(models.Task{ID: "t1", Objective: "fix flaky test"}, "cheap")
	assert.Empty(t, buf.String(), "info-level line should be filtered out at warn level")

	c.LogHealthNudge("t1", 1, 2)
	assert.Contains(t, buf.String(), "t1")
}

func TestConsoleLoggerLogTaskOutcomeIncludesAttempts(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "info")

	c.LogTaskOutcome("t1", models.OutcomeMerged, 2, 150*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "t1")
	assert.Contains(t, out, "merged")
	assert.Contains(t, out, "attempts: 2")
}

func TestConsoleLoggerLogMergeStatusCoversEveryStatus(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "info")

	for _, status := range []models.MergeStatus{
		models.MergeStatusMerged,
		models.MergeStatusConflict,
		models.MergeStatusTestFail,
		models.MergeStatusExhausted,
	} {
		buf.Reset()
		c.LogMergeStatus("t1", status, 1)
		assert.NotEmpty(t, buf.String(), "status %s should produce a line", status)
	}
}

func TestConsoleLoggerLogMergeStatusSkipsPendingAndMerging(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "info")

	c.LogMergeStatus("t1", models.MergeStatusPending, 0)
	c.LogMergeStatus("t1", models.MergeStatusMerging, 0)
	assert.Empty(t, buf.String())
}

func TestConsoleLoggerLogSummaryRendersBox(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "info")

	c.LogSummary(5, 4, 1, 2*time.Second)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if assert.Len(t, lines, 4) {
		assert.True(t, strings.HasPrefix(lines[0], "+"))
		assert.True(t, strings.HasPrefix(lines[3], "+"))
		assert.Contains(t, lines[2], "merged: 4")
	}
}

func TestTruncateShortensLongObjectives(t *testing.T) {
	s := truncate("a very long objective that keeps going and going and going past the limit", 20)
	assert.LessOrEqual(t, len(s), 20)
}

func TestLevelFromStringDefaultsToInfo(t *testing.T) {
	assert.Equal(t, levelInfo, levelFromString(""))
	assert.Equal(t, levelInfo, levelFromString("bogus"))
	assert.Equal(t, levelError, levelFromString("error"))
}
