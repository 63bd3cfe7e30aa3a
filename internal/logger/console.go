// Package logger provides the two logging surfaces undercity carries
// alongside each other: a colorized, TTY-aware ConsoleLogger for a human
// operator watching a run, and a zerolog-backed JSON event log for the audit
// trail the console can't carry well (every state transition, merge
// attempt, and health-monitor nudge). The two are deliberately separate
// concerns, the way the teacher keeps console output and file logging apart.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/undercity/internal/models"
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
)

// ConsoleLogger prints one line per orchestrator event: batch dispatch, task
// outcome, merge queue progress, and health-monitor nudges. Colors are
// disabled automatically when writer isn't a terminal.
type ConsoleLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	level   int
	colored bool
	scheme  *colorScheme
}

// NewConsoleLogger wraps writer, filtering anything below logLevel
// ("trace", "debug", "info", "warn", "error"; defaults to "info").
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	c := &ConsoleLogger{
		writer:  writer,
		level:   levelFromString(logLevel),
		colored: isTerminal(writer),
		scheme:  newColorScheme(),
	}
	if !c.colored {
		c.scheme.success.DisableColor()
		c.scheme.fail.DisableColor()
		c.scheme.warn.DisableColor()
		c.scheme.label.DisableColor()
		c.scheme.value.DisableColor()
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func levelFromString(level string) int {
	switch strings.ToLower(level) {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (c *ConsoleLogger) shouldLog(level int) bool {
	return level >= c.level
}

func (c *ConsoleLogger) println(level int, line string) {
	if !c.shouldLog(level) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, "[%s] %s\n", timestamp(), line)
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// LogBatchStart announces a newly dispatched batch of tasks.
func (c *ConsoleLogger) LogBatchStart(tasks []models.Task) {
	if len(tasks) == 0 {
		return
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	line := fmt.Sprintf("%s %s", c.scheme.label.Sprint("batch"), strings.Join(ids, ", "))
	c.println(levelInfo, line)
}

// LogTaskStart announces one task beginning work under the given tier.
func (c *ConsoleLogger) LogTaskStart(task models.Task, tier string) {
	line := fmt.Sprintf("%s %s %s", c.scheme.label.Sprint(task.ID), tier, truncate(task.Objective, 72))
	c.println(levelInfo, line)
}

// LogTaskOutcome reports a Worker's terminal disposition for one task.
func (c *ConsoleLogger) LogTaskOutcome(taskID string, outcome models.TaskOutcome, attempts int, duration time.Duration) {
	icon, col := outcomeStyle(outcome, c.scheme)
	line := fmt.Sprintf("%s %s %s %s", icon, col.Sprint(taskID), string(outcome), formatDuration(duration))
	if attempts > 0 {
		line += " " + formatMetric("attempts", attempts, c.scheme)
	}
	level := levelInfo
	if outcome == models.OutcomeFailed {
		level = levelWarn
	}
	c.println(level, line)
}

func outcomeStyle(outcome models.TaskOutcome, scheme *colorScheme) (string, *color.Color) {
	switch outcome {
	case models.OutcomeMerged, models.OutcomeAlreadyComplete, models.OutcomeCompleteWithTickets:
		return "✓", scheme.success
	case models.OutcomeDecomposed:
		return "↳", scheme.label
	default:
		return "✗", scheme.fail
	}
}

// LogMergeStatus reports one Merge Queue tick's outcome for a branch.
func (c *ConsoleLogger) LogMergeStatus(taskID string, status models.MergeStatus, retryCount int) {
	var line string
	switch status {
	case models.MergeStatusMerged:
		line = fmt.Sprintf("%s %s merged into trunk", c.scheme.success.Sprint("✓"), taskID)
	case models.MergeStatusConflict:
		line = fmt.Sprintf("%s %s merge conflict, retry %d", c.scheme.warn.Sprint("!"), taskID, retryCount)
	case models.MergeStatusTestFail:
		line = fmt.Sprintf("%s %s trunk verification failed after merge, reverted, retry %d", c.scheme.warn.Sprint("!"), taskID, retryCount)
	case models.MergeStatusExhausted:
		line = fmt.Sprintf("%s %s exhausted merge retries", c.scheme.fail.Sprint("✗"), taskID)
	default:
		return
	}
	level := levelInfo
	if status == models.MergeStatusExhausted {
		level = levelError
	} else if status == models.MergeStatusConflict || status == models.MergeStatusTestFail {
		level = levelWarn
	}
	c.println(level, line)
}

// LogHealthNudge reports the Health Monitor nudging a stalled workspace.
func (c *ConsoleLogger) LogHealthNudge(taskID string, attempt, maxAttempts int) {
	line := fmt.Sprintf("%s %s stalled, nudge %d/%d", c.scheme.warn.Sprint("⚠"), taskID, attempt, maxAttempts)
	c.println(levelWarn, line)
}

// LogSummary prints the final box: totals, elapsed time, per-outcome counts.
func (c *ConsoleLogger) LogSummary(total, merged, failed int, elapsed time.Duration) {
	width := 48
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.writer, boxTop(width))
	fmt.Fprintln(c.writer, boxLine(fmt.Sprintf(" run complete in %s", formatDuration(elapsed)), width))
	fmt.Fprintln(c.writer, boxLine(fmt.Sprintf(" tasks: %d  merged: %d  failed: %d", total, merged, failed), width))
	fmt.Fprintln(c.writer, boxBottom(width))
}

func boxTop(width int) string    { return "+" + strings.Repeat("-", width-2) + "+" }
func boxBottom(width int) string { return boxTop(width) }
func boxLine(content string, width int) string {
	if len(content) > width-2 {
		content = content[:width-2]
	}
	return "|" + content + strings.Repeat(" ", width-2-len(content)) + "|"
}

func truncate(s string, max int) string {
	const ellipsis = "…"
	if len(s) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return s[:max]
	}
	return s[:max-len(ellipsis)] + ellipsis
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
