// Package tui implements a read-only status dashboard for the `status
// --watch` command — a thin wrapper over Task Board / Merge Queue state,
// grounded on ShayCichocki-Alphie's bubbletea/bubbles/lipgloss TUI stack.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harrison/undercity/internal/models"
)

// Snapshot is the state the dashboard redraws on each tick. Built by the
// caller from the Task Board and Merge Queue; the dashboard itself never
// touches either directly, keeping it a pure view over data it is handed.
type Snapshot struct {
	Tasks        []models.Task
	MergePending int
	MergeMerging int
	Err          error
}

// Poller supplies a fresh Snapshot on demand.
type Poller func() Snapshot

type tickMsg time.Time

// Dashboard is the bubbletea model backing `status --watch`.
type Dashboard struct {
	poll     Poller
	interval time.Duration
	snap     Snapshot
	quitting bool

	headerStyle lipgloss.Style
	labelStyle  lipgloss.Style
	okStyle     lipgloss.Style
	warnStyle   lipgloss.Style
	failStyle   lipgloss.Style
}

// New constructs a Dashboard that calls poll every interval.
func New(poll Poller, interval time.Duration) *Dashboard {
	return &Dashboard{
		poll:     poll,
		interval: interval,
		headerStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		labelStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14),
		okStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warnStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		failStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	d.snap = d.poll()
	return d.tick()
}

func (d *Dashboard) tick() tea.Cmd {
	return tea.Tick(d.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		switch m.String() {
		case "q", "ctrl+c", "esc":
			d.quitting = true
			return d, tea.Quit
		}
	case tickMsg:
		d.snap = d.poll()
		return d, d.tick()
	}
	return d, nil
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	if d.quitting {
		return "\n"
	}

	var b strings.Builder
	b.WriteString(d.headerStyle.Render("undercity status"))
	b.WriteString("\n\n")

	if d.snap.Err != nil {
		b.WriteString(d.failStyle.Render("error: " + d.snap.Err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	counts := countByStatus(d.snap.Tasks)
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s  %s %s\n",
		d.labelStyle.Render("pending"), fmt.Sprint(counts[models.StatusPending]),
		d.labelStyle.Render("in_progress"), fmt.Sprint(counts[models.StatusInProgress]),
		d.labelStyle.Render("complete"), d.okStyle.Render(fmt.Sprint(counts[models.StatusComplete])),
		d.labelStyle.Render("failed"), d.failStyle.Render(fmt.Sprint(counts[models.StatusFailed])),
	)

	fmt.Fprintf(&b, "%s %d pending, %d merging\n\n", d.labelStyle.Render("merge queue"), d.snap.MergePending, d.snap.MergeMerging)

	b.WriteString(d.headerStyle.Render("in-progress tasks"))
	b.WriteString("\n")
	any := false
	for _, t := range d.snap.Tasks {
		if t.Status != models.StatusInProgress {
			continue
		}
		any = true
		fmt.Fprintf(&b, "  %s  %s\n", t.ID[:min(8, len(t.ID))], truncate(t.Objective, 60))
	}
	if !any {
		b.WriteString("  (none)\n")
	}

	b.WriteString("\n(press q to quit)\n")
	return b.String()
}

func countByStatus(tasks []models.Task) map[models.TaskStatus]int {
	counts := map[models.TaskStatus]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
