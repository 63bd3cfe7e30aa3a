// Package health implements the Health Monitor: a periodic scan of
// in-progress workspaces that nudges stalled workers rather than killing
// processes it never spawned (spec §4.9).
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/worker"
)

const (
	// DefaultScanInterval is how often the monitor re-scans active workspaces.
	DefaultScanInterval = 60 * time.Second
	// DefaultStaleThreshold is how long a checkpoint can go unrefreshed
	// before a workspace is considered stalled.
	DefaultStaleThreshold = 300 * time.Second
	// DefaultMaxRecoveryAttempts is how many nudges a workspace gets before
	// the monitor gives up and only logs.
	DefaultMaxRecoveryAttempts = 2

	nudgeFileName      = ".undercity-nudge"
	assignmentFileName = ".assignment.json"
)

// Nudge is the content written to a workspace's nudge file to prompt the
// in-flight agent loop to notice and react, without the monitor touching the
// worker process directly.
type Nudge struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message"`
}

// WorkspaceLister enumerates currently active workspaces; satisfied by
// *workspace.Manager.
type WorkspaceLister interface {
	ListActive() ([]models.Workspace, error)
}

// Monitor periodically scans active workspaces for stale checkpoints, and
// additionally watches each workspace directory with fsnotify so a fresh
// checkpoint write can short-circuit the wait until the next tick.
type Monitor struct {
	lister         WorkspaceLister
	scanInterval   time.Duration
	staleThreshold time.Duration
	maxRecoveries  int
	log            zerolog.Logger
	onNudge        func(taskID string, attempt, maxAttempts int)

	watcher *fsnotify.Watcher

	mu         sync.Mutex
	recoveries map[string]int
	watched    map[string]bool
	lastEvent  map[string]time.Time
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Option configures a Monitor at construction.
type Option func(*Monitor)

// WithScanInterval overrides DefaultScanInterval.
func WithScanInterval(d time.Duration) Option { return func(m *Monitor) { m.scanInterval = d } }

// WithStaleThreshold overrides DefaultStaleThreshold.
func WithStaleThreshold(d time.Duration) Option { return func(m *Monitor) { m.staleThreshold = d } }

// WithMaxRecoveryAttempts overrides DefaultMaxRecoveryAttempts.
func WithMaxRecoveryAttempts(n int) Option { return func(m *Monitor) { m.maxRecoveries = n } }

// WithOnNudge registers a callback fired after each nudge is successfully
// written, letting a caller (e.g. a console logger) surface it to an
// operator without the Monitor depending on any particular logging surface.
func WithOnNudge(fn func(taskID string, attempt, maxAttempts int)) Option {
	return func(m *Monitor) { m.onNudge = fn }
}

// New constructs a Monitor watching workspaces enumerated by lister. If an
// fsnotify watcher cannot be created, New falls back to ticker-only polling.
func New(lister WorkspaceLister, log zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		lister:         lister,
		scanInterval:   DefaultScanInterval,
		staleThreshold: DefaultStaleThreshold,
		maxRecoveries:  DefaultMaxRecoveryAttempts,
		log:            log,
		recoveries:     make(map[string]int),
		watched:        make(map[string]bool),
		lastEvent:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.log.Warn().Err(err).Msg("health monitor: fsnotify unavailable, falling back to polling only")
		return m
	}
	m.watcher = watcher
	return m
}

// Start begins the background scan loop. Stop must be called to end it.
func (m *Monitor) Start() {
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	if m.watcher != nil {
		go m.watchEvents()
	}
	go m.loop()
}

// Stop ends the scan loop and watcher, and waits for them to exit.
func (m *Monitor) Stop() {
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	<-m.doneCh
	if m.watcher != nil {
		m.watcher.Close()
	}
}

func (m *Monitor) watchEvents() {
	for {
		select {
		case <-m.stopCh:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != assignmentFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m.mu.Lock()
			m.lastEvent[filepath.Dir(event.Name)] = time.Now()
			m.mu.Unlock()
		case <-m.watcher.Errors:
			// Keep watching; a transient watcher error doesn't stop the scan loop.
		}
	}
}

func (m *Monitor) loop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.scanOnce(time.Now())
		}
	}
}

// scanOnce inspects every active workspace's checkpoint and nudges or
// escalates any that have gone stale.
func (m *Monitor) scanOnce(now time.Time) {
	active, err := m.lister.ListActive()
	if err != nil {
		m.log.Warn().Err(err).Msg("health monitor: failed to list active workspaces")
		return
	}

	seen := make(map[string]bool, len(active))
	for _, ws := range active {
		seen[ws.TaskID] = true
		m.ensureWatched(ws.Path)
		m.inspect(ws, now)
	}

	m.mu.Lock()
	for taskID := range m.recoveries {
		if !seen[taskID] {
			delete(m.recoveries, taskID)
		}
	}
	m.mu.Unlock()
}

func (m *Monitor) ensureWatched(path string) {
	if m.watcher == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watched[path] {
		return
	}
	if err := m.watcher.Add(path); err == nil {
		m.watched[path] = true
	}
}

func (m *Monitor) inspect(ws models.Workspace, now time.Time) {
	assignment, err := worker.ReadCheckpoint(ws.Path)
	if err != nil {
		return
	}

	// An fsnotify event newer than the parsed checkpoint timestamp means the
	// write is in flight; treat the workspace as fresh without waiting for
	// the next full scan to re-read it.
	m.mu.Lock()
	lastEvent, sawEvent := m.lastEvent[ws.Path]
	m.mu.Unlock()
	if sawEvent && lastEvent.After(assignment.Checkpoint.SavedAt) && now.Sub(lastEvent) < m.staleThreshold {
		m.mu.Lock()
		delete(m.recoveries, ws.TaskID)
		m.mu.Unlock()
		return
	}

	if !assignment.Checkpoint.StaleSince(now, m.staleThreshold) {
		m.mu.Lock()
		delete(m.recoveries, ws.TaskID)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	attempt := m.recoveries[ws.TaskID] + 1
	m.recoveries[ws.TaskID] = attempt
	m.mu.Unlock()

	if attempt > m.maxRecoveries {
		m.log.Error().
			Str("taskId", ws.TaskID).
			Str("phase", string(assignment.Checkpoint.Phase)).
			Time("lastCheckpoint", assignment.Checkpoint.SavedAt).
			Msg("health monitor: workspace still stale after exhausting recovery attempts")
		m.mu.Lock()
		delete(m.recoveries, ws.TaskID)
		m.mu.Unlock()
		return
	}

	reason := fmt.Sprintf("checkpoint stale for %s (threshold %s)", now.Sub(assignment.Checkpoint.SavedAt).Round(time.Second), m.staleThreshold)
	if err := writeNudge(ws.Path, Nudge{
		Timestamp: now,
		Reason:    reason,
		Attempt:   attempt,
		Message:   "You appear stalled. Re-read your task, verify your progress with a Bash check, and either continue or emit a terminal marker.",
	}); err != nil {
		m.log.Warn().Err(err).Str("taskId", ws.TaskID).Msg("health monitor: failed to write nudge")
		return
	}
	m.log.Info().Str("taskId", ws.TaskID).Int("attempt", attempt).Msg("health monitor: nudged stalled workspace")
	if m.onNudge != nil {
		m.onNudge(ws.TaskID, attempt, m.maxRecoveries)
	}
}

func writeNudge(workspaceDir string, n Nudge) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(workspaceDir, nudgeFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
