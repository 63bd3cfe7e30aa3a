package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/config"
	"github.com/harrison/undercity/internal/health"
	"github.com/harrison/undercity/internal/learning"
	"github.com/harrison/undercity/internal/logger"
	"github.com/harrison/undercity/internal/merge"
	"github.com/harrison/undercity/internal/metrics"
	"github.com/harrison/undercity/internal/modelclient"
	"github.com/harrison/undercity/internal/orchestrator"
	"github.com/harrison/undercity/internal/review"
	"github.com/harrison/undercity/internal/router"
	"github.com/harrison/undercity/internal/store"
	"github.com/harrison/undercity/internal/tracker"
	"github.com/harrison/undercity/internal/worker"
	"github.com/harrison/undercity/internal/workspace"
)

// app bundles every long-lived subsystem built from one loaded Config, so
// orchestrate/work/status/tasks can share the same wiring instead of each
// reimplementing it.
type app struct {
	cfg       config.Config
	store     *store.Store
	board     *board.Board
	manager   *workspace.Manager
	tracker   *tracker.Tracker
	console   *logger.ConsoleLogger
	eventLog  zerolog.Logger
	eventFile *os.File
	metrics   *metrics.Recorder
	gauges    *metrics.Registry
	learning  *learning.Store
	merge     *merge.Queue
	health    *health.Monitor

	workerDeps worker.Dependencies
	reviewDeps review.Dependencies
}

// newApp loads configPath and wires every subsystem it needs, in the order
// each depends on the last. Call (*app).close when done to flush the event
// log file and the learning database.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.TrunkDir == "" {
		return nil, fail("trunk_dir must be set (config file or UNDERCITY_TRUNK_DIR)")
	}

	st, err := store.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	b := board.New(st)

	worktreeRoot := filepath.Join(cfg.StateDir, "workspaces")
	manager, err := workspace.New(cfg.TrunkDir, worktreeRoot)
	if err != nil {
		return nil, fmt.Errorf("open workspace manager: %w", err)
	}

	tr := tracker.New(cfg.TrunkDir)

	eventLog, eventFile, err := logger.NewEventLog(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	console := logger.NewConsoleLogger(os.Stdout, "info")

	gauges := metrics.NewRegistry()
	recorder := metrics.NewRecorder(st)

	learningStore, err := learning.Open(filepath.Join(cfg.StateDir, "learnings.db"))
	if err != nil {
		return nil, fmt.Errorf("open learning store: %w", err)
	}

	runner := worker.ShellCommandRunner{}
	commands := worker.VerificationCommands{
		Typecheck:  cfg.Verification.Typecheck,
		Lint:       cfg.Verification.Lint,
		Test:       cfg.Verification.Test,
		Build:      cfg.Verification.Build,
		Security:   cfg.Verification.Security,
		Spell:      cfg.Verification.Spell,
		CodeHealth: cfg.Verification.CodeHealth,
	}

	modelForTier := func(t router.Tier) string {
		switch t {
		case router.TierCheap:
			return cfg.Worker.CheapModel
		case router.TierStrong:
			return cfg.Worker.StrongModel
		default:
			return cfg.Worker.MidModel
		}
	}

	modelClient := modelclient.NewAnthropicClient(cfg.AnthropicKey, 8192)

	workerDeps := worker.Dependencies{
		Board:        b,
		Tracker:      tr,
		ModelClient:  modelClient,
		Runner:       runner,
		Baseline:     worker.NewBaselineCache(),
		Commands:     commands,
		ModelForTier: modelForTier,
		Budgets: worker.TierBudgets{
			Cheap:  cfg.Worker.CheapBudget,
			Mid:    cfg.Worker.MidBudget,
			Strong: cfg.Worker.StrongBudget,
			Global: cfg.Worker.GlobalBudget,
		},
	}

	reviewDeps := review.Dependencies{
		ModelClient:  modelClient,
		Runner:       orchestrator.ReviewVerifier{Runner: runner, Commands: commands},
		ModelForTier: modelForTier,
	}

	verifier := orchestrator.TrunkVerifier{Runner: runner, Commands: commands}
	mergeQueue := merge.New(cfg.TrunkDir, manager, verifier)

	healthMonitor := health.New(manager, eventLog,
		health.WithScanInterval(cfg.Health.ScanInterval),
		health.WithStaleThreshold(cfg.Health.StaleThreshold),
		health.WithMaxRecoveryAttempts(cfg.Health.MaxRecoveryAttempts),
		health.WithOnNudge(console.LogHealthNudge),
	)

	a := &app{
		cfg:        cfg,
		store:      st,
		board:      b,
		manager:    manager,
		tracker:    tr,
		console:    console,
		eventLog:   eventLog,
		eventFile:  eventFile,
		metrics:    recorder,
		gauges:     gauges,
		learning:   learningStore,
		merge:      mergeQueue,
		health:     healthMonitor,
		workerDeps: workerDeps,
		reviewDeps: reviewDeps,
	}
	a.workerDeps.Learnings = orchestrator.NewLearningSource(a.learning)
	return a, nil
}

func (a *app) close() {
	if a.learning != nil {
		a.learning.Close()
	}
	if a.eventFile != nil {
		a.eventFile.Close()
	}
}

// orchestratorDeps builds the Dependencies set orchestrator.New expects from
// this app's already-wired subsystems.
func (a *app) orchestratorDeps() orchestrator.Dependencies {
	return orchestrator.Dependencies{
		Board:      a.board,
		Manager:    a.manager,
		Tracker:    a.tracker,
		MergeQueue: a.merge,
		Health:     a.health,
		WorkerDeps: a.workerDeps,
		ReviewDeps: a.reviewDeps,
		Log:        a.eventLog,
		Console:    a.console,
		Metrics:    a.metrics,
		Gauges:     a.gauges,
		Learning:   a.learning,
	}
}
