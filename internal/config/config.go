// Package config binds the orchestrator's tunables from a config file and
// environment variables into one explicit option tree, using
// spf13/viper (replacing the teacher's flat YAML-struct approach with a
// layered source so UNDERCITY_* env vars and a config file agree on the same
// keys).
package config

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// BoardConfig sets how many ready Task Board tasks are dispatched at once.
type BoardConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// WorkerConfig controls per-task worker behavior: tier budgets and per-tier
// models. WriteCeiling and BaselineTTL are not read; the worker uses
// worker.DefaultWriteCeiling and a fixed 24h baseline cache TTL.
type WorkerConfig struct {
	WriteCeiling   int           `mapstructure:"write_ceiling"`
	CheapBudget    int           `mapstructure:"cheap_budget"`
	MidBudget      int           `mapstructure:"mid_budget"`
	StrongBudget   int           `mapstructure:"strong_budget"`
	GlobalBudget   int           `mapstructure:"global_budget"`
	BaselineTTL    time.Duration `mapstructure:"baseline_ttl"`
	CheapModel     string        `mapstructure:"cheap_model"`
	MidModel       string        `mapstructure:"mid_model"`
	StrongModel    string        `mapstructure:"strong_model"`
}

// VerificationConfig names the project commands the Worker and Merge Queue
// run. Empty commands are skipped (never block a pass).
type VerificationConfig struct {
	Typecheck  string `mapstructure:"typecheck"`
	Lint       string `mapstructure:"lint"`
	Test       string `mapstructure:"test"`
	Build      string `mapstructure:"build"`
	Security   string `mapstructure:"security"`
	Spell      string `mapstructure:"spell"`
	CodeHealth string `mapstructure:"code_health"`
}

// ReviewConfig holds the Review Pipeline's passes per tier. The pipeline does
// not read it; it uses review.DefaultPassesPerTier.
type ReviewConfig struct {
	PassesPerTier int `mapstructure:"passes_per_tier"`
}

// MergeConfig holds Merge Queue retry settings. merge.New does not take them;
// the queue uses its own fixed values (3 retries, 1s base delay, 30s cap).
type MergeConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// HealthConfig controls the Health Monitor.
type HealthConfig struct {
	ScanInterval        time.Duration `mapstructure:"scan_interval"`
	StaleThreshold       time.Duration `mapstructure:"stale_threshold"`
	MaxRecoveryAttempts int           `mapstructure:"max_recovery_attempts"`
}

// APIConfig holds settings for the loopback-only debug HTTP API in
// internal/httpapi. No command starts that server, so they are not read.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Config is the full, explicit option tree for one undercity run.
type Config struct {
	StateDir     string              `mapstructure:"state_dir"`
	TrunkDir     string              `mapstructure:"trunk_dir"`
	BaseRef      string              `mapstructure:"base_ref"`
	AnthropicKey string              `mapstructure:"anthropic_api_key"`
	Board        BoardConfig         `mapstructure:"board"`
	Worker       WorkerConfig        `mapstructure:"worker"`
	Verification VerificationConfig  `mapstructure:"verification"`
	Review       ReviewConfig        `mapstructure:"review"`
	Merge        MergeConfig         `mapstructure:"merge"`
	Health       HealthConfig        `mapstructure:"health"`
	API          APIConfig           `mapstructure:"api"`
}

// Defaults mirrors every spec-stated default, used as the viper base layer
// so a mostly-empty config file or environment is enough to run.
func Defaults() Config {
	return Config{
		BaseRef: "HEAD",
		Board:   BoardConfig{MaxConcurrent: 3},
		Worker: WorkerConfig{
			WriteCeiling: 5,
			CheapBudget:  2,
			MidBudget:    3,
			StrongBudget: 2,
			GlobalBudget: 7,
			BaselineTTL:  24 * time.Hour,
			CheapModel:   "claude-haiku-4-5",
			MidModel:     "claude-sonnet-4-5",
			StrongModel:  "claude-opus-4-1",
		},
		Review: ReviewConfig{PassesPerTier: 2},
		Merge: MergeConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
		},
		Health: HealthConfig{
			ScanInterval:        60 * time.Second,
			StaleThreshold:      300 * time.Second,
			MaxRecoveryAttempts: 2,
		},
		API: APIConfig{Enabled: false, Port: 4173},
	}
}

// Load reads configPath (if non-empty) and UNDERCITY_* environment
// variables over the Defaults() baseline.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UNDERCITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Defaults()
	if err := v.MergeConfigMap(structToMap(defaults)); err != nil {
		return Config{}, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return Config{}, err
	}

	if cfg.StateDir == "" {
		home, err := Home()
		if err != nil {
			return Config{}, err
		}
		cfg.StateDir = home
	}

	return cfg, nil
}

// structToMap renders Defaults() as the map viper merges in as its base
// config layer, using the same mapstructure keys Load's final Unmarshal
// expects.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"base_ref":  cfg.BaseRef,
		"state_dir": cfg.StateDir,
		"trunk_dir": cfg.TrunkDir,
		"verification": map[string]any{
			"typecheck":   cfg.Verification.Typecheck,
			"lint":        cfg.Verification.Lint,
			"test":        cfg.Verification.Test,
			"build":       cfg.Verification.Build,
			"security":    cfg.Verification.Security,
			"spell":       cfg.Verification.Spell,
			"code_health": cfg.Verification.CodeHealth,
		},
		"board": map[string]any{
			"max_concurrent": cfg.Board.MaxConcurrent,
		},
		"worker": map[string]any{
			"write_ceiling": cfg.Worker.WriteCeiling,
			"cheap_budget":  cfg.Worker.CheapBudget,
			"mid_budget":    cfg.Worker.MidBudget,
			"strong_budget": cfg.Worker.StrongBudget,
			"global_budget": cfg.Worker.GlobalBudget,
			"baseline_ttl":  cfg.Worker.BaselineTTL,
			"cheap_model":   cfg.Worker.CheapModel,
			"mid_model":     cfg.Worker.MidModel,
			"strong_model":  cfg.Worker.StrongModel,
		},
		"review": map[string]any{
			"passes_per_tier": cfg.Review.PassesPerTier,
		},
		"merge": map[string]any{
			"max_retries": cfg.Merge.MaxRetries,
			"base_delay":  cfg.Merge.BaseDelay,
			"max_delay":   cfg.Merge.MaxDelay,
		},
		"health": map[string]any{
			"scan_interval":         cfg.Health.ScanInterval,
			"stale_threshold":       cfg.Health.StaleThreshold,
			"max_recovery_attempts": cfg.Health.MaxRecoveryAttempts,
		},
		"api": map[string]any{
			"enabled": cfg.API.Enabled,
			"port":    cfg.API.Port,
		},
	}
}
