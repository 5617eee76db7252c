// Package config loads annad's daemon-wide YAML configuration, following
// the teacher's flat-struct-plus-defaults pattern
// (appliance/internal/daemon/config.go): parse onto a struct pre-filled
// with defaults, then create whatever directories the config names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the annad daemon reads at startup.
type Config struct {
	// Paths
	StateDir string `yaml:"state_dir"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Domain refresh
	ServiceUnits            []string `yaml:"service_units"`
	BackgroundPollInterval  int      `yaml:"background_poll_interval_secs"`
	DefaultRequestDeadlines int      `yaml:"default_request_deadline_ms"`

	// Change engine
	HealingDryRun bool `yaml:"healing_dry_run"`
	BackupRetain  int  `yaml:"backup_retain"`

	// Self-updater
	UpdateChannel       string `yaml:"update_channel"`
	UpdateReleaseIndex  string `yaml:"update_release_index_url"`
	UpdateCheckInterval int    `yaml:"update_check_interval_hours"`
	DaemonUnitName      string `yaml:"daemon_unit_name"`

	// Telemetry
	TelemetryRetentionDays int `yaml:"telemetry_retention_days"`

	// Relationship store
	RelstoreRefreshIntervalHours int `yaml:"relstore_refresh_interval_hours"`
}

// DefaultConfig returns a Config with every field set to its production
// default, before any file or environment override is applied.
func DefaultConfig() Config {
	return Config{
		StateDir:                     "/var/lib/anna",
		LogLevel:                     "INFO",
		ServiceUnits:                 nil,
		BackgroundPollInterval:       30,
		DefaultRequestDeadlines:      250,
		HealingDryRun:                false,
		BackupRetain:                 4,
		UpdateChannel:                "stable",
		UpdateReleaseIndex:           "",
		UpdateCheckInterval:          6,
		DaemonUnitName:               "annad.service",
		TelemetryRetentionDays:       30,
		RelstoreRefreshIntervalHours: 24,
	}
}

// Load reads and parses the YAML file at path onto DefaultConfig's
// values, applies a small set of environment overrides, validates, and
// creates every directory the config names.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if v := os.Getenv("ANNA_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("ANNA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("ANNA_HEALING_DRY_RUN"); v != "" {
		cfg.HealingDryRun = !isFalsy(v)
	}

	if cfg.BackgroundPollInterval < 1 {
		cfg.BackgroundPollInterval = 1
	}
	if cfg.BackupRetain < 1 {
		cfg.BackupRetain = 1
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("config: state_dir is required")
	}

	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("config: create state dir: %w", err)
	}
	for _, dir := range []string{cfg.ChangeEngineBackupDir(), cfg.UpdaterBackupDir(), cfg.StagingDir(), cfg.InternalDir(), cfg.TelemetryDir(), cfg.PlansDir(), cfg.PlanResultsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("config: create %s: %w", dir, err)
		}
	}

	return &cfg, nil
}

// InternalDir is where the domain engine keeps refresh state, the
// request/response spool, and per-domain locks.
func (c *Config) InternalDir() string {
	return filepath.Join(c.StateDir, "internal")
}

// BackupDir is the parent of every subsystem's backup directory.
func (c *Config) BackupDir() string {
	return filepath.Join(c.StateDir, "backups")
}

// ChangeEngineBackupDir is where the change engine stashes pre-change file
// backups for plan rollback. Kept separate from UpdaterBackupDir so the
// updater's FIFO backup-retention cleanup can never evict a change-engine
// backup still needed to roll back an earlier plan.
func (c *Config) ChangeEngineBackupDir() string {
	return filepath.Join(c.BackupDir(), "changeengine")
}

// UpdaterBackupDir is where the self-updater stashes pre-update binary
// backups for crash/failure rollback. See ChangeEngineBackupDir.
func (c *Config) UpdaterBackupDir() string {
	return filepath.Join(c.BackupDir(), "updater")
}

// StagingDir is where the updater downloads and verifies a release
// before installing it.
func (c *Config) StagingDir() string {
	return filepath.Join(c.StateDir, "staging")
}

// TelemetryDir is the base directory for day-partitioned execution
// telemetry logs.
func (c *Config) TelemetryDir() string {
	return filepath.Join(c.StateDir, "telemetry")
}

// PlansDir is where external callers (the CLI, a future specialist)
// drop change-engine plans to be validated and executed.
func (c *Config) PlansDir() string {
	return filepath.Join(c.StateDir, "plans")
}

// PlanResultsDir is where the daemon writes one ExecutionReport per
// processed plan, named after the plan's ID.
func (c *Config) PlanResultsDir() string {
	return filepath.Join(c.StateDir, "plan_results")
}

// RelstoreDBPath is the SQLite database path for the relationship store.
func (c *Config) RelstoreDBPath() string {
	return filepath.Join(c.StateDir, "links.db")
}

// UpdateLockPath is the advisory-lock file path serializing self-update
// runs.
func (c *Config) UpdateLockPath() string {
	return filepath.Join(c.StateDir, "update.lock")
}

// UpdateStatePath is where the self-updater persists its state machine
// progress across restarts.
func (c *Config) UpdateStatePath() string {
	return filepath.Join(c.StateDir, "update_state.json")
}

func isFalsy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "false" || v == "0" || v == "no"
}
