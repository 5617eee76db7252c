package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "annad.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "state_dir: "+filepath.Join(dir, "state")+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("expected default log level INFO, got %q", cfg.LogLevel)
	}
	if cfg.BackgroundPollInterval != 30 {
		t.Errorf("expected default poll interval 30, got %d", cfg.BackgroundPollInterval)
	}
	if cfg.BackupRetain != 4 {
		t.Errorf("expected default backup retain 4, got %d", cfg.BackupRetain)
	}
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
state_dir: `+filepath.Join(dir, "state")+`
log_level: debug
background_poll_interval_secs: 120
update_channel: beta
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level from file, got %q", cfg.LogLevel)
	}
	if cfg.BackgroundPollInterval != 120 {
		t.Errorf("expected overridden poll interval, got %d", cfg.BackgroundPollInterval)
	}
	if cfg.UpdateChannel != "beta" {
		t.Errorf("expected overridden update channel, got %q", cfg.UpdateChannel)
	}
}

func TestLoadCreatesStateSubdirectories(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "state")
	path := writeConfigFile(t, dir, "state_dir: "+stateDir+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{cfg.InternalDir(), cfg.ChangeEngineBackupDir(), cfg.UpdaterBackupDir(), cfg.StagingDir(), cfg.TelemetryDir(), cfg.PlansDir(), cfg.PlanResultsDir()} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", d)
		}
	}
}

func TestLoadRejectsMissingStateDir(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "log_level: info\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error when state_dir is empty")
	}
}

func TestLoadClampsBackgroundPollIntervalToAtLeastOne(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
state_dir: `+filepath.Join(dir, "state")+`
background_poll_interval_secs: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackgroundPollInterval != 1 {
		t.Errorf("expected clamp to 1, got %d", cfg.BackgroundPollInterval)
	}
}

func TestDerivedPathsAreUnderStateDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StateDir = "/var/lib/anna"

	cases := map[string]string{
		cfg.InternalDir():           "/var/lib/anna/internal",
		cfg.BackupDir():             "/var/lib/anna/backups",
		cfg.ChangeEngineBackupDir(): "/var/lib/anna/backups/changeengine",
		cfg.UpdaterBackupDir():      "/var/lib/anna/backups/updater",
		cfg.StagingDir():            "/var/lib/anna/staging",
		cfg.TelemetryDir():          "/var/lib/anna/telemetry",
		cfg.RelstoreDBPath():        "/var/lib/anna/links.db",
		cfg.UpdateLockPath():        "/var/lib/anna/update.lock",
		cfg.UpdateStatePath():       "/var/lib/anna/update_state.json",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
