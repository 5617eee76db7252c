package changeengine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// S1 — Forbidden bootloader edit rejected.
func TestValidateRejectsForbiddenBootloaderEdit(t *testing.T) {
	action := NewAction(
		EditFile{Path: "/boot/grub/grub.cfg", Strategy: AppendIfMissing{Lines: []string{"GRUB_TIMEOUT=5"}}},
		"tune grub timeout",
		"boot menu shows longer",
	)
	plan := NewPlan("Grub tweak", "adjust timeout", "faster login", []Action{action}, "restore grub.cfg from backup", SourceManual)

	err := New(t.TempDir(), newFakeExecutor()).Validate(plan)
	if err == nil {
		t.Fatalf("expected validation error for forbidden path")
	}
	if !strings.Contains(err.Error(), "/boot/grub/grub.cfg") {
		t.Errorf("expected error to name the path, got: %v", err)
	}
	if !strings.Contains(strings.ToUpper(err.Error()), "FORBIDDEN") {
		t.Errorf("expected error to contain FORBIDDEN, got: %v", err)
	}
}

// S2 — User dotfile append is idempotent.
func TestAppendIfMissingIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".vimrc")
	if err := os.WriteFile(path, []byte("syntax on\n"), 0644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	action := NewAction(
		EditFile{Path: path, Strategy: AppendIfMissing{Lines: []string{"syntax on"}}},
		"ensure syntax highlighting enabled",
		"no visible effect, already configured",
	)
	plan := NewPlan("Vim tweak", "enable syntax", "readability", []Action{action}, "restore .vimrc from backup", SourceManual)

	engine := New(filepath.Join(dir, "backups"), newFakeExecutor())
	if err := engine.Validate(plan); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	report := engine.Execute(context.Background(), plan)
	if report.Err != nil {
		t.Fatalf("unexpected execution error: %v", report.Err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "syntax on\n" {
		t.Errorf("expected unchanged content, got %q", data)
	}

	backups, _ := filepath.Glob(filepath.Join(dir, "backups", "*"))
	if len(backups) != 1 {
		t.Errorf("expected exactly one backup entry, found %d", len(backups))
	}
}

// S3 — Critical package install promoted to High risk.
func TestInstallCriticalPackagePromotedToHighRisk(t *testing.T) {
	action := NewAction(InstallPackages{Packages: []string{"systemd"}}, "upgrade systemd", "brief service restarts")
	if action.Risk != RiskHigh {
		t.Errorf("expected RiskHigh for systemd install, got %v", action.Risk)
	}
	if !action.Kind.NeedsSudo() {
		t.Errorf("expected package install to require sudo")
	}
}

func TestInstallOrdinaryPackageIsMediumRisk(t *testing.T) {
	action := NewAction(InstallPackages{Packages: []string{"htop"}}, "install htop", "adds a process viewer")
	if action.Risk != RiskMedium {
		t.Errorf("expected RiskMedium for ordinary package, got %v", action.Risk)
	}
}

func TestEmptyPlanFailsValidation(t *testing.T) {
	plan := NewPlan("Nothing", "no actions", "n/a", nil, "n/a", SourceManual)
	if err := New(t.TempDir(), newFakeExecutor()).Validate(plan); err == nil {
		t.Fatalf("expected empty plan to fail validation")
	}
}

func TestOverallRiskIsMaxOfActions(t *testing.T) {
	actions := []Action{
		NewAction(SetWallpaper{ImagePath: "/home/user/wall.png"}, "set wallpaper", "cosmetic"),
		NewAction(InstallPackages{Packages: []string{"htop"}}, "install htop", "adds a tool"),
		NewAction(EnableService{Name: "sshd", UserScope: false}, "enable sshd", "remote login available"),
	}
	plan := NewPlan("Mixed plan", "multiple changes", "bundle", actions, "undo each step", SourceManual)
	if plan.OverallRisk != RiskHigh {
		t.Errorf("expected overall risk High (from enable_service), got %v", plan.OverallRisk)
	}
}

func TestExecuteRollsBackOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.conf")
	if err := os.WriteFile(path, []byte("original content\n"), 0644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	goodAction := NewAction(
		EditFile{Path: path, Strategy: AppendIfMissing{Lines: []string{"new line"}}},
		"append line",
		"minor",
	)
	badAction := NewAction(
		EditFile{Path: path, Strategy: ReplaceSection{StartMarker: "NOPE_START", EndMarker: "NOPE_END", NewContent: "x"}},
		"broken replace",
		"should fail",
	)
	plan := NewPlan("Two steps", "one good one bad", "test rollback", []Action{goodAction, badAction}, "restore config.conf", SourceManual)

	engine := New(filepath.Join(dir, "backups"), newFakeExecutor())
	report := engine.Execute(context.Background(), plan)

	if report.Err == nil {
		t.Fatalf("expected execution to fail on the bad action")
	}
	if !report.RolledBack {
		t.Errorf("expected RolledBack=true")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "original content\n" {
		t.Errorf("expected file restored to original content, got %q", data)
	}
}

// Rollback must undo a file an earlier, successful action created from
// nothing, not just restore files that already had content.
func TestExecuteRollbackDeletesFileCreatedByFailedPlan(t *testing.T) {
	dir := t.TempDir()
	newPath := filepath.Join(dir, ".newrc")

	createAction := NewAction(
		EditFile{Path: newPath, Strategy: AppendIfMissing{Lines: []string{"export FOO=bar"}}},
		"create newrc",
		"adds a new dotfile",
	)
	badAction := NewAction(
		EditFile{Path: newPath, Strategy: ReplaceSection{StartMarker: "NOPE_START", EndMarker: "NOPE_END", NewContent: "x"}},
		"broken replace",
		"should fail",
	)
	plan := NewPlan("Create then fail", "one creates, one fails", "test rollback of creation", []Action{createAction, badAction}, "remove newrc", SourceManual)

	engine := New(filepath.Join(dir, "backups"), newFakeExecutor())
	report := engine.Execute(context.Background(), plan)

	if report.Err == nil {
		t.Fatalf("expected execution to fail on the bad action")
	}
	if !report.RolledBack {
		t.Errorf("expected RolledBack=true")
	}
	if _, err := os.Stat(newPath); !os.IsNotExist(err) {
		t.Errorf("expected newly created file to be removed on rollback, stat err = %v", err)
	}
}

func TestActionKindWireRoundTrip(t *testing.T) {
	original := NewAction(
		EditFile{Path: "/home/user/.zshrc", Strategy: ReplaceSection{StartMarker: "# BEGIN", EndMarker: "# END", NewContent: "export PATH=$PATH:/opt/bin"}},
		"update PATH block",
		"new tools available in shell",
	)

	data, err := original.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Action
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.Kind.(EditFile).Path != "/home/user/.zshrc" {
		t.Errorf("path did not round-trip")
	}
	strategy, ok := decoded.Kind.(EditFile).Strategy.(ReplaceSection)
	if !ok {
		t.Fatalf("expected ReplaceSection strategy, got %T", decoded.Kind.(EditFile).Strategy)
	}
	if strategy.NewContent != "export PATH=$PATH:/opt/bin" {
		t.Errorf("strategy content did not round-trip")
	}
	if decoded.Risk != original.Risk {
		t.Errorf("risk did not round-trip: got %v, want %v", decoded.Risk, original.Risk)
	}
}

func TestUnmarshalActionKindRejectsUnknownVariant(t *testing.T) {
	_, err := UnmarshalActionKind([]byte(`{"type":"format_disk","path":"/dev/sda"}`))
	if err == nil {
		t.Fatalf("expected unknown action kind variant to be a hard error")
	}
}
