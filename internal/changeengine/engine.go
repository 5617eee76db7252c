package changeengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/annaproj/annad/internal/persistence"
)

// ValidationError is returned by Validate. It always carries enough detail
// for the caller to show the user exactly what was rejected and why.
type ValidationError struct {
	PlanID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("changeengine: plan %s rejected: %s", e.PlanID, e.Reason)
}

// Engine validates and executes plans against the live system, backing up
// every mutated file first and rolling back on any execution or
// verification failure.
type Engine struct {
	BackupDir string
	Executor  SystemExecutor
}

// New builds an Engine that writes backups under backupDir and dispatches
// non-file primitives through executor.
func New(backupDir string, executor SystemExecutor) *Engine {
	return &Engine{BackupDir: backupDir, Executor: executor}
}

// Validate checks a plan is safe to execute: non-empty, no Forbidden
// action, and every RunReadOnlyCommand targets a whitelisted tool. It is
// pure and idempotent — it never touches the filesystem or the executor.
func (e *Engine) Validate(plan Plan) error {
	if len(plan.Actions) == 0 {
		return &ValidationError{PlanID: plan.ID, Reason: "plan has no actions"}
	}

	for _, a := range plan.Actions {
		if a.Risk == RiskForbidden {
			detail := forbiddenDetail(a.Kind)
			return &ValidationError{
				PlanID: plan.ID,
				Reason: fmt.Sprintf("action %q is FORBIDDEN%s", a.Description, detail),
			}
		}
		if ro, ok := a.Kind.(RunReadOnlyCommand); ok {
			if !IsWhitelistedReadOnlyCommand(ro.Command) {
				return &ValidationError{
					PlanID: plan.ID,
					Reason: fmt.Sprintf("command %q is not in the read-only whitelist", ro.Command),
				}
			}
		}
	}

	return nil
}

func forbiddenDetail(k ActionKind) string {
	switch v := k.(type) {
	case EditFile:
		return fmt.Sprintf(" (path: %s)", v.Path)
	case AppendToFile:
		return fmt.Sprintf(" (path: %s)", v.Path)
	default:
		return ""
	}
}

// rollbackEntry is one restorable step. Only file-based actions produce
// one; package, service and wallpaper actions get no entry and are not
// reverted by rollback.
type rollbackEntry struct {
	path         string
	backupPath   string
	backupSHA256 string
	// existed is false when the action created path from nothing; rollback
	// then deletes it instead of restoring backup content.
	existed bool
}

// ExecutionReport is the result of executing a plan.
type ExecutionReport struct {
	PlanID          string
	SudoRequired    bool
	ActionsApplied  int
	RolledBack      bool
	PartialRollback bool
	Err             error
}

// Execute runs every action in plan in order, backing up mutated files
// first. On any execution or verification failure it rolls back every
// applied file change, in reverse order, and returns a report describing
// what happened. Package, service and wallpaper actions that already ran
// are not reverted.
func (e *Engine) Execute(ctx context.Context, plan Plan) ExecutionReport {
	report := ExecutionReport{PlanID: plan.ID}

	if err := e.Validate(plan); err != nil {
		report.Err = err
		return report
	}

	for _, a := range plan.Actions {
		if a.Kind.NeedsSudo() {
			report.SudoRequired = true
		}
	}

	var stack []rollbackEntry

	for _, action := range plan.Actions {
		entry, err := e.applyAndVerify(ctx, action)
		if entry != nil {
			stack = append(stack, *entry)
		}
		if err != nil {
			log.Printf("[changeengine] action %s failed: %v, rolling back %d step(s)", action.ID, err, len(stack))
			report.Err = fmt.Errorf("action %s (%s): %w", action.ID, action.Description, err)
			if rbErr := e.rollback(stack); rbErr != nil {
				report.PartialRollback = true
				report.Err = fmt.Errorf("%w; partial rollback: %v", report.Err, rbErr)
			} else {
				report.RolledBack = true
			}
			return report
		}
		report.ActionsApplied++
	}

	return report
}

// applyAndVerify performs one action's primitive and its post-condition
// check. It returns a non-nil rollbackEntry whenever the action backed up
// a file, regardless of whether the action ultimately succeeded, so the
// caller can always unwind.
func (e *Engine) applyAndVerify(ctx context.Context, action Action) (*rollbackEntry, error) {
	switch k := action.Kind.(type) {
	case EditFile:
		return e.applyEditFile(k.Path, k.Strategy)
	case AppendToFile:
		return e.applyAppendToFile(k.Path, k.Content)
	case InstallPackages:
		if err := e.Executor.InstallPackages(ctx, k.Packages); err != nil {
			return nil, err
		}
		return nil, e.verifyPackagesInstalled(ctx, k.Packages)
	case RemovePackages:
		if err := e.Executor.RemovePackages(ctx, k.Packages); err != nil {
			return nil, err
		}
		return nil, nil
	case EnableService:
		if err := e.Executor.EnableService(ctx, k.Name, k.UserScope); err != nil {
			return nil, err
		}
		return nil, e.verifyServiceEnabled(ctx, k.Name, k.UserScope, true)
	case DisableService:
		if err := e.Executor.DisableService(ctx, k.Name, k.UserScope); err != nil {
			return nil, err
		}
		return nil, e.verifyServiceEnabled(ctx, k.Name, k.UserScope, false)
	case SetWallpaper:
		return nil, e.Executor.SetWallpaper(ctx, k.ImagePath)
	case RunReadOnlyCommand:
		_, err := e.Executor.RunReadOnlyCommand(ctx, k.Command, k.Args)
		return nil, err
	default:
		return nil, fmt.Errorf("changeengine: unhandled action kind %T", action.Kind)
	}
}

func (e *Engine) verifyPackagesInstalled(ctx context.Context, packages []string) error {
	for _, p := range packages {
		ok, err := e.Executor.IsPackageInstalled(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("package %s not installed after install step", p)
		}
	}
	return nil
}

func (e *Engine) verifyServiceEnabled(ctx context.Context, name string, userScope, wantEnabled bool) error {
	enabled, err := e.Executor.IsServiceEnabled(ctx, name, userScope)
	if err != nil {
		return err
	}
	if enabled != wantEnabled {
		return fmt.Errorf("service %s enabled=%v, want %v", name, enabled, wantEnabled)
	}
	return nil
}

// applyEditFile backs up path (if it exists), applies strategy, atomically
// installs the new content, then re-reads it back to verify the write
// stuck.
func (e *Engine) applyEditFile(path string, strategy EditStrategy) (*rollbackEntry, error) {
	entry, original, existed, err := e.backupFile(path)
	if err != nil {
		return nil, err
	}

	newContent, err := applyStrategy(original, existed, strategy)
	if err != nil {
		return entry, err
	}

	perm := os.FileMode(0644)
	if existed {
		if info, statErr := os.Stat(path); statErr == nil {
			perm = info.Mode().Perm()
		}
	}

	if err := persistence.AtomicWriteFile(path, newContent, perm); err != nil {
		return entry, err
	}

	readBack, err := os.ReadFile(path)
	if err != nil {
		return entry, fmt.Errorf("verify: re-read %s: %w", path, err)
	}
	if string(readBack) != string(newContent) {
		return entry, fmt.Errorf("verify: %s content mismatch after write", path)
	}

	return entry, nil
}

// applyAppendToFile unconditionally appends content to path, unlike
// AppendIfMissing's dedup check — AppendToFile is the blunt primitive, not
// an idempotent one.
func (e *Engine) applyAppendToFile(path, content string) (*rollbackEntry, error) {
	entry, original, existed, err := e.backupFile(path)
	if err != nil {
		return nil, err
	}

	newContent := string(original) + content

	perm := os.FileMode(0644)
	if existed {
		if info, statErr := os.Stat(path); statErr == nil {
			perm = info.Mode().Perm()
		}
	}

	if err := persistence.AtomicWriteFile(path, []byte(newContent), perm); err != nil {
		return entry, err
	}

	readBack, err := os.ReadFile(path)
	if err != nil {
		return entry, fmt.Errorf("verify: re-read %s: %w", path, err)
	}
	if string(readBack) != newContent {
		return entry, fmt.Errorf("verify: %s content mismatch after append", path)
	}

	return entry, nil
}

func applyStrategy(original []byte, existed bool, strategy EditStrategy) ([]byte, error) {
	switch s := strategy.(type) {
	case AppendIfMissing:
		content := string(original)
		for _, line := range s.Lines {
			if !strings.Contains(content, line) {
				if len(content) > 0 && !strings.HasSuffix(content, "\n") {
					content += "\n"
				}
				content += line + "\n"
			}
		}
		return []byte(content), nil
	case ReplaceSection:
		content := string(original)
		startIdx := strings.Index(content, s.StartMarker)
		endIdx := strings.Index(content, s.EndMarker)
		if startIdx < 0 || endIdx < 0 || endIdx < startIdx {
			return nil, fmt.Errorf("replace_section: markers not found or out of order")
		}
		if strings.Count(content, s.StartMarker) != 1 || strings.Count(content, s.EndMarker) != 1 {
			return nil, fmt.Errorf("replace_section: markers must appear exactly once")
		}
		sectionStart := startIdx + len(s.StartMarker)
		return []byte(content[:sectionStart] + s.NewContent + content[endIdx:]), nil
	case ReplaceEntire:
		return []byte(s.NewContent), nil
	default:
		return nil, fmt.Errorf("changeengine: unhandled edit strategy %T", strategy)
	}
}

// backupFile copies path's current content into BackupDir and returns a
// rollbackEntry plus the original bytes. When path does not exist yet, it
// still returns a rollbackEntry (existed=false, no backup file) so the
// action's eventual file creation can be undone by deleting it on rollback
// — a nil entry would silently drop that undo step.
func (e *Engine) backupFile(path string) (*rollbackEntry, []byte, bool, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &rollbackEntry{path: path, existed: false}, nil, false, nil
		}
		return nil, nil, false, err
	}

	if err := os.MkdirAll(e.BackupDir, 0755); err != nil {
		return nil, nil, false, err
	}

	sum := sha256.Sum256(original)
	checksum := hex.EncodeToString(sum[:])
	backupPath := filepath.Join(e.BackupDir, fmt.Sprintf("%s-%d", filepath.Base(path), time.Now().UnixNano()))

	if err := os.WriteFile(backupPath, original, 0644); err != nil {
		return nil, nil, false, fmt.Errorf("backup %s: %w", path, err)
	}

	return &rollbackEntry{path: path, backupPath: backupPath, backupSHA256: checksum, existed: true}, original, true, nil
}

// rollback undoes every entry in stack, in reverse order: entries that
// backed up pre-existing content are restored and checksum-verified;
// entries for a file the action created from nothing are deleted instead.
// A failure here is reported distinctly as "partial rollback" and stops
// immediately — it is never retried.
func (e *Engine) rollback(stack []rollbackEntry) error {
	for i := len(stack) - 1; i >= 0; i-- {
		entry := stack[i]
		if !entry.existed {
			if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("partial rollback: remove created file %s: %w", entry.path, err)
			}
			continue
		}
		data, err := os.ReadFile(entry.backupPath)
		if err != nil {
			return fmt.Errorf("partial rollback: read backup %s: %w", entry.backupPath, err)
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != entry.backupSHA256 {
			return fmt.Errorf("partial rollback: backup %s checksum mismatch", entry.backupPath)
		}
		if err := persistence.AtomicWriteFile(entry.path, data, 0644); err != nil {
			return fmt.Errorf("partial rollback: restore %s: %w", entry.path, err)
		}
	}
	return nil
}
