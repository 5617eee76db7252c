package changeengine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// SystemExecutor performs the non-file-based primitives (package, service,
// wallpaper, inspection). It is injected into Engine so tests can supply a
// fake rather than touching the real system.
type SystemExecutor interface {
	InstallPackages(ctx context.Context, packages []string) error
	RemovePackages(ctx context.Context, packages []string) error
	EnableService(ctx context.Context, name string, userScope bool) error
	DisableService(ctx context.Context, name string, userScope bool) error
	SetWallpaper(ctx context.Context, imagePath string) error
	RunReadOnlyCommand(ctx context.Context, command string, args []string) (string, error)

	IsPackageInstalled(ctx context.Context, name string) (bool, error)
	IsServiceEnabled(ctx context.Context, name string, userScope bool) (bool, error)
}

// PacmanSystemExecutor is the production SystemExecutor for an Arch host:
// pacman for packages, systemctl for services, RunReadOnlyCommand shells
// out to the whitelisted tool directly.
type PacmanSystemExecutor struct{}

func NewPacmanSystemExecutor() *PacmanSystemExecutor { return &PacmanSystemExecutor{} }

func (e *PacmanSystemExecutor) InstallPackages(ctx context.Context, packages []string) error {
	args := append([]string{"-S", "--noconfirm"}, packages...)
	return runShellCommand(ctx, "pacman", args...)
}

func (e *PacmanSystemExecutor) RemovePackages(ctx context.Context, packages []string) error {
	args := append([]string{"-R", "--noconfirm"}, packages...)
	return runShellCommand(ctx, "pacman", args...)
}

func (e *PacmanSystemExecutor) EnableService(ctx context.Context, name string, userScope bool) error {
	args := systemctlArgs(userScope, "enable", name)
	return runShellCommand(ctx, "systemctl", args...)
}

func (e *PacmanSystemExecutor) DisableService(ctx context.Context, name string, userScope bool) error {
	args := systemctlArgs(userScope, "disable", name)
	return runShellCommand(ctx, "systemctl", args...)
}

func (e *PacmanSystemExecutor) SetWallpaper(ctx context.Context, imagePath string) error {
	return runShellCommand(ctx, "feh", "--bg-fill", imagePath)
}

func (e *PacmanSystemExecutor) RunReadOnlyCommand(ctx context.Context, command string, args []string) (string, error) {
	if !IsWhitelistedReadOnlyCommand(command) {
		return "", fmt.Errorf("changeengine: %q is not in the read-only command whitelist", command)
	}
	out, err := exec.CommandContext(ctx, command, args...).CombinedOutput()
	return string(out), err
}

func (e *PacmanSystemExecutor) IsPackageInstalled(ctx context.Context, name string) (bool, error) {
	err := exec.CommandContext(ctx, "pacman", "-Qi", name).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if isExitError(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func (e *PacmanSystemExecutor) IsServiceEnabled(ctx context.Context, name string, userScope bool) (bool, error) {
	args := systemctlArgs(userScope, "is-enabled", name)
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "systemctl", args...)
	cmd.Stdout = &out
	err := cmd.Run()
	return err == nil && string(bytes.TrimSpace(out.Bytes())) == "enabled", nil
}

func systemctlArgs(userScope bool, verb, name string) []string {
	if userScope {
		return []string{"--user", verb, name}
	}
	return []string{verb, name}
}

func runShellCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, bytes.TrimSpace(out))
	}
	return nil
}

func isExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// readOnlyCommandWhitelist is the static, build-time whitelist for
// RunReadOnlyCommand: inspection tools only, never anything that mutates
// state.
var readOnlyCommandWhitelist = map[string]bool{
	"pacman":     true, // only the command name is checked; pacman's arguments are not restricted
	"systemctl":  true,
	"ls":         true,
	"cat":        true,
	"grep":       true,
	"df":         true,
	"free":       true,
	"uname":      true,
	"journalctl": true,
	"lsblk":      true,
	"lspci":      true,
	"lsusb":      true,
	"ip":         true,
	"iw":         true,
}

// IsWhitelistedReadOnlyCommand reports whether command may be used with
// RunReadOnlyCommand.
func IsWhitelistedReadOnlyCommand(command string) bool {
	return readOnlyCommandWhitelist[command]
}
