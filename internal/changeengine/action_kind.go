package changeengine

// ActionKind is the closed, whitelisted set of mutations Anna may perform.
// It is implemented as a tagged variant with exhaustive switches in every
// primitive (risk, sudo, category, execute, rollback) — adding a new kind
// must force every one of those switches to be revisited.
type ActionKind interface {
	// Tag is the wire-format discriminator (snake_case variant name).
	Tag() string
	// Category returns this kind's change category, independent of any
	// path- or package-specific risk override.
	Category() Category
	// Risk computes the derived risk for this specific instance, applying
	// path/package overrides on top of Category().DefaultRisk().
	Risk() Risk
	// NeedsSudo reports whether executing this action requires elevated
	// privileges.
	NeedsSudo() bool
}

// EditStrategy is the closed set of ways EditFile may mutate a file.
type EditStrategy interface {
	Tag() string
}

// AppendIfMissing appends each line in Lines that is not already present
// verbatim in the file. Applying it twice is a no-op the second time.
type AppendIfMissing struct {
	Lines []string `json:"lines"`
}

func (AppendIfMissing) Tag() string { return "append_if_missing" }

// ReplaceSection replaces the strict interior between StartMarker and
// EndMarker with NewContent. Both markers must appear exactly once.
type ReplaceSection struct {
	StartMarker string `json:"start_marker"`
	EndMarker   string `json:"end_marker"`
	NewContent  string `json:"new_content"`
}

func (ReplaceSection) Tag() string { return "replace_section" }

// ReplaceEntire overwrites the whole file. Callers upstream are
// responsible for explicit confirmation before constructing this
// strategy — the engine itself applies no extra gate beyond the normal
// risk/backup/rollback discipline.
type ReplaceEntire struct {
	NewContent string `json:"new_content"`
}

func (ReplaceEntire) Tag() string { return "replace_entire" }

// EditFile edits Path using Strategy.
type EditFile struct {
	Path     string       `json:"path"`
	Strategy EditStrategy `json:"strategy"`
}

func (EditFile) Tag() string          { return "edit_file" }
func (a EditFile) Category() Category { return pathCategory(a.Path) }
func (a EditFile) Risk() Risk         { return pathRisk(a.Path) }
func (a EditFile) NeedsSudo() bool    { return pathNeedsSudo(a.Path) }

// AppendToFile appends Content verbatim to Path.
type AppendToFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (AppendToFile) Tag() string          { return "append_to_file" }
func (a AppendToFile) Category() Category { return pathCategory(a.Path) }
func (a AppendToFile) Risk() Risk         { return pathRisk(a.Path) }
func (a AppendToFile) NeedsSudo() bool    { return pathNeedsSudo(a.Path) }

// InstallPackages installs Packages via pacman.
type InstallPackages struct {
	Packages []string `json:"packages"`
}

func (InstallPackages) Tag() string          { return "install_packages" }
func (InstallPackages) Category() Category   { return CategorySystemPackage }
func (a InstallPackages) Risk() Risk {
	for _, p := range a.Packages {
		if isCriticalPackage(p) {
			return RiskHigh
		}
	}
	return CategorySystemPackage.DefaultRisk()
}
func (InstallPackages) NeedsSudo() bool { return true }

// RemovePackages removes Packages via pacman.
type RemovePackages struct {
	Packages []string `json:"packages"`
}

func (RemovePackages) Tag() string        { return "remove_packages" }
func (RemovePackages) Category() Category { return CategorySystemPackage }
func (RemovePackages) Risk() Risk         { return CategorySystemPackage.DefaultRisk() }
func (RemovePackages) NeedsSudo() bool    { return true }

// EnableService enables a systemd unit, system- or user-scoped.
type EnableService struct {
	Name      string `json:"service_name"`
	UserScope bool   `json:"user_service"`
}

func (EnableService) Tag() string        { return "enable_service" }
func (EnableService) Category() Category { return CategorySystemService }
func (EnableService) Risk() Risk         { return CategorySystemService.DefaultRisk() }
func (a EnableService) NeedsSudo() bool  { return !a.UserScope }

// DisableService disables a systemd unit, system- or user-scoped.
type DisableService struct {
	Name      string `json:"service_name"`
	UserScope bool   `json:"user_service"`
}

func (DisableService) Tag() string        { return "disable_service" }
func (DisableService) Category() Category { return CategorySystemService }
func (DisableService) Risk() Risk         { return CategorySystemService.DefaultRisk() }
func (a DisableService) NeedsSudo() bool  { return !a.UserScope }

// SetWallpaper sets the desktop wallpaper to ImagePath. Applying it twice
// with the same path is observationally equivalent to once.
type SetWallpaper struct {
	ImagePath string `json:"image_path"`
}

func (SetWallpaper) Tag() string        { return "set_wallpaper" }
func (SetWallpaper) Category() Category { return CategoryCosmeticUser }
func (SetWallpaper) Risk() Risk         { return CategoryCosmeticUser.DefaultRisk() }
func (SetWallpaper) NeedsSudo() bool    { return false }

// RunReadOnlyCommand runs an inspection-only command. The engine rejects
// any command not present in the static whitelist at validation time.
type RunReadOnlyCommand struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

func (RunReadOnlyCommand) Tag() string        { return "run_read_only_command" }
func (RunReadOnlyCommand) Category() Category { return CategoryCosmeticUser }
func (RunReadOnlyCommand) Risk() Risk         { return CategoryCosmeticUser.DefaultRisk() }
func (RunReadOnlyCommand) NeedsSudo() bool    { return false }
