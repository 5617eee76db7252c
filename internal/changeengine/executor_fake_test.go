package changeengine

import "context"

// fakeExecutor is an in-memory SystemExecutor for tests, mirroring the
// teacher's callback-injection pattern for action dispatch without
// touching the real system.
type fakeExecutor struct {
	installedPackages map[string]bool
	enabledServices   map[string]bool
	wallpaper         string
	readOnlyCalls     int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		installedPackages: map[string]bool{},
		enabledServices:   map[string]bool{},
	}
}

func (f *fakeExecutor) InstallPackages(ctx context.Context, packages []string) error {
	for _, p := range packages {
		f.installedPackages[p] = true
	}
	return nil
}

func (f *fakeExecutor) RemovePackages(ctx context.Context, packages []string) error {
	for _, p := range packages {
		delete(f.installedPackages, p)
	}
	return nil
}

func (f *fakeExecutor) EnableService(ctx context.Context, name string, userScope bool) error {
	f.enabledServices[name] = true
	return nil
}

func (f *fakeExecutor) DisableService(ctx context.Context, name string, userScope bool) error {
	f.enabledServices[name] = false
	return nil
}

func (f *fakeExecutor) SetWallpaper(ctx context.Context, imagePath string) error {
	f.wallpaper = imagePath
	return nil
}

func (f *fakeExecutor) RunReadOnlyCommand(ctx context.Context, command string, args []string) (string, error) {
	f.readOnlyCalls++
	return "", nil
}

func (f *fakeExecutor) IsPackageInstalled(ctx context.Context, name string) (bool, error) {
	return f.installedPackages[name], nil
}

func (f *fakeExecutor) IsServiceEnabled(ctx context.Context, name string, userScope bool) (bool, error) {
	return f.enabledServices[name], nil
}
