package persistence

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is a single-writer, whole-process advisory lock backed by
// flock(2). It is used for the self-updater's exclusive update lock and
// for per-domain refresh locks in the domain refresh engine.
type FileLock struct {
	path string
	f    *os.File
}

// AcquireFileLock opens (creating if necessary) the lock file at path and
// takes a non-blocking exclusive flock. It fails fast if the lock is
// already held by another process, matching the updater's "fail fast if
// held" contract.
func AcquireFileLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s held by another process: %w", path, err)
	}

	return &FileLock{path: path, f: f}, nil
}

// Release drops the lock. It is safe to call multiple times. Callers
// should release via defer immediately after a successful acquire so the
// lock is dropped on every return path, including a panic unwind.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return closeErr
}
