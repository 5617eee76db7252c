package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewRefreshRequestClampsDeadline(t *testing.T) {
	req := NewRefreshRequest(1000, "status", "", []Domain{HwStatic}, 0)
	if time.Duration(req.DeadlineMillis)*time.Millisecond != DefaultDeadline {
		t.Errorf("expected default deadline for zero input, got %dms", req.DeadlineMillis)
	}

	req2 := NewRefreshRequest(1000, "status", "", []Domain{HwStatic}, 10*time.Second)
	if time.Duration(req2.DeadlineMillis)*time.Millisecond != MaxDeadline {
		t.Errorf("expected deadline clamped to MaxDeadline, got %dms", req2.DeadlineMillis)
	}
}

func TestRequestIsExpired(t *testing.T) {
	req := NewRefreshRequest(1000, "status", "", nil, 100*time.Millisecond)
	if req.IsExpired(req.CreatedAt) {
		t.Errorf("freshly created request should not be expired")
	}
	if !req.IsExpired(req.CreatedAt.Add(200 * time.Millisecond)) {
		t.Errorf("request should be expired after its deadline")
	}
}

func TestCleanupOldSpoolFilesRemovesOnlyStale(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "fresh.json")
	stale := filepath.Join(dir, "stale.json")

	if err := os.WriteFile(fresh, []byte("{}"), 0644); err != nil {
		t.Fatalf("write fresh: %v", err)
	}
	if err := os.WriteFile(stale, []byte("{}"), 0644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	oldTime := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(stale, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	CleanupOldSpoolFiles(dir, time.Now())

	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("expected fresh file to survive GC: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected stale file to be removed, stat err = %v", err)
	}
}
