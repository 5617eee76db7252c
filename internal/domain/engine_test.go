package domain

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annaproj/annad/internal/persistence"
	"github.com/annaproj/annad/internal/probe"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	root := t.TempDir()
	return NewEngine(root, probe.NewRegistry(), GatherOptions{})
}

func TestRunOnceSwServicesEmptyUnitsRecordsRefresh(t *testing.T) {
	e := newTestEngine(t)
	state, err := e.RunOnce(context.Background(), SwServices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Result != ResultOk {
		t.Errorf("expected ResultOk, got %v", state.Result)
	}
	if state.EntityCount != 0 {
		t.Errorf("expected zero entities for an unconfigured sw.services gather, got %d", state.EntityCount)
	}
	if state.Fingerprint != fingerprint(entitySet{}) {
		t.Errorf("expected fingerprint of the empty entity set")
	}
}

// TestRunOnceSkipsOnUnchangedFingerprint covers S6: a second refresh that
// observes the same entity set as the prior one must record_skip(), not
// record_refresh(), and must leave last_refresh_at untouched.
func TestRunOnceSkipsOnUnchangedFingerprint(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.RunOnce(ctx, SwServices)
	if err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if first.Result != ResultOk {
		t.Fatalf("expected first refresh to record ResultOk, got %v", first.Result)
	}
	firstRefreshAt := *first.LastRefreshAt

	time.Sleep(5 * time.Millisecond)

	second, err := e.RunOnce(ctx, SwServices)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if second.Result != ResultSkipped {
		t.Errorf("expected ResultSkipped on unchanged fingerprint, got %v", second.Result)
	}
	if !second.LastRefreshAt.Equal(firstRefreshAt) {
		t.Errorf("expected last_refresh_at to stay at the last real change, got %v want %v", second.LastRefreshAt, firstRefreshAt)
	}
}

func TestRunOnceReturnsLastKnownStateWhenLockHeld(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.ensureDirs(); err != nil {
		t.Fatalf("ensureDirs: %v", err)
	}

	primed := NewDomainRefreshState(SwServices)
	now := time.Now().UTC()
	primed.RecordRefresh(now, time.Millisecond, "priorfingerprint", 2, 2, 0, 0)
	if err := e.saveState(primed); err != nil {
		t.Fatalf("priming saveState: %v", err)
	}

	lock, err := persistence.AcquireFileLock(e.lockPath(SwServices))
	if err != nil {
		t.Fatalf("acquiring test lock: %v", err)
	}
	defer lock.Release()

	state, err := e.RunOnce(ctx, SwServices)
	if err != nil {
		t.Fatalf("expected no error when a concurrent refresh holds the lock, got %v", err)
	}
	if state.Fingerprint != "priorfingerprint" {
		t.Errorf("expected the last-known persisted state to be returned unchanged, got fingerprint %q", state.Fingerprint)
	}
	if !state.LastRefreshAt.Equal(now) {
		t.Errorf("expected last_refresh_at untouched while lock is held")
	}
}

func TestRunOnceHwStaticStampsBootID(t *testing.T) {
	e := newTestEngine(t)
	reg := probe.NewRegistry()
	reg.Register(&fakeHostInfoProbe{bootID: "boot-123"})
	e.Registry = reg

	state, err := e.RunOnce(context.Background(), HwStatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.BootID != "boot-123" {
		t.Errorf("expected boot_id stamped from host.info, got %q", state.BootID)
	}
}

func TestHandleRequestCacheHitForFreshDomain(t *testing.T) {
	e := newTestEngine(t)
	if err := e.ensureDirs(); err != nil {
		t.Fatalf("ensureDirs: %v", err)
	}

	fresh := NewDomainRefreshState(SwServices)
	fresh.RecordRefresh(time.Now().UTC(), time.Millisecond, "fp", 1, 1, 0, 0)
	if err := e.saveState(fresh); err != nil {
		t.Fatalf("saveState: %v", err)
	}

	req := NewRefreshRequest(1000, "status", "", []Domain{SwServices}, DefaultDeadline)
	resp := e.HandleRequest(context.Background(), req)

	if !resp.CacheHit {
		t.Errorf("expected CacheHit for an already-fresh domain")
	}
	if resp.RefreshPerformed {
		t.Errorf("did not expect a synchronous refresh for a cache hit")
	}
	if len(resp.StaleDomains) != 0 {
		t.Errorf("expected no stale domains, got %v", resp.StaleDomains)
	}
}

func TestHandleRequestRefreshesStaleDomainWithinBudget(t *testing.T) {
	e := newTestEngine(t)
	req := NewRefreshRequest(1000, "status", "", []Domain{SwServices}, DefaultDeadline)
	resp := e.HandleRequest(context.Background(), req)

	if !resp.RefreshPerformed {
		t.Errorf("expected a synchronous refresh for a never-refreshed domain within budget")
	}
	if len(resp.RefreshedDomains) != 1 || resp.RefreshedDomains[0] != SwServices {
		t.Errorf("expected sw.services listed as refreshed, got %v", resp.RefreshedDomains)
	}
	if resp.CacheHit {
		t.Errorf("did not expect a cache hit for a never-refreshed domain")
	}
}

func TestHandleRequestReportsStaleWhenDeadlineAlreadyExpired(t *testing.T) {
	e := newTestEngine(t)

	req := &RefreshRequest{
		ID:              "expired-req",
		RequiredDomains: []Domain{SwServices},
		DeadlineMillis:  int64(DefaultDeadline / time.Millisecond),
		CreatedAt:       time.Now().UTC().Add(-time.Hour), // deadline long past
	}

	resp := e.HandleRequest(context.Background(), req)

	if resp.RefreshPerformed {
		t.Errorf("did not expect a synchronous refresh once the request's own deadline has expired")
	}
	if len(resp.StaleDomains) != 1 || resp.StaleDomains[0] != SwServices {
		t.Errorf("expected sw.services reported stale, got %v", resp.StaleDomains)
	}
}

func TestEngineSaveAndLoadRequestRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	req := NewRefreshRequest(1000, "status", "", []Domain{HwStatic}, DefaultDeadline)

	if err := e.SaveRequest(req); err != nil {
		t.Fatalf("SaveRequest: %v", err)
	}
	path := RequestPath(e.RequestsDir, req)
	if _, err := filepath.Abs(path); err != nil {
		t.Fatalf("unexpected path error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved request: %v", err)
	}
	var loadedReq RefreshRequest
	if err := json.Unmarshal(data, &loadedReq); err != nil {
		t.Fatalf("decode saved request: %v", err)
	}
	if loadedReq.ID != req.ID || loadedReq.DeadlineMillis != req.DeadlineMillis ||
		len(loadedReq.RequiredDomains) != 1 || loadedReq.RequiredDomains[0] != HwStatic {
		t.Errorf("loaded request %+v does not match saved %+v", loadedReq, *req)
	}

	resp := &RefreshResponse{RequestID: req.ID, CreatedAt: time.Now().UTC()}
	if err := e.SaveResponse(resp); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	data, err = os.ReadFile(ResponsePath(e.ResponsesDir, req.ID))
	if err != nil {
		t.Fatalf("read saved response: %v", err)
	}
	var loadedResp RefreshResponse
	if err := json.Unmarshal(data, &loadedResp); err != nil {
		t.Fatalf("decode saved response: %v", err)
	}
	if loadedResp.RequestID != req.ID {
		t.Errorf("loaded response request id %q, want %q", loadedResp.RequestID, req.ID)
	}
}

func TestEngineSummaryReflectsLoadedStates(t *testing.T) {
	e := newTestEngine(t)
	if err := e.ensureDirs(); err != nil {
		t.Fatalf("ensureDirs: %v", err)
	}

	fresh := NewDomainRefreshState(HwDynamic)
	fresh.RecordRefresh(time.Now().UTC(), time.Millisecond, "fp", 4, 4, 0, 0)
	if err := e.saveState(fresh); err != nil {
		t.Fatalf("saveState: %v", err)
	}

	summary := e.Summary()
	if summary.TotalEntities < 4 {
		t.Errorf("expected total entities to include the 4 from hw.dynamic, got %d", summary.TotalEntities)
	}
}

type fakeHostInfoProbe struct {
	bootID string
}

func (f *fakeHostInfoProbe) ID() string             { return "host.info" }
func (f *fakeHostInfoProbe) Timeout() time.Duration { return time.Second }
func (f *fakeHostInfoProbe) Run(ctx context.Context) probe.Result {
	return probe.Result{
		ProbeID: "host.info",
		Outcome: probe.OutcomeOK,
		Data: probe.HostInfo{
			Platform:    "arch",
			PlatformVer: "rolling",
			KernelVer:   "6.9.0",
			BootID:      f.bootID,
		},
	}
}
