package domain

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/annaproj/annad/internal/persistence"
	"github.com/annaproj/annad/internal/probe"
)

// Engine owns the per-domain refresh state and drives both the
// background refresh loop and the on-demand request/response path.
type Engine struct {
	StateDir     string
	RequestsDir  string
	ResponsesDir string
	LockDir      string
	Registry     *probe.Registry
	Options      GatherOptions

	mu      sync.Mutex
	cache   map[Domain]entitySet // last observed entity set, in-memory only
	refresh map[Domain]bool      // domains currently mid-refresh, for the summary view
}

// NewEngine builds an Engine rooted at root (typically
// /var/lib/anna/internal). State, requests, responses, and lock files each
// get their own subdirectory.
func NewEngine(root string, registry *probe.Registry, opts GatherOptions) *Engine {
	return &Engine{
		StateDir:     filepath.Join(root, "domain_state"),
		RequestsDir:  filepath.Join(root, "requests"),
		ResponsesDir: filepath.Join(root, "responses"),
		LockDir:      filepath.Join(root, "domain_locks"),
		Registry:     registry,
		Options:      opts,
		cache:        make(map[Domain]entitySet),
		refresh:      make(map[Domain]bool),
	}
}

func (e *Engine) ensureDirs() error {
	for _, d := range []string{e.StateDir, e.RequestsDir, e.ResponsesDir, e.LockDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// LoadState reads d's persisted state, or a fresh "never refreshed" state
// if none exists or its schema_version doesn't match — per the spec, a
// schema mismatch is never migrated, only discarded.
func (e *Engine) LoadState(d Domain) *DomainRefreshState {
	var state DomainRefreshState
	path := StatePath(e.StateDir, d)
	if err := persistence.LoadVersioned(path, schemaVersionDomainState, &state); err != nil {
		return NewDomainRefreshState(d)
	}
	return &state
}

func (e *Engine) saveState(state *DomainRefreshState) error {
	return persistence.SaveVersioned(StatePath(e.StateDir, state.Domain), state)
}

func (e *Engine) lockPath(d Domain) string {
	return filepath.Join(e.LockDir, string(d)+".lock")
}

// RunOnce performs one gather-and-record pass for d, respecting the
// at-most-one-refresh-per-domain contract via a non-blocking file lock. If
// the lock is already held (a concurrent refresh is in flight), RunOnce
// returns immediately without error and without touching state.
func (e *Engine) RunOnce(ctx context.Context, d Domain) (*DomainRefreshState, error) {
	if err := e.ensureDirs(); err != nil {
		return nil, err
	}

	lock, err := persistence.AcquireFileLock(e.lockPath(d))
	if err != nil {
		return e.LoadState(d), nil // another refresh is in flight; caller sees the last known state
	}
	defer lock.Release()

	e.mu.Lock()
	e.refresh[d] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.refresh, d)
		e.mu.Unlock()
	}()

	state := e.LoadState(d)
	start := time.Now()

	entities, gatherErr := Gather(ctx, e.Registry, d, e.Options)
	duration := time.Since(start)
	now := time.Now().UTC()

	if gatherErr != nil {
		state.RecordFailure(now, gatherErr)
		if saveErr := e.saveState(state); saveErr != nil {
			log.Printf("[domain] failed to persist %s after gather failure: %v", d, saveErr)
		}
		return state, gatherErr
	}

	fp := fingerprint(entities)

	e.mu.Lock()
	prev := e.cache[d]
	e.cache[d] = entities
	e.mu.Unlock()

	if fp == state.Fingerprint && state.LastRefreshAt != nil {
		state.RecordSkip(now)
	} else {
		added, changed, removed := diff(prev, entities)
		state.RecordRefresh(now, duration, fp, len(entities), added, changed, removed)
	}

	if d == HwStatic {
		if res := e.Registry.RunOne(ctx, "host.info"); res.OK() {
			if host, ok := res.Data.(probe.HostInfo); ok {
				state.BootID = host.BootID
			}
		}
	}

	if err := e.saveState(state); err != nil {
		log.Printf("[domain] failed to persist %s: %v", d, err)
		return state, err
	}
	return state, nil
}

// RunBackgroundLoop starts one goroutine per domain that wakes at 1/5 of
// the domain's interval (floored at 5s) and refreshes whenever the stored
// state says it's due. It blocks until ctx is cancelled.
func (e *Engine) RunBackgroundLoop(ctx context.Context) {
	var wg sync.WaitGroup
	for _, d := range All() {
		wg.Add(1)
		go func(d Domain) {
			defer wg.Done()
			e.backgroundLoopFor(ctx, d)
		}(d)
	}

	gcTicker := time.NewTicker(time.Minute)
	defer gcTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-gcTicker.C:
			now := time.Now().UTC()
			CleanupOldSpoolFiles(e.RequestsDir, now)
			CleanupOldSpoolFiles(e.ResponsesDir, now)
		}
	}
}

func (e *Engine) backgroundLoopFor(ctx context.Context, d Domain) {
	interval := time.Duration(d.DefaultRefreshInterval()) * time.Second
	tick := interval / 5
	if tick < 5*time.Second {
		tick = 5 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := e.LoadState(d)
			if !state.NeedsRefresh(time.Now().UTC()) {
				continue
			}
			if _, err := e.RunOnce(ctx, d); err != nil {
				log.Printf("[domain] background refresh of %s failed: %v", d, err)
			}
		}
	}
}

// HandleRequest serves one on-demand RefreshRequest: domains already fresh
// are served from cache, stale domains are refreshed synchronously if the
// remaining deadline and the domain's estimated cost allow it, and
// anything left over when the deadline expires is reported stale.
func (e *Engine) HandleRequest(ctx context.Context, req *RefreshRequest) *RefreshResponse {
	start := time.Now()
	resp := &RefreshResponse{RequestID: req.ID, CreatedAt: start.UTC()}

	deadline := req.Deadline()
	reqCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for _, d := range req.RequiredDomains {
		state := e.LoadState(d)
		now := time.Now().UTC()

		if !state.IsStale(now) && state.LastRefreshAt != nil {
			resp.CacheHit = true
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || remaining < time.Duration(d.EstimatedCostMillis())*time.Millisecond {
			resp.StaleDomains = append(resp.StaleDomains, d)
			continue
		}

		if _, err := e.RunOnce(reqCtx, d); err != nil {
			resp.StaleDomains = append(resp.StaleDomains, d)
			if resp.Error == "" {
				resp.Error = err.Error()
			}
			continue
		}
		resp.RefreshPerformed = true
		resp.RefreshedDomains = append(resp.RefreshedDomains, d)
	}

	resp.ProcessTimeMillis = time.Since(start).Milliseconds()
	return resp
}

// SaveRequest writes req to the requests spool.
func (e *Engine) SaveRequest(req *RefreshRequest) error {
	if err := os.MkdirAll(e.RequestsDir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return persistence.AtomicWriteFile(RequestPath(e.RequestsDir, req), data, 0644)
}

// SaveResponse writes resp to the responses spool.
func (e *Engine) SaveResponse(resp *RefreshResponse) error {
	if err := os.MkdirAll(e.ResponsesDir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return persistence.AtomicWriteFile(ResponsePath(e.ResponsesDir, resp.RequestID), data, 0644)
}

// Summary builds a point-in-time Summary from every domain's stored state.
func (e *Engine) Summary() Summary {
	states := make([]*DomainRefreshState, 0, len(All()))
	for _, d := range All() {
		states = append(states, e.LoadState(d))
	}

	e.mu.Lock()
	refreshing := make([]Domain, 0, len(e.refresh))
	for d := range e.refresh {
		refreshing = append(refreshing, d)
	}
	e.mu.Unlock()

	return BuildSummary(time.Now().UTC(), states, refreshing)
}
