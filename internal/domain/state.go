package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// schemaVersionDomainState is bumped whenever DomainRefreshState's on-disk
// shape changes in a way old records can't be read forward from. A mismatch
// is never migrated — the domain is simply treated as never refreshed.
const schemaVersionDomainState = 1

// RefreshResult is the outcome of one gather pass.
type RefreshResult string

const (
	ResultOk      RefreshResult = "ok"
	ResultFailed  RefreshResult = "failed"
	ResultSkipped RefreshResult = "skipped"
	ResultTimeout RefreshResult = "timeout"
)

// DomainRefreshState is the persisted record for one domain.
type DomainRefreshState struct {
	SchemaVersionField   uint32        `json:"schema_version"`
	Domain               Domain        `json:"domain"`
	LastRefreshAt        *time.Time    `json:"last_refresh_at,omitempty"`
	RefreshDuration      time.Duration `json:"refresh_duration_ns"`
	Result               RefreshResult `json:"result"`
	Fingerprint          string        `json:"fingerprint"`
	EntityCount          int           `json:"entity_count"`
	Added                int           `json:"added"`
	Changed              int           `json:"changed"`
	Removed              int           `json:"removed"`
	NextSuggestedRefresh *time.Time    `json:"next_suggested_refresh_at,omitempty"`
	BootID               string        `json:"boot_id,omitempty"`
	ErrorMessage         string        `json:"error_message,omitempty"`
}

func (s *DomainRefreshState) SchemaVersion() uint32 { return s.SchemaVersionField }

// NewDomainRefreshState returns a fresh "never refreshed" state for d.
func NewDomainRefreshState(d Domain) *DomainRefreshState {
	return &DomainRefreshState{
		SchemaVersionField: schemaVersionDomainState,
		Domain:             d,
		Result:             ResultSkipped,
	}
}

// fileName is the on-disk basename for d's state file: dots become
// underscores so it stays a single path component.
func fileName(d Domain) string {
	return strings.ReplaceAll(string(d), ".", "_") + ".json"
}

// StatePath returns the path to d's state file under stateDir.
func StatePath(stateDir string, d Domain) string {
	return filepath.Join(stateDir, fileName(d))
}

// NeedsRefresh reports whether age has reached the domain's interval.
func (s *DomainRefreshState) NeedsRefresh(now time.Time) bool {
	if s.LastRefreshAt == nil {
		return true
	}
	elapsed := now.Sub(*s.LastRefreshAt)
	return elapsed >= time.Duration(s.Domain.DefaultRefreshInterval())*time.Second
}

// IsStale reports whether age has reached 2x the domain's interval.
func (s *DomainRefreshState) IsStale(now time.Time) bool {
	if s.LastRefreshAt == nil {
		return true
	}
	elapsed := now.Sub(*s.LastRefreshAt)
	return elapsed >= 2*time.Duration(s.Domain.DefaultRefreshInterval())*time.Second
}

// RecordRefresh records a successful gather that produced a new
// fingerprint, and schedules the next suggested refresh one interval out.
func (s *DomainRefreshState) RecordRefresh(now time.Time, duration time.Duration, fingerprint string, entityCount, added, changed, removed int) {
	s.LastRefreshAt = &now
	s.RefreshDuration = duration
	s.Result = ResultOk
	s.Fingerprint = fingerprint
	s.EntityCount = entityCount
	s.Added = added
	s.Changed = changed
	s.Removed = removed
	s.ErrorMessage = ""
	next := now.Add(time.Duration(s.Domain.DefaultRefreshInterval()) * time.Second)
	s.NextSuggestedRefresh = &next
}

// RecordSkip records a gather pass that found an identical fingerprint:
// last_refresh_at is left untouched so age reporting stays honest about
// when the domain's state actually last changed, but the next check is
// still scheduled one interval out.
func (s *DomainRefreshState) RecordSkip(now time.Time) {
	s.Result = ResultSkipped
	next := now.Add(time.Duration(s.Domain.DefaultRefreshInterval()) * time.Second)
	s.NextSuggestedRefresh = &next
}

// RecordFailure records a failed gather pass and retries sooner than the
// domain's normal interval.
func (s *DomainRefreshState) RecordFailure(now time.Time, err error) {
	s.Result = ResultFailed
	s.ErrorMessage = err.Error()
	next := now.Add(60 * time.Second)
	s.NextSuggestedRefresh = &next
}

// FormatAge renders a human-readable age for status display.
func (s *DomainRefreshState) FormatAge(now time.Time) string {
	if s.LastRefreshAt == nil {
		return "never"
	}
	secs := int64(now.Sub(*s.LastRefreshAt).Seconds())
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	default:
		return fmt.Sprintf("%dd ago", secs/86400)
	}
}
