// Package telemetry implements per-object, per-day JSONL storage for
// command execution telemetry.
//
// Storage model:
//
//	<base>/<object>/YYYY/MM/DD/exec.jsonl
//
// One record per execution, never per sample. No aggregation is stored on
// disk — only raw events. A field Anna could not observe is omitted from
// the JSON line entirely, never written as null or zero.
package telemetry

import (
	"strings"
	"time"
)

// BaseDir is the default root for execution telemetry.
const BaseDir = "/var/lib/anna/telemetry"

// ExecutionRecord is a single observed execution event.
type ExecutionRecord struct {
	Timestamp  string   `json:"timestamp"` // RFC3339
	PID        uint32   `json:"pid"`
	CPUPercent *float32 `json:"cpu_percent,omitempty"`
	MemRSSKB   *uint64  `json:"mem_rss_kb,omitempty"`
	DurationMs *uint64  `json:"duration_ms,omitempty"`
	ExitCode   *int32   `json:"exit_code,omitempty"`
}

// NewExecutionRecord stamps a record with the current time for pid. Callers
// fill in whatever optional fields they were able to observe.
func NewExecutionRecord(pid uint32) ExecutionRecord {
	return ExecutionRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		PID:       pid,
	}
}

// WithCPUPercent sets the observed CPU percentage and returns the record
// for chaining.
func (r ExecutionRecord) WithCPUPercent(v float32) ExecutionRecord {
	r.CPUPercent = &v
	return r
}

// WithMemRSSKB sets the observed RSS in KiB.
func (r ExecutionRecord) WithMemRSSKB(v uint64) ExecutionRecord {
	r.MemRSSKB = &v
	return r
}

// WithDurationMs sets the observed wall-clock duration in milliseconds.
func (r ExecutionRecord) WithDurationMs(v uint64) ExecutionRecord {
	r.DurationMs = &v
	return r
}

// WithExitCode sets the observed process exit code.
func (r ExecutionRecord) WithExitCode(v int32) ExecutionRecord {
	r.ExitCode = &v
	return r
}

// UnixTimestamp parses Timestamp back to a Unix seconds value. It returns
// false if the stored timestamp is not valid RFC3339 — a record that
// cannot be dated is never matched into a time window.
func (r ExecutionRecord) UnixTimestamp() (int64, bool) {
	t, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

// sanitizeObjectName maps an arbitrary object identifier (a service unit,
// a package name, a device path) onto a safe directory component by
// replacing every rune outside [A-Za-z0-9._-] with an underscore.
func sanitizeObjectName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
