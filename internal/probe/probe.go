// Package probe wraps read-only OS inspection commands and sysfs reads
// behind a small, stable interface. A probe never mutates host state, never
// guesses at a missing field, and always distinguishes "ran and found
// nothing" from "could not run at all".
package probe

import (
	"context"
	"time"
)

// Outcome classifies how a probe call completed. Only OutcomeOK carries
// usable Data; the other three are always treated as a hard miss by
// callers, never as empty-but-valid evidence.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeParseError  Outcome = "parse_error"
)

// Result is what every probe returns: an outcome, provenance describing
// where the evidence came from, and — only on OutcomeOK — typed data.
type Result struct {
	ProbeID string
	Outcome Outcome
	Source  string // e.g. "iw, /proc/net/wireless" or "gopsutil/cpu"
	Data    any
	Err     error
}

// OK reports whether the probe produced usable evidence.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Probe is a pure, read-only producer of one typed record. Its ID is a
// stable contract: renaming it breaks every caller that keys evidence by
// probe ID (the evidence gate and the router's spine-probe tables).
type Probe interface {
	ID() string
	Timeout() time.Duration
	Run(ctx context.Context) Result
}

// runWithTimeout enforces a probe's declared timeout around fn. Exceeding
// the deadline always yields OutcomeTimeout, never a partial Data value —
// matching the "Timeout is always fatal for that call" contract.
func runWithTimeout(ctx context.Context, id string, timeout time.Duration, fn func(ctx context.Context) Result) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result{ProbeID: id, Outcome: OutcomeTimeout, Err: ctx.Err()}
	}
}
