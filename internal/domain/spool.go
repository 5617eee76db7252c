package domain

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultDeadline is used when a caller does not specify one.
	DefaultDeadline = 250 * time.Millisecond
	// MaxDeadline bounds how long an on-demand request is allowed to wait.
	MaxDeadline = time.Second
	// SpoolGCAge is how long a request or response file is kept before the
	// garbage collector removes it.
	SpoolGCAge = 5 * time.Minute
)

// RefreshRequest is an on-demand request for one or more domains to be
// fresh, written to the requests spool by a foreground caller.
type RefreshRequest struct {
	ID              string    `json:"id"`
	RequestedByUID  uint32    `json:"requested_by_uid"`
	Command         string    `json:"command"`
	Target          string    `json:"target,omitempty"`
	RequiredDomains []Domain  `json:"required_domains"`
	DeadlineMillis  int64     `json:"deadline_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewRefreshRequest builds a request with a fresh ID. A non-positive
// deadline becomes DefaultDeadline and a larger one is capped at
// MaxDeadline; it is stored in whole milliseconds.
func NewRefreshRequest(uid uint32, command, target string, domains []Domain, deadline time.Duration) *RefreshRequest {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if deadline > MaxDeadline {
		deadline = MaxDeadline
	}
	return &RefreshRequest{
		ID:              uuid.NewString(),
		RequestedByUID:  uid,
		Command:         command,
		Target:          target,
		RequiredDomains: domains,
		DeadlineMillis:  deadline.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}
}

// Deadline returns the absolute wall-clock deadline for this request.
func (r *RefreshRequest) Deadline() time.Time {
	return r.CreatedAt.Add(time.Duration(r.DeadlineMillis) * time.Millisecond)
}

// IsExpired reports whether now is past the request's deadline.
func (r *RefreshRequest) IsExpired(now time.Time) bool {
	return now.After(r.Deadline())
}

// RequestPath returns the spool file path for r under requestsDir.
func RequestPath(requestsDir string, r *RefreshRequest) string {
	return filepath.Join(requestsDir, r.ID+".json")
}

// RefreshResponse mirrors one RefreshRequest once the engine has served it.
type RefreshResponse struct {
	RequestID         string    `json:"request_id"`
	CacheHit          bool      `json:"cache_hit"`
	RefreshPerformed  bool      `json:"refresh_performed"`
	RefreshedDomains  []Domain  `json:"refreshed_domains"`
	StaleDomains      []Domain  `json:"stale_domains"`
	ProcessTimeMillis int64     `json:"process_time_ms"`
	Error             string    `json:"error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ResponsePath returns the spool file path for a response to requestID
// under responsesDir.
func ResponsePath(responsesDir, requestID string) string {
	return filepath.Join(responsesDir, requestID+".json")
}

// CleanupOldSpoolFiles removes any file in dir whose modification time is
// older than SpoolGCAge relative to now. Used on both the requests and
// responses spools.
func CleanupOldSpoolFiles(dir string, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := now.Add(-SpoolGCAge)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}
