package domain

import "time"

// Summary aggregates every domain's state for status display.
type Summary struct {
	GeneratedAt         time.Time `json:"generated_at"`
	TotalEntities       int       `json:"total_entities"`
	FreshDomains        int       `json:"fresh_domains"`
	StaleDomains        int       `json:"stale_domains"`
	MissingDomains      int       `json:"missing_domains"`
	RefreshingDomains   []Domain  `json:"refreshing_domains,omitempty"`
	OldestRefreshSecs   int64     `json:"oldest_refresh_secs"`
	LastCycleDurationNs int64     `json:"last_cycle_duration_ns"`
}

// BuildSummary aggregates states into a Summary as of now.
func BuildSummary(now time.Time, states []*DomainRefreshState, refreshing []Domain) Summary {
	s := Summary{GeneratedAt: now, RefreshingDomains: refreshing}

	var oldest int64
	for _, state := range states {
		s.TotalEntities += state.EntityCount

		switch {
		case state.LastRefreshAt == nil:
			s.MissingDomains++
		case state.IsStale(now):
			s.StaleDomains++
		default:
			s.FreshDomains++
		}

		if state.LastRefreshAt != nil {
			age := int64(now.Sub(*state.LastRefreshAt).Seconds())
			if age > oldest {
				oldest = age
			}
		}

		s.LastCycleDurationNs += int64(state.RefreshDuration)
	}
	s.OldestRefreshSecs = oldest
	return s
}
