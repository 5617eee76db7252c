package changeengine

import "github.com/google/uuid"

// PlanSource names where a plan came from.
type PlanSource string

const (
	SourceLLMPlanned PlanSource = "llm_planned"
	SourcePredefined PlanSource = "predefined"
	SourceManual     PlanSource = "manual"
)

// Plan (a "change recipe") is an ordered sequence of actions with shared
// metadata. Actions execute strictly in order; rollback walks in strict
// reverse order.
type Plan struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	Rationale     string     `json:"why_it_matters"`
	Actions       []Action   `json:"actions"`
	OverallRisk   Risk       `json:"overall_risk"`
	RollbackNotes string     `json:"rollback_notes"`
	Source        PlanSource `json:"source"`
}

// NewPlan builds a Plan and computes OverallRisk as the max of its
// actions' risks. An empty action list still produces a Plan value —
// Validate is what rejects it, per the invariant that overall_risk is
// always derived, never input.
func NewPlan(title, summary, rationale string, actions []Action, rollbackNotes string, source PlanSource) Plan {
	overall := RiskLow
	for _, a := range actions {
		if a.Risk > overall {
			overall = a.Risk
		}
	}
	return Plan{
		ID:            uuid.NewString(),
		Title:         title,
		Summary:       summary,
		Rationale:     rationale,
		Actions:       actions,
		OverallRisk:   overall,
		RollbackNotes: rollbackNotes,
		Source:        source,
	}
}
