package changeengine

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Action is a single primitive mutation or inspection. Category and Risk
// are derived from Kind at construction time, never supplied independently
// — they are not trusted input.
type Action struct {
	ID              string
	Kind            ActionKind
	Category        Category
	Risk            Risk
	Description     string
	EstimatedImpact string
}

// NewAction builds an Action, deriving Category and Risk from kind.
func NewAction(kind ActionKind, description, estimatedImpact string) Action {
	return Action{
		ID:              uuid.NewString(),
		Kind:            kind,
		Category:        kind.Category(),
		Risk:            kind.Risk(),
		Description:     description,
		EstimatedImpact: estimatedImpact,
	}
}

type actionWire struct {
	ID              string          `json:"id"`
	Kind            json.RawMessage `json:"kind"`
	Category        Category        `json:"category"`
	Risk            Risk            `json:"risk"`
	Description     string          `json:"description"`
	EstimatedImpact string          `json:"estimated_impact"`
}

// MarshalJSON renders the action with its kind in tagged wire form.
func (a Action) MarshalJSON() ([]byte, error) {
	kindJSON, err := MarshalActionKind(a.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionWire{
		ID:              a.ID,
		Kind:            kindJSON,
		Category:        a.Category,
		Risk:            a.Risk,
		Description:     a.Description,
		EstimatedImpact: a.EstimatedImpact,
	})
}

// UnmarshalJSON parses a tagged action. Category and Risk recorded on the
// wire are informational only — they are recomputed from Kind so a
// tampered or stale wire record can never smuggle in a lower risk than the
// kind actually implies.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := UnmarshalActionKind(w.Kind)
	if err != nil {
		return fmt.Errorf("changeengine: action %s: %w", w.ID, err)
	}
	a.ID = w.ID
	a.Kind = kind
	a.Category = kind.Category()
	a.Risk = kind.Risk()
	a.Description = w.Description
	a.EstimatedImpact = w.EstimatedImpact
	return nil
}
