package changeengine

import (
	"encoding/json"
	"fmt"
)

type tagEnvelope struct {
	Type string `json:"type"`
}

// marshalTagged marshals v's own fields and injects a "type" key set to
// tag, producing the internally-tagged shape the LLM planner and the
// engine agree on.
func marshalTagged(v any, tag string) (json.RawMessage, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, err
	}
	tagJSON, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	m["type"] = tagJSON
	return json.Marshal(m)
}

// MarshalEditStrategy renders an EditStrategy in its tagged wire form.
func MarshalEditStrategy(s EditStrategy) (json.RawMessage, error) {
	switch v := s.(type) {
	case AppendIfMissing:
		return marshalTagged(v, v.Tag())
	case ReplaceSection:
		return marshalTagged(v, v.Tag())
	case ReplaceEntire:
		return marshalTagged(v, v.Tag())
	default:
		return nil, fmt.Errorf("changeengine: unknown edit strategy type %T", s)
	}
}

// UnmarshalEditStrategy parses a tagged EditStrategy. An unrecognized
// "type" value is a hard error — it is never silently ignored or treated
// as a no-op strategy.
func UnmarshalEditStrategy(data []byte) (EditStrategy, error) {
	var env tagEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("changeengine: decode edit strategy envelope: %w", err)
	}
	switch env.Type {
	case "append_if_missing":
		var s AppendIfMissing
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "replace_section":
		var s ReplaceSection
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "replace_entire":
		var s ReplaceEntire
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("changeengine: unknown edit strategy variant %q", env.Type)
	}
}

// MarshalActionKind renders an ActionKind in its tagged wire form.
func MarshalActionKind(k ActionKind) (json.RawMessage, error) {
	if ef, ok := k.(EditFile); ok {
		strategyJSON, err := MarshalEditStrategy(ef.Strategy)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Type     string          `json:"type"`
			Path     string          `json:"path"`
			Strategy json.RawMessage `json:"strategy"`
		}{Type: ef.Tag(), Path: ef.Path, Strategy: strategyJSON})
	}

	switch v := k.(type) {
	case AppendToFile:
		return marshalTagged(v, v.Tag())
	case InstallPackages:
		return marshalTagged(v, v.Tag())
	case RemovePackages:
		return marshalTagged(v, v.Tag())
	case EnableService:
		return marshalTagged(v, v.Tag())
	case DisableService:
		return marshalTagged(v, v.Tag())
	case SetWallpaper:
		return marshalTagged(v, v.Tag())
	case RunReadOnlyCommand:
		return marshalTagged(v, v.Tag())
	default:
		return nil, fmt.Errorf("changeengine: unknown action kind type %T", k)
	}
}

// UnmarshalActionKind parses a tagged ActionKind. An unrecognized "type"
// value is a hard error.
func UnmarshalActionKind(data []byte) (ActionKind, error) {
	var env tagEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("changeengine: decode action kind envelope: %w", err)
	}

	switch env.Type {
	case "edit_file":
		var raw struct {
			Path     string          `json:"path"`
			Strategy json.RawMessage `json:"strategy"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		strategy, err := UnmarshalEditStrategy(raw.Strategy)
		if err != nil {
			return nil, err
		}
		return EditFile{Path: raw.Path, Strategy: strategy}, nil
	case "append_to_file":
		var a AppendToFile
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case "install_packages":
		var a InstallPackages
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case "remove_packages":
		var a RemovePackages
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case "enable_service":
		var a EnableService
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case "disable_service":
		var a DisableService
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case "set_wallpaper":
		var a SetWallpaper
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case "run_read_only_command":
		var a RunReadOnlyCommand
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("changeengine: unknown action kind variant %q", env.Type)
	}
}
