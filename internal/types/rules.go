// internal/types/rules.go
package types

import (
	"encoding/json"
	"fmt"
)

/*
 * Rule document wire shape.
 *
 * RuleDocument, ConditionDocument and ActionDocument mirror the persisted
 * rules.json format exactly (a JSON array of rule objects). Compilation into
 * evaluable rules happens in internal/rules; these types only guarantee that
 * every required key is present.
 *
 * Key matching: encoding/json matches object keys case-insensitively, so
 * "Field", "FIELD" and "field" all populate ConditionDocument.Field.
 *
 * Missing keys: each UnmarshalJSON decodes into pointer fields first so that
 * an absent key (or an explicit null) is distinguishable from an empty
 * string. Any missing key fails the whole document with ErrMissingKey.
 */

// ConditionDocument is one field/predicate/value triple as written in rules.json.
type ConditionDocument struct {
	Field     string `json:"field"`
	Predicate string `json:"predicate"`
	Value     string `json:"value"`
}

// ActionDocument is one action as written in rules.json.
type ActionDocument struct {
	Type  string `json:"type"`  // "move" or "mark"
	Value string `json:"value"` // label name, or "read"/"unread"
}

// RuleDocument is one rule object as written in rules.json.
type RuleDocument struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Type        string              `json:"type"` // "any" or "all"
	Condition   []ConditionDocument `json:"condition"`
	Action      []ActionDocument    `json:"action"`
}

// UnmarshalJSON implements json.Unmarshaler and rejects missing keys.
func (d *ConditionDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field     *string `json:"field"`
		Predicate *string `json:"predicate"`
		Value     *string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Field == nil:
		return missingKey("condition", "field")
	case raw.Predicate == nil:
		return missingKey("condition", "predicate")
	case raw.Value == nil:
		return missingKey("condition", "value")
	}
	*d = ConditionDocument{
		Field:     *raw.Field,
		Predicate: *raw.Predicate,
		Value:     *raw.Value,
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler and rejects missing keys.
func (d *ActionDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  *string `json:"type"`
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Type == nil:
		return missingKey("action", "type")
	case raw.Value == nil:
		return missingKey("action", "value")
	}
	*d = ActionDocument{Type: *raw.Type, Value: *raw.Value}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler and rejects missing keys.
func (d *RuleDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        *string              `json:"name"`
		Description *string              `json:"description"`
		Type        *string              `json:"type"`
		Condition   *[]ConditionDocument `json:"condition"`
		Action      *[]ActionDocument    `json:"action"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Name == nil:
		return missingKey("rule", "name")
	case raw.Description == nil:
		return missingKey("rule", "description")
	case raw.Type == nil:
		return missingKey("rule", "type")
	case raw.Condition == nil:
		return missingKey("rule", "condition")
	case raw.Action == nil:
		return missingKey("rule", "action")
	}
	*d = RuleDocument{
		Name:        *raw.Name,
		Description: *raw.Description,
		Type:        *raw.Type,
		Condition:   *raw.Condition,
		Action:      *raw.Action,
	}
	return nil
}

func missingKey(object, key string) error {
	return fmt.Errorf("%w: %s.%s", ErrMissingKey, object, key)
}
