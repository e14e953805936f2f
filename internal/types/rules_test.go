package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRuleDocument_UnmarshalJSON(t *testing.T) {
	input := `{
		"NAME": "r",
		"Description": "d",
		"type": "all",
		"condition": [{"FIELD": "from", "predicate": "contains", "Value": ""}],
		"action": [{"type": "mark", "value": "read"}]
	}`

	var doc RuleDocument
	if err := json.Unmarshal([]byte(input), &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v, want nil", err)
	}
	if doc.Name != "r" || doc.Description != "d" {
		t.Errorf("doc = %+v, want case-insensitive keys", doc)
	}
	if len(doc.Condition) != 1 || doc.Condition[0].Field != "from" || doc.Condition[0].Value != "" {
		t.Errorf("Condition = %+v", doc.Condition)
	}
}

func TestRuleDocument_MissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
	}{
		{name: "rule name", input: `{"description":"","type":"all","condition":[],"action":[]}`, wantKey: "rule.name"},
		{name: "rule description", input: `{"name":"","type":"all","condition":[],"action":[]}`, wantKey: "rule.description"},
		{name: "rule type", input: `{"name":"","description":"","condition":[],"action":[]}`, wantKey: "rule.type"},
		{name: "rule action", input: `{"name":"","description":"","type":"all","condition":[]}`, wantKey: "rule.action"},
		{name: "null is missing", input: `{"name":null,"description":"","type":"all","condition":[],"action":[]}`, wantKey: "rule.name"},
		{name: "condition predicate", input: `{"field":"from","value":"x"}`, wantKey: "condition.predicate"},
		{name: "action value", input: `{"type":"move"}`, wantKey: "action.value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			switch {
			case strings.HasPrefix(tt.wantKey, "condition."):
				var d ConditionDocument
				err = json.Unmarshal([]byte(tt.input), &d)
			case strings.HasPrefix(tt.wantKey, "action."):
				var d ActionDocument
				err = json.Unmarshal([]byte(tt.input), &d)
			default:
				var d RuleDocument
				err = json.Unmarshal([]byte(tt.input), &d)
			}
			if !errors.Is(err, ErrMissingKey) {
				t.Fatalf("Unmarshal() error = %v, want ErrMissingKey", err)
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Unmarshal() error = %q, want mention of %q", err, tt.wantKey)
			}
		})
	}
}

func TestRecord_HasReceivedAt(t *testing.T) {
	now := time.Now()
	var zero time.Time

	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{name: "set", rec: Record{ReceivedAt: &now}, want: true},
		{name: "nil", rec: Record{}, want: false},
		{name: "zero", rec: Record{ReceivedAt: &zero}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.HasReceivedAt(); got != tt.want {
				t.Errorf("HasReceivedAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewRunID()

	parsed, err := ParseRunID(string(id))
	if err != nil {
		t.Fatalf("ParseRunID() error = %v, want nil", err)
	}
	if parsed != id {
		t.Errorf("ParseRunID() = %q, want %q", parsed, id)
	}

	ts := RunIDTime(id)
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("RunIDTime() = %v, want around now", ts)
	}

	if _, err := ParseRunID("not-a-uuid"); err == nil {
		t.Error("ParseRunID(invalid) error = nil, want error")
	}
	if !RunIDTime("garbage").IsZero() {
		t.Error("RunIDTime(invalid) is not zero")
	}

	// UUIDv7 sorts by creation time
	next := NewRunID()
	if string(next) <= string(id) && RunIDTime(next).After(RunIDTime(id)) {
		t.Errorf("NewRunID() = %q not after %q", next, id)
	}
}
