package rules

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/mailrules/internal/types"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		name string
		want Field
	}{
		{"from", FieldFrom},
		{"From", FieldFrom},
		{"SUBJECT", FieldSubject},
		{"body", FieldBody},
		{"message", FieldBody},
		{"date received", FieldDateReceived},
		{"Date Received", FieldDateReceived},
		{"date_received", FieldDateReceived},
		{"  date   received ", FieldDateReceived},
		{"to", FieldUnknown},
		{"foo", FieldUnknown},
		{"", FieldUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseField(tt.name); got != tt.want {
				t.Errorf("ParseField(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNormalizeFieldName(t *testing.T) {
	if got := NormalizeFieldName("Date_Received"); got != "date received" {
		t.Errorf("NormalizeFieldName() = %q, want %q", got, "date received")
	}
	if got := NormalizeFieldName("X-Custom"); got != "x-custom" {
		t.Errorf("NormalizeFieldName() = %q, want %q", got, "x-custom")
	}
}

func TestResolveText(t *testing.T) {
	rec := &types.Record{
		ID:      "r1",
		Subject: "Subject line",
		Sender:  "alice@example.com",
		Body:    "Body text",
	}

	tests := []struct {
		field  Field
		want   string
		wantOK bool
	}{
		{FieldFrom, "alice@example.com", true},
		{FieldSubject, "Subject line", true},
		{FieldBody, "Body text", true},
		{FieldDateReceived, "", false},
		{FieldUnknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			got, ok := ResolveText(tt.field, rec)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolveText(%v) = (%q, %v), want (%q, %v)", tt.field, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// Property-based test: unknown fields never match, whatever the predicate or value
func TestCondition_PropertyUnknownFieldNeverMatches(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	predicates := []string{"contains", "does not contain", "equals", "not equals", "less than", "greater than", "bogus"}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	received := now.Add(-time.Hour)
	rec := &types.Record{
		ID:         "r1",
		Subject:    "subject",
		Sender:     "sender",
		Body:       "body",
		ReceivedAt: &received,
	}

	properties.Property("unknown field evaluates to false", prop.ForAll(
		func(predIdx int, value string) bool {
			c := compileCondition(types.ConditionDocument{
				Field:     "foo",
				Predicate: predicates[predIdx],
				Value:     value,
			})
			matched, err := c.Evaluate(rec, now)
			return !matched && err != nil
		},
		gen.IntRange(0, len(predicates)-1),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
