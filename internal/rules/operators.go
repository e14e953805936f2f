// internal/rules/operators.go
package rules

import (
	"strings"
	"time"

	"github.com/solatis/mailrules/internal/types"
)

/*
 * Predicate comparison logic.
 *
 * Implements the closed predicate set for mail conditions. Values reach the
 * comparators already resolved: text fields as strings, date fields as a
 * receive time plus a parsed window (see coercion.go).
 *
 * Predicates:
 *   - contains / does not contain: substring test on lower-cased strings
 *   - equals / not equals: exact match on lower-cased strings
 *   - less than / greater than: relative date window against "now"
 *
 * Text pairs are strict complements: for any (field, value) exactly one of
 * contains / does not contain holds, and exactly one of equals / not equals.
 *
 * Date window semantics (relative variant, both sides inclusive):
 *   reference = now - window
 *   less than     => received_at >= reference  ("within the last N")
 *   greater than  => received_at <= reference  ("more than N ago")
 * A record received exactly at the reference instant satisfies both.
 *
 * Why function-based: the predicate set is closed and tiny. A switch over
 * a tagged enum keeps dispatch in one place, same as the operator table in
 * the evaluator.
 */

// Predicate is the tagged variant of a condition predicate token.
type Predicate int

const (
	PredUnknown Predicate = iota
	PredContains
	PredDoesNotContain
	PredEquals
	PredNotEquals
	PredLessThan
	PredGreaterThan
)

var predicateNames = map[Predicate]string{
	PredContains:       "contains",
	PredDoesNotContain: "does not contain",
	PredEquals:         "equals",
	PredNotEquals:      "not equals",
	PredLessThan:       "less than",
	PredGreaterThan:    "greater than",
}

// predicateAliases maps accepted spellings to predicates. "not contains"
// appears in older rule files.
var predicateAliases = map[string]Predicate{
	"contains":         PredContains,
	"does not contain": PredDoesNotContain,
	"not contains":     PredDoesNotContain,
	"equals":           PredEquals,
	"not equals":       PredNotEquals,
	"less than":        PredLessThan,
	"greater than":     PredGreaterThan,
}

// NormalizePredicate lower-cases and collapses whitespace in a predicate token.
func NormalizePredicate(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ParsePredicate maps a predicate token to its variant.
// Unknown tokens return PredUnknown; they are not a load error.
func ParsePredicate(s string) Predicate {
	if p, ok := predicateAliases[NormalizePredicate(s)]; ok {
		return p
	}
	return PredUnknown
}

func (p Predicate) String() string {
	if name, ok := predicateNames[p]; ok {
		return name
	}
	return "unknown"
}

// IsText reports whether the predicate applies to text fields.
func (p Predicate) IsText() bool {
	switch p {
	case PredContains, PredDoesNotContain, PredEquals, PredNotEquals:
		return true
	default:
		return false
	}
}

// IsDate reports whether the predicate applies to date fields.
func (p Predicate) IsDate() bool {
	return p == PredLessThan || p == PredGreaterThan
}

// CompareText applies a text predicate to a field value and comparison value.
// Both sides are lower-cased. Non-text predicates return ErrUnknownPredicate.
func CompareText(p Predicate, fieldValue, value string) (bool, error) {
	fv := strings.ToLower(fieldValue)
	v := strings.ToLower(value)

	switch p {
	case PredContains:
		return strings.Contains(fv, v), nil
	case PredDoesNotContain:
		return !strings.Contains(fv, v), nil
	case PredEquals:
		return fv == v, nil
	case PredNotEquals:
		return fv != v, nil
	default:
		return false, types.ErrUnknownPredicate
	}
}

// CompareDate applies a date predicate to a receive time.
// window is the parsed "<n> D|M" value; now anchors the reference instant.
// Non-date predicates return ErrUnknownPredicate.
func CompareDate(p Predicate, receivedAt time.Time, window time.Duration, now time.Time) (bool, error) {
	reference := now.Add(-window)

	switch p {
	case PredLessThan:
		return !receivedAt.Before(reference), nil
	case PredGreaterThan:
		return !receivedAt.After(reference), nil
	default:
		return false, types.ErrUnknownPredicate
	}
}
