// internal/rules/evaluate.go
package rules

import (
	"fmt"
	"time"

	"github.com/solatis/mailrules/internal/types"
)

/*
 * Rule evaluation.
 *
 * Evaluates a compiled Rule against one Record with ALL/ANY semantics.
 * Evaluation is pure: no logging, no I/O. Problems that force a condition to
 * false (unknown field, wrong predicate kind, malformed date, missing
 * receive time) are returned in ConditionResult.Err so the engine can log
 * them with rule and record context.
 *
 * Evaluation flow:
 *   1. Walk conditions in cost order (see cost.go)
 *   2. Per-condition: resolve field -> dispatch on field kind -> compare
 *   3. ALL: stop at first false. ANY: stop at first true.
 *
 * "now" is passed in rather than read from the clock so a run evaluates
 * every pair against the same instant and tests can pin date boundaries.
 */

// ConditionResult is the outcome of one evaluated condition.
type ConditionResult struct {
	Index   int // position in Rule.Conditions (declared order)
	Matched bool
	Err     error // non-nil when the condition was forced to false
}

// MatchResult contains the outcome of rule evaluation.
type MatchResult struct {
	RuleName   string
	Matched    bool
	Conditions []ConditionResult // evaluated conditions, in evaluation order
}

// Evaluate checks if the rule matches the given record.
func (r *Rule) Evaluate(rec *types.Record, now time.Time) MatchResult {
	result := MatchResult{
		RuleName:   r.Name,
		Conditions: make([]ConditionResult, 0, len(r.order)),
	}

	switch r.Combinator {
	case CombinatorAny:
		result.Matched = false
		for _, idx := range r.order {
			cr := r.Conditions[idx].evaluate(rec, now)
			cr.Index = idx
			result.Conditions = append(result.Conditions, cr)
			if cr.Matched {
				result.Matched = true
				break
			}
		}
	default:
		result.Matched = true
		for _, idx := range r.order {
			cr := r.Conditions[idx].evaluate(rec, now)
			cr.Index = idx
			result.Conditions = append(result.Conditions, cr)
			if !cr.Matched {
				result.Matched = false
				break
			}
		}
	}

	return result
}

// Evaluate checks a single condition against the record.
func (c *Condition) Evaluate(rec *types.Record, now time.Time) (bool, error) {
	cr := c.evaluate(rec, now)
	return cr.Matched, cr.Err
}

// evaluate resolves the field and dispatches to the text or date comparator.
func (c *Condition) evaluate(rec *types.Record, now time.Time) ConditionResult {
	switch {
	case c.Field == FieldUnknown:
		return ConditionResult{Err: fmt.Errorf("%w: %q", types.ErrUnknownField, c.FieldName)}

	case c.Field.IsText():
		fieldValue, _ := ResolveText(c.Field, rec)
		matched, err := CompareText(c.Predicate, fieldValue, c.Value)
		if err != nil {
			return ConditionResult{Err: fmt.Errorf("%w: %q on text field %q", err, c.PredicateName, c.FieldName)}
		}
		return ConditionResult{Matched: matched}

	default:
		if !c.Predicate.IsDate() {
			return ConditionResult{Err: fmt.Errorf("%w: %q on date field", types.ErrUnknownPredicate, c.PredicateName)}
		}
		if c.windowErr != nil {
			return ConditionResult{Err: c.windowErr}
		}
		if !rec.HasReceivedAt() {
			return ConditionResult{Err: types.ErrMissingReceivedAt}
		}
		matched, err := CompareDate(c.Predicate, *rec.ReceivedAt, c.window, now)
		return ConditionResult{Matched: matched, Err: err}
	}
}
