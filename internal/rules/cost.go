// internal/rules/cost.go
package rules

/*
 * Cost model for condition evaluation order.
 *
 * Conditions are pure, so ALL/ANY results do not depend on the order in
 * which they are evaluated. Evaluating cheaper conditions first maximizes
 * short-circuit benefit: one failed equality check ends an ALL rule before
 * any substring scan of a long body.
 *
 * Cost formula: operator_cost * field_multiplier
 *
 * Conditions that can never match (unknown field, unknown predicate,
 * predicate of the wrong kind, malformed date value) cost 0 and run first.
 *
 * The declared order is kept on the Rule for serialization and logging; only
 * the evaluation order is cost-sorted (stable, so ties keep declared order).
 */

const (
	// Operator base costs
	CostNever    = 0
	CostEquals   = 1
	CostDate     = 2
	CostContains = 4

	// Field multipliers
	MultiplierHeader = 1
	MultiplierBody   = 8
)

// CalculateConditionCost computes the evaluation cost of a compiled condition.
func CalculateConditionCost(c *Condition) int {
	if c.neverMatches() {
		return CostNever
	}

	mult := MultiplierHeader
	if c.Field == FieldBody {
		mult = MultiplierBody
	}

	return operatorCost(c.Predicate) * mult
}

// operatorCost returns base cost for predicate execution.
func operatorCost(p Predicate) int {
	switch p {
	case PredEquals, PredNotEquals:
		return CostEquals
	case PredLessThan, PredGreaterThan:
		return CostDate
	case PredContains, PredDoesNotContain:
		return CostContains
	default:
		return CostNever
	}
}
