// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/solatis/mailrules/internal/types"
)

/*
 * Rule compilation and validation.
 *
 * Compiles types.RuleDocument to Rule with parsed field/predicate variants,
 * pre-parsed date windows, validated actions and a cost-sorted evaluation
 * order.
 *
 * Compilation workflow:
 *   1. Validate combinator ("any"/"all") and resource limits
 *   2. Reject empty condition lists
 *   3. Normalize field and predicate names, parse date windows
 *   4. Validate actions (move <label>, mark read|unread)
 *   5. Order conditions by ascending cost (stable sort for determinism)
 *
 * Why fail fast: a malformed document fails the whole load so a run never
 * executes a partial RuleSet. Unknown fields, unknown predicates and
 * malformed date values are NOT compile errors; they compile into
 * conditions that always evaluate false and carry the reason for logging.
 */

// Combinator aggregates condition results.
type Combinator int

const (
	CombinatorAll Combinator = iota
	CombinatorAny
)

func (c Combinator) String() string {
	if c == CombinatorAny {
		return "any"
	}
	return "all"
}

// ParseCombinator maps a rule type token to its Combinator.
func ParseCombinator(s string) (Combinator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return CombinatorAll, nil
	case "any":
		return CombinatorAny, nil
	default:
		return 0, fmt.Errorf("%w: got %q", types.ErrInvalidCombinator, s)
	}
}

// ActionKind is the tagged variant of a rule action.
type ActionKind int

const (
	ActionMove ActionKind = iota
	ActionMarkRead
	ActionMarkUnread
)

// Action is one compiled side effect. Label is set only for ActionMove.
type Action struct {
	Kind  ActionKind
	Label string
}

func (a Action) String() string {
	switch a.Kind {
	case ActionMove:
		return "move:" + a.Label
	case ActionMarkRead:
		return "mark:read"
	case ActionMarkUnread:
		return "mark:unread"
	default:
		return "unknown"
	}
}

// Document converts the action back to its wire shape.
func (a Action) Document() types.ActionDocument {
	switch a.Kind {
	case ActionMarkRead:
		return types.ActionDocument{Type: "mark", Value: "read"}
	case ActionMarkUnread:
		return types.ActionDocument{Type: "mark", Value: "unread"}
	default:
		return types.ActionDocument{Type: "move", Value: a.Label}
	}
}

// Condition is a compiled field/predicate/value triple.
type Condition struct {
	FieldName     string // normalized name as loaded, kept for round-trip
	Field         Field
	PredicateName string // normalized token as loaded, kept for round-trip
	Predicate     Predicate
	Value         string // verbatim comparison value

	window    time.Duration // parsed date window (date conditions only)
	windowErr error         // parse failure, reported on every evaluation
	Cost      int
}

// neverMatches reports whether the condition is statically false.
func (c *Condition) neverMatches() bool {
	switch {
	case c.Field == FieldUnknown:
		return true
	case c.Field.IsText():
		return !c.Predicate.IsText()
	default:
		return !c.Predicate.IsDate() || c.windowErr != nil
	}
}

// Document converts the condition back to its wire shape.
func (c *Condition) Document() types.ConditionDocument {
	return types.ConditionDocument{
		Field:     c.FieldName,
		Predicate: c.PredicateName,
		Value:     c.Value,
	}
}

// Rule is fully validated and ready for evaluation.
type Rule struct {
	Name        string
	Description string
	Combinator  Combinator
	Conditions  []Condition // declared order
	Actions     []Action    // declared order

	order []int // evaluation order: indexes into Conditions, ascending cost
}

// Document converts the rule back to its wire shape.
func (r *Rule) Document() types.RuleDocument {
	doc := types.RuleDocument{
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Combinator.String(),
		Condition:   make([]types.ConditionDocument, 0, len(r.Conditions)),
		Action:      make([]types.ActionDocument, 0, len(r.Actions)),
	}
	for i := range r.Conditions {
		doc.Condition = append(doc.Condition, r.Conditions[i].Document())
	}
	for _, a := range r.Actions {
		doc.Action = append(doc.Action, a.Document())
	}
	return doc
}

// Compile validates and pre-processes a rule document for evaluation.
func Compile(doc *types.RuleDocument) (*Rule, error) {
	combinator, err := ParseCombinator(doc.Type)
	if err != nil {
		return nil, err
	}

	if len(doc.Condition) == 0 {
		return nil, types.ErrEmptyConditions
	}
	if len(doc.Condition) > types.MaxConditionsPerRule {
		return nil, types.ErrTooManyConditions
	}
	if len(doc.Action) > types.MaxActionsPerRule {
		return nil, types.ErrTooManyActions
	}

	rule := &Rule{
		Name:        doc.Name,
		Description: doc.Description,
		Combinator:  combinator,
		Conditions:  make([]Condition, 0, len(doc.Condition)),
		Actions:     make([]Action, 0, len(doc.Action)),
	}

	for _, cd := range doc.Condition {
		rule.Conditions = append(rule.Conditions, compileCondition(cd))
	}

	for i, ad := range doc.Action {
		action, err := compileAction(ad)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		rule.Actions = append(rule.Actions, action)
	}

	rule.order = make([]int, len(rule.Conditions))
	for i := range rule.order {
		rule.order[i] = i
	}
	// Stable sort: equal-cost conditions keep declared order
	sort.SliceStable(rule.order, func(i, j int) bool {
		return rule.Conditions[rule.order[i]].Cost < rule.Conditions[rule.order[j]].Cost
	})

	return rule, nil
}

// CompileAll compiles a whole rule document. The first invalid rule fails
// the load; the error names the rule index and name.
func CompileAll(docs []types.RuleDocument) ([]*Rule, error) {
	if len(docs) > types.MaxRulesPerDocument {
		return nil, types.ErrTooManyRules
	}

	compiled := make([]*Rule, 0, len(docs))
	for i := range docs {
		rule, err := Compile(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, docs[i].Name, err)
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

// compileCondition normalizes names and pre-parses date windows.
// Never fails: problems are carried into evaluation as a false result.
func compileCondition(cd types.ConditionDocument) Condition {
	c := Condition{
		FieldName:     NormalizeFieldName(cd.Field),
		PredicateName: NormalizePredicate(cd.Predicate),
		Value:         cd.Value,
	}
	c.Field = ParseField(c.FieldName)
	c.Predicate = ParsePredicate(c.PredicateName)

	if c.Field == FieldDateReceived {
		c.window, c.windowErr = ParseWindow(cd.Value)
	}

	c.Cost = CalculateConditionCost(&c)
	return c
}

// compileAction validates an action document.
func compileAction(ad types.ActionDocument) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(ad.Type)) {
	case "move":
		label := strings.TrimSpace(ad.Value)
		if label == "" {
			return Action{}, fmt.Errorf("%w: move requires a label", types.ErrInvalidAction)
		}
		return Action{Kind: ActionMove, Label: label}, nil
	case "mark":
		switch strings.ToLower(strings.TrimSpace(ad.Value)) {
		case "read":
			return Action{Kind: ActionMarkRead}, nil
		case "unread":
			return Action{Kind: ActionMarkUnread}, nil
		default:
			return Action{}, fmt.Errorf("%w: mark value must be \"read\" or \"unread\", got %q", types.ErrInvalidAction, ad.Value)
		}
	default:
		return Action{}, fmt.Errorf("%w: unknown type %q", types.ErrInvalidAction, ad.Type)
	}
}
