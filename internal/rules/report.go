package rules

import (
	"time"

	"github.com/solatis/mailrules/internal/types"
)

// PairFailure records a (rule, record) pair whose evaluation or apply panicked.
type PairFailure struct {
	RuleName string
	RecordID string
	Err      error
}

// Report aggregates the outcome of one ApplyRules run.
type Report struct {
	RunID      types.RunID
	StartedAt  time.Time
	FinishedAt time.Time

	Rules     int
	Records   int
	Evaluated int // (rule, record) pairs evaluated
	Matched   int // pairs whose rule matched

	Outcomes     []ActionOutcome
	PairFailures []PairFailure
}

// ActionsOK counts successful actions.
func (r *Report) ActionsOK() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// ActionsFailed counts failed actions.
func (r *Report) ActionsFailed() int {
	return len(r.Outcomes) - r.ActionsOK()
}

// HasFailures reports whether any action or pair failed during the run.
func (r *Report) HasFailures() bool {
	return r.ActionsFailed() > 0 || len(r.PairFailures) > 0
}
