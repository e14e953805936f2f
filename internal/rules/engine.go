package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solatis/mailrules/internal/types"
)

// RuleLoader produces the rule documents for one run.
type RuleLoader interface {
	LoadRules(ctx context.Context) ([]types.RuleDocument, error)
}

// RecordStore yields the record set for one run, in store order.
type RecordStore interface {
	FetchAll(ctx context.Context) ([]types.Record, error)
}

// State is the engine lifecycle state.
type State int

const (
	// StateLoaded means rules and records are materialized.
	StateLoaded State = iota
	// StateApplied is terminal: every (rule, record) pair was attempted.
	StateApplied
)

func (s State) String() string {
	if s == StateApplied {
		return "applied"
	}
	return "loaded"
}

// Options configures an Engine.
type Options struct {
	Clock         func() time.Time // defaults to time.Now
	ActionTimeout time.Duration    // per mutation call; <= 0 disables
	Logger        zerolog.Logger
}

// Engine owns one run's RuleSet and record set and applies every rule to
// every record. It is single-use: ApplyRules moves it to StateApplied.
type Engine struct {
	rules   []*Rule
	records []types.Record
	applier *Applier
	clock   func() time.Time
	log     zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewEngine loads and compiles the rules, then fetches the records.
// Fails only when the loader or store fail, or the rule document is invalid;
// empty rule or record sets are valid.
func NewEngine(ctx context.Context, loader RuleLoader, store RecordStore, mutator Mutator, opts Options) (*Engine, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if mutator == nil {
		return nil, fmt.Errorf("mutator cannot be nil")
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	docs, err := loader.LoadRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	compiled, err := CompileAll(docs)
	if err != nil {
		return nil, fmt.Errorf("invalid rule document: %w", err)
	}

	records, err := store.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	opts.Logger.Info().
		Int("rules", len(compiled)).
		Int("records", len(records)).
		Msg("rule engine loaded")

	return &Engine{
		rules:   compiled,
		records: records,
		applier: NewApplier(mutator, opts.ActionTimeout, opts.Logger),
		clock:   clock,
		log:     opts.Logger,
		state:   StateLoaded,
	}, nil
}

// Rules returns the compiled RuleSet in declaration order.
func (e *Engine) Rules() []*Rule {
	return e.rules
}

// Records returns a copy of the record set in store order.
func (e *Engine) Records() []types.Record {
	out := make([]types.Record, len(e.records))
	copy(out, e.records)
	return out
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ApplyRules evaluates every rule against every record (rules outer, records
// inner, both in load order) and applies actions on matches. A failing pair
// never stops the loops. Returns ErrAlreadyApplied on a second call. When ctx
// is cancelled the run stops between pairs; the partial report is returned
// together with the context error.
func (e *Engine) ApplyRules(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	if e.state == StateApplied {
		e.mu.Unlock()
		return nil, types.ErrAlreadyApplied
	}
	e.state = StateApplied
	e.mu.Unlock()

	now := e.clock()
	report := &Report{
		RunID:     types.NewRunID(),
		StartedAt: now,
		Rules:     len(e.rules),
		Records:   len(e.records),
	}

	for _, rule := range e.rules {
		e.log.Info().Str("rule", rule.Name).Msg("applying rule")

		for i := range e.records {
			if err := ctx.Err(); err != nil {
				report.FinishedAt = e.clock()
				return report, fmt.Errorf("run interrupted: %w", err)
			}
			e.applyPair(ctx, rule, &e.records[i], now, report)
		}
	}

	report.FinishedAt = e.clock()
	e.log.Info().
		Str("run_id", string(report.RunID)).
		Int("evaluated", report.Evaluated).
		Int("matched", report.Matched).
		Int("actions_ok", report.ActionsOK()).
		Int("actions_failed", report.ActionsFailed()).
		Int("pair_failures", len(report.PairFailures)).
		Msg("finished applying all rules")

	return report, nil
}

// applyPair evaluates one (rule, record) pair and applies actions on match.
// A panic during evaluation is recovered into a PairFailure; mutator panics
// are already contained per action by the Applier.
func (e *Engine) applyPair(ctx context.Context, rule *Rule, rec *types.Record, now time.Time, report *Report) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			report.PairFailures = append(report.PairFailures, PairFailure{
				RuleName: rule.Name,
				RecordID: rec.ID,
				Err:      err,
			})
			e.log.Error().Err(err).
				Str("rule", rule.Name).
				Str("record_id", rec.ID).
				Msg("error applying rule to record")
		}
	}()

	result := rule.Evaluate(rec, now)
	report.Evaluated++

	for _, cr := range result.Conditions {
		cond := &rule.Conditions[cr.Index]
		if cr.Err != nil {
			e.log.Warn().Err(cr.Err).
				Str("rule", rule.Name).
				Str("record_id", rec.ID).
				Str("field", cond.FieldName).
				Str("predicate", cond.PredicateName).
				Msg("condition evaluated to false")
			continue
		}
		e.log.Debug().
			Str("rule", rule.Name).
			Str("record_id", rec.ID).
			Str("field", cond.FieldName).
			Str("predicate", cond.PredicateName).
			Str("value", cond.Value).
			Bool("result", cr.Matched).
			Msg("condition evaluated")
	}

	if !result.Matched {
		return
	}
	report.Matched++
	report.Outcomes = append(report.Outcomes, e.applier.Apply(ctx, rule, rec)...)
}
