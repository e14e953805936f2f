// internal/rules/actions.go
package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solatis/mailrules/internal/types"
)

/*
 * Action application.
 *
 * Applier translates compiled Actions into modify requests against an
 * injected Mutator. It never looks up a backend on its own.
 *
 * Request shapes:
 *   move <label>  -> {add: [labelID], remove: [INBOX]}  (one call)
 *   mark read     -> {remove: [UNREAD]}
 *   mark unread   -> {add: [UNREAD]}
 *
 * Failure isolation: every action yields an ActionOutcome. A failing action
 * (missing label, backend error, timeout) is logged and recorded; the next
 * action of the same rule is still attempted. No retries: each
 * (rule, record, action) is attempted at most once per run, and the backend
 * operations are idempotent so the next scheduled run can redo them.
 *
 * Label cache: the name -> id map is listed lazily on the first move and
 * kept for the Applier's lifetime (one run). A listing error is not cached.
 */

// System labels understood by every Mutator.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
)

// ModifyRequest adds and removes labels on one record in a single call.
type ModifyRequest struct {
	AddLabelIDs    []string
	RemoveLabelIDs []string
}

// Mutator is the external label and read-state mutation interface.
// Implementations must tolerate repeated requests (adding a present label,
// marking a read message read).
type Mutator interface {
	// ListLabels returns label name -> label id.
	ListLabels(ctx context.Context) (map[string]string, error)
	// Modify applies a ModifyRequest to the record atomically.
	Modify(ctx context.Context, recordID string, req ModifyRequest) error
}

// ActionOutcome is the result of one attempted action.
type ActionOutcome struct {
	RuleName string
	RecordID string
	Action   Action
	Err      error
}

// OK reports whether the action succeeded.
func (o ActionOutcome) OK() bool {
	return o.Err == nil
}

// Applier performs actions for matched (rule, record) pairs.
type Applier struct {
	mutator Mutator
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	labels map[string]string
}

// NewApplier creates an Applier. timeout <= 0 disables per-call timeouts.
func NewApplier(mutator Mutator, timeout time.Duration, log zerolog.Logger) *Applier {
	return &Applier{
		mutator: mutator,
		timeout: timeout,
		log:     log,
	}
}

// Apply attempts every action of rule on rec in declaration order.
func (a *Applier) Apply(ctx context.Context, rule *Rule, rec *types.Record) []ActionOutcome {
	outcomes := make([]ActionOutcome, 0, len(rule.Actions))

	for _, action := range rule.Actions {
		err := a.safeApplyAction(ctx, action, rec.ID)
		outcome := ActionOutcome{
			RuleName: rule.Name,
			RecordID: rec.ID,
			Action:   action,
			Err:      err,
		}
		outcomes = append(outcomes, outcome)

		if err != nil {
			a.log.Error().Err(err).
				Str("rule", rule.Name).
				Str("record_id", rec.ID).
				Str("action", action.String()).
				Msg("action failed")
			continue
		}
		a.log.Info().
			Str("rule", rule.Name).
			Str("record_id", rec.ID).
			Str("action", action.String()).
			Msg("action applied")
	}

	return outcomes
}

// safeApplyAction runs ApplyAction and turns a panic into that action's error.
func (a *Applier) safeApplyAction(ctx context.Context, action Action, recordID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.ApplyAction(ctx, action, recordID)
}

// ApplyAction performs a single action on the record with the given id.
func (a *Applier) ApplyAction(ctx context.Context, action Action, recordID string) error {
	switch action.Kind {
	case ActionMove:
		labelID, err := a.resolveLabel(ctx, action.Label)
		if err != nil {
			return err
		}
		return a.modify(ctx, recordID, ModifyRequest{
			AddLabelIDs:    []string{labelID},
			RemoveLabelIDs: []string{LabelInbox},
		})
	case ActionMarkRead:
		return a.modify(ctx, recordID, ModifyRequest{RemoveLabelIDs: []string{LabelUnread}})
	case ActionMarkUnread:
		return a.modify(ctx, recordID, ModifyRequest{AddLabelIDs: []string{LabelUnread}})
	default:
		return fmt.Errorf("%w: kind %d", types.ErrInvalidAction, action.Kind)
	}
}

// resolveLabel maps a label name to its id. Exact match wins; otherwise a
// single case-insensitive match is accepted.
func (a *Applier) resolveLabel(ctx context.Context, name string) (string, error) {
	labels, err := a.labelMap(ctx)
	if err != nil {
		return "", err
	}

	if id, ok := labels[name]; ok {
		return id, nil
	}
	for labelName, id := range labels {
		if strings.EqualFold(labelName, name) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", types.ErrLabelNotFound, name)
}

// labelMap returns the cached label map, listing it on first use.
func (a *Applier) labelMap(ctx context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.labels != nil {
		return a.labels, nil
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	labels, err := a.mutator.ListLabels(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	if labels == nil {
		labels = map[string]string{}
	}
	a.labels = labels
	return labels, nil
}

// modify sends one request to the mutator under the per-call timeout.
func (a *Applier) modify(ctx context.Context, recordID string, req ModifyRequest) error {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	if err := a.mutator.Modify(callCtx, recordID, req); err != nil {
		return fmt.Errorf("failed to modify record %s: %w", recordID, err)
	}
	return nil
}

func (a *Applier) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
