package mailbox

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/solatis/mailrules/internal/rules"
)

// DryRunMutator logs modify requests instead of sending them. Label listing
// is delegated to base so that missing labels are still reported; with a nil
// base only the system labels exist.
type DryRunMutator struct {
	base rules.Mutator
	log  zerolog.Logger
}

// NewDryRunMutator wraps base. base may be nil.
func NewDryRunMutator(base rules.Mutator, log zerolog.Logger) *DryRunMutator {
	return &DryRunMutator{base: base, log: log}
}

// ListLabels implements rules.Mutator.
func (d *DryRunMutator) ListLabels(ctx context.Context) (map[string]string, error) {
	if d.base == nil {
		return map[string]string{
			rules.LabelInbox:  rules.LabelInbox,
			rules.LabelUnread: rules.LabelUnread,
		}, nil
	}
	return d.base.ListLabels(ctx)
}

// Modify implements rules.Mutator.
func (d *DryRunMutator) Modify(ctx context.Context, recordID string, req rules.ModifyRequest) error {
	if _, err := planModify(req); err != nil {
		return err
	}
	d.log.Info().
		Str("record_id", recordID).
		Strs("add", req.AddLabelIDs).
		Strs("remove", req.RemoveLabelIDs).
		Msg("dry run: modify skipped")
	return nil
}
