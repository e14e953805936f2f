package mailbox

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/solatis/mailrules/internal/rules"
	"github.com/solatis/mailrules/internal/types"
)

/*
 * IMAP mutation backend.
 *
 * Labels map to IMAP folders: ListLabels returns every selectable folder
 * (name -> name) plus the system labels INBOX and UNREAD. The configured
 * mailbox plays the role of INBOX.
 *
 * Modify request translation:
 *   add UNREAD               -> UID STORE -FLAGS (\Seen)
 *   remove UNREAD            -> UID STORE +FLAGS (\Seen)
 *   add L, remove INBOX      -> UID MOVE L
 *   add L                    -> UID COPY L
 *
 * Any other shape fails with types.ErrUnsupportedModify before a command is
 * sent. A UID moved by this Mutator no longer exists in the mailbox, and
 * UID STORE on a missing UID succeeds without effect, so later requests for
 * a moved UID fail with ErrUnsupportedModify instead of reporting success. All translated commands are idempotent for a UID that is still in
 * the mailbox; a UID already moved away is reported by the server as an
 * error for MOVE/COPY and ignored for STORE.
 */

// Mutator implements rules.Mutator against one IMAP mailbox.
type Mutator struct {
	s       *Session
	mailbox string

	mu    sync.Mutex
	moved map[uint32]string // uid -> destination folder
}

// NewMutator returns a Mutator operating on messages of mailbox.
func NewMutator(s *Session, mailbox string) *Mutator {
	return &Mutator{s: s, mailbox: mailbox, moved: make(map[uint32]string)}
}

var _ rules.Mutator = (*Mutator)(nil)

// ListLabels implements rules.Mutator.
func (m *Mutator) ListLabels(ctx context.Context) (map[string]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	ch := make(chan *imap.MailboxInfo, 32)
	labels := map[string]string{
		rules.LabelInbox:  rules.LabelInbox,
		rules.LabelUnread: rules.LabelUnread,
	}

	collect := make(chan struct{})
	go func() {
		defer close(collect)
		for info := range ch {
			if isSelectable(info) {
				labels[info.Name] = info.Name
			}
		}
	}()

	err := m.s.do(ctx, func() error { return m.s.c.List("", "*", ch) })
	<-collect
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	return labels, nil
}

// Modify implements rules.Mutator. recordID is the message UID.
func (m *Mutator) Modify(ctx context.Context, recordID string, req rules.ModifyRequest) error {
	uid, err := strconv.ParseUint(recordID, 10, 32)
	if err != nil || uid == 0 {
		return fmt.Errorf("invalid message uid %q", recordID)
	}
	if dest, ok := m.movedTo(uint32(uid)); ok {
		return fmt.Errorf("%w: uid %d moved to %s", types.ErrUnsupportedModify, uid, dest)
	}

	plan, err := planModify(req)
	if err != nil {
		return err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, err := m.s.selectMailbox(ctx, m.mailbox, false); err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))

	if len(plan.addFlags) > 0 {
		if err := m.store(ctx, seqset, imap.AddFlags, plan.addFlags); err != nil {
			return err
		}
	}
	if len(plan.removeFlags) > 0 {
		if err := m.store(ctx, seqset, imap.RemoveFlags, plan.removeFlags); err != nil {
			return err
		}
	}
	switch {
	case plan.moveTo != "":
		err = m.s.do(ctx, func() error { return m.s.c.UidMove(seqset, plan.moveTo) })
		if err != nil {
			return fmt.Errorf("failed to move uid %d to %s: %w", uid, plan.moveTo, err)
		}
		m.markMoved(uint32(uid), plan.moveTo)
	case plan.copyTo != "":
		err = m.s.do(ctx, func() error { return m.s.c.UidCopy(seqset, plan.copyTo) })
		if err != nil {
			return fmt.Errorf("failed to copy uid %d to %s: %w", uid, plan.copyTo, err)
		}
	}
	return nil
}

func (m *Mutator) movedTo(uid uint32) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dest, ok := m.moved[uid]
	return dest, ok
}

func (m *Mutator) markMoved(uid uint32, dest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moved == nil {
		m.moved = make(map[uint32]string)
	}
	m.moved[uid] = dest
}

func (m *Mutator) store(ctx context.Context, seqset *imap.SeqSet, op imap.FlagsOp, flags []string) error {
	item := imap.FormatFlagsOp(op, true)
	values := make([]interface{}, len(flags))
	for i, f := range flags {
		values[i] = f
	}
	err := m.s.do(ctx, func() error { return m.s.c.UidStore(seqset, item, values, nil) })
	if err != nil {
		return fmt.Errorf("failed to store flags %v: %w", flags, err)
	}
	return nil
}

// modifyPlan is a ModifyRequest translated to IMAP operations.
type modifyPlan struct {
	addFlags    []string
	removeFlags []string
	moveTo      string
	copyTo      string
}

func (p modifyPlan) empty() bool {
	return len(p.addFlags) == 0 && len(p.removeFlags) == 0 && p.moveTo == "" && p.copyTo == ""
}

// planModify translates a label request. Flag changes run before a move so
// they apply to the message while it is still in the source mailbox.
func planModify(req rules.ModifyRequest) (modifyPlan, error) {
	var plan modifyPlan
	var target string
	removeInbox := false

	for _, id := range req.AddLabelIDs {
		switch id {
		case rules.LabelUnread:
			plan.removeFlags = append(plan.removeFlags, imap.SeenFlag)
		case rules.LabelInbox:
			return modifyPlan{}, fmt.Errorf("%w: cannot add %s", types.ErrUnsupportedModify, rules.LabelInbox)
		default:
			if target != "" {
				return modifyPlan{}, fmt.Errorf("%w: more than one target folder", types.ErrUnsupportedModify)
			}
			target = id
		}
	}

	for _, id := range req.RemoveLabelIDs {
		switch id {
		case rules.LabelUnread:
			plan.addFlags = append(plan.addFlags, imap.SeenFlag)
		case rules.LabelInbox:
			removeInbox = true
		default:
			return modifyPlan{}, fmt.Errorf("%w: cannot remove folder label %q", types.ErrUnsupportedModify, id)
		}
	}

	switch {
	case target != "" && removeInbox:
		plan.moveTo = target
	case target != "":
		plan.copyTo = target
	case removeInbox:
		return modifyPlan{}, fmt.Errorf("%w: removing %s requires a target folder", types.ErrUnsupportedModify, rules.LabelInbox)
	}

	if len(plan.addFlags) > 0 && len(plan.removeFlags) > 0 {
		return modifyPlan{}, fmt.Errorf("%w: request both adds and removes %s", types.ErrUnsupportedModify, rules.LabelUnread)
	}
	if plan.empty() {
		return modifyPlan{}, fmt.Errorf("%w: empty request", types.ErrUnsupportedModify)
	}
	return plan, nil
}

func isSelectable(info *imap.MailboxInfo) bool {
	for _, attr := range info.Attributes {
		if attr == imap.NoSelectAttr {
			return false
		}
	}
	return true
}
