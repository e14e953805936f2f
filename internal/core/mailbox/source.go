package mailbox

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/solatis/mailrules/internal/types"
)

// Source fetches the newest messages of one mailbox as Records.
type Source struct {
	s       *Session
	mailbox string
	limit   int
}

// NewSource returns a Source reading at most limit messages from mailbox.
func NewSource(s *Session, mailbox string, limit int) *Source {
	return &Source{s: s, mailbox: mailbox, limit: limit}
}

// Fetch returns the newest messages in ascending UID order. Messages are
// fetched with BODY.PEEK[] so fetching never marks them read. A message that
// cannot be parsed is logged and skipped.
func (src *Source) Fetch(ctx context.Context) ([]types.Record, error) {
	src.s.mu.Lock()
	defer src.s.mu.Unlock()

	status, err := src.s.selectMailbox(ctx, src.mailbox, true)
	if err != nil {
		return nil, err
	}

	seqset, ok := newestRange(status.Messages, src.limit)
	if !ok {
		return nil, nil
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	var records []types.Record
	var uids []uint32

	collect := make(chan struct{})
	go func() {
		defer close(collect)
		for msg := range messages {
			body := msg.GetBody(section)
			if body == nil {
				src.s.log.Warn().Uint32("uid", msg.Uid).Msg("message body missing")
				continue
			}
			id := strconv.FormatUint(uint64(msg.Uid), 10)
			rec, err := ParseMessage(id, body)
			if err != nil {
				src.s.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("skipping unparseable message")
				continue
			}
			records = append(records, rec)
			uids = append(uids, msg.Uid)
		}
	}()

	err = src.s.do(ctx, func() error { return src.s.c.Fetch(seqset, items, messages) })
	<-collect
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	sort.Sort(byUID{records: records, uids: uids})

	src.s.log.Info().
		Str("mailbox", src.mailbox).
		Int("messages", len(records)).
		Msg("fetched messages")
	return records, nil
}

// newestRange returns the sequence range of the newest limit messages.
func newestRange(messages uint32, limit int) (*imap.SeqSet, bool) {
	if messages == 0 || limit <= 0 {
		return nil, false
	}
	from := uint32(1)
	if uint64(messages) > uint64(limit) {
		from = messages - uint32(limit) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, messages)
	return seqset, true
}

type byUID struct {
	records []types.Record
	uids    []uint32
}

func (b byUID) Len() int           { return len(b.records) }
func (b byUID) Less(i, j int) bool { return b.uids[i] < b.uids[j] }
func (b byUID) Swap(i, j int) {
	b.records[i], b.records[j] = b.records[j], b.records[i]
	b.uids[i], b.uids[j] = b.uids[j], b.uids[i]
}
