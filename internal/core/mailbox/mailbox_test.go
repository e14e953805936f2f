package mailbox

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/rs/zerolog"
	"github.com/solatis/mailrules/internal/rules"
	"github.com/solatis/mailrules/internal/types"
)

const plainMessage = "From: Test Sender <test@example.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Important Test Email\r\n" +
	"Date: Mon, 03 Jun 2024 10:15:00 +0200\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hello there.\r\n"

const multipartMessage = "From: =?utf-8?q?J=C3=BCrgen?= <juergen@example.com>\r\n" +
	"Subject: =?utf-8?q?Gr=C3=BC=C3=9Fe?=\r\n" +
	"Date: not a date\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>html body</p>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain body\r\n" +
	"--XYZ--\r\n"

const htmlOnlyMessage = "From: a@example.com\r\n" +
	"Subject: html\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<b>only html</b>\r\n"

func TestParseMessage_Plain(t *testing.T) {
	rec, err := ParseMessage("42", strings.NewReader(plainMessage))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v, want nil", err)
	}
	if rec.ID != "42" {
		t.Errorf("ID = %q, want 42", rec.ID)
	}
	if rec.Subject != "Important Test Email" {
		t.Errorf("Subject = %q", rec.Subject)
	}
	if !strings.Contains(rec.Sender, "test@example.com") {
		t.Errorf("Sender = %q, want address", rec.Sender)
	}
	want := time.Date(2024, 6, 3, 8, 15, 0, 0, time.UTC)
	if rec.ReceivedAt == nil || !rec.ReceivedAt.Equal(want) {
		t.Errorf("ReceivedAt = %v, want %v", rec.ReceivedAt, want)
	}
	if strings.TrimSpace(rec.Body) != "Hello there." {
		t.Errorf("Body = %q", rec.Body)
	}
}

func TestParseMessage_Multipart(t *testing.T) {
	rec, err := ParseMessage("7", strings.NewReader(multipartMessage))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v, want nil", err)
	}
	if rec.Subject != "Grüße" {
		t.Errorf("Subject = %q, want decoded", rec.Subject)
	}
	if !strings.HasPrefix(rec.Sender, "Jürgen") {
		t.Errorf("Sender = %q, want decoded name", rec.Sender)
	}
	if rec.ReceivedAt != nil {
		t.Errorf("ReceivedAt = %v, want nil for bad Date", rec.ReceivedAt)
	}
	if strings.TrimSpace(rec.Body) != "plain body" {
		t.Errorf("Body = %q, want text/plain part", rec.Body)
	}
}

func TestParseMessage_FallbackBody(t *testing.T) {
	rec, err := ParseMessage("8", strings.NewReader(htmlOnlyMessage))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v, want nil", err)
	}
	if !strings.Contains(rec.Body, "only html") {
		t.Errorf("Body = %q, want html fallback", rec.Body)
	}
	if rec.ReceivedAt != nil {
		t.Errorf("ReceivedAt = %v, want nil without Date", rec.ReceivedAt)
	}
}

func TestParseMessage_TruncatesBody(t *testing.T) {
	raw := "Subject: big\r\nContent-Type: text/plain\r\n\r\n" + strings.Repeat("é", types.MaxBodySize)
	rec, err := ParseMessage("9", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v, want nil", err)
	}
	if len(rec.Body) > types.MaxBodySize {
		t.Errorf("len(Body) = %d, want <= %d", len(rec.Body), types.MaxBodySize)
	}
	if !strings.HasSuffix(rec.Body, "é") {
		t.Error("Body ends in a partial rune")
	}
}

func TestReadLimited(t *testing.T) {
	cut := strings.Repeat("a", types.MaxBodySize-1) + "é"

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "short latin-1 tail kept", input: "caf\xe9", want: "caf\xe9"},
		{name: "short utf-8", input: "café", want: "café"},
		{name: "rune cut at limit", input: cut, want: strings.Repeat("a", types.MaxBodySize-1)},
		{name: "exact fit", input: strings.Repeat("a", types.MaxBodySize), want: strings.Repeat("a", types.MaxBodySize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLimited(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("readLimited() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("readLimited() = %q (len %d), want len %d", tail(got), len(got), len(tt.want))
			}
		})
	}
}

func tail(s string) string {
	if len(s) > 16 {
		return s[len(s)-16:]
	}
	return s
}

func TestMutator_MovedUIDRejected(t *testing.T) {
	m := NewMutator(nil, "INBOX")
	m.markMoved(42, "Work")

	err := m.Modify(context.Background(), "42", rules.ModifyRequest{RemoveLabelIDs: []string{rules.LabelUnread}})
	if !errors.Is(err, types.ErrUnsupportedModify) {
		t.Fatalf("Modify() error = %v, want ErrUnsupportedModify", err)
	}
	if !strings.Contains(err.Error(), "moved to Work") {
		t.Errorf("Modify() error = %v, want destination in message", err)
	}

	if dest, ok := m.movedTo(43); ok {
		t.Errorf("movedTo(43) = %q, want not moved", dest)
	}
}

func TestMutator_InvalidUID(t *testing.T) {
	m := NewMutator(nil, "INBOX")
	for _, id := range []string{"", "0", "abc", "4294967296"} {
		if err := m.Modify(context.Background(), id, rules.ModifyRequest{RemoveLabelIDs: []string{rules.LabelUnread}}); err == nil {
			t.Errorf("Modify(%q) error = nil, want invalid uid", id)
		}
	}
}

func TestNewestRange(t *testing.T) {
	tests := []struct {
		messages uint32
		limit    int
		want     string
		wantOK   bool
	}{
		{messages: 0, limit: 10, wantOK: false},
		{messages: 5, limit: 0, wantOK: false},
		{messages: 5, limit: 10, want: "1:5", wantOK: true},
		{messages: 100, limit: 10, want: "91:100", wantOK: true},
		{messages: 10, limit: 10, want: "1:10", wantOK: true},
	}
	for _, tt := range tests {
		seqset, ok := newestRange(tt.messages, tt.limit)
		if ok != tt.wantOK {
			t.Errorf("newestRange(%d, %d) ok = %v, want %v", tt.messages, tt.limit, ok, tt.wantOK)
			continue
		}
		if ok && seqset.String() != tt.want {
			t.Errorf("newestRange(%d, %d) = %s, want %s", tt.messages, tt.limit, seqset, tt.want)
		}
	}
}

func TestPlanModify(t *testing.T) {
	tests := []struct {
		name    string
		req     rules.ModifyRequest
		want    modifyPlan
		wantErr bool
	}{
		{
			name: "move",
			req:  rules.ModifyRequest{AddLabelIDs: []string{"Work"}, RemoveLabelIDs: []string{rules.LabelInbox}},
			want: modifyPlan{moveTo: "Work"},
		},
		{
			name: "copy",
			req:  rules.ModifyRequest{AddLabelIDs: []string{"Work"}},
			want: modifyPlan{copyTo: "Work"},
		},
		{
			name: "mark read",
			req:  rules.ModifyRequest{RemoveLabelIDs: []string{rules.LabelUnread}},
			want: modifyPlan{addFlags: []string{imap.SeenFlag}},
		},
		{
			name: "mark unread",
			req:  rules.ModifyRequest{AddLabelIDs: []string{rules.LabelUnread}},
			want: modifyPlan{removeFlags: []string{imap.SeenFlag}},
		},
		{name: "empty", req: rules.ModifyRequest{}, wantErr: true},
		{name: "remove inbox only", req: rules.ModifyRequest{RemoveLabelIDs: []string{rules.LabelInbox}}, wantErr: true},
		{name: "add inbox", req: rules.ModifyRequest{AddLabelIDs: []string{rules.LabelInbox}}, wantErr: true},
		{name: "two targets", req: rules.ModifyRequest{AddLabelIDs: []string{"A", "B"}}, wantErr: true},
		{name: "remove folder", req: rules.ModifyRequest{RemoveLabelIDs: []string{"Work"}}, wantErr: true},
		{
			name:    "read and unread",
			req:     rules.ModifyRequest{AddLabelIDs: []string{rules.LabelUnread}, RemoveLabelIDs: []string{rules.LabelUnread}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := planModify(tt.req)
			if tt.wantErr {
				if !errors.Is(err, types.ErrUnsupportedModify) {
					t.Fatalf("planModify() error = %v, want ErrUnsupportedModify", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("planModify() error = %v, want nil", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("planModify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIsSelectable(t *testing.T) {
	if !isSelectable(&imap.MailboxInfo{Name: "Work"}) {
		t.Error("isSelectable(Work) = false, want true")
	}
	if isSelectable(&imap.MailboxInfo{Name: "[Gmail]", Attributes: []string{imap.NoSelectAttr}}) {
		t.Error("isSelectable(\\Noselect) = true, want false")
	}
}

type stubMutator struct {
	labels map[string]string
	calls  int
}

func (s *stubMutator) ListLabels(ctx context.Context) (map[string]string, error) {
	return s.labels, nil
}

func (s *stubMutator) Modify(ctx context.Context, recordID string, req rules.ModifyRequest) error {
	s.calls++
	return nil
}

func TestDryRunMutator(t *testing.T) {
	base := &stubMutator{labels: map[string]string{"Work": "Work"}}
	d := NewDryRunMutator(base, zerolog.Nop())
	ctx := context.Background()

	labels, err := d.ListLabels(ctx)
	if err != nil || labels["Work"] != "Work" {
		t.Errorf("ListLabels() = %v, %v, want delegated labels", labels, err)
	}

	err = d.Modify(ctx, "1", rules.ModifyRequest{AddLabelIDs: []string{"Work"}, RemoveLabelIDs: []string{rules.LabelInbox}})
	if err != nil {
		t.Errorf("Modify() error = %v, want nil", err)
	}
	if base.calls != 0 {
		t.Errorf("base Modify called %d times, want 0", base.calls)
	}

	if err := d.Modify(ctx, "1", rules.ModifyRequest{}); !errors.Is(err, types.ErrUnsupportedModify) {
		t.Errorf("Modify(empty) error = %v, want ErrUnsupportedModify", err)
	}
}

func TestDryRunMutator_WithEngine(t *testing.T) {
	d := NewDryRunMutator(nil, zerolog.Nop())
	applier := rules.NewApplier(d, 0, zerolog.Nop())

	err := applier.ApplyAction(context.Background(), rules.Action{Kind: rules.ActionMove, Label: "Work"}, "1")
	if !errors.Is(err, types.ErrLabelNotFound) {
		t.Errorf("ApplyAction(move) error = %v, want ErrLabelNotFound without a base", err)
	}
	if err := applier.ApplyAction(context.Background(), rules.Action{Kind: rules.ActionMarkRead}, "1"); err != nil {
		t.Errorf("ApplyAction(mark read) error = %v, want nil", err)
	}
}
