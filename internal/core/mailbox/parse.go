package mailbox

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/solatis/mailrules/internal/types"
)

// ParseMessage builds a Record from a raw RFC 5322 message.
//
// Subject and sender are the decoded Subject and From headers. The receive
// time is the Date header; an unparseable or missing Date leaves ReceivedAt
// nil. The body is the first text/plain inline part, falling back to the
// first inline part of any type, truncated to types.MaxBodySize.
func ParseMessage(id string, r io.Reader) (types.Record, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return types.Record{}, fmt.Errorf("failed to parse message %s: %w", id, err)
	}
	defer mr.Close()

	rec := types.Record{
		ID:      id,
		Subject: headerText(mr.Header, "Subject"),
		Sender:  headerText(mr.Header, "From"),
	}
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		date = date.UTC()
		rec.ReceivedAt = &date
	}

	body, err := extractBody(mr)
	if err != nil {
		return types.Record{}, fmt.Errorf("failed to read body of message %s: %w", id, err)
	}
	rec.Body = body
	return rec, nil
}

// headerText decodes RFC 2047 encoded words, keeping the raw value when the
// charset is unknown.
func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return v
	}
	return h.Get(key)
}

func extractBody(mr *mail.Reader) (string, error) {
	var fallback string
	haveFallback := false

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", err
		}
		if p == nil {
			continue
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		if strings.HasPrefix(contentType, "text/plain") || contentType == "" {
			return readLimited(p.Body)
		}
		if !haveFallback {
			fallback, err = readLimited(p.Body)
			if err != nil {
				return "", err
			}
			haveFallback = true
		}
	}
	return fallback, nil
}

// readLimited reads at most types.MaxBodySize bytes. When the limit cut the
// body, a trailing incomplete rune is dropped; shorter bodies are kept as is.
func readLimited(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, types.MaxBodySize))
	if err != nil {
		return "", err
	}
	if len(b) < types.MaxBodySize {
		return string(b), nil
	}
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			b = b[:len(b)-i]
		}
		break
	}
	return string(b), nil
}
