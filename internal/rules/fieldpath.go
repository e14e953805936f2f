// internal/rules/fieldpath.go
package rules

import (
	"strings"

	"github.com/solatis/mailrules/internal/types"
)

/*
 * Field resolution for message records.
 *
 * Maps a condition's field name to a Record attribute:
 *
 *   from           -> Record.Sender
 *   subject        -> Record.Subject
 *   body, message  -> Record.Body
 *   date received  -> Record.ReceivedAt
 *
 * Names are normalized at load time: trimmed, lower-cased, "_" folded to a
 * space and inner whitespace collapsed, so "Date_Received" and
 * "date received" resolve identically.
 *
 * Unknown names resolve to FieldUnknown with an empty value. Conditions on
 * unknown fields always evaluate to false; they are never a load error, so
 * a rule file written for a richer source ("to", "cc") still loads.
 */

// Field is the tagged variant of a resolvable record attribute.
type Field int

const (
	FieldUnknown Field = iota
	FieldFrom
	FieldSubject
	FieldBody
	FieldDateReceived
)

var fieldAliases = map[string]Field{
	"from":          FieldFrom,
	"subject":       FieldSubject,
	"body":          FieldBody,
	"message":       FieldBody,
	"date received": FieldDateReceived,
}

// NormalizeFieldName canonicalizes a field name as written in a rule document.
func NormalizeFieldName(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), "_", " ")
	return strings.Join(strings.Fields(name), " ")
}

// ParseField maps a field name to its variant.
func ParseField(name string) Field {
	if f, ok := fieldAliases[NormalizeFieldName(name)]; ok {
		return f
	}
	return FieldUnknown
}

func (f Field) String() string {
	switch f {
	case FieldFrom:
		return "from"
	case FieldSubject:
		return "subject"
	case FieldBody:
		return "body"
	case FieldDateReceived:
		return "date received"
	default:
		return "unknown"
	}
}

// IsText reports whether the field resolves to a string attribute.
func (f Field) IsText() bool {
	return f == FieldFrom || f == FieldSubject || f == FieldBody
}

// ResolveText returns the text attribute for field.
// Returns ok=false for date and unknown fields.
func ResolveText(field Field, rec *types.Record) (string, bool) {
	switch field {
	case FieldFrom:
		return rec.Sender, true
	case FieldSubject:
		return rec.Subject, true
	case FieldBody:
		return rec.Body, true
	default:
		return "", false
	}
}
