// Package types provides domain models shared across mailrules components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the rule engine, the record store and the IMAP adapter
// can share them without import cycles. ID utilities in ids.go import uuid
// but are isolated for the run log.
package types

import "time"

// Record is an immutable snapshot of one message as seen by the rule engine.
// Produced by the inbox source, persisted verbatim by the record store and
// read-only everywhere else.
type Record struct {
	ID         string     `json:"id"`                    // stable identifier assigned by the inbox source
	Subject    string     `json:"subject"`
	Sender     string     `json:"sender"`
	ReceivedAt *time.Time `json:"received_at,omitempty"` // nil when the Date header could not be parsed
	Body       string     `json:"body"`
}

// HasReceivedAt reports whether the record carries a usable receive time.
func (r *Record) HasReceivedAt() bool {
	return r.ReceivedAt != nil && !r.ReceivedAt.IsZero()
}

// Resource limits applied by the loader and the inbox source.
const (
	// MaxRulesPerDocument bounds the rule document to keep a run's
	// rules x records loop predictable.
	MaxRulesPerDocument = 1024

	// MaxConditionsPerRule bounds a single rule's condition list.
	MaxConditionsPerRule = 64

	// MaxActionsPerRule bounds a single rule's action list.
	MaxActionsPerRule = 16

	// MaxBodySize caps the body kept per record. Longer bodies are truncated
	// by the inbox source before they reach the store.
	MaxBodySize = 256 * 1024
)
