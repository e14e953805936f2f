package types

import "errors"

// Sentinel errors for mailrules operations.
var (
	// ErrMissingKey indicates a rule document lacks a required key.
	ErrMissingKey = errors.New("rule document is missing a required key")

	// ErrInvalidCombinator indicates a rule type other than "any" or "all".
	ErrInvalidCombinator = errors.New("rule type must be \"any\" or \"all\"")

	// ErrEmptyConditions indicates a rule has no conditions.
	ErrEmptyConditions = errors.New("rule condition list is empty")

	// ErrInvalidAction indicates an unknown action type or value.
	ErrInvalidAction = errors.New("invalid rule action")

	// ErrTooManyRules indicates a rule document exceeds MaxRulesPerDocument.
	ErrTooManyRules = errors.New("rule document has too many rules")

	// ErrTooManyConditions indicates a rule exceeds MaxConditionsPerRule.
	ErrTooManyConditions = errors.New("rule has too many conditions")

	// ErrTooManyActions indicates a rule exceeds MaxActionsPerRule.
	ErrTooManyActions = errors.New("rule has too many actions")

	// ErrUnknownField indicates a condition names a field the engine cannot resolve.
	ErrUnknownField = errors.New("unknown condition field")

	// ErrUnknownPredicate indicates a predicate unsupported for the field kind.
	ErrUnknownPredicate = errors.New("unknown predicate for field")

	// ErrMalformedDate indicates a date window value that cannot be parsed.
	ErrMalformedDate = errors.New("malformed date value")

	// ErrMissingReceivedAt indicates a record without a receive time.
	ErrMissingReceivedAt = errors.New("record has no received_at")

	// ErrLabelNotFound indicates a move target label does not exist.
	ErrLabelNotFound = errors.New("label not found")

	// ErrAlreadyApplied indicates ApplyRules was called on a finished engine.
	ErrAlreadyApplied = errors.New("rule engine already applied")

	// ErrUnsupportedModify indicates a mutation backend cannot express a request.
	ErrUnsupportedModify = errors.New("unsupported modify request")
)
