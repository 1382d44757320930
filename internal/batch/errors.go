package batch

import "errors"

// Common errors.
var (
	// ErrInvariant reports a sequence/sub-sequence boundary contract
	// violation. It is surfaced to the caller, never repaired in place.
	ErrInvariant = errors.New("sequence boundary invariant violated")

	// ErrMissingField reports a derived query or operator invoked on a
	// descriptor that lacks the field the operation needs.
	ErrMissingField = errors.New("required field is absent")
)
