package storage

import "errors"

// Common errors.
var (
	ErrOutOfRange = errors.New("requested range is out of bounds")
	ErrShape      = errors.New("shape mismatch")
)
