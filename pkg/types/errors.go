package types

import "errors"

// Collection errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrMissingKey   = errors.New("record is missing the unique key")
	ErrDuplicateKey = errors.New("duplicate unique key value")
	ErrTypeMismatch = errors.New("type mismatch")
)

// Store lifecycle errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrInvalidName     = errors.New("invalid persistence name")
)

// Remote list errors.
var (
	ErrFetch             = errors.New("fetch failed")
	ErrUnsupportedFormat = errors.New("unsupported list format")
	ErrNotAList          = errors.New("document is not a list of records")
	ErrInvalidDate       = errors.New("invalid internet date")
)
