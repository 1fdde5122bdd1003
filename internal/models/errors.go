package models

import "errors"

var (
	// ErrDimensionMismatch indicates an embedding whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidTimeSpec indicates malformed or missing fields in a resolved time specification.
	ErrInvalidTimeSpec = errors.New("invalid time specification")

	// ErrNoTimeFound indicates the resolver found no time in the user's request.
	ErrNoTimeFound = errors.New("no time found")

	// ErrUnsupportedContent indicates a document format outside the supported set.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// NeedsClarification reports whether err should be surfaced to the user as a request
// for a clearer time rather than as a failure.
func NeedsClarification(err error) bool {
	return errors.Is(err, ErrInvalidTimeSpec) || errors.Is(err, ErrNoTimeFound)
}
