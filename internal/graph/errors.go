package graph

import "errors"

var (
	// ErrNotFound signals a referenced node or edge id that is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput signals an empty required text or a malformed value.
	ErrInvalidInput = errors.New("invalid input")
)
