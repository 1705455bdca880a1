package highlight

import "errors"

var (
	// ErrLocked indicates the document is not accepting participant writes.
	ErrLocked = errors.New("document is locked")
	// ErrInvalidRange indicates token indices outside the current sequence.
	ErrInvalidRange = errors.New("invalid token range")
	// ErrUnknownColor indicates a color outside the configured palette.
	ErrUnknownColor = errors.New("unknown highlight color")
)
