package panel

import "errors"

var (
	// ErrLocked indicates the panel is not accepting presses.
	ErrLocked = errors.New("panel is locked")
	// ErrUnknownButton indicates a press on a button the panel does not have.
	ErrUnknownButton = errors.New("unknown button")
	// ErrInvalidDirection indicates a direction other than minus or plus.
	ErrInvalidDirection = errors.New("invalid direction")
)
