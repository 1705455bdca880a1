package survey

import "errors"

var (
	// ErrLocked indicates the form is not accepting submissions.
	ErrLocked = errors.New("form is locked")
	// ErrDuplicate indicates the client already submitted and repeats are off.
	ErrDuplicate = errors.New("repeat submissions are not allowed")
	// ErrEmptyAnswer indicates a submission with no text after trimming.
	ErrEmptyAnswer = errors.New("answer cannot be empty")
	// ErrInvalidQuestion indicates an empty or oversized question.
	ErrInvalidQuestion = errors.New("invalid question")
)
