package agent

import "errors"

var (
	// ErrProvider indicates the completion provider failed. Retrieval-side
	// failures never surface as ErrProvider; they are absorbed into an
	// empty tool result.
	ErrProvider = errors.New("completion provider failure")

	// ErrEmptyMessage indicates a turn was started without user text.
	ErrEmptyMessage = errors.New("message cannot be empty")
)
