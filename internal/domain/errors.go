package domain

import "errors"

var (
	// ErrCompletionTimeout is wrapped by completion backends when the request
	// deadline elapses before a reply arrives.
	ErrCompletionTimeout = errors.New("completion backend timed out")

	// ErrMalformedCompletion is wrapped when the backend reply lacks the
	// expected text.
	ErrMalformedCompletion = errors.New("completion backend returned an unexpected response")
)
