package agent

import "fmt"

// TurnErrorKind classifies why a turn could not complete.
type TurnErrorKind string

const (
	// TurnReasoningUnavailable means the reasoning model could not be
	// reached or did not respond in time.
	TurnReasoningUnavailable TurnErrorKind = "reasoning_unavailable"
	// TurnStoreUnavailable means repeated storage failures made the turn
	// unrecoverable.
	TurnStoreUnavailable TurnErrorKind = "store_unavailable"
)

// TurnError is a turn-level failure. Answer carries the user-facing
// apology; Err carries the cause for logs.
type TurnError struct {
	Kind   TurnErrorKind
	Answer string
	Err    error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed (%s): %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Err
}
