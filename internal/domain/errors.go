package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a benign miss: an event or edit referencing a row that
// is not in the current window. Callers treat it as a no-op, never as a
// failure.
var ErrNotFound = errors.New("not found")

// ErrAlreadyStarted is returned when a second subscription is opened while
// one is still active for the same screen.
var ErrAlreadyStarted = errors.New("subscription already started")

// DecodeError wraps a malformed push payload. The event is dropped and the
// stream continues; the payload is kept for logging.
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode push payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
