package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUTF8 is returned when a payload is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")
	// ErrMalformedJSON is returned when a payload is not a single JSON object.
	ErrMalformedJSON = errors.New("payload is not a JSON object")
	// ErrMissingField is returned when id or type is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField is returned when a known field has the wrong JSON type.
	ErrInvalidField = errors.New("invalid field")
)

// DecodeError describes a payload that could not be turned into a message.
// The offending message is dropped; the stream itself stays usable.
type DecodeError struct {
	Field string // empty unless the failure concerns a single field
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode message: %v: %q", e.Err, e.Field)
	}
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FramingError is returned when the stream ends while a partial message is buffered.
// Callers treat it as the peer closing the connection.
type FramingError struct {
	Buffered int
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("stream ended with %d bytes of unterminated message", e.Buffered)
}
