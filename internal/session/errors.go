package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation needs an open connection.
	ErrNotConnected = errors.New("session not connected")

	// ErrAlreadyUsed is returned by Connect on a session that has connected before.
	ErrAlreadyUsed = errors.New("session already used")
)

// ConnectError reports a failed dial. It is fatal for the session; there is no retry.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// SendError reports a response that could not be written.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
