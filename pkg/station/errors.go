package station

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when no valid record arrives within the deadline.
var ErrTimeout = errors.New("timed out waiting for test results")

// MalformedRecordError is returned when a tagged line doesn't decode.
type MalformedRecordError struct {
	Line string
	Err  error
}

// Error implements error.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed test results %q: %v", e.Line, e.Err)
}

// Unwrap returns the decode error.
func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// DeviceIOError is a failure of the console itself.
type DeviceIOError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *DeviceIOError) Error() string {
	return fmt.Sprintf("console %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceIOError) Unwrap() error {
	return e.Err
}

// Retryable tells whether reading results again may succeed.
func Retryable(err error) bool {
	var malformed *MalformedRecordError
	return errors.Is(err, ErrTimeout) || errors.As(err, &malformed)
}
