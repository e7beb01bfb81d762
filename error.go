package adv3

import (
	"errors"
	"fmt"
	"strings"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	var u unrecoverableError
	return !errors.As(err, &u)
}

var (
	ErrNotConnected     = errors.New("not connected")
	ErrHandshakeRefused = errors.New("printer refused control session")
	ErrNotOK            = errors.New("printer did not acknowledge command")
	ErrCancelled        = errors.New("transfer cancelled")
	ErrBusy             = errors.New("printer is not ready")
	ErrOutOfRange       = errors.New("value out of range")
	ErrShortRead        = errors.New("file ended before announced length")
)

// ConnectionError is returned when the printer could not be reached.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError is a reply without the ok marker. The session stays usable.
type ProtocolError struct {
	Cmd   string
	Reply string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: unexpected reply %q", e.Cmd, strings.TrimSpace(e.Reply))
}

func (e *ProtocolError) Unwrap() error {
	return ErrNotOK
}

// IOError is a read or write failure mid session, the connection has been
// dropped when it is returned.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
