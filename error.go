package uvlink

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInstalled is returned when no application executable can be found.
	ErrNotInstalled = errors.New("uvlink: RizomUV installation not found")

	// ErrNoFreePort is returned when every port in the scanned range is bound.
	ErrNoFreePort = errors.New("uvlink: no free TCP port in range")

	// ErrPortInUse is returned when a caller-supplied port is already bound.
	ErrPortInUse = errors.New("uvlink: TCP port already in use")

	// ErrNotConnected is returned by commands issued before RunRizomUV or Connect.
	ErrNotConnected = errors.New("uvlink: link is not connected")

	// ErrAlreadyConnected is returned when RunRizomUV or Connect is called twice.
	ErrAlreadyConnected = errors.New("uvlink: link is already connected")

	// ErrClosed is returned by commands issued after Quit or Close, and by
	// pending commands when the connection drops.
	ErrClosed = errors.New("uvlink: link is closed")

	// ErrTimeout is returned when the application does not become ready or
	// does not answer a command in time.
	ErrTimeout = errors.New("uvlink: timed out")
)

// Error codes carried by LinkError. Codes at or above CodeApplication are
// reserved for the application itself.
const (
	CodeUnknownCommand = 1
	CodeInvalidParams  = 2
	CodeNotReady       = 3
	CodeApplication    = 100
)

// LinkError represents an error reported by the application in answer to a
// command. The connection stays usable after a LinkError.
type LinkError struct {
	// Command is the command that failed (filled in on the client side).
	Command string `msgpack:"-"`

	// Code classifies the failure (see the Code constants).
	Code int `msgpack:"code"`

	// Message is the human-readable description sent by the application.
	Message string `msgpack:"message"`
}

func (e *LinkError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("rizomuv error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rizomuv %s failed (code %d): %s", e.Command, e.Code, e.Message)
}

// IsLinkError reports whether err carries a LinkError with the given code.
// A code of 0 matches any LinkError.
func IsLinkError(err error, code int) bool {
	var le *LinkError
	if !errors.As(err, &le) {
		return false
	}
	return code == 0 || le.Code == code
}
