package transport

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by calls on a closed Conn.
var ErrClosed = errors.New("connection closed")

// NetworkError is any failure talking to a relay: dial, handshake, write,
// read, timeout or an error frame sent back by the relay.
type NetworkError struct {
	Op       string // dial, handshake, push, pull, read
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is or wraps a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// RemoteError carries the text of a relay error frame.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "relay: " + e.Message
}
