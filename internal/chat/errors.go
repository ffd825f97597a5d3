package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send outside the Open state.
	ErrNotConnected = errors.New("not connected to server")

	// ErrPeerClosed marks a read error caused by the server closing the connection.
	ErrPeerClosed = errors.New("connection closed by server")

	// ErrConnectionLost is reported when the receive loop fails.
	ErrConnectionLost = errors.New("connection lost")

	// ErrSessionUsed is returned by Connect on a session that already left Idle.
	ErrSessionUsed = errors.New("session already used")
)

// ConnectError describes a failed handshake.
// Target never contains the credential.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
