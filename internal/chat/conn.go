// Package chat provides the client-side session for a room chat server:
// connection lifecycle, the background receive loop and the send path.
package chat

import (
	"context"
	"net/http"
)

// Conn abstracts an established WebSocket connection.
// This interface isolates transport details from session logic.
type Conn interface {
	// Read blocks until the next data frame arrives.
	// Returns an error wrapping ErrPeerClosed when the server closed the
	// connection with a close frame.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single text frame. At most one Write runs at a time.
	Write(ctx context.Context, data []byte) error

	// Close performs an orderly shutdown and releases the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens a Conn to target, sending header with the handshake.
// Dial blocks until the handshake completes, fails or ctx is done.
type Dialer interface {
	Dial(ctx context.Context, target string, header http.Header) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, target string, header http.Header) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, target string, header http.Header) (Conn, error) {
	return f(ctx, target, header)
}
