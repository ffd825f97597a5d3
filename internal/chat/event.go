package chat

import "github.com/omochice/room-chat-client/pkg/protocol"

// EventKind identifies what the receive loop observed.
type EventKind int

const (
	// EventMessage carries an inbound frame.
	EventMessage EventKind = iota
	// EventClosed is sent once when the server closes the connection.
	EventClosed
	// EventFailed is sent once when the connection fails; Err holds the reason.
	EventFailed
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "MESSAGE"
	case EventClosed:
		return "CLOSED"
	case EventFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event is pushed by the receive loop to Session.Events.
type Event struct {
	Kind  EventKind
	Frame protocol.Frame
	Err   error
}

// Terminal reports whether this is the last event of the session.
func (e Event) Terminal() bool {
	return e.Kind != EventMessage
}
