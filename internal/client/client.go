// Package client drives an interactive chat session: it turns console input
// into outbound messages and prints what the server sends.
package client

import (
	"context"

	"github.com/omochice/room-chat-client/internal/chat"
)

// Session is the part of *chat.Session the controller depends on.
type Session interface {
	Send(ctx context.Context, payload []byte) error
	Close()
	Events() <-chan chat.Event
}

// LineReader reads one line of user input after showing prompt.
// It returns io.EOF when input is exhausted.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Sink receives text for display.
type Sink interface {
	Emit(text string)
}

var _ Session = (*chat.Session)(nil)
