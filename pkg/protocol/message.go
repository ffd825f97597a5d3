// Package protocol encodes outbound chat intents into the room server's JSON
// envelope and decodes inbound frames for display.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageType is the fixed discriminant carried by every outbound envelope.
const MessageType = "message"

// Intent is a single outbound user action.
// Broadcast and Direct are the only implementations.
type Intent interface {
	envelope() envelope
}

// Broadcast is a message delivered to every member of the room.
type Broadcast struct {
	Content string
}

// Direct is a message addressed to one recipient by user id.
type Direct struct {
	Content     string
	RecipientID string
}

// envelope is the wire form of an Intent.
// RecipientID is a pointer so a broadcast omits the field instead of sending "".
type envelope struct {
	Type        string  `json:"type"`
	Content     string  `json:"content"`
	RecipientID *string `json:"recipient_id,omitempty"`
}

func (b Broadcast) envelope() envelope {
	return envelope{Type: MessageType, Content: b.Content}
}

func (d Direct) envelope() envelope {
	recipient := d.RecipientID
	return envelope{Type: MessageType, Content: d.Content, RecipientID: &recipient}
}

// Encode encodes the intent into its compact JSON envelope.
func Encode(intent Intent) ([]byte, error) {
	if intent == nil {
		return nil, fmt.Errorf("failed to encode message: nil intent")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Content is opaque text; keep <, > and & as typed.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(intent.envelope()); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
