package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gobwas "github.com/gobwas/ws"
	"github.com/omochice/room-chat-client/internal/chat"
)

// Dialer opens gobwas client connections.
type Dialer struct {
	// Timeout bounds the TCP connect and handshake. Zero means no limit
	// beyond the context passed to Dial.
	Timeout time.Duration
}

// Dial implements chat.Dialer.
func (d Dialer) Dial(ctx context.Context, target string, header http.Header) (chat.Conn, error) {
	dialer := gobwas.Dialer{
		Header:  gobwas.HandshakeHeaderHTTP(header),
		Timeout: d.Timeout,
	}

	conn, br, _, err := dialer.Dial(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	return NewConn(conn, br), nil
}
