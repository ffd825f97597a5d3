// Package ws provides the gobwas/ws client transport for chat sessions.
package ws

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	gobwas "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/room-chat-client/internal/chat"
)

const closeWriteTimeout = time.Second

// Conn adapts a client-side gobwas connection to the chat.Conn interface.
type Conn struct {
	conn    net.Conn
	reader  *wsutil.Reader
	control wsutil.FrameHandlerFunc

	// wmu serializes frames written by Write, Close and control replies.
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an upgraded connection. br holds bytes the server sent
// right after the handshake and may be nil.
func NewConn(conn net.Conn, br *bufio.Reader) *Conn {
	var src io.Reader = conn
	if br != nil {
		src = br
	}

	c := &Conn{conn: conn}
	handler := wsutil.ControlFrameHandler(conn, gobwas.StateClientSide)
	c.control = func(h gobwas.Header, r io.Reader) error {
		c.wmu.Lock()
		defer c.wmu.Unlock()
		return handler(h, r)
	}
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          gobwas.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.control,
	}
	return c
}

// Read implements chat.Conn.
// Control frames are answered inline; a close frame from the server is
// reported as chat.ErrPeerClosed.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, c.readError(ctx, err)
		}

		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, c.reader); err != nil {
				return nil, c.readError(ctx, err)
			}
			continue
		}

		if hdr.OpCode&(gobwas.OpText|gobwas.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, c.readError(ctx, err)
			}
			continue
		}

		data, err := io.ReadAll(c.reader)
		if err != nil {
			return nil, c.readError(ctx, err)
		}
		return data, nil
	}
}

func (c *Conn) readError(ctx context.Context, err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return fmt.Errorf("%w: status %d %s", chat.ErrPeerClosed, closed.Code, closed.Reason)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Write implements chat.Conn.
// Writes a text frame to the WebSocket connection.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	return wsutil.WriteClientText(c.conn, data)
}

// Close implements chat.Conn.
// Sends a normal-closure frame and closes the socket. Safe to call twice.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
		body := gobwas.NewCloseFrameBody(gobwas.StatusNormalClosure, "")
		_ = wsutil.WriteClientMessage(c.conn, gobwas.OpClose, body)
		c.wmu.Unlock()

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
