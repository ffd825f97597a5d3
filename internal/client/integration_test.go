package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/omochice/room-chat-client/internal/chat"
	"github.com/omochice/room-chat-client/internal/client"
	"github.com/omochice/room-chat-client/internal/transport/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// chanReader feeds lines from a channel; closing it ends input.
type chanReader struct {
	lines chan string
}

func newChanReader(t *testing.T) *chanReader {
	r := &chanReader{lines: make(chan string)}
	t.Cleanup(func() {
		close(r.lines)
	})
	return r
}

func (r *chanReader) ReadLine(prompt string) (string, error) {
	line, ok := <-r.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

// roomServer echoes every text frame back to the sender and records what
// it received. closeAfter > 0 makes it close the room after that many frames.
type roomServer struct {
	*httptest.Server
	received   chan string
	handshakes chan *http.Request
}

func newRoomServer(t *testing.T, closeAfter int) *roomServer {
	t.Helper()
	rs := &roomServer{
		received:   make(chan string, 10),
		handshakes: make(chan *http.Request, 1),
	}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		rs.handshakes <- r

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		for n := 1; ; n++ {
			_, data, err := c.Read(context.Background())
			if err != nil {
				return
			}
			rs.received <- string(data)
			if err := c.Write(context.Background(), websocket.MessageText, data); err != nil {
				return
			}
			if closeAfter > 0 && n >= closeAfter {
				c.Close(websocket.StatusNormalClosure, "room closed")
				return
			}
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *roomServer) endpoint() string {
	return "ws" + strings.TrimPrefix(rs.URL, "http") + "/api/v1/ws/"
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestIntegration_SendReceiveQuit(t *testing.T) {
	rs := newRoomServer(t, 0)
	session := chat.New(ws.Dialer{Timeout: time.Second}, chat.Options{Endpoint: rs.endpoint()})
	require.NoError(t, session.Connect(context.Background(), "abc123", "tok"))
	require.Equal(t, chat.StateOpen, session.State())

	hs := <-rs.handshakes
	assert.Equal(t, "/api/v1/ws/", hs.URL.Path)
	assert.Equal(t, "abc123", hs.URL.Query().Get("room_id"))

	reader := newChanReader(t)
	sink := &recordingSink{}
	c := client.New(session, reader, sink, client.Config{DirectMode: client.DirectPrefix}, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(context.Background())
	}()

	reader.lines <- "hi"
	assert.Equal(t, `{"type":"message","content":"hi"}`, <-rs.received)
	waitFor(t, func() bool { return sink.Contains(`{"type":"message","content":"hi"}`) })

	reader.lines <- "@" + recipient + " psst"
	assert.Equal(t, `{"type":"message","content":"psst","recipient_id":"`+recipient+`"}`, <-rs.received)

	reader.lines <- "EXIT"

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after quit")
	}

	assert.Equal(t, chat.StateClosed, session.State())
	// The receive loop has exited: its event channel is closed.
	select {
	case _, ok := <-session.Events():
		for ok {
			_, ok = <-session.Events()
		}
	case <-time.After(time.Second):
		t.Fatal("receive loop still running after quit")
	}
}

func TestIntegration_RemoteClose(t *testing.T) {
	rs := newRoomServer(t, 1)
	session := chat.New(ws.Dialer{Timeout: time.Second}, chat.Options{Endpoint: rs.endpoint()})
	require.NoError(t, session.Connect(context.Background(), "abc123", "tok"))

	reader := newChanReader(t)
	sink := &recordingSink{}
	c := client.New(session, reader, sink, client.Config{DirectMode: client.DirectNone}, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(context.Background())
	}()

	reader.lines <- "hi"

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after the server closed the room")
	}

	assert.Equal(t, chat.StateClosed, session.State())
	assert.True(t, sink.Contains("Connection closed by server"))
	assert.True(t, errors.Is(session.Send(context.Background(), []byte("late")), chat.ErrNotConnected))
}

func TestIntegration_Unauthorized(t *testing.T) {
	rs := newRoomServer(t, 0)
	session := chat.New(ws.Dialer{Timeout: time.Second}, chat.Options{Endpoint: rs.endpoint()})

	err := session.Connect(context.Background(), "abc123", "wrong")
	var ce *chat.ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, chat.StateFailed, session.State())
	assert.NotContains(t, err.Error(), "wrong")

	session.Close()
	assert.Equal(t, chat.StateFailed, session.State())
}
