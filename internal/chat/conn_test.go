package chat_test

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/omochice/room-chat-client/internal/chat"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	errCh      chan error
	writtenMu  sync.Mutex
	written    [][]byte
	writeErr   error
	closeOnce  sync.Once
	closed     chan struct{}
	remoteAddr string
	// closeGate, when set, holds Close until it is closed.
	closeGate chan struct{}
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 10),
		errCh:      make(chan error, 1),
		closed:     make(chan struct{}),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, io.ErrClosedPipe
	case err := <-m.errCh:
		return nil, err
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	if m.closeGate != nil {
		<-m.closeGate
	}
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

func (m *mockConn) GetWritten() [][]byte {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	return m.written
}

func (m *mockConn) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// mockDialer records the handshake and returns conn or err.
type mockDialer struct {
	conn   *mockConn
	err    error
	mu     sync.Mutex
	target string
	header http.Header
	calls  int
}

func (d *mockDialer) Dial(ctx context.Context, target string, header http.Header) (chat.Conn, error) {
	d.mu.Lock()
	d.target = target
	d.header = header.Clone()
	d.calls++
	d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// Compile-time checks
var (
	_ chat.Conn   = (*mockConn)(nil)
	_ chat.Dialer = (*mockDialer)(nil)
)
