package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/omochice/room-chat-client/pkg/protocol"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the room server's WebSocket route.
	DefaultEndpoint = "ws://localhost:8080/api/v1/ws/"

	defaultEventBuffer  = 10
	defaultWriteTimeout = 10 * time.Second
)

// Options configures a Session.
type Options struct {
	// Endpoint is the fixed base address; the room id is appended as a query parameter.
	Endpoint string
	Logger   *zap.Logger
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
	// WriteTimeout bounds a single Send. Zero uses the default, negative disables it.
	WriteTimeout time.Duration
}

// Session owns one connection to a chat room and its lifecycle:
// Idle -> Connecting -> Open -> Closing -> Closed, or Failed.
type Session struct {
	dialer       Dialer
	endpoint     string
	logger       *zap.Logger
	writeTimeout time.Duration

	// mu guards state, err, conn and cancel. Send holds the read lock for the
	// duration of a write so no write starts or continues past Open.
	mu      sync.RWMutex
	state   State
	err     error
	conn    Conn
	cancel  context.CancelFunc
	started bool

	// wmu serializes writers.
	wmu sync.Mutex

	events     chan Event
	eventsOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
	wg         sync.WaitGroup
}

// New creates a Session that dials through dialer.
func New(dialer Dialer, opts Options) *Session {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	return &Session{
		dialer:       dialer,
		endpoint:     opts.Endpoint,
		logger:       opts.Logger,
		writeTimeout: opts.WriteTimeout,
		events:       make(chan Event, opts.EventBuffer),
		done:         make(chan struct{}),
	}
}

// Target returns the connection URL for room under endpoint.
func Target(endpoint, room string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: missing scheme or host", endpoint)
	}

	q := u.Query()
	q.Set("room_id", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the room and blocks until the handshake completes or fails.
// On success the receive loop is started and inbound frames appear on Events.
func (s *Session) Connect(ctx context.Context, room, credential string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return &ConnectError{Target: s.endpoint, Err: fmt.Errorf("%w: state is %s", ErrSessionUsed, state)}
	}
	s.state = StateConnecting
	s.mu.Unlock()

	target, err := Target(s.endpoint, room)
	if err != nil {
		return s.connectFailed(s.endpoint, err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	s.logger.Debug("Connecting", zap.String("target", target))

	conn, err := s.dialer.Dial(ctx, target, header)
	if err != nil {
		return s.connectFailed(target, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.state != StateConnecting {
		// Close ran during the handshake.
		s.mu.Unlock()
		cancel()
		_ = conn.Close()
		return &ConnectError{Target: target, Err: errors.New("session closed during handshake")}
	}
	s.state = StateOpen
	s.conn = conn
	s.cancel = cancel
	s.started = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.receiveLoop(loopCtx, conn)

	s.logger.Info("Connected",
		zap.String("room", room),
		zap.String("remote", conn.RemoteAddr()),
	)
	return nil
}

func (s *Session) connectFailed(target string, err error) error {
	s.mu.Lock()
	if s.state == StateConnecting {
		s.state = StateFailed
		s.err = err
	}
	s.mu.Unlock()

	s.closeEvents()
	s.logger.Warn("Handshake failed", zap.String("target", target), zap.Error(err))
	return &ConnectError{Target: target, Err: err}
}

// Send writes payload as one frame. It returns ErrNotConnected without
// touching the transport unless the session is Open.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateOpen {
		return ErrNotConnected
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	if err := s.conn.Write(ctx, payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close shuts the session down and waits for the receive loop to exit.
// It is idempotent and safe in every state; a Failed session stays Failed.
func (s *Session) Close() {
	s.mu.Lock()
	var conn Conn
	switch s.state {
	case StateOpen:
		s.state = StateClosing
		conn = s.conn
	case StateIdle, StateConnecting:
		s.state = StateClosed
	}
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("Close handshake failed", zap.Error(err))
		}
	}
	if cancel != nil {
		cancel()
	}
	s.doneOnce.Do(func() {
		close(s.done)
	})
	if !started {
		s.closeEvents()
	}
	s.wg.Wait()

	if conn != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		s.logger.Info("Disconnected")
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the failure reason once the session is Failed.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Events returns the channel the receive loop publishes to.
// It is closed when the loop exits, or by Close if the loop never started.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) closeEvents() {
	s.eventsOnce.Do(func() {
		close(s.events)
	})
}

// receiveLoop reads frames until the first terminal event.
func (s *Session) receiveLoop(ctx context.Context, conn Conn) {
	defer s.wg.Done()
	defer s.closeEvents()

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			s.handleReadError(conn, err)
			return
		}

		if len(data) == 0 {
			continue
		}

		select {
		case s.events <- Event{Kind: EventMessage, Frame: protocol.Decode(data)}:
		case <-s.done:
			return
		}
	}
}

func (s *Session) handleReadError(conn Conn, err error) {
	s.mu.Lock()
	if s.state != StateOpen {
		// A local Close owns the shutdown; the read error is its echo.
		s.mu.Unlock()
		return
	}

	var ev Event
	if errors.Is(err, ErrPeerClosed) {
		s.state = StateClosed
		ev = Event{Kind: EventClosed, Err: err}
	} else {
		s.state = StateFailed
		s.err = err
		ev = Event{Kind: EventFailed, Err: fmt.Errorf("%w: %w", ErrConnectionLost, err)}
	}
	s.mu.Unlock()

	if ev.Kind == EventClosed {
		s.logger.Info("Connection closed by server", zap.Error(err))
	} else {
		s.logger.Warn("Error reading from server", zap.Error(err))
	}
	_ = conn.Close()

	select {
	case s.events <- ev:
	case <-s.done:
	}
}
