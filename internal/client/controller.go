package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/omochice/room-chat-client/internal/chat"
	"github.com/omochice/room-chat-client/pkg/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	PromptDirect    = "Send as direct message? (y/n): "
	PromptRecipient = "Enter recipient user ID (UUID): "

	DefaultDirectPrefix = "@"
)

// DefaultQuitTokens end the session when typed on their own line.
var DefaultQuitTokens = []string{"exit", "quit"}

var errClosedByServer = errors.New("closed by server")

// frameLogFields are the top-level envelope fields logged for inbound frames.
// Content is never logged.
var frameLogFields = []string{"type", "message_type", "sender_id", "user_id", "room_id"}

// DirectMode selects how a line becomes a direct message.
type DirectMode int

const (
	// DirectPrompt asks after every message whether it is direct.
	DirectPrompt DirectMode = iota
	// DirectPrefix treats "@<recipient> <text>" as direct.
	DirectPrefix
	// DirectNone sends everything as a broadcast.
	DirectNone
)

// String returns the string representation of DirectMode
func (m DirectMode) String() string {
	switch m {
	case DirectPrompt:
		return "prompt"
	case DirectPrefix:
		return "prefix"
	case DirectNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseDirectMode parses the names returned by DirectMode.String.
func ParseDirectMode(s string) (DirectMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prompt", "":
		return DirectPrompt, nil
	case "prefix":
		return DirectPrefix, nil
	case "none":
		return DirectNone, nil
	default:
		return DirectPrompt, fmt.Errorf("unknown direct mode %q (want prompt, prefix or none)", s)
	}
}

// Config controls the compose loop.
type Config struct {
	QuitTokens   []string
	DirectMode   DirectMode
	DirectPrefix string
	// Greeting, when set, is broadcast once right after Run starts.
	Greeting string
}

// Controller runs the compose loop against a connected Session and
// displays everything the session receives.
type Controller struct {
	session Session
	in      LineReader
	out     Sink
	cfg     Config
	logger  *zap.Logger
}

// New creates a Controller. The session must already be connected.
func New(session Session, in LineReader, out Sink, cfg Config, logger *zap.Logger) *Controller {
	if len(cfg.QuitTokens) == 0 {
		cfg.QuitTokens = DefaultQuitTokens
	}
	if cfg.DirectPrefix == "" {
		cfg.DirectPrefix = DefaultDirectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		session: session,
		in:      in,
		out:     out,
		cfg:     cfg,
		logger:  logger,
	}
}

// input is one result of the line reader goroutine.
type input struct {
	intent protocol.Intent
	quit   bool
	err    error
}

// Run blocks until the user quits, input ends, ctx is canceled or the
// connection terminates. The session is always closed when Run returns.
// A connection failure is returned as an error wrapping chat.ErrConnectionLost;
// quitting, interrupting and a server-side close return nil.
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// ReadLine cannot be interrupted, so the reader is not part of the group:
	// Run must not wait for a blocked terminal read.
	inputs := make(chan input)
	go c.readInputs(ctx, inputs)

	g.Go(func() error {
		return c.pumpEvents(ctx)
	})
	g.Go(func() error {
		defer c.session.Close()
		return c.compose(ctx, inputs)
	})

	err := g.Wait()
	if errors.Is(err, errClosedByServer) {
		return nil
	}
	return err
}

func (c *Controller) compose(ctx context.Context, inputs <-chan input) error {
	if c.cfg.Greeting != "" {
		c.send(ctx, protocol.Broadcast{Content: c.cfg.Greeting})
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Compose loop stopped", zap.Error(ctx.Err()))
			return nil
		case in := <-inputs:
			if in.err != nil {
				c.out.Emit(fmt.Sprintf("Error reading input: %v", in.err))
				return in.err
			}
			if in.quit {
				c.logger.Debug("Quit requested")
				return nil
			}
			c.send(ctx, in.intent)
		}
	}
}

func (c *Controller) send(ctx context.Context, intent protocol.Intent) {
	data, err := protocol.Encode(intent)
	if err != nil {
		c.out.Emit(err.Error())
		return
	}

	if err := c.session.Send(ctx, data); err != nil {
		if errors.Is(err, chat.ErrNotConnected) {
			c.out.Emit("Not connected to server, message dropped")
			return
		}
		c.out.Emit(fmt.Sprintf("Failed to send message: %v", err))
		return
	}

	if d, ok := intent.(protocol.Direct); ok {
		c.logger.Debug("Sent direct message", zap.String("recipient_id", d.RecipientID))
	} else {
		c.logger.Debug("Sent broadcast message")
	}
}

// pumpEvents displays inbound frames until the event stream ends.
func (c *Controller) pumpEvents(ctx context.Context) error {
	events := c.session.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case chat.EventMessage:
				c.display(ev.Frame)
			case chat.EventClosed:
				c.out.Emit("Connection closed by server")
				return errClosedByServer
			case chat.EventFailed:
				c.out.Emit(fmt.Sprintf("Connection error: %v", ev.Err))
				return ev.Err
			}
		}
	}
}

// display shows the frame verbatim and logs its envelope at debug level.
func (c *Controller) display(f protocol.Frame) {
	c.out.Emit(f.Text())

	ce := c.logger.Check(zap.DebugLevel, "Received frame")
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.Int("bytes", len(f.Text())),
		zap.Bool("structured", f.Structured()),
	}
	for _, name := range frameLogFields {
		if v, ok := f.Field(name); ok {
			fields = append(fields, zap.String(name, v))
		}
	}
	ce.Write(fields...)
}

func (c *Controller) readInputs(ctx context.Context, out chan<- input) {
	for {
		in := c.next()
		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
		if in.quit || in.err != nil {
			return
		}
	}
}

// next reads lines until one yields an intent, a quit or an error.
func (c *Controller) next() input {
	for {
		line, err := c.in.ReadLine(c.messagePrompt())
		if err != nil {
			return inputFromError(err)
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if c.isQuit(text) {
			return input{quit: true}
		}

		intent, ok, err := c.classify(text)
		if err != nil {
			return inputFromError(err)
		}
		if ok {
			return input{intent: intent}
		}
	}
}

func inputFromError(err error) input {
	if errors.Is(err, io.EOF) {
		return input{quit: true}
	}
	return input{err: err}
}

func (c *Controller) messagePrompt() string {
	return fmt.Sprintf("Type message (or '%s' to quit): ", c.cfg.QuitTokens[0])
}

func (c *Controller) isQuit(text string) bool {
	for _, token := range c.cfg.QuitTokens {
		if strings.EqualFold(text, token) {
			return true
		}
	}
	return false
}

// classify builds the intent for text. ok is false when the line was
// rejected and a notice has already been emitted.
func (c *Controller) classify(text string) (protocol.Intent, bool, error) {
	switch c.cfg.DirectMode {
	case DirectPrompt:
		answer, err := c.in.ReadLine(PromptDirect)
		if err != nil {
			return nil, false, err
		}
		if !isYes(answer) {
			return protocol.Broadcast{Content: text}, true, nil
		}
		recipient, err := c.in.ReadLine(PromptRecipient)
		if err != nil {
			return nil, false, err
		}
		return c.direct(text, strings.TrimSpace(recipient))

	case DirectPrefix:
		if !strings.HasPrefix(text, c.cfg.DirectPrefix) {
			return protocol.Broadcast{Content: text}, true, nil
		}
		recipient, content, _ := strings.Cut(strings.TrimPrefix(text, c.cfg.DirectPrefix), " ")
		content = strings.TrimSpace(content)
		if content == "" {
			c.out.Emit(fmt.Sprintf("Usage: %s<recipient-uuid> <message>", c.cfg.DirectPrefix))
			return nil, false, nil
		}
		return c.direct(content, recipient)

	default:
		return protocol.Broadcast{Content: text}, true, nil
	}
}

func (c *Controller) direct(content, recipient string) (protocol.Intent, bool, error) {
	if _, err := uuid.Parse(recipient); err != nil {
		c.out.Emit(fmt.Sprintf("Invalid recipient ID %q, message dropped", recipient))
		return nil, false, nil
	}
	return protocol.Direct{Content: content, RecipientID: recipient}, true, nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
