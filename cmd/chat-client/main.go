package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/omochice/room-chat-client/internal/chat"
	"github.com/omochice/room-chat-client/internal/client"
	"github.com/omochice/room-chat-client/internal/config"
	"github.com/omochice/room-chat-client/internal/transport/gorilla"
	"github.com/omochice/room-chat-client/internal/transport/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const (
	promptRoom  = "Enter room ID: "
	promptToken = "Enter JWT token: "
)

type options struct {
	configPath string
	room       string
	token      string
	host       string
	port       int
	transport  string
	directMode string
	greeting   string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "chat-client",
		Short: "Interactive client for a room-based WebSocket chat server",
		Long: `chat-client joins one chat room over WebSocket and relays lines typed on
stdin as chat messages. Everything the server sends is printed to stdout.

Type 'exit' (or any configured quit token) to leave the room.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	f.StringVarP(&opts.room, "room", "r", "", "room ID to join (prompted for when empty)")
	f.StringVarP(&opts.token, "token", "t", "", "bearer token (prompted for when empty)")
	f.StringVar(&opts.host, "host", "", "server host")
	f.IntVar(&opts.port, "port", 0, "server port")
	f.StringVar(&opts.transport, "transport", "", "WebSocket implementation: gobwas or gorilla")
	f.StringVar(&opts.directMode, "direct-mode", "", "how direct messages are composed: prompt, prefix or none")
	f.StringVar(&opts.greeting, "greeting", "", "message broadcast once after connecting")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, opts.verbose, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}

	out := client.NewWriterSink(cmd.OutOrStdout())
	console := client.NewConsole(cmd.InOrStdin(), out)

	room, token, err := credentials(cmd.InOrStdin(), console, out, opts)
	if err != nil {
		return err
	}

	session := chat.New(newDialer(cfg), chat.Options{
		Endpoint:     cfg.Endpoint(),
		Logger:       logger.Named("session"),
		EventBuffer:  cfg.Session.EventBuffer,
		WriteTimeout: cfg.WriteTimeout(),
	})

	ctx := cmd.Context()
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	err = session.Connect(connectCtx, room, token)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Interrupted while connecting", zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	out.Emit(fmt.Sprintf("Connected to room %s", room))

	err = client.New(session, console, out, clientCfg, logger.Named("client")).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Disconnected from server", zap.Stringer("state", session.State()))
	return nil
}

// loadConfig reads the config file, if any, then environment overrides, then
// explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	} else {
		cfg.ApplyEnvOverrides()
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if f.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if f.Changed("transport") {
		cfg.Transport = opts.transport
	}
	if f.Changed("direct-mode") {
		cfg.Chat.DirectMode = opts.directMode
	}
	if f.Changed("greeting") {
		cfg.Chat.Greeting = opts.greeting
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(lc config.LogConfig, verbose bool, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encoder := zapcore.NewJSONEncoder(encCfg)
	if lc.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core), nil
}

func newDialer(cfg *config.Config) chat.Dialer {
	timeout := cfg.ConnectTimeout()
	if cfg.Transport == config.TransportGorilla {
		return gorilla.Dialer{Timeout: timeout}
	}
	return ws.Dialer{Timeout: timeout}
}

// credentials returns the room and token from flags, prompting for whatever is missing.
func credentials(in io.Reader, console *client.Console, out io.Writer, opts *options) (string, string, error) {
	room := strings.TrimSpace(opts.room)
	if room == "" {
		line, err := console.ReadLine(promptRoom)
		if err != nil {
			return "", "", fmt.Errorf("failed to read room ID: %w", err)
		}
		room = strings.TrimSpace(line)
	}
	if room == "" {
		return "", "", errors.New("room ID is required")
	}

	token := strings.TrimSpace(opts.token)
	if token == "" {
		line, err := readSecret(in, console, out)
		if err != nil {
			return "", "", fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return "", "", errors.New("token is required")
	}

	return room, token, nil
}

// readSecret reads the token without echo when stdin is a terminal.
func readSecret(in io.Reader, console *client.Console, out io.Writer) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return console.ReadLine(promptToken)
	}

	fmt.Fprint(out, promptToken)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
