// Package config loads the chat client configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/omochice/room-chat-client/internal/client"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	TransportGobwas  = "gobwas"
	TransportGorilla = "gorilla"

	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 10 * time.Second
)

// ValidTransports lists the WebSocket implementations the client can dial with.
var ValidTransports = []string{TransportGobwas, TransportGorilla}

// Config holds all chat client configuration.
type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Transport string        `yaml:"transport"` // gobwas, gorilla
	Session   SessionConfig `yaml:"session"`
	Chat      ChatConfig    `yaml:"chat"`
	Log       LogConfig     `yaml:"log"`
}

// ServerConfig locates the room server's WebSocket route.
type ServerConfig struct {
	Scheme string `yaml:"scheme"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Path   string `yaml:"path"`
}

// SessionConfig tunes the connection session.
type SessionConfig struct {
	ConnectTimeout string `yaml:"connect_timeout"`
	WriteTimeout   string `yaml:"write_timeout"`
	EventBuffer    int    `yaml:"event_buffer"`
}

// ChatConfig tunes the compose loop.
type ChatConfig struct {
	QuitTokens   []string `yaml:"quit_tokens"`
	DirectMode   string   `yaml:"direct_mode"` // prompt, prefix, none
	DirectPrefix string   `yaml:"direct_prefix"`
	Greeting     string   `yaml:"greeting"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Scheme: "ws",
			Host:   "localhost",
			Port:   8080,
			Path:   "/api/v1/ws/",
		},
		Transport: TransportGobwas,
		Session: SessionConfig{
			ConnectTimeout: "10s",
			WriteTimeout:   "10s",
			EventBuffer:    10,
		},
		Chat: ChatConfig{
			QuitTokens:   append([]string(nil), client.DefaultQuitTokens...),
			DirectMode:   client.DirectPrompt.String(),
			DirectPrefix: client.DefaultDirectPrefix,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// ApplyEnvOverrides lets CHAT_SERVER_HOST and CHAT_SERVER_PORT redirect the client
// without editing the file. Load applies it automatically.
func (c *Config) ApplyEnvOverrides() {
	if host := os.Getenv("CHAT_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("CHAT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// Endpoint returns the base WebSocket URL without the room query.
func (c *Config) Endpoint() string {
	u := url.URL{
		Scheme: c.Server.Scheme,
		Host:   net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port)),
		Path:   c.Server.Path,
	}
	return u.String()
}

// ConnectTimeout returns the handshake timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.ConnectTimeout)
	if err != nil {
		return defaultConnectTimeout
	}
	return d
}

// WriteTimeout returns the per-send timeout as a duration.
func (c *Config) WriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.WriteTimeout)
	if err != nil {
		return defaultWriteTimeout
	}
	return d
}

// ClientConfig converts the chat section for the controller.
func (c *Config) ClientConfig() (client.Config, error) {
	mode, err := client.ParseDirectMode(c.Chat.DirectMode)
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{
		QuitTokens:   c.Chat.QuitTokens,
		DirectMode:   mode,
		DirectPrefix: c.Chat.DirectPrefix,
		Greeting:     c.Chat.Greeting,
	}, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Scheme {
	case "ws", "wss":
	default:
		errs = append(errs, fmt.Errorf("invalid server scheme: %q (valid: ws, wss)", c.Server.Scheme))
	}
	if c.Server.Host == "" {
		errs = append(errs, errors.New("server host is empty"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server path must start with '/': %q", c.Server.Path))
	}

	validTransport := false
	for _, t := range ValidTransports {
		if c.Transport == t {
			validTransport = true
			break
		}
	}
	if !validTransport {
		errs = append(errs, fmt.Errorf("invalid transport: %s (valid: %v)", c.Transport, ValidTransports))
	}

	for name, value := range map[string]string{
		"connect_timeout": c.Session.ConnectTimeout,
		"write_timeout":   c.Session.WriteTimeout,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("invalid session %s: %q", name, value))
		}
	}
	if c.Session.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("invalid session event_buffer: %d", c.Session.EventBuffer))
	}

	if _, err := client.ParseDirectMode(c.Chat.DirectMode); err != nil {
		errs = append(errs, err)
	}
	for _, token := range c.Chat.QuitTokens {
		if strings.TrimSpace(token) == "" {
			errs = append(errs, errors.New("quit tokens must not be blank"))
			break
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}

	return errors.Join(errs...)
}
