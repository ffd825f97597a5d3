package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/omochice/room-chat-client/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ws://localhost:8080/api/v1/ws/", cfg.Endpoint())
	assert.Equal(t, TransportGobwas, cfg.Transport)
	assert.Equal(t, []string{"exit", "quit"}, cfg.Chat.QuitTokens)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout())

	cc, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, client.DirectPrompt, cc.DirectMode)
	assert.Equal(t, "@", cc.DirectPrefix)
}

func TestLoad(t *testing.T) {
	t.Setenv("CHAT_SERVER_HOST", "")
	t.Setenv("CHAT_SERVER_PORT", "")

	path := writeConfig(t, `
server:
  scheme: wss
  host: chat.example.com
  port: 443
transport: gorilla
session:
  connect_timeout: 3s
chat:
  quit_tokens: [bye]
  direct_mode: prefix
  greeting: Hello from client!
log:
  level: debug
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wss://chat.example.com:443/api/v1/ws/", cfg.Endpoint())
	assert.Equal(t, TransportGorilla, cfg.Transport)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout())
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout())
	assert.Equal(t, 10, cfg.Session.EventBuffer)
	assert.True(t, cfg.Log.Development)

	cc, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, client.Config{
		QuitTokens:   []string{"bye"},
		DirectMode:   client.DirectPrefix,
		DirectPrefix: "@",
		Greeting:     "Hello from client!",
	}, cc)
}

func TestLoad_Empty(t *testing.T) {
	t.Setenv("CHAT_SERVER_HOST", "")
	t.Setenv("CHAT_SERVER_PORT", "")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Endpoint(), cfg.Endpoint())
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  hots: typo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hots")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHAT_SERVER_HOST", "10.0.0.5")
	t.Setenv("CHAT_SERVER_PORT", "9000")

	cfg, err := Load(writeConfig(t, "server:\n  host: ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:9000/api/v1/ws/", cfg.Endpoint())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.Server.Scheme = "http" },
			wantErr: "invalid server scheme",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			wantErr: "server host is empty",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "relative path",
			mutate:  func(c *Config) { c.Server.Path = "api/v1/ws/" },
			wantErr: "server path must start with '/'",
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Transport = "tcp" },
			wantErr: "invalid transport",
		},
		{
			name:    "bad timeout",
			mutate:  func(c *Config) { c.Session.ConnectTimeout = "soon" },
			wantErr: "invalid session connect_timeout",
		},
		{
			name:    "negative buffer",
			mutate:  func(c *Config) { c.Session.EventBuffer = -1 },
			wantErr: "invalid session event_buffer",
		},
		{
			name:    "unknown direct mode",
			mutate:  func(c *Config) { c.Chat.DirectMode = "whisper" },
			wantErr: "unknown direct mode",
		},
		{
			name:    "blank quit token",
			mutate:  func(c *Config) { c.Chat.QuitTokens = []string{"exit", " "} },
			wantErr: "quit tokens must not be blank",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = ""
	cfg.Transport = "tcp"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server host is empty")
	assert.Contains(t, err.Error(), "invalid transport")
}
