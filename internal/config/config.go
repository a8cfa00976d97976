// Package config holds the runtime settings of the relay server and the
// client sync controller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/SoCo-NP/SoCo/pkg/protocol"
)

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator.
// Every optional surface (websocket gateway, admin API, journal) is disabled by an empty
// address or path, so the bare relay runs with nothing but a port
type Config struct {
	Relay     *RelayConfig     `json:"relay"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Admin     *AdminConfig     `json:"admin"`
	Journal   *JournalConfig   `json:"journal"`
	Sync      *SyncConfig      `json:"sync"`
}

// RelayConfig is the plain TCP line protocol listener
type RelayConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"` // 0 picks a free port
	MaxLineBytes int           `json:"max_line_bytes"`
	WriteTimeout time.Duration `json:"write_timeout"` // 0 means no deadline
}

// FUNCTIONAL DISCOVERY: WebSocket gateway carries one protocol line per text frame
type WebSocketConfig struct {
	Addr         string        `json:"addr"`
	Path         string        `json:"path"`
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

type AdminConfig struct {
	Addr         string        `json:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// JournalConfig points at the sqlite event journal
type JournalConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// SyncConfig tunes the client side debouncing
type SyncConfig struct {
	TextDebounce     time.Duration `json:"text_debounce"`
	CursorDebounce   time.Duration `json:"cursor_debounce"`
	ViewportDebounce time.Duration `json:"viewport_debounce"`
	KeystrokeMode    bool          `json:"keystroke_mode"`
}

// FUNCTIONAL DISCOVERY: Defaults match a single classroom on one host.
// Relay.Port comes from the command line; 0 binds any free port
func DefaultConfig() *Config {
	return &Config{
		Relay: &RelayConfig{
			Host:         "0.0.0.0",
			MaxLineBytes: protocol.DefaultMaxLineBytes,
		},
		WebSocket: &WebSocketConfig{
			Path:         "/ws",
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   256,
		},
		Admin: &AdminConfig{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Journal: &JournalConfig{
			Timeout: 5 * time.Second,
		},
		Sync: &SyncConfig{
			TextDebounce:     200 * time.Millisecond,
			CursorDebounce:   120 * time.Millisecond,
			ViewportDebounce: 100 * time.Millisecond,
		},
	}
}

// FUNCTIONAL DISCOVERY: Validation catches bad settings before any listener opens
func (c *Config) Validate() error {
	if c.Relay == nil {
		return fmt.Errorf("relay configuration is required")
	}
	if c.Relay.Port < 0 || c.Relay.Port > 65535 {
		return fmt.Errorf("relay port must be between 0 and 65535")
	}
	if c.Relay.Host == "" {
		return fmt.Errorf("relay host cannot be empty")
	}
	if c.Relay.MaxLineBytes <= 0 {
		return fmt.Errorf("max line bytes must be positive")
	}
	if c.Relay.WriteTimeout < 0 {
		return fmt.Errorf("relay write timeout cannot be negative")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.Addr != "" {
		if !strings.HasPrefix(c.WebSocket.Path, "/") {
			return fmt.Errorf("WebSocket path must start with /")
		}
		if c.WebSocket.PingInterval <= 0 {
			return fmt.Errorf("WebSocket ping interval must be positive")
		}
		if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
			return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
		}
		if c.WebSocket.WriteTimeout <= 0 {
			return fmt.Errorf("WebSocket write timeout must be positive")
		}
		if c.WebSocket.BufferSize <= 0 {
			return fmt.Errorf("WebSocket buffer size must be positive")
		}
	}

	if c.Admin == nil {
		return fmt.Errorf("admin configuration is required")
	}
	if c.Admin.Addr != "" && (c.Admin.ReadTimeout <= 0 || c.Admin.WriteTimeout <= 0) {
		return fmt.Errorf("admin timeouts must be positive")
	}

	if c.Journal == nil {
		return fmt.Errorf("journal configuration is required")
	}
	if c.Journal.Path != "" && c.Journal.Timeout <= 0 {
		return fmt.Errorf("journal timeout must be positive")
	}

	if c.Sync == nil {
		return fmt.Errorf("sync configuration is required")
	}
	if c.Sync.TextDebounce <= 0 || c.Sync.CursorDebounce <= 0 || c.Sync.ViewportDebounce <= 0 {
		return fmt.Errorf("debounce intervals must be positive")
	}

	return nil
}

// FUNCTIONAL DISCOVERY: Environment variables override defaults; unparsable values keep the default
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("SOCO_HOST"); host != "" {
		config.Relay.Host = host
	}
	envInt("SOCO_MAX_LINE_BYTES", &config.Relay.MaxLineBytes)
	envDuration("SOCO_WRITE_TIMEOUT", &config.Relay.WriteTimeout)

	if addr := os.Getenv("SOCO_WS_ADDR"); addr != "" {
		config.WebSocket.Addr = addr
	}
	if path := os.Getenv("SOCO_WS_PATH"); path != "" {
		config.WebSocket.Path = path
	}
	envDuration("SOCO_WS_PING_INTERVAL", &config.WebSocket.PingInterval)
	envInt("SOCO_WS_BUFFER_SIZE", &config.WebSocket.BufferSize)

	if addr := os.Getenv("SOCO_ADMIN_ADDR"); addr != "" {
		config.Admin.Addr = addr
	}

	if path := os.Getenv("SOCO_JOURNAL_PATH"); path != "" {
		config.Journal.Path = path
	}
	envDuration("SOCO_JOURNAL_TIMEOUT", &config.Journal.Timeout)

	envDuration("SOCO_TEXT_DEBOUNCE", &config.Sync.TextDebounce)
	envDuration("SOCO_CURSOR_DEBOUNCE", &config.Sync.CursorDebounce)
	envDuration("SOCO_VIEWPORT_DEBOUNCE", &config.Sync.ViewportDebounce)
	if v := os.Getenv("SOCO_KEYSTROKE_MODE"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			config.Sync.KeystrokeMode = on
		}
	}

	return config
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
