package config

import "time"

// Config is the root configuration for the realtime session layer.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the realtime endpoints.
type ServerConfig struct {
	WebSocketURL string `yaml:"websocket_url"` // Preferred link (wss://...)
	PollingURL   string `yaml:"polling_url"`   // Long-poll fallback base URL
}

// TransportConfig holds the fixed connection policy. These are
// deployment constants, not per-user input.
type TransportConfig struct {
	Fallback         []string      `yaml:"fallback"`          // Link dial order
	DisableReconnect bool          `yaml:"disable_reconnect"` // Turn off automatic reconnection
	MaxAttempts      int           `yaml:"max_attempts"`      // Dial attempts per outage
	BaseDelay        time.Duration `yaml:"base_delay"`        // Initial reconnect delay
	MaxDelay         time.Duration `yaml:"max_delay"`         // Reconnect delay cap
	DialTimeout      time.Duration `yaml:"dial_timeout"`      // Per-attempt connection timeout
	PingInterval     time.Duration `yaml:"ping_interval"`     // Websocket keepalive interval
	StaleTimeout     time.Duration `yaml:"stale_timeout"`     // Max silence before the link is dead
	WriteTimeout     time.Duration `yaml:"write_timeout"`     // Write deadline for sends
	BufferSize       int           `yaml:"buffer_size"`       // Inbound message buffer
}

// SessionConfig holds session handshake settings.
type SessionConfig struct {
	AckTimeout time.Duration `yaml:"ack_timeout"` // Handshake acknowledgement timeout
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
