package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultMaxAttempts  = 10
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultDialTimeout  = 20 * time.Second
	DefaultPingInterval = 15 * time.Second
	DefaultStaleTimeout = 60 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultBufferSize   = 256
	DefaultAckTimeout   = 10 * time.Second
	DefaultLogLevel     = "info"
)

// DefaultFallback is the link dial order when none is configured.
var DefaultFallback = []string{"websocket", "polling"}

func (c *Config) applyDefaults() {
	// Transport defaults
	if len(c.Transport.Fallback) == 0 {
		c.Transport.Fallback = append([]string(nil), DefaultFallback...)
	}
	if c.Transport.MaxAttempts == 0 {
		c.Transport.MaxAttempts = DefaultMaxAttempts
	}
	if c.Transport.BaseDelay == 0 {
		c.Transport.BaseDelay = DefaultBaseDelay
	}
	if c.Transport.MaxDelay == 0 {
		c.Transport.MaxDelay = DefaultMaxDelay
	}
	if c.Transport.DialTimeout == 0 {
		c.Transport.DialTimeout = DefaultDialTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.StaleTimeout == 0 {
		c.Transport.StaleTimeout = DefaultStaleTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = DefaultBufferSize
	}

	// Session defaults
	if c.Session.AckTimeout == 0 {
		c.Session.AckTimeout = DefaultAckTimeout
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
