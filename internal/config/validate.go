package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	needWebSocket := false
	needPolling := false

	for _, link := range c.Transport.Fallback {
		switch link {
		case "websocket":
			needWebSocket = true
		case "polling":
			needPolling = true
		default:
			return fmt.Errorf("transport.fallback: unknown link %q", link)
		}
	}

	if needWebSocket && c.Server.WebSocketURL == "" {
		return errors.New("server.websocket_url is required")
	}
	if needPolling && c.Server.PollingURL == "" {
		return errors.New("server.polling_url is required")
	}

	if c.Transport.MaxAttempts < 1 {
		return errors.New("transport.max_attempts must be >= 1")
	}
	if c.Transport.BaseDelay <= 0 {
		return errors.New("transport.base_delay must be > 0")
	}
	if c.Transport.MaxDelay < c.Transport.BaseDelay {
		return errors.New("transport.max_delay must be >= transport.base_delay")
	}
	if c.Transport.DialTimeout <= 0 {
		return errors.New("transport.dial_timeout must be > 0")
	}
	if c.Transport.BufferSize < 1 {
		return errors.New("transport.buffer_size must be >= 1")
	}

	if c.Session.AckTimeout <= 0 {
		return errors.New("session.ack_timeout must be > 0")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	return nil
}
