package transport

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("transport closed")
	ErrAlreadyOpen  = errors.New("transport already open")
	ErrUnknownLink  = errors.New("unknown link kind")
)

// LinkKind identifies a low-level link implementation.
type LinkKind string

const (
	LinkWebSocket LinkKind = "websocket"
	LinkPolling   LinkKind = "polling"
)

// EventType classifies transport lifecycle events.
type EventType int

const (
	// EventUp fires once, after the first successful dial.
	EventUp EventType = iota

	// EventDown fires when an established link drops.
	EventDown

	// EventReconnected fires after a dropped link has been
	// re-established.
	EventReconnected

	// EventExhausted fires when the reconnection attempt cap is
	// reached (or reconnection is disabled). The transport is dead
	// afterwards.
	EventExhausted
)

func (t EventType) String() string {
	switch t {
	case EventUp:
		return "up"
	case EventDown:
		return "down"
	case EventReconnected:
		return "reconnected"
	case EventExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Event is a transport lifecycle notification.
type Event struct {
	Type EventType
	Link LinkKind // Link the event relates to (zero for Exhausted)
	Err  error    // Cause for Down/Exhausted, nil otherwise
}

// Transport is the pluggable bidirectional connection the session
// manager binds an identity to.
type Transport interface {
	// Open starts dialing in the background. The first successful
	// dial emits EventUp; drops and re-dials emit EventDown and
	// EventReconnected. Open itself never blocks on the network.
	Open(ctx context.Context) error

	// Send writes one message to the current link.
	Send(data []byte) error

	// Receive returns the channel of inbound messages.
	Receive() <-chan []byte

	// Events returns the channel of lifecycle events.
	Events() <-chan Event

	// Connected reports the current low-level link status.
	Connected() bool

	// Close releases the link and stops reconnection. Idempotent.
	Close() error
}

// link is one concrete connection (websocket or long-poll). Conn owns
// exactly one live link at a time and replaces it on reconnect.
type link interface {
	kind() LinkKind
	read() ([]byte, error)
	write(data []byte) error
	close() error
}

// Config holds the fixed connection policy. These are deployment
// constants, not per-call inputs.
type Config struct {
	WebSocketURL string        // Preferred link endpoint (wss://...)
	PollingURL   string        // Fallback link base URL (https://.../poll)
	Fallback     []LinkKind    // Dial order; first success wins
	Reconnect    bool          // Automatic reconnection on link drop
	MaxAttempts  int           // Dial attempt cap per outage
	BaseDelay    time.Duration // Initial reconnect delay
	MaxDelay     time.Duration // Reconnect delay cap
	DialTimeout  time.Duration // Per-attempt connection timeout
	PingInterval time.Duration // Websocket keepalive interval
	StaleTimeout time.Duration // Max silence before a link is declared dead
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Inbound message channel buffer
}

// DefaultConfig returns the fixed connection policy used in production.
func DefaultConfig() Config {
	return Config{
		Fallback:     []LinkKind{LinkWebSocket, LinkPolling},
		Reconnect:    true,
		MaxAttempts:  10,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		DialTimeout:  20 * time.Second,
		PingInterval: 15 * time.Second,
		StaleTimeout: 60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// withDefaults fills zero-valued policy fields from DefaultConfig.
// URLs and the Reconnect flag are left as given.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Fallback) == 0 {
		c.Fallback = def.Fallback
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = def.PingInterval
	}
	if c.StaleTimeout == 0 {
		c.StaleTimeout = def.StaleTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.BufferSize == 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}
