package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Conn implements Transport over the configured fallback chain.
type Conn struct {
	cfg    Config
	logger *slog.Logger

	msgs   chan []byte
	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	lnk       link
	connected bool
	opened    bool
	closed    bool
}

// NewConn creates a transport with the given connection policy.
func NewConn(cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Conn{
		cfg:    cfg,
		logger: logger,
		msgs:   make(chan []byte, cfg.BufferSize),
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
}

// Open starts the dial/reconnect loop in the background.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.opened {
		return ErrAlreadyOpen
	}
	c.opened = true

	c.wg.Add(1)
	go c.run(ctx)

	return nil
}

// Send writes one message to the current link.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.connected || c.lnk == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	lnk := c.lnk
	c.mu.Unlock()

	return lnk.write(data)
}

// Receive returns the inbound message channel.
func (c *Conn) Receive() <-chan []byte {
	return c.msgs
}

// Events returns the lifecycle event channel.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Connected reports the current low-level link status.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close releases the link and stops reconnection.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	lnk := c.lnk
	c.lnk = nil
	c.mu.Unlock()

	close(c.done)
	if lnk != nil {
		lnk.close()
	}

	return nil
}

// run dials, pumps reads, and reconnects until closed or exhausted.
func (c *Conn) run(ctx context.Context) {
	defer c.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BaseDelay
	bo.MaxInterval = c.cfg.MaxDelay

	attempts := 0
	everUp := false

	for {
		lnk, err := c.dial(ctx)
		if err != nil {
			attempts++
			if !c.cfg.Reconnect || attempts >= c.cfg.MaxAttempts {
				c.logger.Error("connection attempts exhausted",
					"attempts", attempts,
					"error", err,
				)
				c.emit(Event{Type: EventExhausted, Err: fmt.Errorf("dial: %w", err)})
				return
			}

			wait := bo.NextBackOff()
			c.logger.Warn("dial failed, retrying",
				"attempt", attempts,
				"wait", wait,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(wait):
			}
			continue
		}

		attempts = 0
		bo.Reset()

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			lnk.close()
			return
		}
		c.lnk = lnk
		c.connected = true
		c.mu.Unlock()

		if everUp {
			c.logger.Info("link re-established", "link", lnk.kind())
			c.emit(Event{Type: EventReconnected, Link: lnk.kind()})
		} else {
			everUp = true
			c.logger.Info("link established", "link", lnk.kind())
			c.emit(Event{Type: EventUp, Link: lnk.kind()})
		}

		err = c.readPump(ctx, lnk)

		c.mu.Lock()
		c.connected = false
		c.lnk = nil
		c.mu.Unlock()
		lnk.close()

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		c.logger.Warn("link dropped", "link", lnk.kind(), "error", err)
		c.emit(Event{Type: EventDown, Link: lnk.kind(), Err: err})

		if !c.cfg.Reconnect {
			c.emit(Event{Type: EventExhausted, Err: err})
			return
		}
	}
}

// dial tries each link kind in fallback order with a per-attempt
// timeout. The first success wins.
func (c *Conn) dial(ctx context.Context) (link, error) {
	var lastErr error

	for _, kind := range c.cfg.Fallback {
		dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)

		var lnk link
		var err error
		switch kind {
		case LinkWebSocket:
			lnk, err = dialWebSocket(dctx, c.cfg, c.logger.With("link", kind))
		case LinkPolling:
			lnk, err = dialPolling(dctx, c.cfg, c.logger.With("link", kind))
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownLink, kind)
		}
		cancel()

		if err == nil {
			return lnk, nil
		}
		lastErr = err
		c.logger.Debug("link dial failed", "link", kind, "error", err)
	}

	return nil, lastErr
}

// readPump forwards inbound messages until the link fails.
func (c *Conn) readPump(ctx context.Context, lnk link) error {
	for {
		data, err := lnk.read()
		if err != nil {
			return err
		}

		select {
		case c.msgs <- data:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		default:
			c.logger.Warn("receive buffer full, dropping message")
		}
	}
}

// emit delivers a lifecycle event without blocking the run loop.
func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping event", "event", ev.Type)
	}
}
