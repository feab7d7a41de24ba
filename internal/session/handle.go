package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novalearn/realtime/internal/protocol"
	"github.com/novalearn/realtime/internal/transport"
)

// Handle is the opaque ownership wrapper around one live transport
// connection. External consumers only read it; state changes go
// through the Manager.
type Handle interface {
	// ID identifies this handle for the lifetime of the process.
	ID() uuid.UUID

	// Identity returns the identity the handle is bound to.
	Identity() Identity

	// State returns the current session state.
	State() State

	// Connected reports the transport's low-level link status. The
	// session may still be authenticating; see State.
	Connected() bool

	// Ready blocks until the session is acknowledged Active, the
	// handle closes, or ctx expires. Typed session errors take
	// precedence over the context error.
	Ready(ctx context.Context) error

	// Send writes one application message over the transport.
	Send(data []byte) error

	// Receive returns the channel of inbound application messages.
	Receive() <-chan []byte

	// Err returns the latest session error, if any.
	Err() error
}

// handle implements Handle. Mutated only by transport lifecycle
// events and by the manager.
type handle struct {
	id       uuid.UUID
	identity Identity
	tr       transport.Transport
	logger   *slog.Logger

	ackTimeout time.Duration
	onState    StateHook

	ctx    context.Context
	cancel context.CancelFunc

	msgs    chan []byte
	control chan protocol.Envelope

	readyOnce sync.Once
	ready     chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

func newHandle(identity Identity, tr transport.Transport, ackTimeout time.Duration, onState StateHook, logger *slog.Logger) *handle {
	ctx, cancel := context.WithCancel(context.Background())

	return &handle{
		id:         uuid.New(),
		identity:   identity,
		tr:         tr,
		logger:     logger,
		ackTimeout: ackTimeout,
		onState:    onState,
		ctx:        ctx,
		cancel:     cancel,
		msgs:       make(chan []byte, 64),
		control:    make(chan protocol.Envelope, 4),
		ready:      make(chan struct{}),
		state:      StateConnecting,
	}
}

// start launches the event and demux loops.
func (h *handle) start() {
	if h.onState != nil {
		h.onState(StateIdle, StateConnecting)
	}
	go h.demux()
	go h.run()
}

func (h *handle) ID() uuid.UUID      { return h.id }
func (h *handle) Identity() Identity { return h.identity }

func (h *handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *handle) Connected() bool {
	return h.tr.Connected()
}

func (h *handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *handle) Ready(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-h.ctx.Done():
		if err := h.Err(); err != nil {
			return err
		}
		return ErrSessionClosed
	case <-ctx.Done():
		if err := h.Err(); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (h *handle) Send(data []byte) error {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	h.mu.Unlock()

	return h.tr.Send(data)
}

func (h *handle) Receive() <-chan []byte {
	return h.msgs
}

// run drives the session state machine from transport lifecycle
// events. Exactly one handshake is sent per Up/Reconnected event.
func (h *handle) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev, ok := <-h.tr.Events():
			if !ok {
				return
			}

			switch ev.Type {
			case transport.EventUp, transport.EventReconnected:
				h.authenticate()

			case transport.EventDown:
				h.setState(StateReconnecting, nil)

			case transport.EventExhausted:
				err := ErrTransportUnavailable
				if ev.Err != nil {
					err = fmt.Errorf("%w: %v", ErrTransportUnavailable, ev.Err)
				}
				h.close(err)
				return
			}
		}
	}
}

// authenticate sends the handshake for the current (re)connection and
// waits for the server ack. Active is gated on the ack; a timeout
// moves the session to Failed until the next reconnect retries.
func (h *handle) authenticate() {
	// Discard acks left over from a previous attempt.
	for {
		select {
		case <-h.control:
			continue
		default:
		}
		break
	}

	h.setState(StateAuthenticating, nil)

	data, err := protocol.EncodeAuthenticate(h.identity.SubjectID, h.identity.Role)
	if err != nil {
		h.logger.Error("failed to encode handshake", "error", err)
		return
	}
	if err := h.tr.Send(data); err != nil {
		// Link dropped under us; the transport will report Down.
		h.logger.Warn("failed to send handshake", "error", err)
		return
	}

	h.logger.Debug("handshake sent", "handle_id", h.id)

	timer := time.NewTimer(h.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-timer.C:
			h.logger.Warn("handshake ack timeout", "timeout", h.ackTimeout)
			h.setState(StateFailed, ErrHandshakeNotAcknowledged)
			return

		case env := <-h.control:
			switch env.Type {
			case protocol.TypeAuthenticated:
				var ack protocol.AuthenticatedMsg
				if err := json.Unmarshal(env.Msg, &ack); err != nil {
					h.logger.Warn("malformed handshake ack", "error", err)
					continue
				}
				if ack.SubjectID != 0 && ack.SubjectID != h.identity.SubjectID {
					h.logger.Warn("handshake ack for unexpected subject",
						"subject_id", ack.SubjectID,
					)
					continue
				}

				h.setState(StateActive, nil)
				h.readyOnce.Do(func() { close(h.ready) })
				h.logger.Info("session active", "handle_id", h.id)
				return

			case protocol.TypeError:
				var em protocol.ErrorMsg
				json.Unmarshal(env.Msg, &em)
				h.setState(StateFailed, fmt.Errorf("%w: %s: %s",
					ErrHandshakeNotAcknowledged, em.Code, em.Message))
				return
			}
		}
	}
}

// demux splits inbound traffic: control-channel envelopes feed the
// handshake, everything else is application traffic.
func (h *handle) demux() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case data, ok := <-h.tr.Receive():
			if !ok {
				return
			}

			if env, ok := protocol.DecodeControl(data); ok {
				select {
				case h.control <- env:
				default:
					h.logger.Warn("control buffer full, dropping message")
				}
				continue
			}

			select {
			case h.msgs <- data:
			default:
				h.logger.Warn("application buffer full, dropping message")
			}
		}
	}
}

// setState records a transition. Closed is terminal.
func (h *handle) setState(state State, err error) {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return
	}
	old := h.state
	h.state = state
	h.err = err
	h.mu.Unlock()

	if h.onState != nil && old != state {
		h.onState(old, state)
	}
}

// close tears the handle down. reason becomes the handle's final
// error (nil for an explicit disconnect). Idempotent.
func (h *handle) close(reason error) {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return
	}
	old := h.state
	h.state = StateClosed
	h.err = reason
	h.mu.Unlock()

	h.cancel()
	h.tr.Close()

	if reason != nil {
		h.logger.Info("session closed", "handle_id", h.id, "reason", reason)
	} else {
		h.logger.Info("session closed", "handle_id", h.id)
	}

	if h.onState != nil {
		h.onState(old, StateClosed)
	}
}
