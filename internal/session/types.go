package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/novalearn/realtime/internal/transport"
)

// Errors
var (
	// ErrTransportUnavailable means every reconnection attempt was
	// exhausted; the session is closed.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrHandshakeNotAcknowledged means the server did not confirm
	// the authenticate message within the ack timeout.
	ErrHandshakeNotAcknowledged = errors.New("handshake not acknowledged")

	// ErrIdentityMismatch is the close reason of a handle torn down
	// because a different identity connected.
	ErrIdentityMismatch = errors.New("identity mismatch")

	// ErrSessionClosed means the handle was closed and can no longer
	// send.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoTransport means the manager was built without a transport
	// factory.
	ErrNoTransport = errors.New("no transport factory configured")
)

// Identity is the caller a connection acts on behalf of. Immutable
// once bound to a handle.
type Identity struct {
	SubjectID int64
	Role      string
}

// Well-known roles of the CRM suite.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleMentor  = "mentor"
	RoleAdmin   = "admin"
)

func (id Identity) String() string {
	return fmt.Sprintf("%d/%s", id.SubjectID, id.Role)
}

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateActive
	StateReconnecting
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// TransportFactory allocates the low-level connection a new handle
// binds to. Called once per handle.
type TransportFactory func(logger *slog.Logger) transport.Transport

// StateHook observes session state transitions. Called outside the
// manager's locks; must not block.
type StateHook func(old, new State)

// Config configures a Manager.
type Config struct {
	NewTransport TransportFactory
	AckTimeout   time.Duration // Handshake acknowledgement timeout
	OnState      StateHook     // Optional transition observer
}

// DefaultAckTimeout bounds the wait for the server's handshake ack.
const DefaultAckTimeout = 10 * time.Second
