package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns the single live session handle.
type Manager interface {
	// Connect returns the handle bound to identity, reusing the
	// current one when it matches. A handle bound to a different
	// identity is closed before the new one is allocated. The
	// handshake runs asynchronously; use Handle.Ready to wait for it.
	Connect(identity Identity) (Handle, error)

	// Handle returns the current handle, or false when idle/closed.
	// Pure read, no side effects.
	Handle() (Handle, bool)

	// Disconnect closes the current handle and clears the bound
	// identity. No-op when there is none.
	Disconnect()
}

// manager implements Manager. The mutex makes the identity-match
// check and the allocate-or-reuse decision one atomic step.
type manager struct {
	cfg    Config
	logger *slog.Logger

	mu sync.Mutex
	h  *handle
}

// NewManager creates a session manager. Construct one at application
// start and inject it into consumers.
func NewManager(cfg Config, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}

	return &manager{
		cfg:    cfg,
		logger: logger,
	}
}

func (m *manager) Connect(identity Identity) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.h != nil {
		if m.h.State() != StateClosed {
			if m.h.identity == identity {
				// Idempotent reuse; also covers an attempt still
				// in flight.
				return m.h, nil
			}

			// Teardown before create: a handle never switches
			// identity.
			old := m.h
			m.h = nil
			m.logger.Info("identity changed, closing previous session",
				"old", old.identity,
				"new", identity,
			)
			old.close(ErrIdentityMismatch)
		} else {
			m.h = nil
		}
	}

	if m.cfg.NewTransport == nil {
		return nil, ErrNoTransport
	}

	hlogger := m.logger.With("subject_id", identity.SubjectID, "role", identity.Role)
	tr := m.cfg.NewTransport(hlogger)

	h := newHandle(identity, tr, m.cfg.AckTimeout, m.cfg.OnState, hlogger)
	if err := tr.Open(h.ctx); err != nil {
		h.close(err)
		return nil, fmt.Errorf("open transport: %w", err)
	}
	h.start()

	m.h = h
	hlogger.Info("session connecting", "handle_id", h.id)

	return h, nil
}

func (m *manager) Handle() (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.h == nil || m.h.State() == StateClosed {
		return nil, false
	}
	return m.h, true
}

func (m *manager) Disconnect() {
	m.mu.Lock()
	h := m.h
	m.h = nil
	m.mu.Unlock()

	if h != nil {
		h.close(nil)
	}
}
