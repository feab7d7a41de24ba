package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsLink is the preferred link: a single gorilla/websocket connection
// with ping/pong keepalive and stale detection.
type wsLink struct {
	cfg    Config
	logger *slog.Logger
	conn   *websocket.Conn

	// Write serialization
	writeMu sync.Mutex

	mu       sync.Mutex
	lastPong time.Time
	closed   bool

	done chan struct{}
}

// dialWebSocket establishes a websocket link. ctx carries the
// per-attempt dial timeout.
func dialWebSocket(ctx context.Context, cfg Config, logger *slog.Logger) (*wsLink, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.WebSocketURL, nil)
	if err != nil {
		return nil, err
	}

	l := &wsLink{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		lastPong: time.Now(),
		done:     make(chan struct{}),
	}

	// Server-initiated ping: reply with pong and treat it as liveness.
	conn.SetPingHandler(func(data string) error {
		l.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Reply to our own keepalive pings.
	conn.SetPongHandler(func(string) error {
		l.touch()
		return nil
	})

	go l.keepalive()

	logger.Debug("websocket connected", "url", cfg.WebSocketURL)

	return l, nil
}

func (l *wsLink) kind() LinkKind { return LinkWebSocket }

func (l *wsLink) read() ([]byte, error) {
	_, data, err := l.conn.ReadMessage()
	return data, err
}

func (l *wsLink) write(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

func (l *wsLink) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)

	l.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return l.conn.Close()
}

func (l *wsLink) touch() {
	l.mu.Lock()
	l.lastPong = time.Now()
	l.mu.Unlock()
}

// keepalive pings the server and tears the connection down when it
// goes silent; the failed read surfaces as a link drop.
func (l *wsLink) keepalive() {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(l.cfg.WriteTimeout)
			if err := l.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				l.logger.Debug("failed to send ping", "error", err)
			}

			l.mu.Lock()
			lastPong := l.lastPong
			l.mu.Unlock()

			if time.Since(lastPong) > l.cfg.StaleTimeout {
				l.logger.Warn("link stale, closing",
					"last_pong", lastPong,
					"timeout", l.cfg.StaleTimeout,
				)
				l.conn.Close()
				return
			}
		}
	}
}
