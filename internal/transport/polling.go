package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// pollWait is how long the server may hold an events request before
// answering 204. The read timeout leaves headroom on top of it.
const pollWait = 25 * time.Second

// pollLink is the fallback link: HTTP long-polling against the
// /open, /events, /send, /close endpoints.
type pollLink struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client
	sid    string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// openResponse is the body of a successful /open call.
type openResponse struct {
	SID string `json:"sid"`
}

// dialPolling opens a long-poll session. ctx carries the per-attempt
// dial timeout and only governs the /open call.
func dialPolling(ctx context.Context, cfg Config, logger *slog.Logger) (*pollLink, error) {
	client := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.PollingURL+"/open", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll open: unexpected status %d", resp.StatusCode)
	}

	var open openResponse
	if err := json.NewDecoder(resp.Body).Decode(&open); err != nil {
		return nil, fmt.Errorf("poll open: decode: %w", err)
	}
	if open.SID == "" {
		return nil, fmt.Errorf("poll open: empty session id")
	}

	lctx, cancel := context.WithCancel(context.Background())

	logger.Debug("polling session opened", "url", cfg.PollingURL, "sid", open.SID)

	return &pollLink{
		cfg:    cfg,
		logger: logger,
		client: client,
		sid:    open.SID,
		ctx:    lctx,
		cancel: cancel,
	}, nil
}

func (l *pollLink) kind() LinkKind { return LinkPolling }

// read long-polls /events until a message arrives. A 204 means the
// server had nothing within the hold window; poll again.
func (l *pollLink) read() ([]byte, error) {
	for {
		rctx, cancel := context.WithTimeout(l.ctx, pollWait+10*time.Second)

		req, err := http.NewRequestWithContext(rctx, http.MethodGet, l.eventsURL(), nil)
		if err != nil {
			cancel()
			return nil, err
		}

		resp, err := l.client.Do(req)
		if err != nil {
			cancel()
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			cancel()
			if err != nil {
				return nil, err
			}
			return data, nil

		case http.StatusNoContent:
			resp.Body.Close()
			cancel()
			continue

		default:
			resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("poll events: unexpected status %d", resp.StatusCode)
		}
	}
}

func (l *pollLink) write(data []byte) error {
	wctx, cancel := context.WithTimeout(l.ctx, l.cfg.WriteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(wctx, http.MethodPost, l.sendURL(), strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("poll send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (l *pollLink) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()

	// Best-effort server-side teardown.
	cctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, l.closeURL(), nil)
	if err != nil {
		return nil
	}
	if resp, err := l.client.Do(req); err == nil {
		resp.Body.Close()
	}

	return nil
}

func (l *pollLink) eventsURL() string {
	return l.cfg.PollingURL + "/events?sid=" + l.sid
}

func (l *pollLink) sendURL() string {
	return l.cfg.PollingURL + "/send?sid=" + l.sid
}

func (l *pollLink) closeURL() string {
	return l.cfg.PollingURL + "/close?sid=" + l.sid
}
