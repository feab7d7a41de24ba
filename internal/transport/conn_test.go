package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig() Config {
	return Config{
		Fallback:     []LinkKind{LinkWebSocket},
		Reconnect:    true,
		MaxAttempts:  3,
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		DialTimeout:  2 * time.Second,
		PingInterval: time.Second,
		StaleTimeout: 10 * time.Second,
		WriteTimeout: time.Second,
		BufferSize:   64,
	}
}

func waitEvent(t *testing.T, c *Conn, want EventType) Event {
	t.Helper()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == want {
				return ev
			}
			t.Logf("skipping event %v", ev.Type)
		case <-timeout:
			t.Fatalf("timeout waiting for event %v", want)
		}
	}
}

func TestConn_OpenAndClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := testConfig()
	cfg.WebSocketURL = wsURL(server)

	c := NewConn(cfg, nil)
	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ev := waitEvent(t, c, EventUp)
	if ev.Link != LinkWebSocket {
		t.Errorf("Link = %v, want %v", ev.Link, LinkWebSocket)
	}
	if !c.Connected() {
		t.Error("expected Connected after EventUp")
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if c.Connected() {
		t.Error("expected not Connected after Close")
	}

	// Second close is a no-op.
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestConn_OpenTwice(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := testConfig()
	cfg.WebSocketURL = wsURL(server)

	c := NewConn(cfg, nil)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Open(context.Background()); err != ErrAlreadyOpen {
		t.Errorf("second Open = %v, want ErrAlreadyOpen", err)
	}
}

func TestConn_SendReceive(t *testing.T) {
	var mu sync.Mutex
	var received []byte

	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Echo server: record inbound, send one message out.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"client"}`))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	cfg := testConfig()
	cfg.WebSocketURL = wsURL(server)

	c := NewConn(cfg, nil)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitEvent(t, c, EventUp)

	want := []byte(`{"hello":"server"}`)
	if err := c.Send(want); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-c.Receive():
		if string(msg) != `{"hello":"client"}` {
			t.Errorf("received %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for inbound message")
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := received
		mu.Unlock()
		if string(got) == string(want) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("server received %q, want %q", got, want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestConn_SendNotConnected(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocketURL = "ws://127.0.0.1:1/realtime"

	c := NewConn(cfg, nil)
	defer c.Close()

	if err := c.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestConn_Reconnect(t *testing.T) {
	var mu sync.Mutex
	conns := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			// Drop the first connection straight away.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := testConfig()
	cfg.WebSocketURL = wsURL(server)

	c := NewConn(cfg, nil)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitEvent(t, c, EventUp)
	waitEvent(t, c, EventDown)
	waitEvent(t, c, EventReconnected)

	if !c.Connected() {
		t.Error("expected Connected after reconnect")
	}

	mu.Lock()
	if conns < 2 {
		t.Errorf("server saw %d connections, want >= 2", conns)
	}
	mu.Unlock()
}

func TestConn_Exhausted(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocketURL = "ws://127.0.0.1:1/realtime" // nothing listens here
	cfg.MaxAttempts = 2

	c := NewConn(cfg, nil)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ev := waitEvent(t, c, EventExhausted)
	if ev.Err == nil {
		t.Error("EventExhausted should carry the dial error")
	}
	if c.Connected() {
		t.Error("expected not Connected after exhaustion")
	}
}

func TestConn_ReconnectDisabled(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Drop every connection immediately.
	})
	defer server.Close()

	cfg := testConfig()
	cfg.WebSocketURL = wsURL(server)
	cfg.Reconnect = false

	c := NewConn(cfg, nil)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitEvent(t, c, EventUp)
	waitEvent(t, c, EventDown)
	waitEvent(t, c, EventExhausted)
}
