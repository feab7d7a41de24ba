// Command devserver is a local realtime server for development. It
// accepts both the websocket and the long-poll links, consumes the
// authenticate handshake, and replies with the acknowledgement so a
// sessionprobe (or the app) can run against it end to end.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/novalearn/realtime/internal/protocol"
	"github.com/novalearn/realtime/internal/version"
)

// pollHold is how long an /events request is held before answering 204.
const pollHold = 20 * time.Second

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting devserver",
		"version", version.Version,
		"addr", *addr,
	)

	srv := &server{
		logger:   logger,
		sessions: make(map[string]*pollSession),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/realtime", srv.handleWebSocket)
	mux.HandleFunc("/realtime/poll/open", srv.handlePollOpen)
	mux.HandleFunc("/realtime/poll/events", srv.handlePollEvents)
	mux.HandleFunc("/realtime/poll/send", srv.handlePollSend)
	mux.HandleFunc("/realtime/poll/close", srv.handlePollClose)

	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

type server struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*pollSession
}

// pollSession is one long-poll client's outbound queue.
type pollSession struct {
	sid   string
	queue chan []byte
}

// replyTo inspects an inbound message and produces the handshake ack
// for authenticate envelopes. Application traffic gets no reply.
func (s *server) replyTo(data []byte) ([]byte, bool) {
	env, ok := protocol.DecodeControl(data)
	if !ok || env.Type != protocol.TypeAuthenticate {
		return nil, false
	}

	var auth protocol.AuthenticateMsg
	if err := json.Unmarshal(env.Msg, &auth); err != nil {
		s.logger.Warn("malformed authenticate", "error", err)
		return nil, false
	}

	s.logger.Info("authenticated",
		"subject_id", auth.SubjectID,
		"role", auth.Role,
	)

	ack, err := protocol.EncodeAuthenticated(auth.SubjectID, uuid.NewString())
	if err != nil {
		s.logger.Error("failed to encode ack", "error", err)
		return nil, false
	}
	return ack, true
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("websocket client gone", "remote", r.RemoteAddr)
			return
		}

		if ack, ok := s.replyTo(data); ok {
			if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
				return
			}
		}
	}
}

func (s *server) handlePollOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := &pollSession{
		sid:   uuid.NewString(),
		queue: make(chan []byte, 64),
	}

	s.mu.Lock()
	s.sessions[sess.sid] = sess
	s.mu.Unlock()

	s.logger.Info("poll session opened", "sid", sess.sid, "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"sid": sess.sid})
}

func (s *server) session(r *http.Request) (*pollSession, bool) {
	sid := r.URL.Query().Get("sid")

	s.mu.Lock()
	sess, ok := s.sessions[sid]
	s.mu.Unlock()

	return sess, ok
}

func (s *server) handlePollEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	select {
	case data := <-sess.queue:
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	case <-time.After(pollHold):
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handlePollSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.session(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if ack, ok := s.replyTo(data); ok {
		select {
		case sess.queue <- ack:
		default:
			s.logger.Warn("poll queue full, dropping ack", "sid", sess.sid)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handlePollClose(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")

	s.mu.Lock()
	delete(s.sessions, sid)
	s.mu.Unlock()

	s.logger.Info("poll session closed", "sid", sid)
	w.WriteHeader(http.StatusOK)
}
