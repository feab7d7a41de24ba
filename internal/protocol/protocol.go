package protocol

import (
	"bytes"
	"encoding/json"
)

// ControlChannel is the fixed channel the session handshake rides on.
// Application traffic uses other channels and is never interpreted here.
const ControlChannel = "session.control"

// Control message types.
const (
	TypeAuthenticate  = "authenticate"
	TypeAuthenticated = "authenticated"
	TypeError         = "error"
)

// Envelope wraps every control-channel message.
type Envelope struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Msg     json.RawMessage `json:"msg,omitempty"`
}

// AuthenticateMsg is the handshake payload sent by the client after
// every successful (re)connection.
type AuthenticateMsg struct {
	SubjectID int64  `json:"subject_id"`
	Role      string `json:"role"`
}

// AuthenticatedMsg is the server's handshake acknowledgement.
type AuthenticatedMsg struct {
	SubjectID int64  `json:"subject_id"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrorMsg is the payload of a control-channel error.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeAuthenticate builds the wire form of the handshake message.
func EncodeAuthenticate(subjectID int64, role string) ([]byte, error) {
	msg, err := json.Marshal(AuthenticateMsg{SubjectID: subjectID, Role: role})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Channel: ControlChannel,
		Type:    TypeAuthenticate,
		Msg:     msg,
	})
}

// EncodeAuthenticated builds the wire form of the server acknowledgement.
func EncodeAuthenticated(subjectID int64, sessionID string) ([]byte, error) {
	msg, err := json.Marshal(AuthenticatedMsg{SubjectID: subjectID, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Channel: ControlChannel,
		Type:    TypeAuthenticated,
		Msg:     msg,
	})
}

// DecodeControl attempts to parse raw bytes as a control-channel
// envelope. Returns false for application traffic so callers can pass
// it through untouched.
func DecodeControl(data []byte) (Envelope, bool) {
	// Quick check before paying for a full parse.
	if !bytes.Contains(data, []byte(`"channel":`)) {
		return Envelope{}, false
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, false
	}
	if env.Channel != ControlChannel {
		return Envelope{}, false
	}

	switch env.Type {
	case TypeAuthenticate, TypeAuthenticated, TypeError:
		return env, true
	}

	return Envelope{}, false
}
