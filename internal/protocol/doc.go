// Package protocol defines the control-channel wire format for the
// realtime session layer.
//
// The only protocol in scope is the session handshake: after every
// successful low-level (re)connection the client sends one
// "authenticate" envelope on the control channel and waits for the
// server's "authenticated" acknowledgement. Application messages use
// other channels and pass through the session layer opaquely.
package protocol
