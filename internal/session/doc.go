// Package session implements the connection session manager.
//
// The Manager:
//   - Owns at most one live Handle per instance, bound to one Identity
//   - Reuses the handle for repeat connects with the same identity
//   - Tears the handle down before binding a different identity
//   - Sends one authenticate handshake after every transport
//     (re)connection and gates the Active state on the server ack
//
// The manager is constructed once at application start and injected
// into consumers; there is no package-level instance.
package session
