// Package transport implements the low-level bidirectional link the
// session layer rides on.
//
// A Conn:
//   - Dials the preferred link with automatic fallback
//     (websocket, then HTTP long-polling)
//   - Reconnects dropped links with exponential backoff, bounded by a
//     fixed attempt cap
//   - Surfaces lifecycle events (Up, Down, Reconnected, Exhausted) to
//     the session layer
//   - Keeps websocket links alive with ping/pong and stale detection
package transport
