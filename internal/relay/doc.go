// Package relay talks to the secura relay: the HTTP key directory and the
// persistent WebSocket message channel.
//
// It contains:
//   - HTTP, a directory client that maps usernames to public identity keys
//     (GET/PUT /users/{name}).
//   - WebSocketSession, the single logical connection to the message hub with
//     typed handler registration and bounded fixed-delay reconnect.
//   - Server, an in-memory development relay implementing both endpoints,
//     used by cmd/relay and by tests.
//
// All envelopes are the tagged variants of internal/protocol/wire.
package relay
