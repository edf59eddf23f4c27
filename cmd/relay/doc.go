// Package main runs the in-memory relay used by secura during development
// and tests. It serves a public-key directory and a WebSocket message hub.
//
// HTTP API
//
//	GET /users/{username}
//	    Return {"username", "publicKey"} for {username}; 404 if unknown.
//
//	PUT /users/{username}
//	    Publish {"publicKey": <base64 X25519>} for {username}.
//
//	GET /chat (WebSocket upgrade)
//	    JSON envelopes tagged by "type": register, send_message,
//	    message_ack, get_messages, presence from clients; new_message,
//	    message_sent, messages_history, user_presence,
//	    registration_success, error from the hub.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Relayed ciphertexts get increasing numeric ids and are kept until the
//     recipient acks them; a recipient's backlog is replayed on register.
//   - A request log records method, path, remote and duration at debug level.
//   - The default listen address is :8080.
//
// The relay never sees plaintext or private keys; it only stores ciphertext
// and public keys.
package main
